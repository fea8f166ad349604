package web

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/forms"
	"github.com/safar/storefront/internal/media"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const (
	msgUsernameTaken  = "Username already exists."
	msgBadCredentials = "Invalid username or password."
)

func formValues(c echo.Context) url.Values {
	values, err := c.FormParams()
	if err != nil {
		return url.Values{}
	}
	return values
}

type loginPage struct {
	Next string
}

func (s *Server) signupPage(c echo.Context) error {
	return s.render(c, http.StatusOK, "signup", nil)
}

func (s *Server) signup(c echo.Context) error {
	ctx := c.Request().Context()

	in, err := forms.ValidateSignup(formValues(c))
	if err != nil {
		return s.finish(c, failure(forms.Message(err), "/signup/"))
	}

	exists, err := store.UsernameExists(ctx, s.db, in.Username)
	if err != nil {
		return err
	}
	if exists {
		return s.finish(c, failure(msgUsernameTaken, "/signup/"))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user, err := store.CreateUser(ctx, s.db, in.Username, in.Email, string(hash))
	if errors.Is(err, database.ErrUsernameTaken) {
		return s.finish(c, failure(msgUsernameTaken, "/signup/"))
	}
	if err != nil {
		return err
	}

	log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user signed up")

	return s.finish(c, success("Signup successful! You can now log in.", "/login/"))
}

func (s *Server) loginPage(c echo.Context) error {
	return s.render(c, http.StatusOK, "login", loginPage{Next: c.QueryParam("next")})
}

func (s *Server) login(c echo.Context) error {
	ctx := c.Request().Context()
	values := formValues(c)

	user, err := store.GetUserByUsername(ctx, s.db, values.Get("username"))
	if errors.Is(err, database.ErrUserNotFound) {
		return s.finish(c, failure(msgBadCredentials, "/login/"))
	}
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(values.Get("password"))); err != nil {
		return s.finish(c, failure(msgBadCredentials, "/login/"))
	}

	token, _, err := s.sessions.Issue(ctx, user.ID, user.Username)
	if err != nil {
		return err
	}
	s.setSessionCookie(c, token)

	return s.finish(c, Result{Redirect: safeNext(values.Get("next"))})
}

func (s *Server) logout(c echo.Context) error {
	if claims := currentUser(c); claims != nil {
		if err := s.sessions.Revoke(c.Request().Context(), claims); err != nil {
			return err
		}
	}
	s.clearSessionCookie(c)
	return s.finish(c, Result{Redirect: "/"})
}

type feedbackPage struct {
	Previous []models.Feedback
}

func (s *Server) feedback(c echo.Context) error {
	ctx := c.Request().Context()
	userID := currentUser(c).UserID

	if c.Request().Method != http.MethodPost {
		previous, err := store.ListFeedbackByUser(ctx, s.db, userID)
		if err != nil {
			return err
		}
		return s.render(c, http.StatusOK, "feedback", feedbackPage{Previous: previous})
	}

	fb, err := forms.ValidateFeedback(c.FormValue("subject"), c.FormValue("message"))
	if err != nil {
		return s.finish(c, failure(forms.Message(err), "/feedback/"))
	}

	if _, err := store.CreateFeedback(ctx, s.db, userID, fb.Subject, fb.Message); err != nil {
		return err
	}

	return s.finish(c, success("Thank you for your feedback!", "/feedback/"))
}

func (s *Server) profile(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := store.GetUser(ctx, s.db, currentUser(c).UserID)
	if err != nil {
		return err
	}
	if c.Request().Method != http.MethodPost {
		return s.render(c, http.StatusOK, "profile", user)
	}

	values := formValues(c)
	upd, err := forms.ParseProfile(values)
	if err != nil {
		return s.finish(c, failure(forms.Message(err), "/profile/"))
	}

	avatar, err := s.uploadedImage(c, "avatar", media.DirAvatars)
	if errors.Is(err, media.ErrUnsupportedType) {
		return s.finish(c, failure("Unsupported image type.", "/profile/"))
	}
	if err != nil {
		return err
	}
	if avatar != "" {
		upd.Avatar = &avatar
	}

	version := user.Version
	if v, err := strconv.Atoi(values.Get("version")); err == nil {
		version = v
	}

	_, err = store.UpdateProfile(ctx, s.db, user.ID, version, upd)
	if err != nil {
		s.discardUpload(avatar)
	}
	if errors.Is(err, database.ErrOptimisticLockFailed) {
		return s.finish(c, failure("Your profile was changed elsewhere. Please review and try again.", "/profile/"))
	}
	if err != nil {
		return err
	}

	return s.finish(c, success("Profile updated.", "/profile/"))
}
