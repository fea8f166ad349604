package web

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/safar/storefront/internal/session"
)

const userContextKey = "user"

// loadSession attaches the session claims to the context when the request
// carries a valid session cookie. Anonymous requests pass through. A bad or
// revoked token clears the cookie.
func (s *Server) loadSession() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		TokenLookup: "cookie:" + s.cfg.Session.CookieName,
		ContextKey:  userContextKey,
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return s.sessions.Validate(c.Request().Context(), auth)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			if _, cerr := c.Cookie(s.cfg.Session.CookieName); cerr != nil {
				return nil
			}
			var he *echo.HTTPError
			if errors.Is(err, session.ErrInvalidToken) || errors.Is(err, session.ErrRevoked) || errors.As(err, &he) {
				s.clearSessionCookie(c)
				return nil
			}
			// store errors keep the cookie; the request runs anonymously
			log.Error().Err(err).Msg("validate session")
			return nil
		},
		ContinueOnIgnoredError: true,
	})
}

func currentUser(c echo.Context) *session.Claims {
	claims, _ := c.Get(userContextKey).(*session.Claims)
	return claims
}

func (s *Server) requireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if currentUser(c) != nil {
			return next(c)
		}
		if wantsJSON(c) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		}
		return c.Redirect(http.StatusFound, "/login/?next="+url.QueryEscape(c.Request().URL.RequestURI()))
	}
}

func wantsJSON(c echo.Context) bool {
	req := c.Request()
	return strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) ||
		strings.Contains(req.Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}

func (s *Server) setSessionCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// safeNext only allows local redirect targets.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return "/"
	}
	return next
}
