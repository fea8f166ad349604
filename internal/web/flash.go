package web

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
)

const flashCookieName = "flash"

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

type Flash struct {
	Level   Level  `json:"l"`
	Message string `json:"m"`
}

// Result is what a form handler decided: an optional message for the next
// page and where to send the browser.
type Result struct {
	Level    Level
	Message  string
	Redirect string
}

func success(msg, to string) Result { return Result{Level: LevelSuccess, Message: msg, Redirect: to} }
func info(msg, to string) Result    { return Result{Level: LevelInfo, Message: msg, Redirect: to} }
func failure(msg, to string) Result { return Result{Level: LevelError, Message: msg, Redirect: to} }

func (s *Server) finish(c echo.Context, r Result) error {
	if r.Message != "" {
		s.setFlash(c, Flash{Level: r.Level, Message: r.Message})
	}
	return c.Redirect(http.StatusFound, r.Redirect)
}

func (s *Server) setFlash(c echo.Context, f Flash) {
	raw, err := json.Marshal(f)
	if err != nil {
		return
	}
	c.SetCookie(&http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash returns the pending message, if any, and clears it.
func (s *Server) popFlash(c echo.Context) *Flash {
	cookie, err := c.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	c.SetCookie(&http.Cookie{
		Name:     flashCookieName,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var f Flash
	if err := json.Unmarshal(raw, &f); err != nil || f.Message == "" {
		return nil
	}
	return &f
}
