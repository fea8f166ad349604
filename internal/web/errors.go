package web

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/safar/storefront/internal/database"
)

var notFoundErrors = []error{
	database.ErrProductNotFound,
	database.ErrOrderItemNotFound,
	database.ErrOrderNotFound,
	database.ErrBlogNotFound,
	database.ErrUserNotFound,
}

type errorPage struct {
	Code    int
	Message string
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, msg := classify(err)
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("request failed")
	}

	var respErr error
	switch {
	case c.Request().Method == http.MethodHead:
		respErr = c.NoContent(code)
	case wantsJSON(c) || c.Path() == "/update_item/":
		respErr = c.JSON(code, map[string]string{"error": msg})
	default:
		respErr = s.render(c, code, "error", errorPage{Code: code, Message: msg})
	}
	if respErr != nil {
		log.Error().Err(respErr).Msg("write error response")
	}
}

func classify(err error) (int, string) {
	for _, nf := range notFoundErrors {
		if errors.Is(err, nf) {
			return http.StatusNotFound, "Not found"
		}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok {
			return he.Code, msg
		}
		return he.Code, http.StatusText(he.Code)
	}

	return http.StatusInternalServerError, "Internal server error"
}
