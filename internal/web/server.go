// Package web serves the storefront's HTML pages and its JSON cart endpoint.
package web

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"github.com/safar/storefront/internal/cart"
	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/media"
	"github.com/safar/storefront/internal/session"
	"golang.org/x/time/rate"
)

const csrfCookieName = "csrftoken"

type Server struct {
	cfg      *config.Config
	db       *sql.DB
	cart     *cart.Service
	sessions *session.Manager
	media    *media.Store
}

// New builds the echo instance with all middleware and routes registered.
func New(cfg *config.Config, db *sql.DB, sessions *session.Manager) *echo.Echo {
	s := &Server{
		cfg:      cfg,
		db:       db,
		cart:     cart.NewService(db),
		sessions: sessions,
		media:    media.NewStore(cfg.Media.Dir),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = newRenderer()
	e.HTTPErrorHandler = s.handleError

	e.Pre(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return p == "/healthz" || strings.HasPrefix(p, "/media/")
		},
	}))

	e.Use(middleware.Recover())
	e.Use(requestLogger())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.Media.MaxUploadMiB)))
	if cfg.Server.CSRF {
		e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
			TokenLookup:    "header:X-CSRFToken,form:csrfmiddlewaretoken",
			CookieName:     csrfCookieName,
			CookiePath:     "/",
			CookieSecure:   cfg.Session.Secure,
			CookieSameSite: http.SameSiteLaxMode,
			Skipper: func(c echo.Context) bool {
				return strings.HasPrefix(c.Request().URL.Path, "/media/")
			},
		}))
	}
	e.Use(s.loadSession())

	s.routes(e)

	return e
}

func (s *Server) routes(e *echo.Echo) {
	login := s.requireLogin
	limited := s.authRateLimiter()

	e.GET("/healthz", s.health)
	e.Static("/media", s.cfg.Media.Dir)

	e.GET("/", s.productList)
	e.GET("/:product_id/", s.productDetail)
	e.POST("/:product_id/comment/add/", s.addComment, login)

	e.GET("/cart/", s.cartPage, login)
	e.Any("/update_item/", s.updateItem, login)
	e.Match([]string{http.MethodGet, http.MethodPost}, "/add-to-cart/:product_id/", s.addToCart, login)
	e.POST("/remove-item/:item_id/", s.removeItem, login)
	e.POST("/update-quantity/:item_id/", s.updateQuantity, login)

	blogs := e.Group("/blogs")
	blogs.GET("/", s.blogList)
	blogs.GET("/:id/", s.blogDetail)
	blogs.Match([]string{http.MethodGet, http.MethodPost}, "/create/", s.blogCreate, login)
	blogs.Match([]string{http.MethodGet, http.MethodPost}, "/:id/edit/", s.blogUpdate, login)
	blogs.Match([]string{http.MethodGet, http.MethodPost}, "/:id/delete/", s.blogDelete, login)

	e.GET("/signup/", s.signupPage)
	e.POST("/signup/", s.signup, limited)
	e.GET("/login/", s.loginPage)
	e.POST("/login/", s.login, limited)
	e.Match([]string{http.MethodGet, http.MethodPost}, "/logout/", s.logout)

	e.Match([]string{http.MethodGet, http.MethodPost}, "/feedback/", s.feedback, login)
	e.Match([]string{http.MethodGet, http.MethodPost}, "/profile/", s.profile, login)
}

func (s *Server) health(c echo.Context) error {
	if err := s.db.PingContext(c.Request().Context()); err != nil {
		log.Error().Err(err).Msg("health check failed")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}

// authRateLimiter throttles login and signup attempts per client address.
func (s *Server) authRateLimiter() echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(s.cfg.Server.AuthRateLimit),
				Burst:     s.cfg.Server.AuthRateBurst,
				ExpiresIn: 3 * time.Minute,
			}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "Request rejected.")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			log.Warn().Str("client", identifier).Str("path", c.Path()).Msg("auth rate limit exceeded")
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many attempts. Please wait a moment and try again.")
		},
	})
}
