package csrf

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/language_school/internal/logging"
)

const ContextKey = "csrf_token"

type Config struct {
	CookieName string
	HeaderName string
	FormField  string

	CookiePath string
	Domain     string
	Secure     bool
	SameSite   http.SameSite
	MaxAge     time.Duration

	EnforceSameOrigin bool

	SkipPaths []string
}

func DefaultConfig() Config {
	return Config{
		CookieName:        "XSRF-TOKEN",
		HeaderName:        "X-CSRF-Token",
		FormField:         "csrf_token",
		CookiePath:        "/",
		SameSite:          http.SameSiteStrictMode,
		MaxAge:            24 * time.Hour,
		EnforceSameOrigin: true,
	}
}

// Middleware applies echo's double-submit CSRF check to cookie-authenticated requests,
// preceded by an Origin/Referer check on unsafe methods.
// Requests carrying a bearer token skip both since they hold no ambient credentials.
func Middleware(cfg Config) echo.MiddlewareFunc {
	def := DefaultConfig()
	if cfg.CookieName == "" {
		cfg.CookieName = def.CookieName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = def.HeaderName
	}
	if cfg.FormField == "" {
		cfg.FormField = def.FormField
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = def.CookiePath
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = def.SameSite
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = def.MaxAge
	}

	skip := map[string]struct{}{}
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}
	skipper := func(c echo.Context) bool {
		if _, ok := skip[c.Request().URL.Path]; ok {
			return true
		}
		return strings.HasPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
	}

	check := middleware.CSRFWithConfig(middleware.CSRFConfig{
		Skipper:        skipper,
		TokenLength:    32,
		TokenLookup:    "header:" + cfg.HeaderName + ",form:" + cfg.FormField,
		ContextKey:     ContextKey,
		CookieName:     cfg.CookieName,
		CookiePath:     cfg.CookiePath,
		CookieDomain:   cfg.Domain,
		CookieMaxAge:   int(cfg.MaxAge.Seconds()),
		CookieSecure:   cfg.Secure,
		CookieHTTPOnly: false,
		CookieSameSite: cfg.SameSite,
		ErrorHandler: func(err error, c echo.Context) error {
			logging.FromContext(c.Request().Context()).Warn("csrf_rejected", "status", 403, "reason", "token_mismatch", "error", err)
			return echo.NewHTTPError(http.StatusForbidden, "Invalid CSRF token")
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		inner := check(func(c echo.Context) error {
			if token, ok := c.Get(ContextKey).(string); ok && isSafe(c.Request().Method) {
				c.Response().Header().Set(cfg.HeaderName, token)
			}
			return next(c)
		})

		return func(c echo.Context) error {
			req := c.Request()
			if cfg.EnforceSameOrigin && !isSafe(req.Method) && !skipper(c) && !sameOrigin(req) {
				logging.FromContext(req.Context()).Warn("csrf_rejected", "status", 403, "reason", "invalid_origin")
				return echo.NewHTTPError(http.StatusForbidden, "Invalid origin")
			}
			return inner(c)
		}
	}
}

func isSafe(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = r.Header.Get("Referer")
		if origin == "" {
			return false
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, schemeOf(r)) && strings.EqualFold(u.Host, r.Host)
}

func schemeOf(r *http.Request) string {
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		return p
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
