package httpserver

import (
	"errors"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Skotchmaster/language_school/internal/config"
	"github.com/Skotchmaster/language_school/internal/handlers"
	"github.com/Skotchmaster/language_school/internal/logging"
	"github.com/Skotchmaster/language_school/internal/metrics"
	"github.com/Skotchmaster/language_school/internal/middleware/auth"
	"github.com/Skotchmaster/language_school/internal/middleware/csrf"
	loggingmw "github.com/Skotchmaster/language_school/internal/middleware/logging"
	"github.com/Skotchmaster/language_school/internal/middleware/ratelimit"
	"github.com/Skotchmaster/language_school/internal/mykafka"
	"github.com/Skotchmaster/language_school/internal/repo"
	"github.com/Skotchmaster/language_school/internal/service"
	"github.com/Skotchmaster/language_school/internal/service/search"
	"github.com/Skotchmaster/language_school/internal/session"
	"github.com/Skotchmaster/language_school/internal/tokens"
)

type Options struct {
	Config    *config.Config
	DB        *gorm.DB
	Logger    *slog.Logger
	Publisher mykafka.Publisher
	// Index defaults to a database LIKE search.
	Index search.CourseIndex
	Redis redis.Cmdable
	// Metrics defaults to a fresh registry.
	Metrics *metrics.Metrics
}

type Server struct {
	Echo     *echo.Echo
	Sessions *session.Manager
	Tokens   *tokens.Codec
	Metrics  *metrics.Metrics
}

// New wires the codec, session manager, resolver and handlers onto a fresh Echo instance.
func New(o Options) (*Server, error) {
	if o.Config == nil || o.DB == nil || o.Logger == nil {
		return nil, errors.New("httpserver: config, db and logger are required")
	}
	cfg := o.Config
	if o.Publisher == nil {
		o.Publisher = mykafka.NopPublisher{}
	}
	if o.Index == nil {
		o.Index = &search.DBCourseIndex{DB: o.DB}
	}
	if o.Metrics == nil {
		o.Metrics = metrics.New()
	}

	codec, err := tokens.NewCodec(cfg.JWTSecret, tokens.WithTTL(cfg.TokenTTL))
	if err != nil {
		return nil, err
	}

	users := repo.NewGormRepo(o.DB)
	sessions, err := session.NewManager(o.DB, users, cfg.SessionSecret,
		session.WithTTL(cfg.SessionTTL),
		session.WithSecureCookie(cfg.CookieSecure),
	)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = ErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	// The request logger sits outside Recover so a recovered panic is logged with its request id.
	e.Use(
		middleware.RequestID(),
		loggingmw.RequestLogger(o.Logger, o.Metrics),
		middleware.RecoverWithConfig(middleware.RecoverConfig{
			DisableErrorHandler: true,
			LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
				logging.FromContext(c.Request().Context()).Error("panic_recovered", "error", err, "stack", string(stack))
				return err
			},
		}),
		middleware.Secure(),
	)
	if cfg.CSRFEnabled {
		e.Use(csrf.Middleware(csrf.Config{
			Secure: cfg.CookieSecure,
			SkipPaths: []string{
				"/api/auth/login",
				"/api/auth/register",
				"/api/auth/refresh",
			},
		}))
	}

	Register(e, &Deps{
		DB:       o.DB,
		Metrics:  o.Metrics.Handler(),
		Tokens:   codec,
		Resolver: auth.NewResolver(sessions, users),

		AuthHandler: &handlers.AuthHandler{
			Service:  &service.AuthService{Users: users, Tokens: codec, Publisher: o.Publisher},
			Sessions: sessions,
			Users:    users,
		},
		UserHandler:       &handlers.UserHandler{Users: users},
		CourseHandler:     &handlers.CourseHandler{DB: o.DB, Index: o.Index, Publisher: o.Publisher},
		SearchHandler:     handlers.NewSearchHandler(o.Index),
		BlogHandler:       &handlers.BlogHandler{DB: o.DB, Publisher: o.Publisher},
		HeroHandler:       &handlers.HeroHandler{DB: o.DB},
		StatisticsHandler: &handlers.StatisticsHandler{DB: o.DB},
		DashboardHandler:  &handlers.DashboardHandler{DB: o.DB, Publisher: o.Publisher},

		Redis: o.Redis,
		RateLimit: ratelimit.Config{
			Limit:  cfg.LoginRateLimit,
			Window: cfg.LoginRateWindow,
			Prefix: "ratelimit:auth",
		},
	})

	return &Server{Echo: e, Sessions: sessions, Tokens: codec, Metrics: o.Metrics}, nil
}
