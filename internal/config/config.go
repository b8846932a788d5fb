package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string
	LogLevel string

	DBDriver    string
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	JWTSecret     []byte
	SessionSecret []byte
	TokenTTL      time.Duration
	SessionTTL    time.Duration
	CookieSecure  bool
	CSRFEnabled   bool

	KafkaBrokers []string

	ESURL         string
	ESUser        string
	ESPassword    string
	ESCourseIndex string

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	LoginRateLimit  int
	LoginRateWindow time.Duration
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		HTTPAddr: EnvDefault("HTTP_ADDR", ":8080"),
		LogLevel: EnvDefault("LOG_LEVEL", "info"),

		DBDriver:    EnvDefault("DB_DRIVER", "postgres"),
		DatabaseURL: EnvDefault("DATABASE_URL", ""),
		DBHost:      EnvDefault("DB_HOST", "localhost"),
		DBPort:      EnvDefault("DB_PORT", "5432"),
		DBUser:      EnvDefault("DB_USER", "postgres"),
		DBPassword:  EnvDefault("DB_PASSWORD", ""),
		DBName:      EnvDefault("DB_NAME", "language_school"),

		JWTSecret:     []byte(EnvDefault("JWT_SECRET", "")),
		SessionSecret: []byte(EnvDefault("SESSION_SECRET", "")),
		TokenTTL:      EnvDurationDefault("TOKEN_TTL", 24*time.Hour),
		SessionTTL:    EnvDurationDefault("SESSION_TTL", 24*time.Hour),
		CookieSecure:  EnvBoolDefault("COOKIE_SECURE", false),
		CSRFEnabled:   EnvBoolDefault("CSRF_ENABLED", true),

		KafkaBrokers: CSV(EnvDefault("KAFKA_BROKERS", "")),

		ESURL:         EnvDefault("ES_URL", ""),
		ESUser:        EnvDefault("ES_USER", ""),
		ESPassword:    EnvDefault("ES_PASSWORD", ""),
		ESCourseIndex: EnvDefault("ES_COURSE_INDEX", "courses"),

		RedisAddr:       EnvDefault("REDIS_ADDR", ""),
		RedisPassword:   EnvDefault("REDIS_PASSWORD", ""),
		RedisDB:         EnvIntDefault("REDIS_DB", 0),
		LoginRateLimit:  EnvIntDefault("LOGIN_RATE_LIMIT", 10),
		LoginRateWindow: EnvDurationDefault("LOGIN_RATE_WINDOW", time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if err := MustNonEmptyBytes(c.JWTSecret, "JWT_SECRET"); err != nil {
		errs = append(errs, err)
	}
	if err := MustNonEmptyBytes(c.SessionSecret, "SESSION_SECRET"); err != nil {
		errs = append(errs, err)
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	if c.TokenTTL <= 0 || c.SessionTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL and SESSION_TTL must be positive"))
	}
	return errors.Join(errs...)
}

// String is safe to log: secrets are masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"http=%s db=%s/%s kafka=%v es=%q redis=%q jwt_secret=%s session_secret=%s",
		c.HTTPAddr, c.DBDriver, c.DBName, c.KafkaBrokers, c.ESURL, c.RedisAddr,
		mask(c.JWTSecret), mask(c.SessionSecret),
	)
}

func mask(b []byte) string {
	if len(b) == 0 {
		return "<empty>"
	}
	return "***"
}
