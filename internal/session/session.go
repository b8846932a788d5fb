package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/language_school/internal/models"
)

const (
	DefaultCookieName = "session"
	DefaultTTL        = 24 * time.Hour
	lookupTimeout     = 5 * time.Second
)

var (
	ErrNoSession      = errors.New("no session")
	ErrInvalidSession = errors.New("invalid session")
	ErrNoSecret       = errors.New("session secret is empty")
)

type Identity struct {
	UserID string
	Role   models.Role
}

type CredentialChecker interface {
	CheckCredentials(ctx context.Context, email, password string) (*models.User, error)
}

type Manager struct {
	DB          *gorm.DB
	Credentials CredentialChecker
	CookieName  string
	TTL         time.Duration
	Secure      bool

	secret []byte
	now    func() time.Time
}

type Option func(*Manager)

func WithTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.TTL = d
		}
	}
}

func WithSecureCookie(secure bool) Option {
	return func(m *Manager) { m.Secure = secure }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(db *gorm.DB, creds CredentialChecker, secret []byte, opts ...Option) (*Manager, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	m := &Manager{
		DB:          db,
		Credentials: creds,
		CookieName:  DefaultCookieName,
		TTL:         DefaultTTL,
		secret:      secret,
		now:         time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Authenticate checks the credentials and, on success, starts a session on c.
func (m *Manager) Authenticate(c echo.Context, email, password string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), lookupTimeout)
	defer cancel()

	user, err := m.Credentials.CheckCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := m.Start(c, user.ID, user.Role); err != nil {
		return nil, err
	}
	return user, nil
}

func (m *Manager) Start(c echo.Context, userID string, role models.Role) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), lookupTimeout)
	defer cancel()

	s := models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Role:      role,
		ExpiresAt: m.now().UTC().Add(m.TTL),
	}
	if err := m.DB.WithContext(ctx).Create(&s).Error; err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	value, err := m.sign(s.ID)
	if err != nil {
		return err
	}
	c.SetCookie(m.cookie(value, int(m.TTL.Seconds())))
	return nil
}

// Read resolves the session cookie on c. Sessions past half their lifetime are extended.
func (m *Manager) Read(c echo.Context) (Identity, error) {
	ck, err := c.Cookie(m.CookieName)
	if err != nil || ck.Value == "" {
		return Identity{}, ErrNoSession
	}
	id, err := m.verify(ck.Value)
	if err != nil {
		return Identity{}, err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), lookupTimeout)
	defer cancel()

	var s models.Session
	if err := m.DB.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Identity{}, ErrInvalidSession
		}
		return Identity{}, fmt.Errorf("load session: %w", err)
	}

	now := m.now()
	if !now.Before(s.ExpiresAt) {
		return Identity{}, fmt.Errorf("%w: expired", ErrInvalidSession)
	}

	if s.ExpiresAt.Sub(now) < m.TTL/2 {
		exp := now.UTC().Add(m.TTL)
		if err := m.DB.WithContext(ctx).Model(&models.Session{}).Where("id = ?", s.ID).Update("expires_at", exp).Error; err == nil {
			c.SetCookie(m.cookie(ck.Value, int(m.TTL.Seconds())))
		}
	}

	return Identity{UserID: s.UserID, Role: s.Role}, nil
}

func (m *Manager) End(c echo.Context) error {
	defer c.SetCookie(m.cookie("", -1))

	ck, err := c.Cookie(m.CookieName)
	if err != nil || ck.Value == "" {
		return nil
	}
	id, err := m.verify(ck.Value)
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), lookupTimeout)
	defer cancel()
	if err := m.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Session{}).Error; err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	res := m.DB.WithContext(ctx).Where("expires_at <= ?", m.now().UTC()).Delete(&models.Session{})
	return res.RowsAffected, res.Error
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   maxAge,
	}
}

func (m *Manager) sign(id string) (string, error) {
	sig, err := jwt.SigningMethodHS256.Sign(id, m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return id + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

func (m *Manager) verify(value string) (string, error) {
	id, encSig, ok := strings.Cut(value, ".")
	if !ok || id == "" || encSig == "" {
		return "", ErrInvalidSession
	}
	sig, err := base64.RawURLEncoding.DecodeString(encSig)
	if err != nil {
		return "", ErrInvalidSession
	}
	if err := jwt.SigningMethodHS256.Verify(id, sig, m.secret); err != nil {
		return "", ErrInvalidSession
	}
	return id, nil
}
