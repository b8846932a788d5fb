package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/language_school/internal/jwtmiddleware"
	"github.com/Skotchmaster/language_school/internal/logging"
	"github.com/Skotchmaster/language_school/internal/session"
)

type SessionReader interface {
	Read(c echo.Context) (session.Identity, error)
}

type Resolver struct {
	Sessions SessionReader
	Profiles ProfileStore
	Timeout  time.Duration
}

func NewResolver(sessions SessionReader, profiles ProfileStore) *Resolver {
	return &Resolver{Sessions: sessions, Profiles: profiles, Timeout: DefaultLookupTimeout}
}

// Resolve determines the caller from the bearer token first, then the session cookie.
// It expects jwtmiddleware.Bearer to have run earlier in the chain.
func (r *Resolver) Resolve(c echo.Context) *Identity {
	if claims, ok := jwtmiddleware.ClaimsFrom(c); ok {
		return &Identity{UserID: claims.UserID, Email: claims.Email, Role: claims.Role, Source: SourceToken}
	}

	sid, err := r.Sessions.Read(c)
	if err == nil {
		return &Identity{UserID: sid.UserID, Role: sid.Role, Source: SourceSession}
	}
	if !errors.Is(err, session.ErrNoSession) && !errors.Is(err, session.ErrInvalidSession) {
		logging.FromContext(c.Request().Context()).Warn("session_lookup_failed", "error", err)
	}
	return nil
}

func (r *Resolver) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := r.Resolve(c)
		timeout := r.Timeout
		if timeout <= 0 {
			timeout = DefaultLookupTimeout
		}
		c.Set(profilesKey, &Profiles{c: c, store: r.Profiles, timeout: timeout, identity: id})
		if id != nil {
			c.Set(identityKey, id)
			req := c.Request()
			l := logging.FromContext(req.Context()).With("user_id", id.UserID, "role", id.Role, "auth_source", id.Source)
			c.SetRequest(req.WithContext(logging.IntoContext(req.Context(), l)))
		}
		return next(c)
	}
}

func RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := IdentityFrom(c); !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		}
		return next(c)
	}
}
