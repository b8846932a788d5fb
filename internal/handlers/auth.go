package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/language_school/internal/jwtmiddleware"
	"github.com/Skotchmaster/language_school/internal/logging"
	"github.com/Skotchmaster/language_school/internal/middleware/auth"
	"github.com/Skotchmaster/language_school/internal/repo"
	"github.com/Skotchmaster/language_school/internal/service"
	"github.com/Skotchmaster/language_school/internal/session"
)

type AuthHandler struct {
	Service  *service.AuthService
	Sessions *session.Manager
	Users    *repo.GormRepo
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := bindJSON(c, &req); err != nil {
		l.Warn("login_error", "status", 400, "reason", "invalid body")
		return err
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		l.Warn("login_error", "status", 400, "reason", "missing fields")
		return echo.NewHTTPError(http.StatusBadRequest, "Email and password are required")
	}

	user, err := h.Sessions.Authenticate(c, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repo.ErrInvalidCredentials) {
			l.Warn("login_failed", "status", 401, "reason", "invalid credentials")
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
		}
		return fmt.Errorf("login: %w", err)
	}

	res, err := h.Service.IssueFor(user)
	if err != nil {
		return fmt.Errorf("login: issue token: %w", err)
	}
	h.Service.LoggedIn(ctx, user)

	l.Info("login_successful", "user_id", user.ID, "role", user.Role)
	return c.JSON(http.StatusOK, res)
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req service.RegisterInput
	if err := bindJSON(c, &req); err != nil {
		l.Warn("register_error", "status", 400, "reason", "invalid body")
		return err
	}

	user, err := h.Service.Register(ctx, req)
	switch {
	case errors.Is(err, service.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, service.Message(err))
	case errors.Is(err, repo.ErrEmailTaken):
		return echo.NewHTTPError(http.StatusBadRequest, "User with this email already exists")
	case err != nil:
		return err
	}

	if err := h.Sessions.Start(c, user.ID, user.Role); err != nil {
		return fmt.Errorf("register: start session: %w", err)
	}
	res, err := h.Service.IssueFor(user)
	if err != nil {
		return fmt.Errorf("register: issue token: %w", err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	var req service.RefreshInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	token, err := h.Service.Refresh(ctx, req)
	switch {
	case errors.Is(err, service.ErrValidation):
		l.Warn("refresh_error", "status", 400, "reason", service.Message(err))
		return echo.NewHTTPError(http.StatusBadRequest, service.Message(err))
	case errors.Is(err, repo.ErrInvalidCredentials):
		l.Warn("refresh_failed", "status", 401, "user_id", req.UserID)
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	case err != nil:
		return fmt.Errorf("refresh: %w", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"token": token})
}

func (h *AuthHandler) LogOut(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "auth_logout")

	if err := h.Sessions.End(c); err != nil {
		l.Error("logout_failed", "status", 500, "error", err)
		return err
	}
	l.Info("successful_logout")
	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out"})
}

func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	user, err := h.Users.GetUserByID(ctx, id.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	if err != nil {
		return err
	}

	profile, err := h.Users.ProfileFor(ctx, user)
	if errors.Is(err, repo.ErrNotFound) {
		profile = nil
	} else if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"user": service.ViewOf(user), "profile": profile})
}

type tokenStatus struct {
	Present  bool           `json:"present"`
	Valid    bool           `json:"valid"`
	Identity *auth.Identity `json:"identity,omitempty"`
	Error    string         `json:"error,omitempty"`
}

type sessionStatus struct {
	Present  bool           `json:"present"`
	Valid    bool           `json:"valid"`
	Identity *auth.Identity `json:"identity,omitempty"`
}

type statusResponse struct {
	Token              tokenStatus    `json:"token"`
	Session            sessionStatus  `json:"session"`
	Resolved           *auth.Identity `json:"resolved"`
	AdminProfileExists bool           `json:"adminProfileExists"`
}

// Status reports token and session identities side by side for troubleshooting.
func (h *AuthHandler) Status(c echo.Context) error {
	var resp statusResponse

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ") {
		resp.Token.Present = true
		if claims, ok := jwtmiddleware.ClaimsFrom(c); ok {
			resp.Token.Valid = true
			resp.Token.Identity = &auth.Identity{UserID: claims.UserID, Email: claims.Email, Role: claims.Role, Source: auth.SourceToken}
		} else if err := jwtmiddleware.ErrorFrom(c); err != nil {
			resp.Token.Error = err.Error()
		}
	}

	if ck, err := c.Cookie(h.Sessions.CookieName); err == nil && ck.Value != "" {
		resp.Session.Present = true
		if sid, err := h.Sessions.Read(c); err == nil {
			resp.Session.Valid = true
			resp.Session.Identity = &auth.Identity{UserID: sid.UserID, Role: sid.Role, Source: auth.SourceSession}
		}
	}

	if id, ok := auth.IdentityFrom(c); ok {
		resp.Resolved = id
		ctx, cancel := dbContext(c)
		defer cancel()
		_, err := h.Users.AdminProfileByUser(ctx, id.UserID)
		switch {
		case err == nil:
			resp.AdminProfileExists = true
		case !errors.Is(err, repo.ErrNotFound):
			logging.FromContext(ctx).Warn("status_admin_lookup_failed", "error", err)
		}
	}

	return c.JSON(http.StatusOK, resp)
}
