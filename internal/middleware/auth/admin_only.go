package auth

import (
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/language_school/internal/logging"
	"github.com/Skotchmaster/language_school/internal/models"
)

func RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}
			if !slices.Contains(roles, id.Role) {
				logging.FromContext(c.Request().Context()).Warn("access_denied", "status", 403, "reason", "role_mismatch", "required", roles)
				return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
			}
			return next(c)
		}
	}
}

// RequireAdminProfile passes only ADMIN users whose admin profile row exists.
func RequireAdminProfile(next echo.HandlerFunc) echo.HandlerFunc {
	return requireProfile(models.RoleAdmin, func(p *Profiles) error { _, err := p.Admin(); return err })(next)
}

func RequireTeacherProfile(next echo.HandlerFunc) echo.HandlerFunc {
	return requireProfile(models.RoleTeacher, func(p *Profiles) error { _, err := p.Teacher(); return err })(next)
}

func RequireStudentProfile(next echo.HandlerFunc) echo.HandlerFunc {
	return requireProfile(models.RoleStudent, func(p *Profiles) error { _, err := p.Student(); return err })(next)
}

func requireProfile(role models.Role, load func(*Profiles) error) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return RequireRole(role)(func(c echo.Context) error {
			err := load(ProfilesFrom(c))
			switch {
			case err == nil:
				return next(c)
			case errors.Is(err, ErrUnauthenticated):
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			case errors.Is(err, ErrProfileNotFound):
				logging.FromContext(c.Request().Context()).Warn("access_denied", "status", 403, "reason", "profile_missing", "role", role)
				return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
			default:
				return fmt.Errorf("profile lookup: %w", err)
			}
		})
	}
}
