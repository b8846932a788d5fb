package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/language_school/internal/repo"
	"github.com/Skotchmaster/language_school/internal/service"
	"github.com/Skotchmaster/language_school/internal/util"
)

type UserHandler struct {
	Users *repo.GormRepo
}

func (h *UserHandler) ListUsers(c echo.Context) error {
	page, offset, limit := pageParams(c)

	ctx, cancel := dbContext(c)
	defer cancel()
	users, total, err := h.Users.ListUsers(ctx, offset, limit)
	if err != nil {
		return err
	}

	views := make([]service.UserView, len(users))
	for i := range users {
		views[i] = service.ViewOf(&users[i])
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data": views,
		"meta": util.NewMeta(page, offset, limit, total),
	})
}
