package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/language_school/internal/logging"
	"github.com/Skotchmaster/language_school/internal/middleware/auth"
	"github.com/Skotchmaster/language_school/internal/mykafka"
	"github.com/Skotchmaster/language_school/internal/util"
)

const (
	dbTimeout      = 5 * time.Second
	publishTimeout = 5 * time.Second
)

func parseID(c echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid id")
	}
	return uint(v), nil
}

func bindJSON(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	return nil
}

func dbContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

func pageParams(c echo.Context) (page, offset, limit int) {
	page, size := util.Normalize(
		util.ParseIntDefault(c.QueryParam("page"), 1),
		util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize),
	)
	offset, limit = util.Calculate(page, size)
	return page, offset, limit
}

func publish(c echo.Context, p mykafka.Publisher, topic string, key any, event map[string]any) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), publishTimeout)
	defer cancel()
	if err := p.PublishEvent(ctx, topic, fmt.Sprint(key), event); err != nil {
		logging.FromContext(ctx).Error("kafka_publish_failed", "topic", topic, "error", err)
	}
}

func profileError(err error) error {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, auth.ErrProfileNotFound):
		return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
	}
	return err
}
