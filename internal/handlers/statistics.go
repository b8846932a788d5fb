package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/language_school/internal/middleware/auth"
	"github.com/Skotchmaster/language_school/internal/models"
)

type StatisticsHandler struct {
	DB *gorm.DB
}

func (h *StatisticsHandler) ListStatistics(c echo.Context) error {
	ctx, cancel := dbContext(c)
	defer cancel()

	var stats []models.Statistic
	if err := h.DB.WithContext(ctx).Order("key ASC").Find(&stats).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// UpsertStatistic creates or replaces the statistic named by :key.
func (h *StatisticsHandler) UpsertStatistic(c echo.Context) error {
	adminID, err := auth.AdminProfileID(c)
	if err != nil {
		return profileError(err)
	}

	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Key is required")
	}

	var req struct {
		Label string `json:"label"`
		Value *int64 `json:"value"`
	}
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.Value == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Value is required")
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	status := http.StatusOK
	var stat models.Statistic
	err = h.DB.WithContext(ctx).Where("key = ?", key).First(&stat).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		status = http.StatusCreated
		stat = models.Statistic{Key: key}
	case err != nil:
		return err
	}

	stat.Label = req.Label
	stat.Value = *req.Value
	stat.UpdatedByAdminID = adminID
	if err := h.DB.WithContext(ctx).Save(&stat).Error; err != nil {
		return err
	}
	return c.JSON(status, stat)
}
