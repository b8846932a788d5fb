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

type HeroHandler struct {
	DB *gorm.DB
}

type heroRequest struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	ImageURL string `json:"imageUrl"`
	LinkURL  string `json:"linkUrl"`
	Position int    `json:"position"`
	Active   *bool  `json:"active"`
}

func (r *heroRequest) validate() error {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Title is required")
	}
	return nil
}

func (r *heroRequest) active() bool {
	return r.Active == nil || *r.Active
}

func (h *HeroHandler) ListSlides(c echo.Context) error {
	ctx, cancel := dbContext(c)
	defer cancel()

	var slides []models.HeroSlide
	if err := h.DB.WithContext(ctx).Where("active = ?", true).Order("position ASC").Order("id ASC").Find(&slides).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, slides)
}

func (h *HeroHandler) CreateSlide(c echo.Context) error {
	adminID, err := auth.AdminProfileID(c)
	if err != nil {
		return profileError(err)
	}

	var req heroRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if err := req.validate(); err != nil {
		return err
	}

	slide := models.HeroSlide{
		Title:            req.Title,
		Subtitle:         req.Subtitle,
		ImageURL:         req.ImageURL,
		LinkURL:          req.LinkURL,
		Position:         req.Position,
		Active:           req.active(),
		CreatedByAdminID: adminID,
	}

	ctx, cancel := dbContext(c)
	defer cancel()
	if err := h.DB.WithContext(ctx).Create(&slide).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, slide)
}

func (h *HeroHandler) UpdateSlide(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req heroRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if err := req.validate(); err != nil {
		return err
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	var slide models.HeroSlide
	if err := h.DB.WithContext(ctx).First(&slide, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Slide not found")
		}
		return err
	}

	slide.Title = req.Title
	slide.Subtitle = req.Subtitle
	slide.ImageURL = req.ImageURL
	slide.LinkURL = req.LinkURL
	slide.Position = req.Position
	slide.Active = req.active()
	if err := h.DB.WithContext(ctx).Save(&slide).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, slide)
}

func (h *HeroHandler) DeleteSlide(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := dbContext(c)
	defer cancel()
	res := h.DB.WithContext(ctx).Delete(&models.HeroSlide{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "Slide not found")
	}
	return c.NoContent(http.StatusNoContent)
}
