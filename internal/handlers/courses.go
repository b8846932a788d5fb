package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/language_school/internal/logging"
	"github.com/Skotchmaster/language_school/internal/middleware/auth"
	"github.com/Skotchmaster/language_school/internal/models"
	"github.com/Skotchmaster/language_school/internal/mykafka"
	"github.com/Skotchmaster/language_school/internal/service/search"
	"github.com/Skotchmaster/language_school/internal/util"
)

type CourseHandler struct {
	DB        *gorm.DB
	Index     search.CourseIndex
	Publisher mykafka.Publisher
}

type courseRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Language    string  `json:"language"`
	Level       string  `json:"level"`
	Price       float64 `json:"price"`
	TeacherID   *uint   `json:"teacherId"`
}

func (r *courseRequest) validate() error {
	r.Title = strings.TrimSpace(r.Title)
	r.Language = strings.ToLower(strings.TrimSpace(r.Language))
	if r.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Title is required")
	}
	switch r.Language {
	case "", "de", "fa":
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "Language must be de or fa")
	}
	if r.Price < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Price must not be negative")
	}
	return nil
}

func (h *CourseHandler) checkTeacher(c echo.Context, id *uint) error {
	if id == nil {
		return nil
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	var count int64
	if err := h.DB.WithContext(ctx).Model(&models.TeacherProfile{}).Where("id = ?", *id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Unknown teacher")
	}
	return nil
}

func (h *CourseHandler) reindex(c echo.Context, course *models.Course) {
	if h.Index == nil {
		return
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	if err := h.Index.Index(ctx, course); err != nil {
		logging.FromContext(ctx).Error("course_index_failed", "course_id", course.ID, "error", err)
	}
}

func (h *CourseHandler) GetCourse(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := dbContext(c)
	defer cancel()
	var course models.Course
	if err := h.DB.WithContext(ctx).First(&course, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Course not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, course)
}

func (h *CourseHandler) GetCourses(c echo.Context) error {
	page, offset, limit := pageParams(c)

	ctx, cancel := dbContext(c)
	defer cancel()

	q := h.DB.WithContext(ctx).Model(&models.Course{})
	if lang := c.QueryParam("language"); lang != "" {
		q = q.Where("language = ?", strings.ToLower(lang))
	}
	if level := c.QueryParam("level"); level != "" {
		q = q.Where("level = ?", level)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return err
	}
	var items []models.Course
	if err := q.Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"data": items,
		"meta": util.NewMeta(page, offset, limit, total),
	})
}

func (h *CourseHandler) CreateCourse(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "course_create")

	adminID, err := auth.AdminProfileID(c)
	if err != nil {
		return profileError(err)
	}

	var req courseRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if err := req.validate(); err != nil {
		return err
	}
	if err := h.checkTeacher(c, req.TeacherID); err != nil {
		return err
	}

	course := models.Course{
		Title:            req.Title,
		Description:      req.Description,
		Language:         req.Language,
		Level:            req.Level,
		Price:            req.Price,
		TeacherID:        req.TeacherID,
		CreatedByAdminID: adminID,
	}

	ctx, cancel := dbContext(c)
	defer cancel()
	if err := h.DB.WithContext(ctx).Create(&course).Error; err != nil {
		return err
	}

	h.reindex(c, &course)
	publish(c, h.Publisher, mykafka.TopicContentEvents, course.ID, map[string]any{
		"type":     "course_created",
		"courseID": course.ID,
		"adminID":  adminID,
	})
	l.Info("course_created", "course_id", course.ID)
	return c.JSON(http.StatusCreated, course)
}

func (h *CourseHandler) UpdateCourse(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req courseRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if err := req.validate(); err != nil {
		return err
	}
	if err := h.checkTeacher(c, req.TeacherID); err != nil {
		return err
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	var course models.Course
	if err := h.DB.WithContext(ctx).First(&course, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Course not found")
		}
		return err
	}

	course.Title = req.Title
	course.Description = req.Description
	course.Language = req.Language
	course.Level = req.Level
	course.Price = req.Price
	course.TeacherID = req.TeacherID

	if err := h.DB.WithContext(ctx).Save(&course).Error; err != nil {
		return err
	}

	h.reindex(c, &course)
	publish(c, h.Publisher, mykafka.TopicContentEvents, course.ID, map[string]any{
		"type":     "course_updated",
		"courseID": course.ID,
	})
	return c.JSON(http.StatusOK, course)
}

func (h *CourseHandler) DeleteCourse(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	var deleted int64
	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("course_id = ?", id).Delete(&models.Enrollment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Course{}, id)
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return err
	}
	if deleted == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "Course not found")
	}

	if h.Index != nil {
		if err := h.Index.Delete(ctx, id); err != nil {
			logging.FromContext(ctx).Error("course_unindex_failed", "course_id", id, "error", err)
		}
	}
	publish(c, h.Publisher, mykafka.TopicContentEvents, id, map[string]any{
		"type":     "course_deleted",
		"courseID": id,
	})
	return c.NoContent(http.StatusNoContent)
}
