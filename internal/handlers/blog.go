package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/language_school/internal/middleware/auth"
	"github.com/Skotchmaster/language_school/internal/models"
	"github.com/Skotchmaster/language_school/internal/mykafka"
	"github.com/Skotchmaster/language_school/internal/util"
)

type BlogHandler struct {
	DB        *gorm.DB
	Publisher mykafka.Publisher
}

type blogRequest struct {
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Language  string `json:"language"`
	Published bool   `json:"published"`
}

func (r *blogRequest) validate() error {
	r.Slug = strings.ToLower(strings.TrimSpace(r.Slug))
	r.Title = strings.TrimSpace(r.Title)
	if r.Slug == "" || r.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Slug and title are required")
	}
	if strings.ContainsAny(r.Slug, " /?#") {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid slug")
	}
	return nil
}

func (h *BlogHandler) slugTaken(c echo.Context, slug string, exceptID uint) (bool, error) {
	ctx, cancel := dbContext(c)
	defer cancel()
	var count int64
	err := h.DB.WithContext(ctx).Model(&models.BlogPost{}).Where("slug = ? AND id <> ?", slug, exceptID).Count(&count).Error
	return count > 0, err
}

func (h *BlogHandler) ListPosts(c echo.Context) error {
	page, offset, limit := pageParams(c)

	ctx, cancel := dbContext(c)
	defer cancel()

	q := h.DB.WithContext(ctx).Model(&models.BlogPost{}).Where("published = ?", true)
	if lang := c.QueryParam("language"); lang != "" {
		q = q.Where("language = ?", lang)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return err
	}
	var posts []models.BlogPost
	if err := q.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&posts).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data": posts,
		"meta": util.NewMeta(page, offset, limit, total),
	})
}

func (h *BlogHandler) GetPost(c echo.Context) error {
	ctx, cancel := dbContext(c)
	defer cancel()

	var post models.BlogPost
	err := h.DB.WithContext(ctx).Where("slug = ? AND published = ?", c.Param("slug"), true).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

func (h *BlogHandler) CreatePost(c echo.Context) error {
	adminID, err := auth.AdminProfileID(c)
	if err != nil {
		return profileError(err)
	}

	var req blogRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if err := req.validate(); err != nil {
		return err
	}
	taken, err := h.slugTaken(c, req.Slug, 0)
	if err != nil {
		return err
	}
	if taken {
		return echo.NewHTTPError(http.StatusBadRequest, "Slug already exists")
	}

	post := models.BlogPost{
		Slug:          req.Slug,
		Title:         req.Title,
		Content:       req.Content,
		Language:      req.Language,
		Published:     req.Published,
		AuthorAdminID: adminID,
	}

	ctx, cancel := dbContext(c)
	defer cancel()
	if err := h.DB.WithContext(ctx).Create(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return echo.NewHTTPError(http.StatusBadRequest, "Slug already exists")
		}
		return err
	}

	publish(c, h.Publisher, mykafka.TopicContentEvents, post.ID, map[string]any{
		"type":    "blog_post_created",
		"postID":  post.ID,
		"adminID": adminID,
	})
	return c.JSON(http.StatusCreated, post)
}

func (h *BlogHandler) UpdatePost(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req blogRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if err := req.validate(); err != nil {
		return err
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	var post models.BlogPost
	if err := h.DB.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return err
	}
	taken, err := h.slugTaken(c, req.Slug, post.ID)
	if err != nil {
		return err
	}
	if taken {
		return echo.NewHTTPError(http.StatusBadRequest, "Slug already exists")
	}

	post.Slug = req.Slug
	post.Title = req.Title
	post.Content = req.Content
	post.Language = req.Language
	post.Published = req.Published
	if err := h.DB.WithContext(ctx).Save(&post).Error; err != nil {
		return err
	}

	publish(c, h.Publisher, mykafka.TopicContentEvents, post.ID, map[string]any{
		"type":   "blog_post_updated",
		"postID": post.ID,
	})
	return c.JSON(http.StatusOK, post)
}

func (h *BlogHandler) DeletePost(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := dbContext(c)
	defer cancel()
	res := h.DB.WithContext(ctx).Delete(&models.BlogPost{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}

	publish(c, h.Publisher, mykafka.TopicContentEvents, id, map[string]any{
		"type":   "blog_post_deleted",
		"postID": id,
	})
	return c.NoContent(http.StatusNoContent)
}
