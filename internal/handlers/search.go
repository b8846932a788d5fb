package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/language_school/internal/service/search"
)

type SearchHandler struct {
	Index search.CourseIndex
}

func NewSearchHandler(index search.CourseIndex) *SearchHandler {
	return &SearchHandler{Index: index}
}

func (h *SearchHandler) SearchCourses(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Query parameter q is required")
	}
	_, from, size := pageParams(c)

	ctx, cancel := dbContext(c)
	defer cancel()
	total, courses, err := h.Index.Search(ctx, q, from, size)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "courses": courses})
}
