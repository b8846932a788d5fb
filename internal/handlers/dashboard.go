package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/language_school/internal/middleware/auth"
	"github.com/Skotchmaster/language_school/internal/models"
	"github.com/Skotchmaster/language_school/internal/mykafka"
)

type DashboardHandler struct {
	DB        *gorm.DB
	Publisher mykafka.Publisher
}

// TeacherCourses lists the courses assigned to the calling teacher.
func (h *DashboardHandler) TeacherCourses(c echo.Context) error {
	teacherID, err := auth.TeacherProfileID(c)
	if err != nil {
		return profileError(err)
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	var courses []models.Course
	if err := h.DB.WithContext(ctx).Where("teacher_id = ?", teacherID).Order("id ASC").Find(&courses).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, courses)
}

func (h *DashboardHandler) StudentEnrollments(c echo.Context) error {
	studentID, err := auth.StudentProfileID(c)
	if err != nil {
		return profileError(err)
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	var enrollments []models.Enrollment
	if err := h.DB.WithContext(ctx).Preload("Course").Where("student_id = ?", studentID).Order("id ASC").Find(&enrollments).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, enrollments)
}

func (h *DashboardHandler) Enroll(c echo.Context) error {
	studentID, err := auth.StudentProfileID(c)
	if err != nil {
		return profileError(err)
	}

	var req struct {
		CourseID uint `json:"courseId"`
	}
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.CourseID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "courseId is required")
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	var enrollment models.Enrollment
	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var course models.Course
		if err := tx.First(&course, req.CourseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "Course not found")
			}
			return err
		}

		var count int64
		if err := tx.Model(&models.Enrollment{}).
			Where("course_id = ? AND student_id = ?", course.ID, studentID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "Already enrolled")
		}

		enrollment = models.Enrollment{CourseID: course.ID, StudentID: studentID}
		if err := tx.Create(&enrollment).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return echo.NewHTTPError(http.StatusBadRequest, "Already enrolled")
			}
			return err
		}
		enrollment.Course = &course
		return nil
	})
	if err != nil {
		return err
	}

	publish(c, h.Publisher, mykafka.TopicUserEvents, studentID, map[string]any{
		"type":      "student_enrolled",
		"studentID": studentID,
		"courseID":  req.CourseID,
	})
	return c.JSON(http.StatusCreated, enrollment)
}

// Unenroll only removes enrollments owned by the caller; anything else is reported as missing.
func (h *DashboardHandler) Unenroll(c echo.Context) error {
	studentID, err := auth.StudentProfileID(c)
	if err != nil {
		return profileError(err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	res := h.DB.WithContext(ctx).Where("id = ? AND student_id = ?", id, studentID).Delete(&models.Enrollment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "Enrollment not found")
	}
	return c.NoContent(http.StatusNoContent)
}
