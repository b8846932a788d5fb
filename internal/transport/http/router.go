package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Skotchmaster/language_school/internal/handlers"
	"github.com/Skotchmaster/language_school/internal/jwtmiddleware"
	"github.com/Skotchmaster/language_school/internal/middleware/auth"
	"github.com/Skotchmaster/language_school/internal/middleware/ratelimit"
	"github.com/Skotchmaster/language_school/internal/models"
)

type Deps struct {
	DB       *gorm.DB
	Metrics  http.Handler
	Tokens   jwtmiddleware.Verifier
	Resolver *auth.Resolver

	AuthHandler       *handlers.AuthHandler
	UserHandler       *handlers.UserHandler
	CourseHandler     *handlers.CourseHandler
	SearchHandler     *handlers.SearchHandler
	BlogHandler       *handlers.BlogHandler
	HeroHandler       *handlers.HeroHandler
	StatisticsHandler *handlers.StatisticsHandler
	DashboardHandler  *handlers.DashboardHandler

	// Redis is optional; without it login and register are not rate limited.
	Redis     redis.Cmdable
	RateLimit ratelimit.Config
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", d.ready)
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	api := e.Group("/api", jwtmiddleware.Bearer(d.Tokens), d.Resolver.Middleware)

	limited := ratelimit.FixedWindow(d.Redis, d.RateLimit)

	a := api.Group("/auth")
	a.POST("/login", d.AuthHandler.Login, limited)
	a.POST("/register", d.AuthHandler.Register, limited)
	a.POST("/refresh", d.AuthHandler.Refresh)
	a.GET("/status", d.AuthHandler.Status)
	a.POST("/logout", d.AuthHandler.LogOut)
	a.GET("/me", d.AuthHandler.Me, auth.RequireAuth)

	courses := api.Group("/courses")
	courses.GET("", d.CourseHandler.GetCourses)
	courses.GET("/search", d.SearchHandler.SearchCourses)
	courses.GET("/:id", d.CourseHandler.GetCourse)
	courses.POST("", d.CourseHandler.CreateCourse, auth.RequireAdminProfile)
	courses.PUT("/:id", d.CourseHandler.UpdateCourse, auth.RequireAdminProfile)
	courses.DELETE("/:id", d.CourseHandler.DeleteCourse, auth.RequireAdminProfile)

	blog := api.Group("/blog")
	blog.GET("", d.BlogHandler.ListPosts)
	blog.GET("/:slug", d.BlogHandler.GetPost)
	blog.POST("", d.BlogHandler.CreatePost, auth.RequireAdminProfile)
	blog.PUT("/:id", d.BlogHandler.UpdatePost, auth.RequireAdminProfile)
	blog.DELETE("/:id", d.BlogHandler.DeletePost, auth.RequireAdminProfile)

	hero := api.Group("/hero-slides")
	hero.GET("", d.HeroHandler.ListSlides)
	hero.POST("", d.HeroHandler.CreateSlide, auth.RequireAdminProfile)
	hero.PUT("/:id", d.HeroHandler.UpdateSlide, auth.RequireAdminProfile)
	hero.DELETE("/:id", d.HeroHandler.DeleteSlide, auth.RequireAdminProfile)

	stats := api.Group("/statistics")
	stats.GET("", d.StatisticsHandler.ListStatistics)
	stats.PUT("/:key", d.StatisticsHandler.UpsertStatistic, auth.RequireAdminProfile)

	teacher := api.Group("/teacher", auth.RequireTeacherProfile)
	teacher.GET("/courses", d.DashboardHandler.TeacherCourses)

	student := api.Group("/student", auth.RequireStudentProfile)
	student.GET("/enrollments", d.DashboardHandler.StudentEnrollments)
	student.POST("/enrollments", d.DashboardHandler.Enroll)
	student.DELETE("/enrollments/:id", d.DashboardHandler.Unenroll)

	admin := api.Group("/admin", auth.RequireRole(models.RoleAdmin))
	admin.GET("/users", d.UserHandler.ListUsers)
}

func (d *Deps) ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := d.DB.DB()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Database unavailable")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Database unavailable")
	}
	return c.NoContent(http.StatusOK)
}
