package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/language_school/internal/hash"
	"github.com/Skotchmaster/language_school/internal/jwtmiddleware"
	"github.com/Skotchmaster/language_school/internal/models"
	"github.com/Skotchmaster/language_school/internal/repo"
	"github.com/Skotchmaster/language_school/internal/session"
	"github.com/Skotchmaster/language_school/internal/testutil"
	"github.com/Skotchmaster/language_school/internal/tokens"
)

type countingStore struct {
	ProfileStore
	adminCalls atomic.Int32
}

func (s *countingStore) AdminProfileByUser(ctx context.Context, userID string) (*models.AdminProfile, error) {
	s.adminCalls.Add(1)
	return s.ProfileStore.AdminProfileByUser(ctx, userID)
}

type blockingStore struct{ ProfileStore }

func (blockingStore) AdminProfileByUser(ctx context.Context, _ string) (*models.AdminProfile, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type testEnv struct {
	db       *gorm.DB
	repo     *repo.GormRepo
	codec    *tokens.Codec
	sessions *session.Manager
	e        *echo.Echo
	resolver *Resolver
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.InitTestDB(t)
	r := repo.NewGormRepo(db)
	codec, err := tokens.NewCodec([]byte("jwt-secret"))
	require.NoError(t, err)
	sm, err := session.NewManager(db, r, []byte("session-secret"))
	require.NoError(t, err)

	env := &testEnv{db: db, repo: r, codec: codec, sessions: sm, e: echo.New()}
	env.resolver = NewResolver(sm, r)
	return env
}

func (env *testEnv) route(guards ...echo.MiddlewareFunc) {
	mws := append([]echo.MiddlewareFunc{jwtmiddleware.Bearer(env.codec), env.resolver.Middleware}, guards...)
	env.e.GET("/whoami", func(c echo.Context) error {
		id, ok := IdentityFrom(c)
		if !ok {
			return c.JSON(http.StatusOK, echo.Map{"anonymous": true})
		}
		return c.JSON(http.StatusOK, id)
	}, mws...)
}

func (env *testEnv) user(t *testing.T, email string, role models.Role) *models.User {
	t.Helper()
	pw, err := hash.HashPassword("password")
	require.NoError(t, err)
	u := &models.User{Email: email, Name: "N", PasswordHash: pw, Role: role}
	require.NoError(t, env.repo.CreateUserWithProfile(context.Background(), u))
	return u
}

func (env *testEnv) sessionCookie(t *testing.T, u *models.User) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	c := env.e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	require.NoError(t, env.sessions.Start(c, u.ID, u.Role))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func (env *testEnv) do(token string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func TestResolver_TokenTakesPrecedenceOverSession(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	env.route(RequireAuth)
	teacher := env.user(t, "t@school.de", models.RoleTeacher)
	admin := env.user(t, "a@school.de", models.RoleAdmin)

	tok, err := env.codec.Issue(teacher.ID, teacher.Email, teacher.Role)
	require.NoError(t, err)

	rec := env.do(tok, env.sessionCookie(t, admin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"TEACHER"`)
	assert.Contains(t, rec.Body.String(), `"source":"token"`)
	assert.Contains(t, rec.Body.String(), teacher.ID)
}

func TestResolver_ExpiredTokenFallsBackToSession(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	env.route(RequireAuth)
	teacher := env.user(t, "t@school.de", models.RoleTeacher)
	admin := env.user(t, "a@school.de", models.RoleAdmin)

	past, err := tokens.NewCodec([]byte("jwt-secret"), tokens.WithClock(func() time.Time {
		return time.Now().Add(-25 * time.Hour)
	}))
	require.NoError(t, err)
	expired, err := past.Issue(teacher.ID, teacher.Email, teacher.Role)
	require.NoError(t, err)

	rec := env.do(expired, env.sessionCookie(t, admin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"ADMIN"`)
	assert.Contains(t, rec.Body.String(), `"source":"session"`)
}

func TestResolver_InvalidTokenWithoutSessionIsUnauthenticated(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	env.route(RequireAuth)

	assert.Equal(t, http.StatusUnauthorized, env.do("garbage", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do("", nil).Code)
}

func TestResolver_AnonymousPassesWithoutGuard(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	env.route()

	rec := env.do("", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "anonymous")
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	env.route(RequireRole(models.RoleTeacher))
	teacher := env.user(t, "t@school.de", models.RoleTeacher)
	student := env.user(t, "s@school.de", models.RoleStudent)

	tok, err := env.codec.Issue(teacher.ID, teacher.Email, teacher.Role)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, env.do(tok, nil).Code)

	tok, err = env.codec.Issue(student.ID, student.Email, student.Role)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, env.do(tok, nil).Code)

	assert.Equal(t, http.StatusUnauthorized, env.do("", nil).Code)
}

func TestRequireAdminProfile(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	env.route(RequireAdminProfile)
	admin := env.user(t, "a@school.de", models.RoleAdmin)
	teacher := env.user(t, "t@school.de", models.RoleTeacher)

	adminTok, err := env.codec.Issue(admin.ID, admin.Email, admin.Role)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, env.do(adminTok, nil).Code)
	assert.Equal(t, http.StatusOK, env.do("", env.sessionCookie(t, admin)).Code)

	teacherTok, err := env.codec.Issue(teacher.ID, teacher.Email, teacher.Role)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, env.do(teacherTok, nil).Code)

	require.NoError(t, env.db.Where("user_id = ?", admin.ID).Delete(&models.AdminProfile{}).Error)
	assert.Equal(t, http.StatusForbidden, env.do(adminTok, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do("", nil).Code)
}

func TestRequireTeacherAndStudentProfile(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	teacher := env.user(t, "t@school.de", models.RoleTeacher)
	student := env.user(t, "s@school.de", models.RoleStudent)
	mws := []echo.MiddlewareFunc{jwtmiddleware.Bearer(env.codec), env.resolver.Middleware}
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	env.e.GET("/teacher", ok, append(mws, RequireTeacherProfile)...)
	env.e.GET("/student", ok, append(mws, RequireStudentProfile)...)

	call := func(path string, u *models.User) int {
		tok, err := env.codec.Issue(u.ID, u.Email, u.Role)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
		rec := httptest.NewRecorder()
		env.e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("/teacher", teacher))
	assert.Equal(t, http.StatusForbidden, call("/teacher", student))
	assert.Equal(t, http.StatusOK, call("/student", student))

	require.NoError(t, env.db.Where("user_id = ?", student.ID).Delete(&models.StudentProfile{}).Error)
	assert.Equal(t, http.StatusForbidden, call("/student", student))
}

func TestProfiles_CachedPerRequest(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	store := &countingStore{ProfileStore: env.repo}
	env.resolver.Profiles = store
	admin := env.user(t, "a@school.de", models.RoleAdmin)

	env.e.GET("/twice", func(c echo.Context) error {
		first, err := AdminProfileID(c)
		if err != nil {
			return err
		}
		second, err := AdminProfileID(c)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{"same": first == second})
	}, jwtmiddleware.Bearer(env.codec), env.resolver.Middleware, RequireAdminProfile)

	tok, err := env.codec.Issue(admin.ID, admin.Email, admin.Role)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/twice", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
		rec := httptest.NewRecorder()
		env.e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.EqualValues(t, 2, store.adminCalls.Load())
}

func TestProfiles_LookupIsBounded(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	env.resolver.Profiles = blockingStore{ProfileStore: env.repo}
	env.resolver.Timeout = 20 * time.Millisecond
	admin := env.user(t, "a@school.de", models.RoleAdmin)

	var lookupErr error
	env.e.GET("/slow", func(c echo.Context) error {
		_, lookupErr = ProfilesFrom(c).Admin()
		return c.NoContent(http.StatusOK)
	}, jwtmiddleware.Bearer(env.codec), env.resolver.Middleware)

	tok, err := env.codec.Issue(admin.ID, admin.Email, admin.Role)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/slow", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	env.e.ServeHTTP(httptest.NewRecorder(), req)

	assert.ErrorIs(t, lookupErr, context.DeadlineExceeded)
}

func TestProfilesFrom_WithoutResolver(t *testing.T) {
	t.Parallel()

	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	_, err := ProfilesFrom(c).Admin()
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = StudentProfileID(c)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
