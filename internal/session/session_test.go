package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/language_school/internal/hash"
	"github.com/Skotchmaster/language_school/internal/models"
	"github.com/Skotchmaster/language_school/internal/repo"
	"github.com/Skotchmaster/language_school/internal/testutil"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func setup(t *testing.T) (*Manager, *gorm.DB, *clock) {
	t.Helper()
	db := testutil.InitTestDB(t)
	r := repo.NewGormRepo(db)

	pw, err := hash.HashPassword("password")
	require.NoError(t, err)
	u := &models.User{Email: "a@b.com", Name: "Anna", PasswordHash: pw, Role: models.RoleAdmin}
	require.NoError(t, r.CreateUserWithProfile(context.Background(), u))

	clk := &clock{t: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
	m, err := NewManager(db, r, []byte("session-secret"), WithClock(clk.Now))
	require.NoError(t, err)
	return m, db, clk
}

func newCtx(cookies ...*http.Cookie) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == DefaultCookieName {
			return ck
		}
	}
	t.Fatalf("no %s cookie in response", DefaultCookieName)
	return nil
}

func TestNewManager_EmptySecret(t *testing.T) {
	t.Parallel()

	_, err := NewManager(nil, nil, nil)
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestAuthenticate_SetsCookieAndSession(t *testing.T) {
	t.Parallel()

	m, db, _ := setup(t)
	c, rec := newCtx()

	user, err := m.Authenticate(c, "a@b.com", "password")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)

	ck := sessionCookie(t, rec)
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, "/", ck.Path)
	assert.Equal(t, http.SameSiteStrictMode, ck.SameSite)
	assert.Equal(t, 86400, ck.MaxAge)

	var count int64
	require.NoError(t, db.Model(&models.Session{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	c2, _ := newCtx(ck)
	id, err := m.Read(c2)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id.UserID)
	assert.Equal(t, models.RoleAdmin, id.Role)
}

func TestAuthenticate_InvalidCredentials(t *testing.T) {
	t.Parallel()

	m, _, _ := setup(t)
	c, rec := newCtx()

	_, err := m.Authenticate(c, "a@b.com", "wrong")
	require.ErrorIs(t, err, repo.ErrInvalidCredentials)
	assert.Empty(t, rec.Result().Cookies())
}

func TestRead_Failures(t *testing.T) {
	t.Parallel()

	m, _, _ := setup(t)

	c, _ := newCtx()
	_, err := m.Read(c)
	assert.ErrorIs(t, err, ErrNoSession)

	forged, err := m.sign("not-a-real-session")
	require.NoError(t, err)

	tests := []struct {
		name  string
		value string
	}{
		{name: "no signature", value: "abc"},
		{name: "bad base64", value: "abc.!!!"},
		{name: "wrong signature", value: "abc.c2lnbmF0dXJl"},
		{name: "unknown id", value: forged},
	}
	for _, tt := range tests {
		c, _ := newCtx(&http.Cookie{Name: DefaultCookieName, Value: tt.value})
		_, err := m.Read(c)
		assert.ErrorIs(t, err, ErrInvalidSession, tt.name)
	}
}

func TestRead_ExpiresAfterTTL(t *testing.T) {
	t.Parallel()

	m, _, clk := setup(t)
	c, rec := newCtx()
	require.NoError(t, m.Start(c, "user-1", models.RoleStudent))
	ck := sessionCookie(t, rec)

	clk.t = clk.t.Add(24*time.Hour + time.Second)
	c2, _ := newCtx(ck)
	_, err := m.Read(c2)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestRead_SlidingRefresh(t *testing.T) {
	t.Parallel()

	m, db, clk := setup(t)
	c, rec := newCtx()
	require.NoError(t, m.Start(c, "user-1", models.RoleStudent))
	ck := sessionCookie(t, rec)

	clk.t = clk.t.Add(13 * time.Hour)
	c2, rec2 := newCtx(ck)
	_, err := m.Read(c2)
	require.NoError(t, err)
	assert.Equal(t, 86400, sessionCookie(t, rec2).MaxAge)

	var s models.Session
	require.NoError(t, db.First(&s).Error)
	assert.WithinDuration(t, clk.t.Add(24*time.Hour), s.ExpiresAt, time.Second)

	clk.t = clk.t.Add(23 * time.Hour)
	c3, _ := newCtx(ck)
	_, err = m.Read(c3)
	require.NoError(t, err)
}

func TestEnd_ClearsCookieAndRow(t *testing.T) {
	t.Parallel()

	m, db, _ := setup(t)
	c, rec := newCtx()
	require.NoError(t, m.Start(c, "user-1", models.RoleStudent))
	ck := sessionCookie(t, rec)

	c2, rec2 := newCtx(ck)
	require.NoError(t, m.End(c2))
	cleared := sessionCookie(t, rec2)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)

	var count int64
	require.NoError(t, db.Model(&models.Session{}).Count(&count).Error)
	assert.Zero(t, count)

	c3, _ := newCtx(ck)
	_, err := m.Read(c3)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestEnd_WithoutCookie(t *testing.T) {
	t.Parallel()

	m, _, _ := setup(t)
	c, rec := newCtx()
	require.NoError(t, m.End(c))
	assert.Negative(t, sessionCookie(t, rec).MaxAge)
}

func TestPurgeExpired(t *testing.T) {
	t.Parallel()

	m, db, clk := setup(t)
	c, _ := newCtx()
	require.NoError(t, m.Start(c, "user-1", models.RoleStudent))
	clk.t = clk.t.Add(12 * time.Hour)
	require.NoError(t, m.Start(c, "user-2", models.RoleStudent))

	clk.t = clk.t.Add(13 * time.Hour)
	n, err := m.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var count int64
	require.NoError(t, db.Model(&models.Session{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
