package loggingmw

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/language_school/internal/logging"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestRequestLogger_LogsStatusAndInjectsLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e := echo.New()
	e.Use(RequestLogger(logging.NewWithWriter(&buf, "info"), nil))
	e.GET("/courses/:id", func(c echo.Context) error {
		logging.FromContext(c.Request().Context()).Info("inside")
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/courses/7", nil)
	req.Header.Set(echo.HeaderXRequestID, "rid-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "inside", lines[0]["msg"])
	assert.Equal(t, "rid-1", lines[0]["request_id"])
	assert.Equal(t, "/courses/:id", lines[1]["path"])
	assert.Equal(t, float64(204), lines[1]["status"])
}

func TestRequestLogger_HandlesErrors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e := echo.New()
	e.Use(RequestLogger(logging.NewWithWriter(&buf, "info"), nil))
	e.GET("/fail", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, float64(403), lines[0]["status"])
}

type observation struct {
	method, route string
	status        int
}

type fakeRecorder struct {
	seen []observation
}

func (r *fakeRecorder) Observe(method, route string, status int, _ time.Duration) {
	r.seen = append(r.seen, observation{method: method, route: route, status: status})
}

func TestRequestLogger_ReportsToRecorder(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	recorder := &fakeRecorder{}
	e := echo.New()
	e.Use(RequestLogger(logging.NewWithWriter(&buf, "info"), recorder))
	e.GET("/courses/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "Course not found")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/courses/42", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	require.Len(t, recorder.seen, 1)
	assert.Equal(t, observation{method: http.MethodGet, route: "/courses/:id", status: http.StatusNotFound}, recorder.seen[0])
}
