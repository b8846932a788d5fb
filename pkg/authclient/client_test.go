package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	auths map[string]string
}

func (r *recorder) seen(path string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.auths[path]
}

func newServer(t *testing.T) (*httptest.Server, *recorder) {
	t.Helper()

	rec := &recorder{auths: map[string]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.auths[r.URL.Path] = r.Header.Get("Authorization")
		rec.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/auth/login":
			var in map[string]string
			_ = json.NewDecoder(r.Body).Decode(&in)
			if in["password"] != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"Invalid credentials"}`))
				return
			}
			_, _ = w.Write([]byte(`{"user":{"id":"u-1","name":"Anna","email":"anna@example.com","role":"STUDENT"},"token":"tok-login"}`))
		case "/api/auth/register":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"user":{"id":"u-2","name":"Reza","email":"reza@example.com","role":"TEACHER"},"token":"tok-register"}`))
		case "/api/auth/refresh":
			_, _ = w.Write([]byte(`{"token":"tok-refreshed"}`))
		case "/api/auth/status":
			_, _ = w.Write([]byte(`{"token":{"present":true,"valid":true},"session":{"present":false,"valid":false},"resolved":{"id":"u-1","role":"STUDENT","source":"token"},"adminProfileExists":false}`))
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestLogin_StoresToken(t *testing.T) {
	t.Parallel()

	srv, rec := newServer(t)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	res, err := c.Login(context.Background(), "anna@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-login", res.Token)
	assert.Equal(t, "STUDENT", res.User.Role)
	assert.Equal(t, "tok-login", c.Token())
	assert.Empty(t, rec.seen("/api/auth/login"))

	st, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-login", rec.seen("/api/auth/status"))
	require.NotNil(t, st.Resolved)
	assert.Equal(t, "token", st.Resolved.Source)
}

func TestLogin_APIError(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Login(context.Background(), "anna@example.com", "wrong")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid credentials", apiErr.Message)
	assert.Empty(t, c.Token())
}

func TestRegisterAndRefresh_ReplaceToken(t *testing.T) {
	t.Parallel()

	srv, rec := newServer(t)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Register(context.Background(), RegisterRequest{Name: "Reza", Email: "reza@example.com", Password: "pw", Role: "TEACHER"})
	require.NoError(t, err)
	assert.Equal(t, "tok-register", c.Token())

	tok, err := c.Refresh(context.Background(), "u-2", "reza@example.com", "TEACHER")
	require.NoError(t, err)
	assert.Equal(t, "tok-refreshed", tok)
	assert.Equal(t, "tok-refreshed", c.Token())
	assert.Equal(t, "Bearer tok-register", rec.seen("/api/auth/refresh"))
}

func TestTransport_InjectionRules(t *testing.T) {
	t.Parallel()

	srv, rec := newServer(t)
	other, otherRec := newServer(t)

	c, err := NewClient(srv.URL, WithTokenSource(NewStaticTokenSource("abc")))
	require.NoError(t, err)

	tests := []struct {
		name   string
		url    string
		header string
		rec    *recorder
		path   string
		want   string
	}{
		{name: "api path", url: srv.URL + "/api/courses", rec: rec, path: "/api/courses", want: "Bearer abc"},
		{name: "prefix itself", url: srv.URL + "/api", rec: rec, path: "/api", want: "Bearer abc"},
		{name: "outside prefix", url: srv.URL + "/static/app.js", rec: rec, path: "/static/app.js", want: ""},
		{name: "prefix lookalike", url: srv.URL + "/apix/data", rec: rec, path: "/apix/data", want: ""},
		{name: "other origin", url: other.URL + "/api/courses", rec: otherRec, path: "/api/courses", want: ""},
		{name: "explicit header kept", url: srv.URL + "/api/blog", header: "Bearer mine", rec: rec, path: "/api/blog", want: "Bearer mine"},
	}

	for _, tt := range tests {
		req, err := http.NewRequest(http.MethodGet, tt.url, nil)
		require.NoError(t, err, tt.name)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		resp, err := c.HTTPClient().Do(req)
		require.NoError(t, err, tt.name)
		resp.Body.Close()

		assert.Equal(t, tt.want, tt.rec.seen(tt.path), tt.name)
		if tt.header == "" {
			assert.Empty(t, req.Header.Get("Authorization"), "%s: caller request must not be mutated", tt.name)
		}
	}
}

func TestTransport_NoToken(t *testing.T) {
	t.Parallel()

	srv, rec := newServer(t)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	resp, err := c.HTTPClient().Get(srv.URL + "/api/courses")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, rec.seen("/api/courses"))
}

func TestCustomPrefix(t *testing.T) {
	t.Parallel()

	srv, rec := newServer(t)
	c, err := NewClient(srv.URL, WithPrefix("v2/"), WithTokenSource(NewStaticTokenSource("abc")))
	require.NoError(t, err)

	for _, p := range []string{"/v2/x", "/api/x"} {
		resp, err := c.HTTPClient().Get(srv.URL + p)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, "Bearer abc", rec.seen("/v2/x"))
	assert.Empty(t, rec.seen("/api/x"))
}

func TestNewClient_RejectsRelativeURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient("/api")
	assert.Error(t, err)
}

type captureTransport struct {
	auth map[string]string
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.auth[req.URL.String()] = req.Header.Get("Authorization")
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
}

func TestTransport_OriginNormalization(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		base   string
		prefix string
		url    string
		want   string
	}{
		{name: "explicit default https port", base: "https://school.de", url: "https://school.de:443/api/courses", want: "Bearer abc"},
		{name: "base has default port", base: "http://school.de:80", url: "http://school.de/api/courses", want: "Bearer abc"},
		{name: "host case", base: "https://School.DE", url: "https://school.de/api/courses", want: "Bearer abc"},
		{name: "other port", base: "https://school.de", url: "https://school.de:8443/api/courses", want: ""},
		{name: "scheme downgrade", base: "https://school.de", url: "http://school.de/api/courses", want: ""},
		{name: "root prefix covers everything", base: "https://school.de", prefix: "/", url: "https://school.de/courses", want: "Bearer abc"},
		{name: "root prefix still same origin", base: "https://school.de", prefix: "/", url: "https://evil.test/courses", want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			capture := &captureTransport{auth: map[string]string{}}
			opts := []Option{WithTokenSource(NewStaticTokenSource("abc")), WithTransport(capture)}
			if tt.prefix != "" {
				opts = append(opts, WithPrefix(tt.prefix))
			}
			c, err := NewClient(tt.base, opts...)
			require.NoError(t, err)

			resp, err := c.HTTPClient().Get(tt.url)
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, tt.want, capture.auth[tt.url])
		})
	}
}
