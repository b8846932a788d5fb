package authclient

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
)

type TokenSource interface {
	Token() string
}

// StaticTokenSource holds the most recent token handed out by the API.
type StaticTokenSource struct {
	mu    sync.RWMutex
	token string
}

func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

func (s *StaticTokenSource) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *StaticTokenSource) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// bearerTransport adds the bearer token to same-origin requests under the API prefix.
type bearerTransport struct {
	base   http.RoundTripper
	origin *url.URL
	prefix string
	tokens TokenSource
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.applies(req) {
		return t.base.RoundTrip(req)
	}
	token := t.tokens.Token()
	if token == "" {
		return t.base.RoundTrip(req)
	}

	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(r)
}

func (t *bearerTransport) applies(req *http.Request) bool {
	if req.URL == nil || req.Header.Get("Authorization") != "" {
		return false
	}
	if !sameOrigin(req.URL, t.origin) {
		return false
	}
	if t.prefix == "/" {
		return true
	}
	p := req.URL.Path
	return p == t.prefix || strings.HasPrefix(p, t.prefix+"/")
}

func sameOrigin(a, b *url.URL) bool {
	if !strings.EqualFold(a.Scheme, b.Scheme) {
		return false
	}
	return strings.EqualFold(a.Hostname(), b.Hostname()) && effectivePort(a) == effectivePort(b)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		return "443"
	case "http":
		return "80"
	}
	return ""
}
