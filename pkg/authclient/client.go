package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultPrefix = "/api"

// APIError is a non-2xx response carrying the server's {"error": ...} body.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("authclient: status %d: %s", e.Status, e.Message)
}

type Client struct {
	origin     *url.URL
	prefix     string
	tokens     TokenSource
	httpClient *http.Client
}

type Option func(*Client)

func WithPrefix(prefix string) Option {
	return func(c *Client) { c.prefix = prefix }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithTransport sets the underlying transport the bearer injection wraps.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.httpClient.Transport = rt }
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("authclient: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("authclient: base url must be absolute")
	}

	c := &Client{
		origin: &url.URL{Scheme: u.Scheme, Host: u.Host},
		prefix: DefaultPrefix,
		tokens: &StaticTokenSource{},
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.prefix = "/" + strings.Trim(c.prefix, "/")

	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.httpClient.Transport = &bearerTransport{
		base:   base,
		origin: c.origin,
		prefix: c.prefix,
		tokens: c.tokens,
	}
	return c, nil
}

// HTTPClient returns the intercepting client for arbitrary API calls.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

func (c *Client) Token() string { return c.tokens.Token() }

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type Identity struct {
	ID     string `json:"id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role"`
	Source string `json:"source"`
}

type TokenStatus struct {
	Present  bool      `json:"present"`
	Valid    bool      `json:"valid"`
	Identity *Identity `json:"identity,omitempty"`
	Error    string    `json:"error,omitempty"`
}

type SessionStatus struct {
	Present  bool      `json:"present"`
	Valid    bool      `json:"valid"`
	Identity *Identity `json:"identity,omitempty"`
}

type Status struct {
	Token              TokenStatus   `json:"token"`
	Session            SessionStatus `json:"session"`
	Resolved           *Identity     `json:"resolved"`
	AdminProfileExists bool          `json:"adminProfileExists"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return nil, err
	}
	c.store(out.Token)
	return &out, nil
}

func (c *Client) Register(ctx context.Context, in RegisterRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", in, &out); err != nil {
		return nil, err
	}
	c.store(out.Token)
	return &out, nil
}

func (c *Client) Refresh(ctx context.Context, userID, email, role string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"userId": userID, "email": email, "role": role}
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", body, &out); err != nil {
		return "", err
	}
	c.store(out.Token)
	return out.Token, nil
}

func (c *Client) Status(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.do(ctx, http.MethodGet, "/auth/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) store(token string) {
	if s, ok := c.tokens.(interface{ SetToken(string) }); ok && token != "" {
		s.SetToken(token)
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	u := *c.origin
	u.Path = c.prefix + path
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
