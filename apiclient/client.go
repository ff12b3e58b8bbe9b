package apiclient

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

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Seann-Moser/afisha/session"
)

const (
	HeaderToken     = "X-Session-Token"
	HeaderUserID    = "X-Session-User-Id"
	HeaderRequestID = "X-Request-Id"

	defaultTimeout = 15 * time.Second
	maxErrorBody   = 64 << 10
)

// API is the remote session surface the rest of the app depends on.
type API interface {
	Register(ctx context.Context, req RegisterRequest) error
	Login(ctx context.Context, email, password string) (*session.Credentials, error)
	GetActiveLogin(ctx context.Context) (*session.User, error)
	Logout(ctx context.Context) error
}

var _ API = (*Client)(nil)

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

// Client calls the remote API. Stored credentials are attached to every request; the token
// store is only written on a successful Login and cleared on Logout.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	tokens     *session.TokenStore
	log        logrus.FieldLogger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

// WithTimeout bounds each request. It applies to a copy of the configured HTTP client, so a
// transport set with WithHTTPClient is kept.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			return
		}
		hc := http.Client{}
		if c.httpClient != nil {
			hc = *c.httpClient
		}
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// New returns a client for the API rooted at baseURL.
func New(baseURL string, tokens *session.TokenStore, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q: scheme and host are required", baseURL)
	}
	if tokens == nil {
		return nil, errors.New("token store is required")
	}
	c := &Client{
		base:       u,
		httpClient: &http.Client{Timeout: defaultTimeout},
		tokens:     tokens,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Register creates an account. It does not sign the user in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.do(ctx, http.MethodPost, "/register", req, nil)
}

// Login exchanges email and password for session credentials and persists them before
// returning.
func (c *Client) Login(ctx context.Context, email, password string) (*session.Credentials, error) {
	var creds session.Credentials
	if err := c.do(ctx, http.MethodPost, "/login", loginRequest{Email: email, Password: password}, &creds); err != nil {
		return nil, err
	}
	if !creds.Valid() {
		return nil, networkError("login response is missing session credentials", nil)
	}
	if err := c.tokens.Save(ctx, creds.Token, creds.UserID); err != nil {
		return nil, err
	}
	return &creds, nil
}

// GetActiveLogin returns the user behind the stored credentials. An ErrAuth result means
// the session is gone; clearing the token store is left to the caller.
func (c *Client) GetActiveLogin(ctx context.Context) (*session.User, error) {
	var u session.User
	if err := c.do(ctx, http.MethodGet, "/login", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Logout forgets the stored credentials. The API keeps no server-side state we need to
// tear down, so there is no round trip.
func (c *Client) Logout(ctx context.Context) error {
	return c.tokens.Clear(ctx)
}

func (c *Client) endpoint(p string) string {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + p
	return u.String()
}

func (c *Client) do(ctx context.Context, method, p string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(p), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	requestID := uuid.New().String()
	req.Header.Set(HeaderRequestID, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.attachCredentials(ctx, req); err != nil {
		return err
	}

	log := c.log.WithFields(logrus.Fields{"method": method, "path": p, "request_id": requestID})
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Warn("api request failed")
		return networkError("request failed", err)
	}
	defer resp.Body.Close()
	log = log.WithFields(logrus.Fields{"status": resp.StatusCode, "duration": time.Since(start)})

	if resp.StatusCode >= 400 {
		apiErr := decodeError(resp)
		log.WithError(apiErr).Debug("api request rejected")
		return apiErr
	}
	log.Debug("api request completed")

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return networkError("failed to decode response", err)
	}
	return nil
}

func (c *Client) attachCredentials(ctx context.Context, req *http.Request) error {
	creds, err := c.tokens.Read(ctx)
	if err != nil {
		return err
	}
	if creds == nil {
		return nil
	}
	req.Header.Set(HeaderToken, creds.Token)
	req.Header.Set(HeaderUserID, creds.UserID)
	return nil
}

func decodeError(resp *http.Response) *Error {
	apiErr := &Error{Kind: kindForStatus(resp.StatusCode), Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body errorBody
	if len(raw) > 0 && json.Unmarshal(raw, &body) == nil {
		apiErr.Message = body.Error
		if apiErr.Message == "" {
			apiErr.Message = body.Message
		}
		apiErr.Fields = body.Fields
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
