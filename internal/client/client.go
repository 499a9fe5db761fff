// Package client is the Go API client for the LMS: a thin HTTP transport,
// the session manager holding the current login, and the playback tracker
// that syncs video progress.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kumudkode/lms-apiserver/types"
)

const defaultRequestTimeout = 10 * time.Second

// Client issues requests against the LMS API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Client for the given base URL. httpClient may be
// nil; a client with a bounded timeout is used so no call can hang.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// RegisterInput is the payload for account registration.
type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// AuthResult carries the session token and user returned by register/login.
type AuthResult struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

// ProgressResult carries stored lesson progress.
type ProgressResult struct {
	ProgressSeconds float64 `json:"progress_seconds"`
	Completed       bool    `json:"completed"`
}

// Register creates an account. The server issues a token on success, so a
// successful registration doubles as a login.
func (c *Client) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	var result AuthResult
	err := c.do(ctx, http.MethodPost, "/api/auth/register", "", input, &result, registerKind)
	return result, err
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	var result AuthResult
	err := c.do(ctx, http.MethodPost, "/api/auth/login", "", body, &result, loginKind)
	return result, err
}

// Me resolves the token into the current user. A rejection of any kind
// means the token is no longer good.
func (c *Client) Me(ctx context.Context, token string) (types.User, error) {
	var result struct {
		User types.User `json:"user"`
	}
	err := c.do(ctx, http.MethodGet, "/api/auth/me", token, nil, &result, tokenKind)
	return result.User, err
}

// LessonProgress fetches the stored playback position for a lesson.
func (c *Client) LessonProgress(ctx context.Context, token string, courseID, lessonID int) (ProgressResult, error) {
	path := fmt.Sprintf("/api/courses/%d/lessons/%d/progress", courseID, lessonID)
	var result ProgressResult
	err := c.do(ctx, http.MethodGet, path, token, nil, &result, defaultKind)
	return result, err
}

// ReportProgress persists a playback position for a lesson.
func (c *Client) ReportProgress(ctx context.Context, token string, courseID, lessonID int, progressSeconds float64, completed bool) error {
	path := fmt.Sprintf("/api/courses/%d/lessons/%d/progress", courseID, lessonID)
	body := map[string]any{
		"progress_seconds": progressSeconds,
		"completed":        completed,
	}
	return c.do(ctx, http.MethodPost, path, token, body, nil, defaultKind)
}

// kindFunc maps a response status to an APIError kind for one endpoint
// family.
type kindFunc func(status int) string

func defaultKind(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return KindToken
	case status == http.StatusConflict:
		return KindConflict
	case status >= 500:
		return KindInternal
	default:
		return KindValidation
	}
}

// loginKind treats any 4xx as a credentials failure: the server
// deliberately reports unknown email and wrong password identically.
func loginKind(status int) string {
	if status >= 500 {
		return KindInternal
	}
	return KindCredentials
}

func registerKind(status int) string {
	if status == http.StatusConflict {
		return KindConflict
	}
	return defaultKind(status)
}

// tokenKind treats every rejection as an invalid token.
func tokenKind(status int) string {
	if status >= 500 {
		return KindInternal
	}
	return KindToken
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any, kind kindFunc) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp, kind)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeAPIError normalizes a failure response body into an APIError. The
// server may answer with either a "message" or an "error" field; both are
// accepted here so callers never have to guess.
func decodeAPIError(resp *http.Response, kind kindFunc) error {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)

	message := payload.Message
	if message == "" {
		message = payload.Error
	}
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}

	return &APIError{Kind: kind(resp.StatusCode), Message: message}
}
