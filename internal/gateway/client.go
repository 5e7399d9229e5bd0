package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/frahmantamala/ledger-console/internal"
	"github.com/frahmantamala/ledger-console/internal/permission"
	"github.com/frahmantamala/ledger-console/internal/session"
)

const maxResponseBytes = 8 << 20

type Config struct {
	BaseURL              string
	Timeout              time.Duration
	AssignPermissionPath string
	PermissionField      string
	HTTPClient           *http.Client
}

// Client talks to the remote ledger service. It never retries.
type Client struct {
	baseURL         string
	timeout         time.Duration
	assignPath      string
	permissionField string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	assignPath := config.AssignPermissionPath
	if assignPath == "" {
		assignPath = "auth/assign-permissions"
	}

	field := config.PermissionField
	if field == "" {
		field = "permissions"
	}

	return &Client{
		baseURL:         strings.TrimRight(config.BaseURL, "/"),
		timeout:         config.Timeout,
		assignPath:      assignPath,
		permissionField: field,
		httpClient:      httpClient,
		logger:          logger,
	}
}

// Credentials is the login form.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResult struct {
	Token string
	User  session.User
}

type wireUser struct {
	MongoID string       `json:"_id"`
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Email   string       `json:"email"`
	Role    session.Role `json:"role"`
}

func (u wireUser) toSession() session.User {
	id := u.MongoID
	if id == "" {
		id = u.ID
	}
	return session.User{ID: id, Name: u.Name, Email: u.Email, Role: u.Role}
}

// Login exchanges credentials for a token and the user it belongs to.
// A rejected login is not a session expiry: it carries no redirect.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	status, body, err := c.do(ctx, http.MethodPost, "auth/login", "", creds)
	if err != nil {
		return nil, err
	}

	if status < 200 || status > 299 {
		msg := remoteMessage(body, "Login failed")
		if status == http.StatusBadRequest || status == http.StatusUnauthorized {
			return nil, &internal.AppError{
				Type:       internal.ErrorTypeUnauthorized,
				Code:       internal.ErrCodeInvalidCredentials,
				Message:    msg,
				StatusCode: http.StatusUnauthorized,
			}
		}
		return nil, internal.NewExternalError(msg, status)
	}

	var resp struct {
		Token string    `json:"token"`
		User  *wireUser `json:"user"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, badResponse("login", err)
	}
	if resp.Token == "" || resp.User == nil {
		return nil, badResponse("login", fmt.Errorf("response lacks token or user"))
	}

	user := resp.User.toSession()
	if user.ID == "" {
		return nil, badResponse("login", fmt.Errorf("user has no id"))
	}

	return &LoginResult{Token: resp.Token, User: user}, nil
}

// GetPermissions fetches the permission set of userID.
func (c *Client) GetPermissions(ctx context.Context, token, userID string) (permission.Set, error) {
	body, err := c.call(ctx, http.MethodGet, "auth/get-permissions/"+url.PathEscape(userID), token, nil)
	if err != nil {
		return permission.Set{}, err
	}

	set, err := permission.DecodeEnvelope(body)
	if err != nil {
		return permission.Set{}, badResponse("get permissions", err)
	}
	return set, nil
}

// AssignPermissions replaces the permission set of userID on the server.
func (c *Client) AssignPermissions(ctx context.Context, token, userID string, set permission.Set) error {
	payload := map[string]interface{}{
		"userId":          userID,
		c.permissionField: set,
	}
	_, err := c.call(ctx, http.MethodPost, c.assignPath, token, payload)
	return err
}

// call performs an authenticated request and maps every non-2xx status
// onto the error taxonomy.
func (c *Client) call(ctx context.Context, method, path, token string, payload interface{}) ([]byte, error) {
	if token == "" {
		return nil, internal.ErrNotLoggedIn
	}

	status, body, err := c.do(ctx, method, path, token, payload)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusUnauthorized:
		return nil, internal.NewUnauthorizedError(
			remoteMessage(body, internal.ErrSessionExpired.Message),
			internal.ErrCodeSessionExpired)
	case status < 200 || status > 299:
		return nil, internal.NewExternalError(
			remoteMessage(body, fmt.Sprintf("Request failed with status %d", status)), status)
	}

	return body, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, payload interface{}) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, internal.NewInternalError("failed to encode request", err)
		}
		reqBody = bytes.NewReader(data)
	}

	ctx, cancel := internal.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return 0, nil, internal.NewInternalError("failed to create request", err)
	}

	traceID := internal.TraceID(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Trace-ID", traceID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("remote call failed",
			"method", method,
			"path", path,
			"trace_id", traceID,
			"error", err)
		return 0, nil, internal.NewTransportError("Server error. Try again later.", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, internal.NewTransportError("Server error. Try again later.", err)
	}

	c.logger.Debug("remote call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"trace_id", traceID)

	return resp.StatusCode, body, nil
}

// remoteMessage pulls the human readable message out of an error body.
func remoteMessage(body []byte, fallback string) string {
	var payload struct {
		Message string      `json:"message"`
		Error   interface{} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fallback
	}
	if payload.Message != "" {
		return payload.Message
	}
	if s, ok := payload.Error.(string); ok && s != "" {
		return s
	}
	return fallback
}

func badResponse(op string, cause error) *internal.AppError {
	return &internal.AppError{
		Type:       internal.ErrorTypeExternal,
		Code:       internal.ErrCodeBadResponse,
		Message:    fmt.Sprintf("unexpected %s response", op),
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}
