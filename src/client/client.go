// Package client is the Go façade over the /api/v1 connection and notification endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/theleywin/Collab-Nest/src/apperr"
	"github.com/theleywin/Collab-Nest/src/models"
)

// TokenSource yields the bearer token attached to every call.
type TokenSource func() string

// StaticToken returns a TokenSource for a fixed token.
func StaticToken(token string) TokenSource {
	return func() string { return token }
}

type Client struct {
	baseURL    string
	token      TokenSource
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the timeout on a copy of the current *http.Client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = timeout
		c.httpClient = &hc
	}
}

// New builds a client for baseURL, e.g. "http://localhost:3000/api/v1".
func New(baseURL string, token TokenSource, opts ...Option) *Client {
	if token == nil {
		token = StaticToken("")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestPage is one page of a connection-request tab.
type RequestPage struct {
	Requests   []models.ConnectionRequestDto `json:"data"`
	Pagination models.Pagination             `json:"pagination"`
}

func (c *Client) ListRequests(ctx context.Context, tab models.Tab, page, pageSize int) (*RequestPage, error) {
	q := url.Values{}
	q.Set("tab", string(tab))
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))

	var out RequestPage
	if err := c.do(ctx, http.MethodGet, "/connections/requests?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	if out.Requests == nil {
		out.Requests = []models.ConnectionRequestDto{}
	}
	return &out, nil
}

func (c *Client) Send(ctx context.Context, receiverID uint, message string) (*models.ConnectionRequestDto, error) {
	var body interface{}
	if message != "" {
		body = map[string]string{"message": message}
	}
	return c.request(ctx, http.MethodPost, fmt.Sprintf("/connections/request/%d", receiverID), body)
}

func (c *Client) Accept(ctx context.Context, requestID string) (*models.ConnectionRequestDto, error) {
	return c.request(ctx, http.MethodPut, "/connections/accept/"+url.PathEscape(requestID), nil)
}

func (c *Client) Reject(ctx context.Context, requestID string) (*models.ConnectionRequestDto, error) {
	return c.request(ctx, http.MethodPut, "/connections/reject/"+url.PathEscape(requestID), nil)
}

func (c *Client) Withdraw(ctx context.Context, requestID string) (*models.ConnectionRequestDto, error) {
	return c.request(ctx, http.MethodPut, "/connections/withdraw/"+url.PathEscape(requestID), nil)
}

func (c *Client) request(ctx context.Context, method, path string, body interface{}) (*models.ConnectionRequestDto, error) {
	var out struct {
		Data models.ConnectionRequestDto `json:"data"`
	}
	if err := c.do(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) Notifications(ctx context.Context) ([]models.Notification, error) {
	var out struct {
		Data []models.Notification `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/notifications", nil, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		out.Data = []models.Notification{}
	}
	return out.Data, nil
}

func (c *Client) UnreadCount(ctx context.Context) (int64, error) {
	var out struct {
		Data struct {
			Count int64 `json:"count"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/notifications/unread-count", nil, &out); err != nil {
		return 0, err
	}
	return out.Data.Count, nil
}

func (c *Client) MarkRead(ctx context.Context, notificationID string) (*models.Notification, error) {
	var out struct {
		Data models.Notification `json:"data"`
	}
	if err := c.do(ctx, http.MethodPatch, "/notifications/"+url.PathEscape(notificationID)+"/read", nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPatch, "/notifications/mark-all-read", nil, nil)
}

func (c *Client) DeleteNotification(ctx context.Context, notificationID string) error {
	return c.do(ctx, http.MethodDelete, "/notifications/"+url.PathEscape(notificationID), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return apperr.Internal(fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperr.Internal(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.NetworkFailure(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.NetworkFailure(err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Internal(fmt.Errorf("decode %s %s: %w", method, path, err))
	}
	return nil
}

// decodeError keeps the server's message verbatim and falls back to
// apperr.DefaultMessage when there is none.
func decodeError(status int, raw []byte) error {
	var body struct {
		Message string      `json:"message"`
		Code    apperr.Code `json:"code"`
	}
	_ = json.Unmarshal(raw, &body)

	code := body.Code
	if code == "" {
		code = codeForStatus(status)
	}
	e := apperr.New(code, body.Message)
	e.Status = status
	return e
}

func codeForStatus(status int) apperr.Code {
	switch status {
	case http.StatusConflict:
		return apperr.CodeInvalidStateTransition
	case http.StatusNotFound:
		return apperr.CodeNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.CodeUnauthorized
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperr.CodeValidation
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return apperr.CodeNetworkFailure
	}
	return apperr.CodeInternal
}

// IsNetworkFailure reports whether err came from the transport rather than the server.
func IsNetworkFailure(err error) bool {
	var e *apperr.Error
	return errors.As(err, &e) && e.Code == apperr.CodeNetworkFailure
}
