package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"compliance/internal/platform/metrics"
	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/requestcontext"
)

const defaultTimeout = 10 * time.Second

// Client calls the identity service with the caller's bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) GetUserByIdentity(ctx context.Context, guid string) (*User, error) {
	resp, err := c.do(ctx, "get_user", http.MethodGet, "/api/users/"+url.PathEscape(guid), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrUserNotFound
	default:
		return nil, c.fail(ctx, "get_user", resp.StatusCode, nil)
	}
	var u User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, c.fail(ctx, "get_user", resp.StatusCode, fmt.Errorf("decode user: %w", err))
	}
	c.metrics.ObserveUpstream(DependencyName, "ok")
	return &u, nil
}

func (c *Client) UpdateUserGroup(ctx context.Context, guid string, update GroupUpdate) error {
	body, err := json.Marshal(update)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, "update_group", http.MethodPut, "/api/users/"+url.PathEscape(guid)+"/groups", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return c.fail(ctx, "update_group", resp.StatusCode, nil)
	}
	c.metrics.ObserveUpstream(DependencyName, "ok")
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte) (*http.Response, error) {
	ctx, span := otel.Tracer("compliance/identity").Start(ctx, "identity."+op)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method))

	token := requestcontext.AccessToken(ctx)
	if token == "" {
		span.SetStatus(codes.Error, "no access token")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no access token found")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, c.fail(ctx, op, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, "identity call failed")
		return nil, c.fail(ctx, op, 0, err)
	}
	return resp, nil
}

func (c *Client) fail(ctx context.Context, op string, status int, err error) error {
	c.metrics.ObserveUpstream(DependencyName, "error")
	c.logger.WarnContext(ctx, "identity service call failed",
		"operation", op,
		"status", status,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	msg := fmt.Sprintf("%s %s failed with status %d", DependencyName, op, status)
	if err == nil {
		return dErrors.New(dErrors.CodeUpstream, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeUpstream, msg)
}
