package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"compliance/internal/platform/metrics"
	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/platform/circuit"
	"compliance/pkg/requestcontext"
)

const defaultTimeout = 10 * time.Second

// ErrCircuitOpen is the underlying error of calls refused by an open breaker.
var ErrCircuitOpen = errors.New("registry circuit open")

// Client calls the registry over HTTP, forwarding the caller's bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	breaker    *circuit.Breaker
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

// WithBreaker fails calls fast while the registry keeps returning 5xx or
// transport errors.
func WithBreaker(b *circuit.Breaker) ClientOption {
	return func(c *Client) {
		c.breaker = b
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

// ListProjects fetches every project the registry knows.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.get(ctx, "projects", 0, c.baseURL+"/api/v1/projects", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *Client) GetProject(ctx context.Context, id int64) (*Project, error) {
	var p Project
	if err := c.get(ctx, "project", id, fmt.Sprintf("%s/api/v1/projects/%d", c.baseURL, id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) GetFirstNation(ctx context.Context, id int64) (*FirstNation, error) {
	var fn FirstNation
	if err := c.get(ctx, "first_nation", id, fmt.Sprintf("%s/api/v1/indigenous-nations/%d", c.baseURL, id), &fn); err != nil {
		return nil, err
	}
	return &fn, nil
}

func (c *Client) get(ctx context.Context, resource string, id int64, url string, out any) error {
	ctx, span := otel.Tracer("compliance/registry").Start(ctx, "registry.get")
	defer span.End()
	span.SetAttributes(attribute.String("resource", resource), attribute.Int64("id", id))

	fail := func(status int, err error) error {
		span.SetStatus(codes.Error, "registry call failed")
		c.metrics.ObserveUpstream(DependencyName, "error")
		c.logger.WarnContext(ctx, "project registry call failed",
			"resource", resource,
			"id", id,
			"status", status,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return dErrors.Wrap(&UpstreamError{
			Dependency: DependencyName,
			Resource:   resource,
			ID:         id,
			StatusCode: status,
			Underlying: err,
		}, dErrors.CodeUpstream, lookupFailed(resource, id))
	}

	if c.breaker != nil && !c.breaker.Allow() {
		return fail(http.StatusServiceUnavailable, ErrCircuitOpen)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fail(0, err)
	}
	req.Header.Set("Accept", "application/json")
	if token := requestcontext.AccessToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(ctx, false)
		return fail(0, err)
	}
	defer resp.Body.Close()
	c.record(ctx, resp.StatusCode < http.StatusInternalServerError)

	if resp.StatusCode != http.StatusOK {
		return fail(resp.StatusCode, nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fail(resp.StatusCode, fmt.Errorf("decode %s: %w", resource, err))
	}
	c.metrics.ObserveUpstream(DependencyName, "ok")
	return nil
}

func (c *Client) record(ctx context.Context, ok bool) {
	if c.breaker == nil {
		return
	}
	var change circuit.StateChange
	if ok {
		_, change = c.breaker.RecordSuccess()
	} else {
		_, change = c.breaker.RecordFailure()
	}
	if change.Opened {
		c.logger.WarnContext(ctx, "registry circuit opened", "breaker", c.breaker.Name())
	}
	if change.Closed {
		c.logger.InfoContext(ctx, "registry circuit closed", "breaker", c.breaker.Name())
	}
}
