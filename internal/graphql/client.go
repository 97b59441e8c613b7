// Package graphql is the transport to the remote GraphQL endpoint: one POST
// per operation carrying {query, operationName, variables}, a bearer token
// from the session, and a query response cache with eviction by name.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"socialfeed/internal/observability"
)

const maxResponseBytes = 10 << 20

// Kind distinguishes read operations from writes.
type Kind int

const (
	Query Kind = iota
	Mutation
)

// Operation is a named GraphQL document.
type Operation struct {
	Name     string
	Document string
	Kind     Kind
}

// FetchPolicy selects whether a query may be answered from the cache.
type FetchPolicy int

const (
	// CacheFirst answers from the cache when an entry exists.
	CacheFirst FetchPolicy = iota
	// NetworkOnly always asks the server, then refreshes the cache entry.
	NetworkOnly
)

type networkOnlyKey struct{}

// WithNetworkOnly marks ctx so every query made with it skips the cache
// read, whatever its policy. Responses still refresh the cache.
func WithNetworkOnly(ctx context.Context) context.Context {
	return context.WithValue(ctx, networkOnlyKey{}, true)
}

func networkOnly(ctx context.Context) bool {
	v, _ := ctx.Value(networkOnlyKey{}).(bool)
	return v
}

// TokenSource provides the bearer token attached to each request.
type TokenSource interface {
	AccessToken() string
}

// Request is the JSON body posted to the endpoint.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []Error         `json:"errors"`
}

// Client talks to one GraphQL endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	tokens     TokenSource
	cache      *Cache
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithCache(cache *Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// NewClient creates a client for endpoint. Without options it uses a 15s
// HTTP timeout, no token and a fresh cache.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		cache:      NewCache(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cache exposes the response cache so views can subscribe to invalidations.
func (c *Client) Cache() *Cache {
	return c.cache
}

// Query runs a read operation and decodes its data into out.
func (c *Client) Query(ctx context.Context, op Operation, vars map[string]any, out any, policy FetchPolicy) error {
	key := CacheKey(op.Name, vars)
	if policy == CacheFirst && !networkOnly(ctx) {
		if data, ok := c.cache.Get(key); ok {
			return decode(op.Name, data, out)
		}
	}

	// A response to a request sent before an invalidation is not cached.
	gen := c.cache.Generation(op.Name)
	data, err := c.do(ctx, op, vars)
	if err != nil {
		return err
	}
	c.cache.PutIfCurrent(key, op.Name, data, gen)
	return decode(op.Name, data, out)
}

// Mutate runs a write operation and decodes its data into out. Mutations are
// never cached; callers evict the queries a mutation affects with Invalidate.
func (c *Client) Mutate(ctx context.Context, op Operation, vars map[string]any, out any) error {
	data, err := c.do(ctx, op, vars)
	if err != nil {
		return err
	}
	return decode(op.Name, data, out)
}

// Invalidate evicts the named queries from the cache and notifies listeners.
func (c *Client) Invalidate(queries ...string) int {
	return c.cache.Invalidate(queries...)
}

func (c *Client) do(ctx context.Context, op Operation, vars map[string]any) (json.RawMessage, error) {
	requestID := uuid.NewString()
	ctx = observability.WithOperation(ctx, op.Name)

	span, ctx := observability.StartClientSpan(ctx, op.Name)
	defer span.End()
	span.AddAttributes(attribute.String("graphql.request_id", requestID))

	start := time.Now()
	data, outcome, err := c.roundTrip(ctx, op, vars, requestID)
	elapsed := time.Since(start)

	observability.GraphQLLatency.WithLabelValues(op.Name).Observe(elapsed.Seconds())
	observability.GraphQLOperations.WithLabelValues(op.Name, outcome).Inc()

	if err != nil {
		span.SetError(err)
		observability.Logger.WarnContext(ctx, "graphql operation failed",
			slog.String("graphql_request_id", requestID),
			slog.String("outcome", outcome),
			slog.Duration("latency", elapsed),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	observability.Logger.DebugContext(ctx, "graphql operation completed",
		slog.String("graphql_request_id", requestID),
		slog.Duration("latency", elapsed),
	)
	return data, nil
}

func (c *Client) roundTrip(ctx context.Context, op Operation, vars map[string]any, requestID string) (json.RawMessage, string, error) {
	body, err := json.Marshal(Request{Query: op.Document, OperationName: op.Name, Variables: vars})
	if err != nil {
		return nil, "encode_error", fmt.Errorf("encoding %s request: %w", op.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, "encode_error", fmt.Errorf("building %s request: %w", op.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.tokens != nil {
		if token := c.tokens.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	observability.InjectHeaders(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "network_error", &NetworkError{Operation: op.Name, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, "network_error", &NetworkError{Operation: op.Name, Err: err}
	}

	var payload response
	decodeErr := json.Unmarshal(raw, &payload)
	if decodeErr == nil && len(payload.Errors) > 0 {
		return nil, "graphql_error", &ResponseError{Operation: op.Name, Errors: payload.Errors}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "http_error", &HTTPError{Operation: op.Name, StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
	}
	if decodeErr != nil {
		return nil, "decode_error", fmt.Errorf("decoding %s response: %w", op.Name, decodeErr)
	}
	return payload.Data, "ok", nil
}

var errEmptyData = errors.New("response carried no data")

func decode(operation string, data json.RawMessage, out any) error {
	if out == nil {
		return nil
	}
	if len(data) == 0 || string(data) == "null" {
		return fmt.Errorf("graphql %s: %w", operation, errEmptyData)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s data: %w", operation, err)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
