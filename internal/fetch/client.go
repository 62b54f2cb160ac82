// Package fetch retrieves remote JSON lists. Failures never propagate: every
// problem is logged and yields an empty list so a page degrades to its
// "No results" state instead of erroring.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HerbHall/curio/pkg/content"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 16 << 20
	maxConcurrent  = 8
)

// Source is a remote list endpoint.
type Source struct {
	// Name labels the source in logs and metrics, e.g. "movies/trending".
	Name string
	URL  string
	// ItemsKey names the field holding the array when the endpoint wraps it
	// in an object. Empty means the body must be a bare array.
	ItemsKey string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client with a copy of hc, so
// later options never modify the caller's client. A nil hc is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			return
		}
		cp := *hc
		c.http = &cp
	}
}

// WithTimeout sets the per-request timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithMetrics records fetch metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client fetches remote lists.
type Client struct {
	http      *http.Client
	userAgent string
	logger    *zap.Logger
	metrics   *Metrics
}

// New creates a Client. There are no retries.
func New(logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		http:   &http.Client{Timeout: defaultTimeout},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// fetchError carries the metrics outcome of a failed fetch.
type fetchError struct {
	outcome string
	err     error
}

func (e *fetchError) Error() string { return e.outcome + ": " + e.err.Error() }
func (e *fetchError) Unwrap() error { return e.err }

// FetchList GETs src and decodes its item list. It never returns nil and never
// fails: errors are logged and produce an empty list. Results that arrive
// after ctx is cancelled are discarded.
func (c *Client) FetchList(ctx context.Context, src Source) []content.Item {
	start := time.Now()
	items, err := c.fetch(ctx, src)

	outcome := OutcomeOK
	if ctx.Err() != nil {
		outcome = OutcomeCancelled
		items = nil
	} else if err != nil {
		outcome = outcomeOf(err)
	}

	c.observe(src.Name, outcome, time.Since(start), len(items))

	switch outcome {
	case OutcomeOK:
		c.logger.Debug("fetched list",
			zap.String("source", src.Name),
			zap.Int("items", len(items)),
			zap.Duration("duration", time.Since(start)),
		)
	case OutcomeCancelled:
		c.logger.Debug("fetch cancelled, discarding result", zap.String("source", src.Name))
	default:
		c.logger.Warn("fetch failed",
			zap.String("source", src.Name),
			zap.String("url", src.URL),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
	}

	if items == nil {
		return []content.Item{}
	}
	return items
}

// Body GETs src and returns the raw response body. Unlike FetchList it
// reports failures to the caller; it is used for non-JSON documents such as
// RSS feeds.
func (c *Client) Body(ctx context.Context, src Source) ([]byte, error) {
	start := time.Now()
	body, err := c.get(ctx, src, "*/*")

	outcome := OutcomeOK
	switch {
	case ctx.Err() != nil:
		outcome = OutcomeCancelled
		body, err = nil, ctx.Err()
	case err != nil:
		outcome = outcomeOf(err)
	}
	c.observe(src.Name, outcome, time.Since(start), -1)
	return body, err
}

func (c *Client) fetch(ctx context.Context, src Source) ([]content.Item, error) {
	body, err := c.get(ctx, src, "application/json")
	if err != nil {
		return nil, err
	}
	return Decode(body, src.ItemsKey)
}

func (c *Client) get(ctx context.Context, src Source, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, http.NoBody)
	if err != nil {
		return nil, &fetchError{outcome: OutcomeTransport, err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", accept)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &fetchError{outcome: OutcomeTransport, err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &fetchError{outcome: OutcomeHTTPError, err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &fetchError{outcome: OutcomeTransport, err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

func outcomeOf(err error) string {
	var fe *fetchError
	if errors.As(err, &fe) {
		return fe.outcome
	}
	return OutcomeTransport
}

// Decode parses body as either a bare JSON array of objects or an object
// carrying that array under itemsKey. Array elements that are not objects
// are dropped.
func Decode(body []byte, itemsKey string) ([]content.Item, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &fetchError{outcome: OutcomeDecode, err: err}
	}

	if obj, ok := raw.(map[string]any); ok && itemsKey != "" {
		raw = obj[itemsKey]
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, &fetchError{outcome: OutcomeShape, err: fmt.Errorf("expected array of items (items key %q), got %T", itemsKey, raw)}
	}

	items := make([]content.Item, 0, len(list))
	for _, el := range list {
		if m, isObj := el.(map[string]any); isObj {
			items = append(items, content.Item(m))
		}
	}
	return items, nil
}

// FetchAll fetches every source concurrently and returns the lists keyed by
// source name. A failing source contributes an empty list without affecting
// the others.
func (c *Client) FetchAll(ctx context.Context, sources []Source) map[string][]content.Item {
	results := make([][]content.Item, len(sources))

	var g errgroup.Group
	g.SetLimit(maxConcurrent)
	for i, src := range sources {
		g.Go(func() error {
			results[i] = c.FetchList(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string][]content.Item, len(sources))
	for i, src := range sources {
		out[src.Name] = results[i]
	}
	return out
}

// WithFallback returns the hardcoded fallback list followed by the live
// results. Neither input is modified.
func WithFallback(fallback, live []content.Item) []content.Item {
	out := make([]content.Item, 0, len(fallback)+len(live))
	out = append(out, fallback...)
	return append(out, live...)
}

// observe records one request. n < 0 leaves the items gauge untouched.
func (c *Client) observe(source, outcome string, d time.Duration, n int) {
	if c.metrics == nil {
		return
	}
	c.metrics.Requests.WithLabelValues(source, outcome).Inc()
	c.metrics.Duration.WithLabelValues(source).Observe(d.Seconds())
	if outcome == OutcomeOK && n >= 0 {
		c.metrics.Items.WithLabelValues(source).Set(float64(n))
	}
}
