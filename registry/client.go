// Package registry fetches package metadata documents from an
// npm-compatible registry.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/denghongcai/npm-dep-tree-analyzer/metrics"
	"github.com/denghongcai/npm-dep-tree-analyzer/models"
)

const (
	DefaultURL     = "https://registry.npmjs.org"
	DefaultTimeout = 30 * time.Second

	maxConcurrency = 10
)

// Options configures the registry client. Zero values fall back to the
// defaults.
type Options struct {
	// URL is the base URL of the npm-compatible registry.
	URL string
	// Timeout applies per metadata request.
	Timeout time.Duration
	// Headers are sent on every request, merged over the defaults with
	// caller entries winning.
	Headers map[string]string
}

// Client fetches package metadata documents over HTTP.
type Client struct {
	log     *slog.Logger
	baseURL string
	headers map[string]string
	client  *http.Client
	sem     chan struct{} // Bounds concurrent registry fetches.
	metrics metrics.Metrics
}

// New creates a new registry client.
func New(log *slog.Logger, opts Options, m metrics.Metrics) *Client {
	baseURL := opts.URL
	if baseURL == "" {
		baseURL = DefaultURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	headers := map[string]string{
		"Accept": "application/json",
	}
	for k, v := range opts.Headers {
		headers[k] = v
	}
	return &Client{
		log:     log,
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: headers,
		client: &http.Client{
			Timeout: timeout,
		},
		sem:     make(chan struct{}, maxConcurrency),
		metrics: m,
	}
}

// Get fetches the metadata document for a package name. Any failure is
// reported as a NotFoundError with the underlying cause attached.
func (c *Client) Get(ctx context.Context, name string) (models.Document, error) {
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return models.Document{}, &NotFoundError{Name: name, Err: ctx.Err()}
	}

	c.metrics.IncrementRegistryRequests(ctx, name)

	url := fmt.Sprintf("%s/%s", c.baseURL, encodeName(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.metrics.IncrementRegistryFailures(ctx, name)
		return models.Document{}, &NotFoundError{Name: name, Err: err}
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	c.log.Debug("fetching package metadata", slog.String("package", name), slog.String("url", url))

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.IncrementRegistryFailures(ctx, name)
		return models.Document{}, &NotFoundError{Name: name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.IncrementRegistryFailures(ctx, name)
		return models.Document{}, &NotFoundError{Name: name, Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)}
	}

	var doc models.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		c.metrics.IncrementRegistryFailures(ctx, name)
		return models.Document{}, &NotFoundError{Name: name, Err: fmt.Errorf("failed to parse metadata: %w", err)}
	}

	c.log.Debug("fetched package metadata", slog.String("package", name), slog.Int("versions", len(doc.Versions)))
	return doc, nil
}

// encodeName percent-encodes the slash in scoped package names, e.g.
// "@scope/pkg" becomes "@scope%2Fpkg".
func encodeName(name string) string {
	return strings.ReplaceAll(name, "/", "%2F")
}
