package metrics

import (
	"context"
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func New() (m Metrics, err error) {
	exporter, err := prometheus.New()
	if err != nil {
		return Metrics{}, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("github.com/denghongcai/npm-dep-tree-analyzer")

	if m.RegistryRequestsTotal, err = meter.Int64Counter("registry_requests_total", metric.WithDescription("Total number of metadata requests issued to the registry")); err != nil {
		return Metrics{}, fmt.Errorf("failed to create registry_requests_total counter: %w", err)
	}
	if m.RegistryFailuresTotal, err = meter.Int64Counter("registry_failures_total", metric.WithDescription("Total number of failed registry metadata requests")); err != nil {
		return Metrics{}, fmt.Errorf("failed to create registry_failures_total counter: %w", err)
	}
	if m.CacheHitsTotal, err = meter.Int64Counter("metadata_cache_hits_total", metric.WithDescription("Total number of metadata cache hits")); err != nil {
		return Metrics{}, fmt.Errorf("failed to create metadata_cache_hits_total counter: %w", err)
	}
	if m.CacheMissesTotal, err = meter.Int64Counter("metadata_cache_misses_total", metric.WithDescription("Total number of metadata cache misses")); err != nil {
		return Metrics{}, fmt.Errorf("failed to create metadata_cache_misses_total counter: %w", err)
	}

	return m, nil
}

// Metrics holds the resolver counters. The zero value is valid and
// records nothing.
type Metrics struct {
	RegistryRequestsTotal metric.Int64Counter
	RegistryFailuresTotal metric.Int64Counter
	CacheHitsTotal        metric.Int64Counter
	CacheMissesTotal      metric.Int64Counter
}

func ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promclient.Handler())
	return http.ListenAndServe(addr, mux)
}

func (m Metrics) IncrementRegistryRequests(ctx context.Context, pkg string) {
	if m.RegistryRequestsTotal == nil {
		return
	}
	m.RegistryRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("package", pkg)))
}

func (m Metrics) IncrementRegistryFailures(ctx context.Context, pkg string) {
	if m.RegistryFailuresTotal == nil {
		return
	}
	m.RegistryFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("package", pkg)))
}

func (m Metrics) IncrementCacheHits(ctx context.Context) {
	if m.CacheHitsTotal == nil {
		return
	}
	m.CacheHitsTotal.Add(ctx, 1)
}

func (m Metrics) IncrementCacheMisses(ctx context.Context) {
	if m.CacheMissesTotal == nil {
		return
	}
	m.CacheMissesTotal.Add(ctx, 1)
}
