// Package metrics wires the OpenTelemetry meter provider and its exporters.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"

	"github.com/fd1az/futarchy-arbitrage/internal/logger"
)

// Provider names a metric reader backend.
type Provider string

const (
	PrometheusProvider Provider = "prometheus"
	OtelCollector      Provider = "otel_collector"
)

// ProviderCfg configures one reader.
type ProviderCfg struct {
	Provider Provider
	Endpoint string
	Headers  map[string]string
	Insecure bool
}

// Config configures the meter provider.
type Config struct {
	ServiceName string
	Provider    []ProviderCfg
}

// OptionFn mutates a Config.
type OptionFn func(config Config) Config

// WithProviderConfig adds a reader.
func WithProviderConfig(provider ProviderCfg) OptionFn {
	return func(config Config) Config {
		config.Provider = append(config.Provider, provider)
		return config
	}
}

// WithServiceName sets the service.name resource attribute.
func WithServiceName(serviceName string) OptionFn {
	return func(config Config) Config {
		config.ServiceName = serviceName
		return config
	}
}

// MetricProvider is the installed meter provider.
type MetricProvider interface {
	Meter(name string, options ...metric.MeterOption) metric.Meter
	Shutdown(ctx context.Context) error
}

// NewMetricProvider builds a meter provider with the configured readers and
// installs it globally.
func NewMetricProvider(ctx context.Context, options ...OptionFn) (MetricProvider, error) {
	var cfg Config
	for _, opt := range options {
		cfg = opt(cfg)
	}

	var opts []sdkmetric.Option
	for _, p := range cfg.Provider {
		reader, err := newReader(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("metrics: %s reader: %w", p.Provider, err)
		}
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	opts = append(opts, sdkmetric.WithResource(
		resource.NewSchemaless(semconv.ServiceNameKey.String(cfg.ServiceName)),
	))

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)

	return mp, nil
}

func newReader(ctx context.Context, p ProviderCfg) (sdkmetric.Reader, error) {
	switch p.Provider {
	case PrometheusProvider:
		return prometheus.New()
	case OtelCollector:
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpointURL(p.Endpoint),
			otlpmetricgrpc.WithHeaders(p.Headers),
		}
		if p.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exp, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return sdkmetric.NewPeriodicReader(exp), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", p.Provider)
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// ServePrometheus serves /metrics on port until ctx is cancelled.
func ServePrometheus(ctx context.Context, port int, log logger.LoggerInterface) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info(ctx, "serving prometheus metrics", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error(ctx, "metrics server failed", "error", err)
	}
}
