package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/futarchy-arbitrage/internal/ratelimit"
)

const (
	// Default connection pool settings
	defaultDialKeepAlive         = 10 * time.Second
	defaultRequestTimeout        = 10 * time.Second
	defaultMaxIdleConns          = 0
	defaultMaxConnsPerHost       = 5
	defaultIdleConnTimeout       = 2 * time.Minute
	defaultExpectContinueTimeout = 100 * time.Millisecond

	// Metric names
	metricRequestCounter = "http_client_requests_total"
)

// New builds an *http.Client whose transport is rate limited, counted and
// traced. It is handed to rpc.DialOptions so every JSON-RPC call is observed.
func New(opts ...ClientOption) (*http.Client, error) {
	options := NewClientOptions(opts...)

	base := options.roundTripper
	if base == nil {
		base = &http.Transport{
			DialContext: (&net.Dialer{
				KeepAlive: defaultDialKeepAlive,
			}).DialContext,
			MaxIdleConns:          defaultMaxIdleConns,
			MaxConnsPerHost:       defaultMaxConnsPerHost,
			IdleConnTimeout:       defaultIdleConnTimeout,
			ExpectContinueTimeout: defaultExpectContinueTimeout,
		}
	}

	providerName := options.providerName
	if providerName == "" {
		providerName = "default"
	}

	meterProvider := options.meterProvider
	if meterProvider == nil {
		meterProvider = otel.GetMeterProvider()
	}
	meter := meterProvider.Meter(
		"instrumented_http_client",
		metric.WithInstrumentationAttributes(attribute.String("provider", providerName)),
	)
	requestCounter, err := meter.Int64Counter(
		metricRequestCounter,
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	timeout := defaultRequestTimeout
	if options.requestTimeout != nil {
		timeout = *options.requestTimeout
	}

	rt := &countingTransport{
		next:    base,
		counter: requestCounter,
		limiter: options.limiter,
		headers: options.headers,
	}

	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(
			rt,
			otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
				return otelhttptrace.NewClientTrace(ctx)
			}),
		),
	}, nil
}

type countingTransport struct {
	next    http.RoundTripper
	counter metric.Int64Counter
	limiter *ratelimit.Limiter
	headers map[string]string
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if len(t.headers) > 0 {
		req = req.Clone(ctx)
		for k, v := range t.headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := t.next.RoundTrip(req)

	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	t.counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("host", req.URL.Host),
		attribute.String("status", status),
	))

	return resp, err
}
