package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewMetricProvider_PrometheusScrape(t *testing.T) {
	ctx := context.Background()

	mp, err := NewMetricProvider(ctx,
		WithServiceName("futarchy-arbitrage-test"),
		WithProviderConfig(ProviderCfg{Provider: PrometheusProvider}),
	)
	if err != nil {
		t.Fatalf("NewMetricProvider() error = %v", err)
	}
	defer mp.Shutdown(ctx)

	counter, err := mp.Meter("test").Int64Counter("arbitrage_test_evaluations")
	if err != nil {
		t.Fatal(err)
	}
	counter.Add(ctx, 3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "arbitrage_test_evaluations") {
		t.Errorf("scrape output missing counter:\n%s", rec.Body.String())
	}
}

func TestNewMetricProvider_UnknownProvider(t *testing.T) {
	if _, err := NewMetricProvider(context.Background(), WithProviderConfig(ProviderCfg{Provider: "statsd"})); err == nil {
		t.Error("expected error for unknown provider")
	}
}
