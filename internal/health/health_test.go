package health

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fd1az/futarchy-arbitrage/internal/logger"
)

type fakeChain struct {
	id  int64
	err error
}

func (f fakeChain) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(f.id), f.err
}

func TestServer_HealthStatus(t *testing.T) {
	tests := []struct {
		name   string
		chain  fakeChain
		seen   time.Time
		status int
	}{
		{"healthy", fakeChain{id: 100}, time.Now(), http.StatusOK},
		{"wrong chain", fakeChain{id: 1}, time.Now(), http.StatusServiceUnavailable},
		{"rpc down", fakeChain{err: errors.New("dial")}, time.Now(), http.StatusServiceUnavailable},
		{"stale block", fakeChain{id: 100}, time.Now().Add(-time.Hour), http.StatusServiceUnavailable},
		{"no block", fakeChain{id: 100}, time.Time{}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(0, "test", logger.Nop())
			s.RegisterCheck("rpc", RPCCheck(tt.chain, 100))
			seen := tt.seen
			s.RegisterCheck("block", BlockFreshnessCheck(func() time.Time { return seen }, time.Minute))

			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestServer_Live(t *testing.T) {
	s := NewServer(0, "test", logger.Nop())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "alive" {
		t.Errorf("live = %d %q, want 200 alive", rec.Code, rec.Body.String())
	}
}
