package circuitbreaker

import (
	"errors"
	"testing"

	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/futarchy-arbitrage/internal/apperror"
)

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	cfg := DefaultConfig("rpc")
	cfg.FailureThreshold = 2
	cb := New[int](cfg)

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		if _, err := cb.Execute(func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d err = %v, want boom", i, err)
		}
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}

	_, err := cb.Execute(func() (int, error) { return 1, nil })
	if apperror.GetCode(err) != apperror.CodeCircuitOpen {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeCircuitOpen)
	}
}

func TestCircuitBreaker_PassThrough(t *testing.T) {
	cb := New[string](DefaultConfig("ok"))
	v, err := cb.Execute(func() (string, error) { return "x", nil })
	if err != nil || v != "x" {
		t.Errorf("Execute = %q,%v, want x,nil", v, err)
	}
}

func TestCircuitBreaker_IsSuccessfulKeepsClosed(t *testing.T) {
	cfg := DefaultConfig("executor")
	cfg.FailureThreshold = 1
	benign := errors.New("reverted")
	cfg.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, benign) }
	cb := New[int](cfg)

	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(func() (int, error) { return 0, benign }); !errors.Is(err, benign) {
			t.Fatalf("call %d err = %v, want reverted", i, err)
		}
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("state = %s, want closed", cb.State())
	}
}
