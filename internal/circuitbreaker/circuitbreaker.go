// Package circuitbreaker wraps sony/gobreaker with application error codes.
package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/futarchy-arbitrage/internal/apperror"
)

// Config configures a breaker.
type Config struct {
	Name             string
	MaxRequests      uint32        // allowed in half-open
	Interval         time.Duration // closed-state counter reset
	Timeout          time.Duration // open → half-open
	FailureThreshold uint32        // consecutive failures to trip
	OnStateChange    func(name string, from, to gobreaker.State)
	// IsSuccessful classifies errors that should not count as failures. Nil counts every error.
	IsSuccessful func(err error) bool
}

// DefaultConfig returns defaults tuned for RPC calls.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          15 * time.Second,
		FailureThreshold: 5,
	}
}

// CircuitBreaker is a typed breaker.
type CircuitBreaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// New creates a breaker from cfg.
func New[T any](cfg Config) *CircuitBreaker[T] {
	threshold := cfg.FailureThreshold
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: cfg.OnStateChange,
		IsSuccessful:  cfg.IsSuccessful,
	}
	return &CircuitBreaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Execute runs fn through the breaker, mapping breaker rejections to app codes.
func (c *CircuitBreaker[T]) Execute(fn func() (T, error)) (T, error) {
	res, err := c.cb.Execute(fn)
	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return res, apperror.New(apperror.CodeCircuitOpen, apperror.WithCause(err), apperror.WithContext(c.cb.Name()))
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return res, apperror.New(apperror.CodeCircuitHalfOpen, apperror.WithCause(err), apperror.WithContext(c.cb.Name()))
	}
	return res, err
}

// State returns the current breaker state.
func (c *CircuitBreaker[T]) State() gobreaker.State {
	return c.cb.State()
}
