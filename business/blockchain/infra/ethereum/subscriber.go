// Package ethereum provides chain infrastructure adapters for the blockchain context.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/futarchy-arbitrage/business/blockchain/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/apperror"
	"github.com/fd1az/futarchy-arbitrage/internal/circuitbreaker"
	"github.com/fd1az/futarchy-arbitrage/internal/logger"
)

const (
	tracerName = "github.com/fd1az/futarchy-arbitrage/business/blockchain/infra/ethereum"
	meterName  = "github.com/fd1az/futarchy-arbitrage/business/blockchain/infra/ethereum"
)

// HeaderReader is satisfied by *ethclient.Client.
type HeaderReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// HeadStream is a push connection delivering new heads.
type HeadStream interface {
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	Close()
}

// StreamDialer opens a HeadStream.
type StreamDialer func(ctx context.Context, url string) (HeadStream, error)

// DialStream dials a websocket node with ethclient.
func DialStream(ctx context.Context, url string) (HeadStream, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// SubscriberConfig holds configuration for the block subscriber.
type SubscriberConfig struct {
	WSURL          string // empty disables streaming, polling only
	PollInterval   time.Duration
	InitialBackoff time.Duration // polling window before the first ws retry
	MaxBackoff     time.Duration
	BufferSize     int
}

// DefaultSubscriberConfig returns Gnosis-friendly defaults (5s blocks).
func DefaultSubscriberConfig(wsURL string) SubscriberConfig {
	return SubscriberConfig{
		WSURL:          wsURL,
		PollInterval:   5 * time.Second,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		BufferSize:     4,
	}
}

type subscriberMetrics struct {
	blocksReceived   metric.Int64Counter
	blocksDropped    metric.Int64Counter
	subscribeErrors  metric.Int64Counter
	connectionState  metric.Int64Gauge
	blockLatency     metric.Float64Histogram
	httpFallbackUsed metric.Int64Counter
}

// Subscriber streams new heads over websocket and falls back to HTTP polling
// while the stream is down. Only strictly increasing block numbers are emitted;
// when the consumer lags, the oldest buffered block is dropped.
type Subscriber struct {
	config SubscriberConfig
	logger logger.LoggerInterface
	http   HeaderReader
	dial   StreamDialer

	state     atomic.Value // domain.ConnectionState
	lastBlock atomic.Uint64
	lastSeen  atomic.Int64 // unix nanos

	blocks    chan *domain.Block
	done      chan struct{}
	closeOnce sync.Once
	started   atomic.Bool

	httpCB *circuitbreaker.CircuitBreaker[*types.Header]

	tracer  trace.Tracer
	metrics *subscriberMetrics
}

// NewSubscriber creates a subscriber polling through http and streaming via dial.
func NewSubscriber(cfg SubscriberConfig, http HeaderReader, dial StreamDialer, log logger.LoggerInterface) (*Subscriber, error) {
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	s := &Subscriber{
		config: cfg,
		logger: log,
		http:   http,
		dial:   dial,
		blocks: make(chan *domain.Block, cfg.BufferSize),
		done:   make(chan struct{}),
		tracer: otel.Tracer(tracerName),
	}
	s.state.Store(domain.StateDisconnected)

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	cbCfg := circuitbreaker.DefaultConfig("eth-http-head")
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		s.logger.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	s.httpCB = circuitbreaker.New[*types.Header](cbCfg)

	return s, nil
}

func (s *Subscriber) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &subscriberMetrics{}

	s.metrics.blocksReceived, err = meter.Int64Counter(
		"eth_blocks_received_total",
		metric.WithDescription("Total blocks delivered to consumers"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return err
	}

	s.metrics.blocksDropped, err = meter.Int64Counter(
		"eth_blocks_dropped_total",
		metric.WithDescription("Buffered blocks replaced by newer ones"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return err
	}

	s.metrics.subscribeErrors, err = meter.Int64Counter(
		"eth_subscribe_errors_total",
		metric.WithDescription("Total block feed errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	s.metrics.connectionState, err = meter.Int64Gauge(
		"eth_connection_state",
		metric.WithDescription("Block feed state (0=disconnected, 1=connecting, 2=streaming, 3=polling)"),
		metric.WithUnit("{state}"),
	)
	if err != nil {
		return err
	}

	s.metrics.blockLatency, err = meter.Float64Histogram(
		"eth_block_latency_ms",
		metric.WithDescription("Latency from block timestamp to receipt"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	s.metrics.httpFallbackUsed, err = meter.Int64Counter(
		"eth_http_fallback_total",
		metric.WithDescription("Times HTTP polling took over from the stream"),
		metric.WithUnit("{fallback}"),
	)
	return err
}

// Subscribe starts the feed goroutine. It can be called once.
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan *domain.Block, error) {
	_, span := s.tracer.Start(ctx, "eth.subscribe",
		trace.WithAttributes(attribute.Bool("streaming", s.config.WSURL != "")),
	)
	defer span.End()

	if !s.started.CompareAndSwap(false, true) {
		err := apperror.New(apperror.CodeEthereumSubscribeFailed, apperror.WithContext("already subscribed"))
		span.RecordError(err)
		return nil, err
	}

	go s.run(ctx)

	span.SetStatus(codes.Ok, "subscribed")
	return s.blocks, nil
}

func (s *Subscriber) run(ctx context.Context) {
	defer close(s.blocks)
	defer s.setState(domain.StateDisconnected)

	backoff := s.config.InitialBackoff
	for {
		if s.config.WSURL == "" {
			s.poll(ctx, 0)
			return
		}

		streamed, err := s.stream(ctx)
		if s.stopped(ctx) {
			return
		}
		if streamed {
			backoff = s.config.InitialBackoff
		}

		s.metrics.subscribeErrors.Add(ctx, 1)
		s.metrics.httpFallbackUsed.Add(ctx, 1)
		s.logger.Warn(ctx, "block stream unavailable, polling", "error", err, "retry_in", backoff)

		if !s.poll(ctx, backoff) {
			return
		}
		backoff = min(backoff*2, s.config.MaxBackoff)
	}
}

// stream follows new heads until the subscription fails. streamed reports
// whether the subscription was established at all.
func (s *Subscriber) stream(ctx context.Context) (streamed bool, err error) {
	s.setState(domain.StateConnecting)

	client, err := s.dial(ctx, s.config.WSURL)
	if err != nil {
		return false, fmt.Errorf("dial ws: %w", err)
	}
	defer client.Close()

	headers := make(chan *types.Header, s.config.BufferSize)
	sub, err := client.SubscribeNewHead(ctx, headers)
	if err != nil {
		return false, fmt.Errorf("subscribe new heads: %w", err)
	}
	defer sub.Unsubscribe()

	s.setState(domain.StateStreaming)
	s.logger.Info(ctx, "streaming new heads")

	for {
		select {
		case <-s.done:
			return true, nil
		case <-ctx.Done():
			return true, ctx.Err()
		case err := <-sub.Err():
			if err == nil {
				err = errors.New("subscription closed")
			}
			return true, err
		case header := <-headers:
			if header != nil {
				s.emit(ctx, header, false)
			}
		}
	}
}

// poll fetches the head every PollInterval. A positive window bounds the
// polling period; zero polls until stopped. Returns false when stopped.
func (s *Subscriber) poll(ctx context.Context, window time.Duration) bool {
	s.setState(domain.StatePolling)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if window > 0 {
		timer := time.NewTimer(window)
		defer timer.Stop()
		deadline = timer.C
	}

	s.pollOnce(ctx)
	for {
		select {
		case <-s.done:
			return false
		case <-ctx.Done():
			return false
		case <-deadline:
			return true
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

func (s *Subscriber) pollOnce(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "eth.poll.block")
	defer span.End()

	header, err := s.httpCB.Execute(func() (*types.Header, error) {
		return s.http.HeaderByNumber(ctx, nil)
	})
	if err != nil {
		span.RecordError(err)
		s.metrics.subscribeErrors.Add(ctx, 1)
		s.logger.Warn(ctx, "http poll failed", "error", err)
		return
	}

	s.emit(ctx, header, true)
	span.SetStatus(codes.Ok, "polled")
}

func (s *Subscriber) emit(ctx context.Context, header *types.Header, fromHTTP bool) {
	number := header.Number.Uint64()
	for {
		last := s.lastBlock.Load()
		if number <= last {
			return
		}
		if s.lastBlock.CompareAndSwap(last, number) {
			break
		}
	}

	block := headerToBlock(header)
	now := time.Now()
	s.lastSeen.Store(now.UnixNano())
	s.metrics.blockLatency.Record(ctx, float64(now.Sub(block.Timestamp).Milliseconds()),
		metric.WithAttributes(attribute.Bool("from_http", fromHTTP)))

	for {
		select {
		case s.blocks <- block:
			s.metrics.blocksReceived.Add(ctx, 1)
			s.logger.Debug(ctx, "block received", "number", block.Number, "from_http", fromHTTP)
			return
		default:
		}
		select {
		case <-s.blocks:
			s.metrics.blocksDropped.Add(ctx, 1)
		default:
		}
	}
}

func headerToBlock(header *types.Header) *domain.Block {
	return &domain.Block{
		Number:    header.Number.Uint64(),
		Hash:      header.Hash(),
		Timestamp: time.Unix(int64(header.Time), 0),
		BaseFee:   header.BaseFee,
	}
}

// LatestBlock retrieves the chain head over http.
func (s *Subscriber) LatestBlock(ctx context.Context) (*domain.Block, error) {
	ctx, span := s.tracer.Start(ctx, "eth.latest_block")
	defer span.End()

	header, err := s.httpCB.Execute(func() (*types.Header, error) {
		return s.http.HeaderByNumber(ctx, nil)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, apperror.Wrap(err, apperror.CodeBlockNotFound, "latest block")
	}

	span.SetStatus(codes.Ok, "fetched")
	return headerToBlock(header), nil
}

// State returns the current feed state.
func (s *Subscriber) State() domain.ConnectionState {
	return s.state.Load().(domain.ConnectionState)
}

// LastSeen returns when the last block was emitted.
func (s *Subscriber) LastSeen() time.Time {
	n := s.lastSeen.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Close stops the feed; the block channel is closed by the feed goroutine.
func (s *Subscriber) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *Subscriber) stopped(ctx context.Context) bool {
	select {
	case <-s.done:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (s *Subscriber) setState(state domain.ConnectionState) {
	s.state.Store(state)
	s.metrics.connectionState.Record(context.Background(), state.Gauge())
}
