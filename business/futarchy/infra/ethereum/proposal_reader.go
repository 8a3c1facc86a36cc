package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/futarchy-arbitrage/business/futarchy/app"
	"github.com/fd1az/futarchy-arbitrage/business/futarchy/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/circuitbreaker"
	"github.com/fd1az/futarchy-arbitrage/internal/contract"
	"github.com/fd1az/futarchy-arbitrage/internal/logger"
)

const (
	tracerName = "futarchy"
	meterName  = "futarchy"
)

var _ app.ProposalReader = (*ProposalReader)(nil)

type readerMetrics struct {
	readsTotal  metric.Int64Counter
	readErrors  metric.Int64Counter
	readLatency metric.Float64Histogram
}

// ProposalReader reads proposal getters through eth_call.
type ProposalReader struct {
	proposal *contract.Contract
	logger   logger.LoggerInterface

	tracer  trace.Tracer
	metrics *readerMetrics
}

// NewProposalReader creates a reader. The ABI is bound per call to the proposal address.
func NewProposalReader(caller contract.Caller, log logger.LoggerInterface) (*ProposalReader, error) {
	c, err := contract.New(common.Address{}, ProposalABI, caller,
		circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("futarchy-proposal")))
	if err != nil {
		return nil, err
	}

	r := &ProposalReader{
		proposal: c,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}
	if err := r.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return r, nil
}

func (r *ProposalReader) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	r.metrics = &readerMetrics{}

	r.metrics.readsTotal, err = meter.Int64Counter(
		"futarchy_proposal_reads_total",
		metric.WithDescription("Total proposal reads"),
	)
	if err != nil {
		return err
	}

	r.metrics.readErrors, err = meter.Int64Counter(
		"futarchy_proposal_read_errors_total",
		metric.WithDescription("Total failed proposal reads"),
	)
	if err != nil {
		return err
	}

	r.metrics.readLatency, err = meter.Float64Histogram(
		"futarchy_proposal_read_latency_ms",
		metric.WithDescription("Proposal read latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

// ReadProposal reads collaterals, outcome count and the first four wrapped outcomes.
func (r *ProposalReader) ReadProposal(ctx context.Context, proposal common.Address) (*app.ProposalData, error) {
	ctx, span := r.tracer.Start(ctx, "futarchy.read_proposal",
		trace.WithAttributes(attribute.String("proposal", proposal.Hex())),
	)
	defer span.End()

	start := time.Now()
	r.metrics.readsTotal.Add(ctx, 1)
	defer func() {
		r.metrics.readLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	}()

	data, err := r.read(ctx, r.proposal.At(proposal))
	if err != nil {
		r.metrics.readErrors.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("outcomes", data.NumOutcomes))
	span.SetStatus(codes.Ok, "proposal read")
	return data, nil
}

func (r *ProposalReader) read(ctx context.Context, c *contract.Contract) (*app.ProposalData, error) {
	data := &app.ProposalData{}
	var num *big.Int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		data.Collateral1, err = c.CallAddress(gctx, nil, "collateralToken1")
		return err
	})
	g.Go(func() (err error) {
		data.Collateral2, err = c.CallAddress(gctx, nil, "collateralToken2")
		return err
	})
	g.Go(func() (err error) {
		num, err = c.CallBig(gctx, nil, "numOutcomes")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !num.IsInt64() || num.Int64() > 1<<16 {
		return nil, fmt.Errorf("futarchy: implausible outcome count %s", num)
	}
	data.NumOutcomes = int(num.Int64())
	if data.NumOutcomes < domain.RequiredOutcomes {
		return data, nil
	}

	data.Outcomes = make([]common.Address, domain.RequiredOutcomes)
	g, gctx = errgroup.WithContext(ctx)
	for i := range data.Outcomes {
		g.Go(func() error {
			values, err := c.Call(gctx, nil, "wrappedOutcome", big.NewInt(int64(i)))
			if err != nil {
				return err
			}
			addr, ok := values[0].(common.Address)
			if !ok {
				return fmt.Errorf("futarchy: wrappedOutcome(%d) returned %T", i, values[0])
			}
			data.Outcomes[i] = addr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}
