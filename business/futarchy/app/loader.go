package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/futarchy-arbitrage/business/futarchy/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/apm"
	"github.com/fd1az/futarchy-arbitrage/internal/apperror"
	"github.com/fd1az/futarchy-arbitrage/internal/asset"
	"github.com/fd1az/futarchy-arbitrage/internal/logger"
)

// LoaderConfig pins the expected collateral pair and optional pool overrides.
// Zero addresses disable the respective check or override.
type LoaderConfig struct {
	Company  common.Address
	Currency common.Address
	YesPool  common.Address
	NoPool   common.Address
}

// ProposalLoader reads and validates proposals and locates their conditional pools.
type ProposalLoader struct {
	reader  ProposalReader
	tokens  TokenResolver
	locator PoolLocator
	config  LoaderConfig
	logger  logger.LoggerInterface
	tracer  apm.Tracer
}

// NewProposalLoader creates a loader. locator may be nil when both pools are configured.
func NewProposalLoader(reader ProposalReader, tokens TokenResolver, locator PoolLocator, cfg LoaderConfig, log logger.LoggerInterface) *ProposalLoader {
	return &ProposalLoader{
		reader:  reader,
		tokens:  tokens,
		locator: locator,
		config:  cfg,
		logger:  log,
		tracer:  apm.NewTracer("futarchy.loader"),
	}
}

// Load reads a proposal and maps its outcomes: 0=YES(A), 1=NO(A), 2=YES(B), 3=NO(B).
func (l *ProposalLoader) Load(ctx context.Context, proposal common.Address) (*domain.Proposal, error) {
	ctx, span := l.tracer.StartSpanFromContext(ctx, "futarchy.load_proposal")
	defer span.End()
	span.SetAttributes(attribute.String("proposal", proposal.Hex()))

	if proposal == (common.Address{}) {
		err := invalid("zero proposal address")
		span.NoticeError(err)
		return nil, err
	}

	data, err := l.reader.ReadProposal(ctx, proposal)
	if err != nil {
		err = readFailure(err, apperror.CodeContractCallFailed, fmt.Sprintf("read %s", proposal.Hex()))
		span.NoticeError(err)
		return nil, err
	}

	if data.NumOutcomes < domain.RequiredOutcomes || len(data.Outcomes) < domain.RequiredOutcomes {
		err := invalid(fmt.Sprintf("%s has %d outcomes, need %d", proposal.Hex(), data.NumOutcomes, domain.RequiredOutcomes))
		span.NoticeError(err)
		return nil, err
	}
	if l.config.Company != (common.Address{}) && data.Collateral1 != l.config.Company {
		err := invalid(fmt.Sprintf("company collateral %s, expected %s", data.Collateral1.Hex(), l.config.Company.Hex()))
		span.NoticeError(err)
		return nil, err
	}
	if l.config.Currency != (common.Address{}) && data.Collateral2 != l.config.Currency {
		err := invalid(fmt.Sprintf("currency collateral %s, expected %s", data.Collateral2.Hex(), l.config.Currency.Hex()))
		span.NoticeError(err)
		return nil, err
	}

	addrs := append([]common.Address{data.Collateral1, data.Collateral2}, data.Outcomes[:domain.RequiredOutcomes]...)
	assets := make([]*asset.Asset, len(addrs))

	g, gctx := errgroup.WithContext(ctx)
	for i, addr := range addrs {
		g.Go(func() error {
			if addr == (common.Address{}) {
				return invalid(fmt.Sprintf("token %d of %s is the zero address", i, proposal.Hex()))
			}
			a, err := l.tokens.Resolve(gctx, addr)
			if err != nil {
				return readFailure(err, apperror.CodeInvalidProposal, fmt.Sprintf("resolve token %s", addr.Hex()))
			}
			assets[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.NoticeError(err)
		return nil, err
	}

	p, err := domain.NewProposal(proposal, assets[0], assets[1], assets[2:])
	if err != nil {
		span.NoticeError(err)
		return nil, apperror.New(apperror.CodeInvalidProposal, apperror.WithCause(err), apperror.WithContext(err.Error()))
	}

	l.logger.Debug(ctx, "proposal loaded",
		"proposal", proposal.Hex(),
		"company", p.Company.Symbol(),
		"currency", p.Currency.Symbol(),
		"outcomes", data.NumOutcomes,
	)
	span.Ok("proposal loaded")
	return p, nil
}

// LoadMarket loads the proposal and resolves YES(A)/YES(B) and NO(A)/NO(B) pools.
func (l *ProposalLoader) LoadMarket(ctx context.Context, proposal common.Address) (*domain.Market, error) {
	p, err := l.Load(ctx, proposal)
	if err != nil {
		return nil, err
	}

	yesPool, err := l.pool(ctx, l.config.YesPool, p.YesCompany, p.YesCurrency)
	if err != nil {
		return nil, err
	}
	noPool, err := l.pool(ctx, l.config.NoPool, p.NoCompany, p.NoCurrency)
	if err != nil {
		return nil, err
	}

	return &domain.Market{Proposal: p, YesPool: yesPool, NoPool: noPool}, nil
}

func (l *ProposalLoader) pool(ctx context.Context, override common.Address, a, b *asset.Asset) (common.Address, error) {
	if override != (common.Address{}) {
		return override, nil
	}
	if l.locator == nil {
		return common.Address{}, apperror.New(apperror.CodePoolUnavailable,
			apperror.WithContext(fmt.Sprintf("no pool configured for %s/%s", a, b)))
	}

	addr, err := l.locator.PoolByPair(ctx, a.Address(), b.Address())
	if err != nil {
		return common.Address{}, apperror.New(apperror.CodePoolUnavailable,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("locate %s/%s", a, b)))
	}
	if addr == (common.Address{}) {
		return common.Address{}, apperror.New(apperror.CodePoolUnavailable,
			apperror.WithContext(fmt.Sprintf("no pool for %s/%s", a, b)))
	}
	return addr, nil
}

// readFailure keeps the code of transport and breaker failures so they stay
// retryable; only errors without a code fall back to code.
func readFailure(err error, code apperror.Code, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperror.New(apperror.CodeServiceTimeout, apperror.WithCause(err), apperror.WithContext(msg))
	}
	return apperror.Wrap(err, code, msg)
}

func invalid(msg string) error {
	return apperror.New(apperror.CodeInvalidProposal, apperror.WithContext(msg))
}
