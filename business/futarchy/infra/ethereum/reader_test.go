package ethereum

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/futarchy-arbitrage/internal/apperror"
	"github.com/fd1az/futarchy-arbitrage/internal/asset"
	"github.com/fd1az/futarchy-arbitrage/internal/contract"
	"github.com/fd1az/futarchy-arbitrage/internal/contract/contracttest"
	"github.com/fd1az/futarchy-arbitrage/internal/logger"
)

var (
	proposalAddr = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	factoryAddr  = common.HexToAddress("0x00000000000000000000000000000000000000fa")
	outcomeAddrs = []common.Address{
		common.HexToAddress("0x0000000000000000000000000000000000000011"),
		common.HexToAddress("0x0000000000000000000000000000000000000012"),
		common.HexToAddress("0x0000000000000000000000000000000000000013"),
		common.HexToAddress("0x0000000000000000000000000000000000000014"),
	}
)

func seedProposal(t *testing.T, fake *contracttest.FakeCaller, outcomes int64) {
	t.Helper()
	parsed := contract.MustParse(ProposalABI)
	fake.Set(proposalAddr, parsed, "collateralToken1", asset.AddrGNOGnosis)
	fake.Set(proposalAddr, parsed, "collateralToken2", asset.AddrSDAIGnosis)
	fake.Set(proposalAddr, parsed, "numOutcomes", big.NewInt(outcomes))
	for i, addr := range outcomeAddrs {
		fake.SetWithArgs(proposalAddr, parsed, "wrappedOutcome", []any{big.NewInt(int64(i))}, addr, []byte{byte(i)})
	}
}

func TestProposalReader_ReadProposal(t *testing.T) {
	fake := contracttest.NewFakeCaller(t)
	seedProposal(t, fake, 4)

	r, err := NewProposalReader(fake, logger.Nop())
	if err != nil {
		t.Fatalf("NewProposalReader: %v", err)
	}

	data, err := r.ReadProposal(context.Background(), proposalAddr)
	if err != nil {
		t.Fatalf("ReadProposal: %v", err)
	}

	if data.Collateral1 != asset.AddrGNOGnosis || data.Collateral2 != asset.AddrSDAIGnosis {
		t.Errorf("collaterals = (%s, %s)", data.Collateral1.Hex(), data.Collateral2.Hex())
	}
	if data.NumOutcomes != 4 {
		t.Errorf("NumOutcomes = %d, want 4", data.NumOutcomes)
	}
	for i, want := range outcomeAddrs {
		if data.Outcomes[i] != want {
			t.Errorf("Outcomes[%d] = %s, want %s", i, data.Outcomes[i].Hex(), want.Hex())
		}
	}
}

func TestProposalReader_FewOutcomesSkipsWrappedReads(t *testing.T) {
	fake := contracttest.NewFakeCaller(t)
	seedProposal(t, fake, 2)

	r, err := NewProposalReader(fake, logger.Nop())
	if err != nil {
		t.Fatalf("NewProposalReader: %v", err)
	}

	data, err := r.ReadProposal(context.Background(), proposalAddr)
	if err != nil {
		t.Fatalf("ReadProposal: %v", err)
	}
	if data.NumOutcomes != 2 || len(data.Outcomes) != 0 {
		t.Errorf("got %d outcomes with %d addresses, want 2 and none", data.NumOutcomes, len(data.Outcomes))
	}
	if fake.Calls() != 3 {
		t.Errorf("calls = %d, want 3", fake.Calls())
	}
}

func TestTokenReader_Resolve(t *testing.T) {
	fake := contracttest.NewFakeCaller(t)
	parsed := contract.MustParse(ERC20ABI)
	fake.Set(outcomeAddrs[0], parsed, "decimals", uint8(18))
	fake.Set(outcomeAddrs[0], parsed, "symbol", "YES_GNO")
	fake.Set(outcomeAddrs[0], parsed, "name", "YES GNO")
	fake.Set(outcomeAddrs[1], parsed, "decimals", uint8(6))
	fake.SetError(outcomeAddrs[1], parsed, "symbol", errors.New("no symbol"))
	fake.SetError(outcomeAddrs[1], parsed, "name", errors.New("no name"))

	registry := asset.DefaultRegistry()
	r, err := NewTokenReader(fake, registry, asset.ChainIDGnosis, logger.Nop())
	if err != nil {
		t.Fatalf("NewTokenReader: %v", err)
	}
	ctx := context.Background()

	t.Run("known_token_skips_chain", func(t *testing.T) {
		a, err := r.Resolve(ctx, asset.AddrGNOGnosis)
		if err != nil || !a.Equals(asset.GNO) {
			t.Fatalf("Resolve(GNO) = %v, %v", a, err)
		}
		if fake.Calls() != 0 {
			t.Errorf("calls = %d, want 0", fake.Calls())
		}
	})

	t.Run("reads_and_registers", func(t *testing.T) {
		a, err := r.Resolve(ctx, outcomeAddrs[0])
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if a.Symbol() != "YES_GNO" || a.Decimals() != 18 || a.Name() != "YES GNO" {
			t.Errorf("asset = %s/%s/%d", a.Symbol(), a.Name(), a.Decimals())
		}
		if _, ok := registry.GetToken(asset.ChainIDGnosis, outcomeAddrs[0]); !ok {
			t.Error("token not registered")
		}

		calls := fake.Calls()
		if _, err := r.Resolve(ctx, outcomeAddrs[0]); err != nil {
			t.Fatalf("second Resolve: %v", err)
		}
		if fake.Calls() != calls {
			t.Errorf("second Resolve hit chain (%d → %d calls)", calls, fake.Calls())
		}
	})

	t.Run("symbol_fallback", func(t *testing.T) {
		a, err := r.Resolve(ctx, outcomeAddrs[1])
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if a.Symbol() != outcomeAddrs[1].Hex()[:10] || a.Decimals() != 6 {
			t.Errorf("asset = %s/%d, want short address and 6 decimals", a.Symbol(), a.Decimals())
		}
	})

	t.Run("decimals_failure", func(t *testing.T) {
		_, err := r.Resolve(ctx, outcomeAddrs[2])
		if !apperror.HasCode(err, apperror.CodeContractCallFailed) {
			t.Errorf("err = %v, want %s", err, apperror.CodeContractCallFailed)
		}
	})
}

func TestAlgebraLocator_PoolByPair(t *testing.T) {
	fake := contracttest.NewFakeCaller(t)
	parsed := contract.MustParse(AlgebraFactoryABI)
	pool := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	fake.SetWithArgs(factoryAddr, parsed, "poolByPair", []any{outcomeAddrs[0], outcomeAddrs[2]}, pool)
	fake.SetWithArgs(factoryAddr, parsed, "poolByPair", []any{outcomeAddrs[1], outcomeAddrs[3]}, common.Address{})

	l, err := NewAlgebraLocator(factoryAddr, fake)
	if err != nil {
		t.Fatalf("NewAlgebraLocator: %v", err)
	}

	got, err := l.PoolByPair(context.Background(), outcomeAddrs[0], outcomeAddrs[2])
	if err != nil || got != pool {
		t.Errorf("PoolByPair = %s, %v; want %s", got.Hex(), err, pool.Hex())
	}

	got, err = l.PoolByPair(context.Background(), outcomeAddrs[1], outcomeAddrs[3])
	if err != nil || got != (common.Address{}) {
		t.Errorf("PoolByPair = %s, %v; want zero address", got.Hex(), err)
	}
}
