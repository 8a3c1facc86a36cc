// Package domain contains the core domain types for the futarchy context.
package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/futarchy-arbitrage/internal/asset"
)

// Outcome indices of a futarchy proposal.
const (
	IndexYesCompany  = 0
	IndexNoCompany   = 1
	IndexYesCurrency = 2
	IndexNoCurrency  = 3

	RequiredOutcomes = 4
)

// Proposal is a read-only view of a futarchy proposal: two collaterals and the
// YES/NO outcome tokens minted against each.
type Proposal struct {
	Address common.Address

	Company  *asset.Asset // collateral A
	Currency *asset.Asset // collateral B

	YesCompany  *asset.Asset
	NoCompany   *asset.Asset
	YesCurrency *asset.Asset
	NoCurrency  *asset.Asset
}

// NewProposal builds a proposal from its collaterals and outcome tokens in index order.
func NewProposal(address common.Address, company, currency *asset.Asset, outcomes []*asset.Asset) (*Proposal, error) {
	if company == nil || currency == nil {
		return nil, fmt.Errorf("futarchy: proposal %s has nil collateral", address.Hex())
	}
	if company.Equals(currency) {
		return nil, fmt.Errorf("futarchy: proposal %s uses %s for both collaterals", address.Hex(), company)
	}
	if len(outcomes) < RequiredOutcomes {
		return nil, fmt.Errorf("futarchy: proposal %s has %d outcomes, need %d", address.Hex(), len(outcomes), RequiredOutcomes)
	}

	seen := map[asset.AssetID]int{company.ID(): -1, currency.ID(): -1}
	for i, o := range outcomes[:RequiredOutcomes] {
		if o == nil {
			return nil, fmt.Errorf("futarchy: proposal %s outcome %d is nil", address.Hex(), i)
		}
		if prev, dup := seen[o.ID()]; dup {
			return nil, fmt.Errorf("futarchy: proposal %s outcome %d duplicates token at %d", address.Hex(), i, prev)
		}
		seen[o.ID()] = i
	}

	return &Proposal{
		Address:     address,
		Company:     company,
		Currency:    currency,
		YesCompany:  outcomes[IndexYesCompany],
		NoCompany:   outcomes[IndexNoCompany],
		YesCurrency: outcomes[IndexYesCurrency],
		NoCurrency:  outcomes[IndexNoCurrency],
	}, nil
}

// Outcomes returns the YES and NO tokens minted from collateral.
func (p *Proposal) Outcomes(collateral *asset.Asset) (yes, no *asset.Asset, err error) {
	switch {
	case collateral.Equals(p.Company):
		return p.YesCompany, p.NoCompany, nil
	case collateral.Equals(p.Currency):
		return p.YesCurrency, p.NoCurrency, nil
	default:
		return nil, nil, fmt.Errorf("futarchy: %s is not a collateral of %s", collateral, p.Address.Hex())
	}
}

// CollateralOf returns the collateral an outcome token is redeemable for.
func (p *Proposal) CollateralOf(outcome *asset.Asset) (*asset.Asset, bool) {
	switch {
	case outcome.Equals(p.YesCompany), outcome.Equals(p.NoCompany):
		return p.Company, true
	case outcome.Equals(p.YesCurrency), outcome.Equals(p.NoCurrency):
		return p.Currency, true
	default:
		return nil, false
	}
}

// OutcomeTokens returns the four outcome tokens in index order.
func (p *Proposal) OutcomeTokens() []*asset.Asset {
	return []*asset.Asset{p.YesCompany, p.NoCompany, p.YesCurrency, p.NoCurrency}
}

// Market is a proposal together with its conditional pools: YES(A)/YES(B) and NO(A)/NO(B).
type Market struct {
	Proposal *Proposal
	YesPool  common.Address
	NoPool   common.Address
}
