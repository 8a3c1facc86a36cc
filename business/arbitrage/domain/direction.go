// Package domain contains the core domain types for the arbitrage context.
package domain

// Direction represents the arbitrage trade direction.
type Direction string

const (
	// DirectionSpotSplit buys collateral on spot, splits it and sells both outcomes.
	DirectionSpotSplit Direction = "SPOT_SPLIT"

	// DirectionMergeSpot splits currency, buys both outcomes, merges and sells on spot.
	DirectionMergeSpot Direction = "MERGE_SPOT"
)

// String returns a human-readable description of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionSpotSplit:
		return "SPOT_SPLIT (buy spot → split → sell YES/NO → merge)"
	case DirectionMergeSpot:
		return "MERGE_SPOT (split → buy YES/NO → merge → sell spot)"
	default:
		return "Unknown"
	}
}

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionSpotSplit || d == DirectionMergeSpot
}

// Code is the on-chain enum value of the executor contract.
func (d Direction) Code() uint8 {
	if d == DirectionMergeSpot {
		return 1
	}
	return 0
}
