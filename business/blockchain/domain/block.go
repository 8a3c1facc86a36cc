// Package domain contains the core domain types for the blockchain context.
package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Block is the slice of a block header the scanner needs.
type Block struct {
	Number    uint64
	Hash      common.Hash
	Timestamp time.Time
	BaseFee   *big.Int
}

// ConnectionState represents the state of the block feed.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateStreaming    ConnectionState = "streaming" // websocket new heads
	StatePolling      ConnectionState = "polling"   // http fallback
)

// Gauge maps the state to a metric value.
func (s ConnectionState) Gauge() int64 {
	switch s {
	case StateConnecting:
		return 1
	case StateStreaming:
		return 2
	case StatePolling:
		return 3
	default:
		return 0
	}
}
