package asset

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry is a thread-safe registry of known assets. Token metadata read from
// chain (outcome tokens, spot intermediates) is added with Ensure.
type Registry struct {
	byID     map[AssetID]*Asset
	bySymbol map[string][]*Asset
	mu       sync.RWMutex
}

// NewRegistry creates a new empty asset registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[AssetID]*Asset),
		bySymbol: make(map[string][]*Asset),
	}
}

// Register adds an asset. Panics if the ID is already registered.
func (r *Registry) Register(a *Asset) {
	if a == nil {
		panic("asset: cannot register nil asset")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[a.ID()]; exists {
		panic(fmt.Sprintf("asset: %s already registered", a.ID()))
	}
	r.add(a)
}

// Ensure registers a unless an asset with the same ID exists, and returns the
// registered instance.
func (r *Registry) Ensure(a *Asset) *Asset {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byID[a.ID()]; ok {
		return existing
	}
	r.add(a)
	return a
}

func (r *Registry) add(a *Asset) {
	r.byID[a.ID()] = a
	r.bySymbol[a.Symbol()] = append(r.bySymbol[a.Symbol()], a)
}

// Get retrieves an asset by its ID.
func (r *Registry) Get(id AssetID) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	return a, ok
}

// GetToken retrieves a token by chain and address.
func (r *Registry) GetToken(chainID uint64, address common.Address) (*Asset, bool) {
	if address == (common.Address{}) {
		return nil, false
	}
	return r.Get(NewTokenAssetID(chainID, address))
}

// GetBySymbolAndChain retrieves an asset by symbol and chain ID.
func (r *Registry) GetBySymbolAndChain(symbol string, chainID uint64) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.bySymbol[symbol] {
		if a.ChainID() == chainID {
			return a, true
		}
	}
	return nil, false
}

// Count returns the number of registered assets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
