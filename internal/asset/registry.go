package asset

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type symbolKey struct {
	chainID uint64
	symbol  string
}

// Registry indexes tokens by ID and by (chain, symbol). It is safe for
// concurrent use; the quoting service adds tokens it discovers on chain.
type Registry struct {
	mu       sync.RWMutex
	byID     map[AssetID]*Asset
	bySymbol map[symbolKey]*Asset
}

func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[AssetID]*Asset),
		bySymbol: make(map[symbolKey]*Asset),
	}
}

// Register adds a well-known token. A duplicate ID is a programming error.
func (r *Registry) Register(a *Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byID[a.ID()]; dup {
		panic(fmt.Sprintf("asset: %s registered twice", a.ID()))
	}
	r.index(a)
}

// Remember adds a token found at runtime and returns the canonical
// instance: the first one seen for its ID.
func (r *Registry) Remember(a *Asset) *Asset {
	r.mu.Lock()
	defer r.mu.Unlock()
	if known, ok := r.byID[a.ID()]; ok {
		return known
	}
	r.index(a)
	return a
}

// index keeps the first token per symbol so a discovered token cannot
// shadow a well-known one.
func (r *Registry) index(a *Asset) {
	r.byID[a.ID()] = a
	k := symbolKey{chainID: a.ChainID(), symbol: strings.ToUpper(a.Symbol())}
	if _, taken := r.bySymbol[k]; !taken {
		r.bySymbol[k] = a
	}
}

func (r *Registry) Get(id AssetID) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	return a, ok
}

// GetNative returns the gas coin of chainID.
func (r *Registry) GetNative(chainID uint64) (*Asset, bool) {
	return r.Get(NewNativeAssetID(chainID))
}

// Lookup resolves what a user typed: "native", a hex address (the native
// sentinels included) or a case-insensitive symbol.
func (r *Registry) Lookup(chainID uint64, ref string) (*Asset, bool) {
	ref = strings.TrimSpace(ref)
	switch {
	case strings.EqualFold(ref, "native"):
		return r.GetNative(chainID)
	case common.IsHexAddress(ref):
		return r.Get(NewTokenAssetID(chainID, common.HexToAddress(ref)))
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.bySymbol[symbolKey{chainID: chainID, symbol: strings.ToUpper(ref)}]
	return a, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
