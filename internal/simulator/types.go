package simulator

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fallback-Solutions/universal-router/internal/amm"
)

// ErrSimulationFailed wraps every hop that produced no quote
var ErrSimulationFailed = errors.New("simulation failed")

type PoolKind uint8

const (
	PoolConstantProduct PoolKind = iota
	PoolConcentrated
	PoolManaged
)

func (k PoolKind) String() string {
	switch k {
	case PoolConstantProduct:
		return "constant-product"
	case PoolConcentrated:
		return "concentrated"
	case PoolManaged:
		return "managed"
	default:
		return "unknown"
	}
}

// Hop is one single-pool swap request. Amount is the input for exact-input
// hops and the requested output otherwise.
type Hop struct {
	Kind       PoolKind
	Pool       common.Address
	Key        amm.PoolKey
	TokenIn    common.Address
	TokenOut   common.Address
	ExactInput bool
	Amount     *big.Int
}

type SimulationResult struct {
	AmountIn  *big.Int
	AmountOut *big.Int
	GasUsed   uint64
}

type StateCache struct {
	pairs   map[common.Address]*amm.Pair
	pools   map[common.Address]*amm.Pool
	managed map[common.Hash]*amm.Pool
}

func NewStateCache() *StateCache {
	return &StateCache{
		pairs:   make(map[common.Address]*amm.Pair),
		pools:   make(map[common.Address]*amm.Pool),
		managed: make(map[common.Hash]*amm.Pool),
	}
}

func (c *StateCache) clone() *StateCache {
	snap := NewStateCache()
	for addr, p := range c.pairs {
		snap.pairs[addr] = p.Clone()
	}
	for addr, p := range c.pools {
		snap.pools[addr] = p.Clone()
	}
	for id, p := range c.managed {
		snap.managed[id] = p.Clone()
	}
	return snap
}
