package simulator

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fallback-Solutions/universal-router/internal/amm"
)

// StateFork is a per-quote view of pool state layered over a Source.
// Pools are fetched on first touch and mutated in place by simulations.
type StateFork struct {
	source amm.Source

	// cache
	cache *StateCache
	mu    sync.RWMutex

	// snapshot for revert
	snapshots []*StateCache

	// accessed pools survive reverts, like an access list
	warm map[common.Hash]struct{}
}

func NewStateFork(source amm.Source) *StateFork {
	return &StateFork{
		source:    source,
		cache:     NewStateCache(),
		snapshots: make([]*StateCache, 0),
		warm:      make(map[common.Hash]struct{}),
	}
}

// returns the pair at addr, loading it from the source on a miss
func (f *StateFork) Pair(ctx context.Context, addr common.Address) (*amm.Pair, error) {
	f.mu.RLock()
	if p, ok := f.cache.pairs[addr]; ok {
		f.mu.RUnlock()
		return p, nil
	}
	f.mu.RUnlock()

	p, err := f.source.Pair(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("load pair %s: %w", addr.Hex(), err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if cached, ok := f.cache.pairs[addr]; ok {
		return cached, nil
	}
	f.cache.pairs[addr] = p
	return p, nil
}

func (f *StateFork) Pool(ctx context.Context, addr common.Address) (*amm.Pool, error) {
	f.mu.RLock()
	if p, ok := f.cache.pools[addr]; ok {
		f.mu.RUnlock()
		return p, nil
	}
	f.mu.RUnlock()

	p, err := f.source.Pool(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("load pool %s: %w", addr.Hex(), err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if cached, ok := f.cache.pools[addr]; ok {
		return cached, nil
	}
	f.cache.pools[addr] = p
	return p, nil
}

func (f *StateFork) ManagedPool(ctx context.Context, key amm.PoolKey) (*amm.Pool, error) {
	id, err := key.ID()
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	if p, ok := f.cache.managed[id]; ok {
		f.mu.RUnlock()
		return p, nil
	}
	f.mu.RUnlock()

	p, err := f.source.ManagedPool(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load managed pool %s: %w", id.Hex(), err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if cached, ok := f.cache.managed[id]; ok {
		return cached, nil
	}
	f.cache.managed[id] = p
	return p, nil
}

// touch marks a pool accessed and reports whether this was the first access
func (f *StateFork) touch(id common.Hash) (cold bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.warm[id]; ok {
		return false
	}
	f.warm[id] = struct{}{}
	return true
}

// snapshot creates a revert point
func (f *StateFork) Snapshot() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.snapshots = append(f.snapshots, f.cache.clone())
	return len(f.snapshots) - 1
}

func (f *StateFork) RevertToSnapshot(snapID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if snapID < 0 || snapID >= len(f.snapshots) {
		return fmt.Errorf("invalid snapshot id: %d", snapID)
	}

	f.cache = f.snapshots[snapID]
	f.snapshots = f.snapshots[:snapID]

	return nil
}
