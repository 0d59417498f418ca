package amm

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Source supplies pool state at one fixed block.
type Source interface {
	Pair(ctx context.Context, addr common.Address) (*Pair, error)
	Pool(ctx context.Context, addr common.Address) (*Pool, error)
	ManagedPool(ctx context.Context, key PoolKey) (*Pool, error)
}

// MemorySource serves pools registered up front. Returned values are copies.
type MemorySource struct {
	mu      sync.RWMutex
	pairs   map[common.Address]*Pair
	pools   map[common.Address]*Pool
	managed map[common.Hash]*Pool
}

func NewMemorySource() *MemorySource {
	return &MemorySource{
		pairs:   make(map[common.Address]*Pair),
		pools:   make(map[common.Address]*Pool),
		managed: make(map[common.Hash]*Pool),
	}
}

func (s *MemorySource) AddPair(p *Pair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairs[p.Address] = p.Clone()
}

func (s *MemorySource) AddPool(p *Pool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[p.Address] = p.Clone()
}

// AddManagedPool registers a manager pool under its key's id.
func (s *MemorySource) AddManagedPool(key PoolKey, p *Pool) error {
	id, err := key.ID()
	if err != nil {
		return err
	}

	c := p.Clone()
	c.ID = id
	c.Token0, c.Token1 = key.Currency0, key.Currency1
	c.Fee, c.TickSpacing, c.Hooks = key.Fee, key.TickSpacing, key.Hooks

	s.mu.Lock()
	defer s.mu.Unlock()
	s.managed[id] = c
	return nil
}

func (s *MemorySource) Pair(_ context.Context, addr common.Address) (*Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pairs[addr]
	if !ok {
		return nil, fmt.Errorf("pair %s: %w", addr.Hex(), ErrPoolNotFound)
	}
	return p.Clone(), nil
}

func (s *MemorySource) Pool(_ context.Context, addr common.Address) (*Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pools[addr]
	if !ok {
		return nil, fmt.Errorf("pool %s: %w", addr.Hex(), ErrPoolNotFound)
	}
	return p.Clone(), nil
}

func (s *MemorySource) ManagedPool(_ context.Context, key PoolKey) (*Pool, error) {
	id, err := key.ID()
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.managed[id]
	if !ok {
		return nil, fmt.Errorf("managed pool %s: %w", id.Hex(), ErrPoolNotFound)
	}
	return p.Clone(), nil
}
