package storage

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/Fallback-Solutions/universal-router/internal/amm"
)

// ReadThrough serves pool state from the cache and falls back to upstream
// on a miss, storing what it fetched under the same block. A failed cache
// read is logged and treated as a miss, so the refetch overwrites a corrupt row.
type ReadThrough struct {
	cache    *CacheDB
	upstream amm.Source
	block    uint64
	logger   *logrus.Logger
}

func NewReadThrough(cache *CacheDB, upstream amm.Source, block uint64, logger *logrus.Logger) *ReadThrough {
	return &ReadThrough{cache: cache, upstream: upstream, block: block, logger: logger}
}

func (s *ReadThrough) log() *logrus.Entry {
	return s.logger.WithField("block", s.block)
}

func (s *ReadThrough) Pair(ctx context.Context, addr common.Address) (*amm.Pair, error) {
	p, ok, err := s.cache.GetPair(s.block, addr)
	if err != nil {
		s.log().WithError(err).Warn("cache read failed")
	} else if ok {
		return p, nil
	}

	p, err = s.upstream.Pair(ctx, addr)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetPair(s.block, p); err != nil {
		s.log().WithError(err).WithField("pair", addr.Hex()).Warn("cache write failed")
	}
	return p, nil
}

func (s *ReadThrough) Pool(ctx context.Context, addr common.Address) (*amm.Pool, error) {
	p, ok, err := s.cache.GetPool(s.block, addr)
	if err != nil {
		s.log().WithError(err).Warn("cache read failed")
	} else if ok {
		return p, nil
	}

	p, err = s.upstream.Pool(ctx, addr)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetPool(s.block, p); err != nil {
		s.log().WithError(err).WithField("pool", addr.Hex()).Warn("cache write failed")
	}
	return p, nil
}

func (s *ReadThrough) ManagedPool(ctx context.Context, key amm.PoolKey) (*amm.Pool, error) {
	id, err := key.ID()
	if err != nil {
		return nil, err
	}
	p, ok, err := s.cache.GetManagedPool(s.block, id)
	if err != nil {
		s.log().WithError(err).Warn("cache read failed")
	} else if ok {
		return p, nil
	}

	p, err = s.upstream.ManagedPool(ctx, key)
	if err != nil {
		return nil, err
	}
	if p.ID == (common.Hash{}) {
		p.ID = id
	}
	if err := s.cache.SetManagedPool(s.block, p); err != nil {
		s.log().WithError(err).WithField("poolId", id.Hex()).Warn("cache write failed")
	}
	return p, nil
}

// Source loads the snapshot into memory for offline quoting.
func (s *Snapshot) Source() (*amm.MemorySource, error) {
	src := amm.NewMemorySource()
	for _, p := range s.Pairs {
		src.AddPair(p)
	}
	for _, p := range s.Pools {
		src.AddPool(p)
	}
	for _, p := range s.Managed {
		key := amm.NewPoolKey(p.Token0, p.Token1, p.Fee, p.TickSpacing, p.Hooks)
		if err := src.AddManagedPool(key, p); err != nil {
			return nil, err
		}
	}
	return src, nil
}
