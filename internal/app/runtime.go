// Package app wires configuration into a ready router for the binaries.
package app

import (
	"context"
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/Fallback-Solutions/universal-router/internal/amm"
	"github.com/Fallback-Solutions/universal-router/internal/config"
	"github.com/Fallback-Solutions/universal-router/internal/eth"
	"github.com/Fallback-Solutions/universal-router/internal/router"
	"github.com/Fallback-Solutions/universal-router/internal/storage"
)

// Runtime owns everything a router needs that must be closed on exit.
type Runtime struct {
	Router *router.Router
	Cache  *storage.CacheDB
	Block  uint64
	Online bool

	client *eth.Client
}

// Open builds a router. Online it reads pool state from the node at the
// configured block through the sqlite cache; offline it quotes from the
// newest (or configured) cached block only.
func Open(ctx context.Context, cfg *config.Config, logger *logrus.Logger, offline bool) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cache, err := storage.NewCacheDB(cfg.CacheDB)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Cache: cache, Online: !offline}

	var source amm.Source
	if offline {
		source, err = rt.offlineSource(cfg, logger)
	} else {
		source, err = rt.onlineSource(ctx, cfg, logger)
	}
	if err != nil {
		rt.Close()
		return nil, err
	}

	deriver, err := amm.NewDeriver(cfg.DeriveCacheSize)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("create deriver: %w", err)
	}

	rt.Router, err = router.New(cfg.Router(), source,
		router.WithMaxDepth(cfg.MaxSubPlanDepth),
		router.WithDeriver(deriver),
		router.WithLogger(logger),
	)
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) onlineSource(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (amm.Source, error) {
	if err := cfg.RequireRPC(); err != nil {
		return nil, err
	}

	client, err := eth.NewClient(ctx, cfg.RPCUrl, cfg.RPCTimeout)
	if err != nil {
		return nil, err
	}
	rt.client = client

	// pin the block so every pool in a quote is read at the same height
	block := cfg.QuoteBlock
	if block == 0 {
		if block, err = client.BlockNumber(ctx); err != nil {
			return nil, fmt.Errorf("fetch head: %w", err)
		}
	}
	rt.Block = block

	upstream, err := amm.NewRPCSource(client, new(big.Int).SetUint64(block), eth.V4StateView)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{"block": block, "cache": cfg.CacheDB}).Info("quoting against node")
	return storage.NewReadThrough(rt.Cache, upstream, block, logger), nil
}

func (rt *Runtime) offlineSource(cfg *config.Config, logger *logrus.Logger) (amm.Source, error) {
	block := cfg.QuoteBlock
	if block == 0 {
		latest, ok := rt.Cache.LatestBlock()
		if !ok {
			return nil, fmt.Errorf("pool cache %s is empty", cfg.CacheDB)
		}
		block = latest
	}
	rt.Block = block

	snap, err := rt.Cache.LoadSnapshot(block)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %d: %w", block, err)
	}

	logger.WithFields(logrus.Fields{"block": block, "pools": snap.Len()}).Info("quoting offline")
	return snap.Source()
}

func (rt *Runtime) Close() {
	if rt.client != nil {
		rt.client.Close()
	}
	if rt.Cache != nil {
		rt.Cache.Close()
	}
}
