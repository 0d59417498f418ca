package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"ETH_RPC_URL", "ALCHEMY_URL", "CACHE_DB", "QUOTE_BLOCK", "ROUTER_ADDRESS",
		"MAX_SUBPLAN_DEPTH", "API_ADDR", "API_KEY", "LOG_LEVEL", "RPC_TIMEOUT", "DERIVE_CACHE_SIZE"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "data/pools.db", cfg.CacheDB)
	assert.Equal(t, 8, cfg.MaxSubPlanDepth)
	assert.Equal(t, ":8090", cfg.APIAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 15*time.Second, cfg.RPCTimeout)
	assert.Equal(t, 4096, cfg.DeriveCacheSize)
	assert.Zero(t, cfg.QuoteBlock)
	require.NoError(t, cfg.Validate())
	assert.ErrorIs(t, cfg.RequireRPC(), ErrMissingRPCEndpoint)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ETH_RPC_URL", "")
	t.Setenv("ALCHEMY_URL", "https://eth.example/v2/key")
	t.Setenv("QUOTE_BLOCK", "19000000")
	t.Setenv("MAX_SUBPLAN_DEPTH", "3")
	t.Setenv("RPC_TIMEOUT", "2s")

	cfg := Load()
	assert.Equal(t, "https://eth.example/v2/key", cfg.RPCUrl)
	assert.Equal(t, uint64(19000000), cfg.QuoteBlock)
	assert.Equal(t, 3, cfg.MaxSubPlanDepth)
	assert.Equal(t, 2*time.Second, cfg.RPCTimeout)
	assert.NoError(t, cfg.RequireRPC())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
		want error
	}{
		{"bad router", func(c *Config) { c.RouterAddress = "nope" }, ErrInvalidRouterAddress},
		{"zero router", func(c *Config) { c.RouterAddress = "0x0000000000000000000000000000000000000000" }, ErrInvalidRouterAddress},
		{"depth", func(c *Config) { c.MaxSubPlanDepth = 0 }, ErrInvalidDepth},
		{"cache size", func(c *Config) { c.DeriveCacheSize = -1 }, ErrInvalidCacheSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{RouterAddress: DefaultRouterAddress, MaxSubPlanDepth: 8, DeriveCacheSize: 16}
			tt.mut(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}
