package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// DefaultRouterAddress is the identity quotes run under when ROUTER_ADDRESS is unset.
const DefaultRouterAddress = "0x66a9893cC07D91D95644AEDD05D03f95e1dBA8Af"

type Config struct {
	// RPC settings
	RPCUrl     string
	RPCTimeout time.Duration
	QuoteBlock uint64 // 0 = latest

	// sqlite pool snapshot cache
	CacheDB string

	// Engine
	RouterAddress   string
	MaxSubPlanDepth int
	DeriveCacheSize int

	// HTTP
	APIAddr string
	APIKey  string

	LogLevel string
}

// Load reads .env (if present) and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	rpcURL := getEnv("ETH_RPC_URL", "")
	if rpcURL == "" {
		rpcURL = getEnv("ALCHEMY_URL", "")
	}

	return &Config{
		RPCUrl:     rpcURL,
		RPCTimeout: getDurationEnv("RPC_TIMEOUT", 15*time.Second),
		QuoteBlock: getUintEnv("QUOTE_BLOCK", 0),

		CacheDB: getEnv("CACHE_DB", "data/pools.db"),

		RouterAddress:   getEnv("ROUTER_ADDRESS", DefaultRouterAddress),
		MaxSubPlanDepth: getIntEnv("MAX_SUBPLAN_DEPTH", 8),
		DeriveCacheSize: getIntEnv("DERIVE_CACHE_SIZE", 4096),

		APIAddr: getEnv("API_ADDR", ":8090"),
		APIKey:  getEnv("API_KEY", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks the engine settings. The RPC endpoint is checked
// separately by RequireRPC since offline tools run without one.
func (c *Config) Validate() error {
	if !common.IsHexAddress(c.RouterAddress) {
		return fmt.Errorf("%w: %q", ErrInvalidRouterAddress, c.RouterAddress)
	}
	if common.HexToAddress(c.RouterAddress) == (common.Address{}) {
		return fmt.Errorf("%w: zero address", ErrInvalidRouterAddress)
	}
	if c.MaxSubPlanDepth <= 0 {
		return ErrInvalidDepth
	}
	if c.DeriveCacheSize <= 0 {
		return ErrInvalidCacheSize
	}
	return nil
}

func (c *Config) RequireRPC() error {
	if strings.TrimSpace(c.RPCUrl) == "" {
		return ErrMissingRPCEndpoint
	}
	return nil
}

func (c *Config) Router() common.Address {
	return common.HexToAddress(c.RouterAddress)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getUintEnv(key string, defaultVal uint64) uint64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseUint(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
