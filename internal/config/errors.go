package config

import "errors"

// ErrMissingRPCEndpoint indicates that neither ETH_RPC_URL nor ALCHEMY_URL is set.
var ErrMissingRPCEndpoint = errors.New("missing ETH_RPC_URL environment variable")

var (
	ErrInvalidRouterAddress = errors.New("invalid ROUTER_ADDRESS")
	ErrInvalidDepth         = errors.New("MAX_SUBPLAN_DEPTH must be positive")
	ErrInvalidCacheSize     = errors.New("DERIVE_CACHE_SIZE must be positive")
)
