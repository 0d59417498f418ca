package eth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Token addresses on Ethereum mainnet
var (
	WETHAddress = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	USDCAddress = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	USDTAddress = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	DAIAddress  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	WBTCAddress = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
)

// TokenInfo bundles address + decimals for easy lookup
type TokenInfo struct {
	Address  common.Address
	Decimals int
	Symbol   string
}

// KnownTokens: lookup by symbol string
var KnownTokens = map[string]TokenInfo{
	"WETH": {WETHAddress, 18, "WETH"},
	"USDC": {USDCAddress, 6, "USDC"},
	"USDT": {USDTAddress, 6, "USDT"},
	"DAI":  {DAIAddress, 18, "DAI"},
	"WBTC": {WBTCAddress, 8, "WBTC"},
}

// Family identifies an AMM protocol family. Values below 64 are core
// families, 64 and above are additional integrations.
type Family uint8

const (
	FamilyUniswapV2 Family = 0
	FamilyUniswapV3 Family = 1
	FamilyUniswapV4 Family = 2

	FamilyPancakeV3 Family = 64
	FamilySushiV3   Family = 65
	FamilySushiV2   Family = 66
)

// Kind is the pool mechanics a family shares with its siblings.
type Kind uint8

const (
	KindConstantProduct Kind = iota
	KindConcentrated
	KindSingleton
)

func (k Kind) String() string {
	switch k {
	case KindConstantProduct:
		return "constant-product"
	case KindConcentrated:
		return "concentrated"
	case KindSingleton:
		return "singleton"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ProtocolConfig: factory + init code hash is all you need to derive ANY pool address.
// For singleton families Factory is the manager and InitCodeHash is unused.
type ProtocolConfig struct {
	Family       Family
	Name         string
	Kind         Kind
	Factory      common.Address
	InitCodeHash [32]byte
}

// IsCore reports whether the family lives in the reserved low range.
func (f Family) IsCore() bool {
	return f < 64
}

func (f Family) String() string {
	if cfg, ok := KnownProtocols[f]; ok {
		return cfg.Name
	}
	return fmt.Sprintf("family(%d)", uint8(f))
}

// KnownProtocols: mainnet deployments keyed by family
var KnownProtocols = map[Family]ProtocolConfig{
	FamilyUniswapV2: {
		Family:       FamilyUniswapV2,
		Name:         "uniswap-v2",
		Kind:         KindConstantProduct,
		Factory:      common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"),
		InitCodeHash: hexToBytes32("96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f"),
	},
	FamilyUniswapV3: {
		Family:       FamilyUniswapV3,
		Name:         "uniswap-v3",
		Kind:         KindConcentrated,
		Factory:      common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984"),
		InitCodeHash: hexToBytes32("e34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54"),
	},
	FamilyUniswapV4: {
		Family:  FamilyUniswapV4,
		Name:    "uniswap-v4",
		Kind:    KindSingleton,
		Factory: common.HexToAddress("0x000000000004444c5dc75cB358380D2e3dE08A90"),
	},
	// pancake derives pools from its deployer, not the factory
	FamilyPancakeV3: {
		Family:       FamilyPancakeV3,
		Name:         "pancakeswap-v3",
		Kind:         KindConcentrated,
		Factory:      common.HexToAddress("0x41ff9AA7e16B8B1a8a8dc4f0eFacd93D02d071c9"),
		InitCodeHash: hexToBytes32("6ce8eb472fa82df5469c6ab6d485f17c3ad13c8cd7af59b3d4a8026c5ce0f7e2"),
	},
	FamilySushiV3: {
		Family:       FamilySushiV3,
		Name:         "sushiswap-v3",
		Kind:         KindConcentrated,
		Factory:      common.HexToAddress("0xbACEB8eC6b9355Dfc0269C18bac9d6E2Bdc29C4F"),
		InitCodeHash: hexToBytes32("e34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54"),
	},
	FamilySushiV2: {
		Family:       FamilySushiV2,
		Name:         "sushiswap-v2",
		Kind:         KindConstantProduct,
		Factory:      common.HexToAddress("0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac"),
		InitCodeHash: hexToBytes32("e18a34eb0e04b04f7a0ac29a6e80748dca96319b42c54d679cb821dca90c6303"),
	},
}

// V4StateView is the read-only lens over the V4 pool manager's storage.
var V4StateView = common.HexToAddress("0x7fFE42C4a5DEeA5b0feC41C94C136Cf115597227")

func hexToBytes32(s string) [32]byte {
	var b [32]byte
	copy(b[:], common.FromHex(s))
	return b
}

// Uniswap V2 Pair ABI: token0, token1 and getReserves
const UniswapV2PairABI = `[
	{"constant": true, "inputs": [], "name": "token0", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"constant": true, "inputs": [], "name": "token1", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{
		"constant": true,
		"inputs": [],
		"name": "getReserves",
		"outputs": [
			{"internalType": "uint112", "name": "reserve0", "type": "uint112"},
			{"internalType": "uint112", "name": "reserve1", "type": "uint112"},
			{"internalType": "uint32",  "name": "blockTimestampLast", "type": "uint32"}
		],
		"payable": false,
		"stateMutability": "view",
		"type": "function"
	}
]`

// Uniswap V3 Pool ABI: only what the quoter reads
const UniswapV3PoolABI = `[
	{"inputs": [], "name": "token0", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "token1", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "fee", "outputs": [{"name": "", "type": "uint24"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "liquidity", "outputs": [{"name": "", "type": "uint128"}], "stateMutability": "view", "type": "function"},
	{
		"inputs": [],
		"name": "slot0",
		"outputs": [
			{"name": "sqrtPriceX96", "type": "uint160"},
			{"name": "tick", "type": "int24"},
			{"name": "observationIndex", "type": "uint16"},
			{"name": "observationCardinality", "type": "uint16"},
			{"name": "observationCardinalityNext", "type": "uint16"},
			{"name": "feeProtocol", "type": "uint8"},
			{"name": "unlocked", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// Uniswap V4 StateView ABI: slot0 and liquidity by pool id
const UniswapV4StateViewABI = `[
	{
		"inputs": [{"name": "poolId", "type": "bytes32"}],
		"name": "getSlot0",
		"outputs": [
			{"name": "sqrtPriceX96", "type": "uint160"},
			{"name": "tick", "type": "int24"},
			{"name": "protocolFee", "type": "uint24"},
			{"name": "lpFee", "type": "uint24"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"name": "poolId", "type": "bytes32"}],
		"name": "getLiquidity",
		"outputs": [{"name": "liquidity", "type": "uint128"}],
		"stateMutability": "view",
		"type": "function"
	}
]`
