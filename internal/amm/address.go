package amm

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Fallback-Solutions/universal-router/internal/eth"
)

var (
	addressType = mustType("address")
	uint24Type  = mustType("uint24")
	int24Type   = mustType("int24")

	poolSaltArgs = abi.Arguments{{Type: addressType}, {Type: addressType}, {Type: uint24Type}}
	poolKeyArgs  = abi.Arguments{
		{Type: addressType}, {Type: addressType}, {Type: uint24Type}, {Type: int24Type}, {Type: addressType},
	}
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("abi type %s: %v", t, err))
	}
	return typ
}

// SortTokens orders a pair the way factories do
func SortTokens(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) < 0 {
		return a, b
	}
	return b, a
}

// PairAddress derives a constant-product pair: CREATE2(factory, keccak(token0 ++ token1), initCodeHash)
func PairAddress(factory common.Address, initCodeHash [32]byte, tokenA, tokenB common.Address) common.Address {
	token0, token1 := SortTokens(tokenA, tokenB)
	salt := crypto.Keccak256Hash(token0.Bytes(), token1.Bytes())
	return crypto.CreateAddress2(factory, salt, initCodeHash[:])
}

// PoolAddress derives a concentrated pool: salt is keccak(abi.encode(token0, token1, fee))
func PoolAddress(deployer common.Address, initCodeHash [32]byte, tokenA, tokenB common.Address, fee uint32) (common.Address, error) {
	token0, token1 := SortTokens(tokenA, tokenB)
	encoded, err := poolSaltArgs.Pack(token0, token1, new(big.Int).SetUint64(uint64(fee)))
	if err != nil {
		return common.Address{}, fmt.Errorf("pack pool salt: %w", err)
	}
	salt := crypto.Keccak256Hash(encoded)
	return crypto.CreateAddress2(deployer, salt, initCodeHash[:]), nil
}

// PoolKey identifies a pool inside a singleton manager
type PoolKey struct {
	Currency0   common.Address
	Currency1   common.Address
	Fee         uint32
	TickSpacing int32
	Hooks       common.Address
}

func NewPoolKey(currencyA, currencyB common.Address, fee uint32, tickSpacing int32, hooks common.Address) PoolKey {
	c0, c1 := SortTokens(currencyA, currencyB)
	return PoolKey{Currency0: c0, Currency1: c1, Fee: fee, TickSpacing: tickSpacing, Hooks: hooks}
}

// ID is keccak(abi.encode(key)), the manager's storage key for the pool
func (k PoolKey) ID() (common.Hash, error) {
	encoded, err := poolKeyArgs.Pack(
		k.Currency0,
		k.Currency1,
		new(big.Int).SetUint64(uint64(k.Fee)),
		big.NewInt(int64(k.TickSpacing)),
		k.Hooks,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack pool key: %w", err)
	}
	return crypto.Keccak256Hash(encoded), nil
}

type deriveKey struct {
	family eth.Family
	token0 common.Address
	token1 common.Address
	fee    uint32
}

// Deriver memoises CREATE2 derivations; a quote touches the same pools repeatedly.
type Deriver struct {
	cache *lru.Cache[deriveKey, common.Address]
}

func NewDeriver(size int) (*Deriver, error) {
	cache, err := lru.New[deriveKey, common.Address](size)
	if err != nil {
		return nil, fmt.Errorf("create derive cache: %w", err)
	}
	return &Deriver{cache: cache}, nil
}

// Pair derives the constant-product pair for cfg
func (d *Deriver) Pair(cfg eth.ProtocolConfig, tokenA, tokenB common.Address) common.Address {
	token0, token1 := SortTokens(tokenA, tokenB)
	key := deriveKey{family: cfg.Family, token0: token0, token1: token1}
	if addr, ok := d.cache.Get(key); ok {
		return addr
	}
	addr := PairAddress(cfg.Factory, cfg.InitCodeHash, token0, token1)
	d.cache.Add(key, addr)
	return addr
}

// Pool derives the concentrated pool for cfg and fee tier
func (d *Deriver) Pool(cfg eth.ProtocolConfig, tokenA, tokenB common.Address, fee uint32) (common.Address, error) {
	token0, token1 := SortTokens(tokenA, tokenB)
	key := deriveKey{family: cfg.Family, token0: token0, token1: token1, fee: fee}
	if addr, ok := d.cache.Get(key); ok {
		return addr, nil
	}
	addr, err := PoolAddress(cfg.Factory, cfg.InitCodeHash, token0, token1, fee)
	if err != nil {
		return common.Address{}, err
	}
	d.cache.Add(key, addr)
	return addr, nil
}

func (d *Deriver) Len() int {
	return d.cache.Len()
}
