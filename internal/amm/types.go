package amm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Pair is a uniswapv2 style constant-product pool
type Pair struct {
	Address  common.Address
	Token0   common.Address
	Token1   common.Address
	Reserve0 *big.Int
	Reserve1 *big.Int
}

func (p *Pair) Clone() *Pair {
	return &Pair{
		Address:  p.Address,
		Token0:   p.Token0,
		Token1:   p.Token1,
		Reserve0: new(big.Int).Set(p.Reserve0),
		Reserve1: new(big.Int).Set(p.Reserve1),
	}
}

// Pool is a concentrated-liquidity pool simulated inside its active range.
// V3 family pools are addressed by Address, manager pools by ID.
type Pool struct {
	Address      common.Address
	ID           common.Hash
	Token0       common.Address
	Token1       common.Address
	Fee          uint32 // pips, 1e6 = 100%
	TickSpacing  int32
	Hooks        common.Address
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
}

func (p *Pool) Clone() *Pool {
	c := *p
	c.SqrtPriceX96 = new(big.Int).Set(p.SqrtPriceX96)
	c.Liquidity = new(big.Int).Set(p.Liquidity)
	return &c
}

// ZeroForOne reports the swap direction for tokenIn.
func (p *Pool) ZeroForOne(tokenIn, tokenOut common.Address) (bool, error) {
	switch {
	case tokenIn == p.Token0 && tokenOut == p.Token1:
		return true, nil
	case tokenIn == p.Token1 && tokenOut == p.Token0:
		return false, nil
	default:
		return false, ErrTokenNotInPool
	}
}
