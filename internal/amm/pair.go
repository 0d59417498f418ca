package amm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	big997  = big.NewInt(997)
	big1000 = big.NewInt(1000)
)

// calculates output amount for a uniswapv2 swap including a 0.3% fee
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	if amountIn.Sign() <= 0 {
		return big.NewInt(0)
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return big.NewInt(0)
	}

	amountInWithFee := new(big.Int).Mul(amountIn, big997)
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)

	denominator := new(big.Int).Mul(reserveIn, big1000)
	denominator.Add(denominator, amountInWithFee)

	return numerator.Div(numerator, denominator)
}

// GetAmountIn is the inverse of GetAmountOut, rounded up by one unit so the
// returned input always buys at least amountOut. Returns nil when the pair
// cannot supply amountOut.
func GetAmountIn(amountOut, reserveIn, reserveOut *big.Int) *big.Int {
	if amountOut.Sign() <= 0 || reserveIn.Sign() <= 0 || amountOut.Cmp(reserveOut) >= 0 {
		return nil
	}

	numerator := new(big.Int).Mul(reserveIn, amountOut)
	numerator.Mul(numerator, big1000)

	denominator := new(big.Int).Sub(reserveOut, amountOut)
	denominator.Mul(denominator, big997)

	amountIn := numerator.Div(numerator, denominator)
	return amountIn.Add(amountIn, big.NewInt(1))
}

func (p *Pair) reserves(tokenIn, tokenOut common.Address) (reserveIn, reserveOut *big.Int, err error) {
	switch {
	case tokenIn == p.Token0 && tokenOut == p.Token1:
		return p.Reserve0, p.Reserve1, nil
	case tokenIn == p.Token1 && tokenOut == p.Token0:
		return p.Reserve1, p.Reserve0, nil
	default:
		return nil, nil, ErrTokenNotInPool
	}
}

// SwapExactIn applies an exact-input swap to the reserves and returns the output.
func (p *Pair) SwapExactIn(tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	reserveIn, reserveOut, err := p.reserves(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	if amountIn.Sign() <= 0 {
		return nil, ErrInsufficientInputAmount
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}

	amountOut := GetAmountOut(amountIn, reserveIn, reserveOut)
	if amountOut.Sign() == 0 {
		return nil, ErrInsufficientOutputAmount
	}

	reserveIn.Add(reserveIn, amountIn)
	reserveOut.Sub(reserveOut, amountOut)
	return amountOut, nil
}

// SwapExactOut applies an exact-output swap and returns the required input.
func (p *Pair) SwapExactOut(tokenIn, tokenOut common.Address, amountOut *big.Int) (*big.Int, error) {
	reserveIn, reserveOut, err := p.reserves(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	if amountOut.Sign() <= 0 {
		return nil, ErrInsufficientOutputAmount
	}

	amountIn := GetAmountIn(amountOut, reserveIn, reserveOut)
	if amountIn == nil {
		return nil, ErrInsufficientLiquidity
	}

	reserveIn.Add(reserveIn, amountIn)
	reserveOut.Sub(reserveOut, amountOut)
	return amountIn, nil
}
