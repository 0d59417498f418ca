package amm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// feeDenominator is 100% in pips
	feeDenominator = big.NewInt(1_000_000)
	q96            = new(big.Int).Lsh(big.NewInt(1), 96)

	MinSqrtRatio    = big.NewInt(4295128739)
	MaxSqrtRatio, _ = new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)
)

func divRoundingUp(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func mulDivRoundingUp(a, b, c *big.Int) *big.Int {
	return divRoundingUp(new(big.Int).Mul(a, b), c)
}

// getAmount0Delta returns L * (sqrtB - sqrtA) / (sqrtA * sqrtB) in Q96.
func getAmount0Delta(sqrtA, sqrtB, liquidity *big.Int, roundUp bool) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	numerator1 := new(big.Int).Lsh(liquidity, 96)
	numerator2 := new(big.Int).Sub(sqrtB, sqrtA)

	if roundUp {
		return divRoundingUp(mulDivRoundingUp(numerator1, numerator2, sqrtB), sqrtA)
	}
	out := new(big.Int).Mul(numerator1, numerator2)
	out.Quo(out, sqrtB)
	return out.Quo(out, sqrtA)
}

// getAmount1Delta returns L * (sqrtB - sqrtA) / Q96.
func getAmount1Delta(sqrtA, sqrtB, liquidity *big.Int, roundUp bool) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	diff := new(big.Int).Sub(sqrtB, sqrtA)
	if roundUp {
		return mulDivRoundingUp(liquidity, diff, q96)
	}
	out := new(big.Int).Mul(liquidity, diff)
	return out.Quo(out, q96)
}

func nextSqrtPriceFromAmount0(sqrtP, liquidity, amount *big.Int, add bool) (*big.Int, error) {
	if amount.Sign() == 0 {
		return new(big.Int).Set(sqrtP), nil
	}
	numerator1 := new(big.Int).Lsh(liquidity, 96)
	product := new(big.Int).Mul(amount, sqrtP)

	denominator := new(big.Int)
	if add {
		denominator.Add(numerator1, product)
	} else {
		if product.Cmp(numerator1) >= 0 {
			return nil, ErrInsufficientLiquidity
		}
		denominator.Sub(numerator1, product)
	}
	return mulDivRoundingUp(numerator1, sqrtP, denominator), nil
}

func nextSqrtPriceFromAmount1(sqrtP, liquidity, amount *big.Int, add bool) (*big.Int, error) {
	shifted := new(big.Int).Lsh(amount, 96)
	if add {
		quotient := shifted.Quo(shifted, liquidity)
		return quotient.Add(quotient, sqrtP), nil
	}
	quotient := divRoundingUp(shifted, liquidity)
	if sqrtP.Cmp(quotient) <= 0 {
		return nil, ErrInsufficientLiquidity
	}
	return quotient.Sub(sqrtP, quotient), nil
}

func inRange(sqrtP *big.Int) bool {
	return sqrtP.Cmp(MinSqrtRatio) > 0 && sqrtP.Cmp(MaxSqrtRatio) < 0
}

// SwapExactIn moves the price within the active range and returns the output.
// The whole amountIn is consumed; the part not swapped is the fee.
func (p *Pool) SwapExactIn(tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	zeroForOne, err := p.ZeroForOne(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	if amountIn.Sign() <= 0 {
		return nil, ErrInsufficientInputAmount
	}
	if p.Liquidity.Sign() == 0 {
		return nil, ErrNoLiquidity
	}

	lessFee := new(big.Int).Mul(amountIn, new(big.Int).Sub(feeDenominator, big.NewInt(int64(p.Fee))))
	lessFee.Quo(lessFee, feeDenominator)

	var next *big.Int
	if zeroForOne {
		next, err = nextSqrtPriceFromAmount0(p.SqrtPriceX96, p.Liquidity, lessFee, true)
	} else {
		next, err = nextSqrtPriceFromAmount1(p.SqrtPriceX96, p.Liquidity, lessFee, true)
	}
	if err != nil {
		return nil, err
	}
	if !inRange(next) {
		return nil, ErrPriceLimit
	}

	var amountOut *big.Int
	if zeroForOne {
		amountOut = getAmount1Delta(next, p.SqrtPriceX96, p.Liquidity, false)
	} else {
		amountOut = getAmount0Delta(p.SqrtPriceX96, next, p.Liquidity, false)
	}
	if amountOut.Sign() == 0 {
		return nil, ErrInsufficientOutputAmount
	}

	p.SqrtPriceX96 = next
	return amountOut, nil
}

// SwapExactOut moves the price so that exactly amountOut leaves the pool and
// returns the input required, fee included.
func (p *Pool) SwapExactOut(tokenIn, tokenOut common.Address, amountOut *big.Int) (*big.Int, error) {
	zeroForOne, err := p.ZeroForOne(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	if amountOut.Sign() <= 0 {
		return nil, ErrInsufficientOutputAmount
	}
	if p.Liquidity.Sign() == 0 {
		return nil, ErrNoLiquidity
	}

	var next *big.Int
	if zeroForOne {
		next, err = nextSqrtPriceFromAmount1(p.SqrtPriceX96, p.Liquidity, amountOut, false)
	} else {
		next, err = nextSqrtPriceFromAmount0(p.SqrtPriceX96, p.Liquidity, amountOut, false)
	}
	if err != nil {
		return nil, err
	}
	if !inRange(next) {
		return nil, ErrPriceLimit
	}

	var amountIn *big.Int
	if zeroForOne {
		amountIn = getAmount0Delta(next, p.SqrtPriceX96, p.Liquidity, true)
	} else {
		amountIn = getAmount1Delta(p.SqrtPriceX96, next, p.Liquidity, true)
	}

	fee := mulDivRoundingUp(amountIn, big.NewInt(int64(p.Fee)), new(big.Int).Sub(feeDenominator, big.NewInt(int64(p.Fee))))

	p.SqrtPriceX96 = next
	return amountIn.Add(amountIn, fee), nil
}
