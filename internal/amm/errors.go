package amm

import "errors"

var (
	ErrPoolNotFound             = errors.New("pool not found")
	ErrTokenNotInPool           = errors.New("token not in pool")
	ErrInsufficientInputAmount  = errors.New("insufficient input amount")
	ErrInsufficientOutputAmount = errors.New("insufficient output amount")
	ErrInsufficientLiquidity    = errors.New("insufficient liquidity")
	ErrNoLiquidity              = errors.New("pool has no active liquidity")
	ErrPriceLimit               = errors.New("swap leaves the valid price range")
)
