package router

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fallback-Solutions/universal-router/internal/eth"
	"github.com/Fallback-Solutions/universal-router/internal/ledger"
	"github.com/Fallback-Solutions/universal-router/internal/simulator"
)

func (r *Router) pairHop(cfg eth.ProtocolConfig, tokenIn, tokenOut common.Address, exactIn bool, amount *big.Int) simulator.Hop {
	return simulator.Hop{
		Kind:       simulator.PoolConstantProduct,
		Pool:       r.deriver.Pair(cfg, tokenIn, tokenOut),
		TokenIn:    tokenIn,
		TokenOut:   tokenOut,
		ExactInput: exactIn,
		Amount:     amount,
	}
}

func (r *Router) v2ExactIn(family eth.Family) handler {
	return func(c *call, l *ledger.Ledger, input []byte) error {
		cfg, err := r.family(family)
		if err != nil {
			return err
		}
		p, err := decodeV2(input)
		if err != nil {
			return err
		}

		amountIn, err := takeInput(l, p.Path[0], p.Amount)
		if err != nil {
			return err
		}

		amount := amountIn.ToBig()
		for i := 0; i < len(p.Path)-1; i++ {
			res, err := r.simulate(c, l, r.pairHop(cfg, p.Path[i], p.Path[i+1], true, amount))
			if err != nil {
				return err
			}
			amount = res.AmountOut
		}

		out, err := toU256(amount)
		if err != nil {
			return err
		}
		return l.CreditRecipient(p.Path[len(p.Path)-1], out, p.Recipient)
	}
}

// v2ExactOut credits the requested output first, then walks the path
// backwards to find what the first pair needs.
func (r *Router) v2ExactOut(family eth.Family) handler {
	return func(c *call, l *ledger.Ledger, input []byte) error {
		cfg, err := r.family(family)
		if err != nil {
			return err
		}
		p, err := decodeV2(input)
		if err != nil {
			return err
		}
		if p.Amount.Cmp(ContractBalance) == 0 {
			return fmt.Errorf("%w: contract balance on exact output", ErrInvalidParams)
		}

		out, err := toU256(p.Amount)
		if err != nil {
			return err
		}
		last := len(p.Path) - 1
		if err := l.CreditRecipient(p.Path[last], out, p.Recipient); err != nil {
			return err
		}

		amount := p.Amount
		for i := last; i > 0; i-- {
			res, err := r.simulate(c, l, r.pairHop(cfg, p.Path[i-1], p.Path[i], false, amount))
			if err != nil {
				return err
			}
			amount = res.AmountIn
		}

		in, err := toU256(amount)
		if err != nil {
			return err
		}
		return l.DebitIn(p.Path[0], in)
	}
}
