package router

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fallback-Solutions/universal-router/internal/eth"
	"github.com/Fallback-Solutions/universal-router/internal/ledger"
	"github.com/Fallback-Solutions/universal-router/internal/simulator"
)

func (r *Router) poolHop(cfg eth.ProtocolConfig, tokenIn, tokenOut common.Address, fee uint32, exactIn bool, amount *big.Int) (simulator.Hop, error) {
	pool, err := r.deriver.Pool(cfg, tokenIn, tokenOut, fee)
	if err != nil {
		return simulator.Hop{}, err
	}
	return simulator.Hop{
		Kind:       simulator.PoolConcentrated,
		Pool:       pool,
		TokenIn:    tokenIn,
		TokenOut:   tokenOut,
		ExactInput: exactIn,
		Amount:     amount,
	}, nil
}

func (r *Router) v3ExactIn(family eth.Family) handler {
	return func(c *call, l *ledger.Ledger, input []byte) error {
		cfg, err := r.family(family)
		if err != nil {
			return err
		}
		p, err := decodeV3(input)
		if err != nil {
			return err
		}

		amountIn, err := takeInput(l, p.Tokens[0], p.Amount)
		if err != nil {
			return err
		}

		amount := amountIn.ToBig()
		for i, fee := range p.Fees {
			hop, err := r.poolHop(cfg, p.Tokens[i], p.Tokens[i+1], fee, true, amount)
			if err != nil {
				return err
			}
			res, err := r.simulate(c, l, hop)
			if err != nil {
				return err
			}
			amount = res.AmountOut
		}

		out, err := toU256(amount)
		if err != nil {
			return err
		}
		return l.CreditRecipient(p.Tokens[len(p.Tokens)-1], out, p.Recipient)
	}
}

// v3ExactOut reads its path output-first: Tokens[0] is what the recipient
// receives, the last token is what the ledger pays.
func (r *Router) v3ExactOut(family eth.Family) handler {
	return func(c *call, l *ledger.Ledger, input []byte) error {
		cfg, err := r.family(family)
		if err != nil {
			return err
		}
		p, err := decodeV3(input)
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
		if err := l.CreditRecipient(p.Tokens[0], out, p.Recipient); err != nil {
			return err
		}

		amount := p.Amount
		for i, fee := range p.Fees {
			hop, err := r.poolHop(cfg, p.Tokens[i+1], p.Tokens[i], fee, false, amount)
			if err != nil {
				return err
			}
			res, err := r.simulate(c, l, hop)
			if err != nil {
				return err
			}
			amount = res.AmountIn
		}

		in, err := toU256(amount)
		if err != nil {
			return err
		}
		return l.DebitIn(p.Tokens[len(p.Tokens)-1], in)
	}
}
