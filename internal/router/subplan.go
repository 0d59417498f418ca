package router

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fallback-Solutions/universal-router/internal/ledger"
)

// subPlan runs a nested plan seeded with what the parent has available to
// spend, then folds its results back: leftover input replaces the parent's
// tokenIn balance and the nested output lands in the parent's tokenOut.
func (r *Router) subPlan(c *call, l *ledger.Ledger, input []byte) error {
	commands, inputs, err := decodeBatch(input)
	if err != nil {
		return err
	}
	if c.depth+1 > r.maxDepth {
		return fmt.Errorf("%w: depth %d, limit %d", ErrMaxDepthExceeded, c.depth+1, r.maxDepth)
	}

	seed := l.Available()
	nested := ledger.NewSubPlan(r.self, seed.Token, seed.Balance)

	c.depth++
	err = r.execute(c, nested, commands, inputs)
	c.depth--
	if err != nil {
		return fmt.Errorf("sub-plan at depth %d: %w", c.depth+1, err)
	}

	if start := nested.TokenStart(); start.Token != (common.Address{}) {
		if err := l.ReplaceIn(start.Token, nested.FinalStartBalance()); err != nil {
			return err
		}
	}

	l.AddCost(nested.Cost())
	return l.CreditOut(nested.TokenEnd().Token, nested.AmountOut())
}
