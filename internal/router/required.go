package router

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/Fallback-Solutions/universal-router/internal/ledger"
	"github.com/Fallback-Solutions/universal-router/internal/simulator"
)

var exactOutCommands = map[Command]bool{
	V2SwapExactOut:        true,
	V3SwapExactOut:        true,
	PancakeV3SwapExactOut: true,
	SushiV3SwapExactOut:   true,
	SushiV2SwapExactOut:   true,
}

// RequiredInput prices one exact-output swap command and returns the input it
// consumes. A top-level quote must spend its opening balance exactly, so this
// is the balance to quote the same command with.
func (r *Router) RequiredInput(ctx context.Context, caller common.Address, cmd Command, input []byte) (*uint256.Int, error) {
	if !exactOutCommands[cmd] {
		return nil, fmt.Errorf("%w: %s is not an exact output swap", ErrInvalidParams, cmd)
	}
	if caller == (common.Address{}) {
		return nil, ErrInvalidCaller
	}

	c := &call{
		ctx:  ctx,
		exec: simulator.NewExecutor(simulator.NewStateFork(r.source)).WithSchedule(r.schedule),
	}
	budget := new(uint256.Int).SetAllOne()
	l := ledger.New(caller, r.self, budget)

	if err := r.handlers[cmd](c, l, input); err != nil {
		return nil, &CommandError{Index: 0, Command: byte(cmd), Err: err}
	}
	return new(uint256.Int).Sub(budget, l.FinalStartBalance()), nil
}
