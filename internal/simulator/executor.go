package simulator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type Executor struct {
	fork     *StateFork
	schedule GasSchedule
}

func NewExecutor(fork *StateFork) *Executor {
	return &Executor{
		fork:     fork,
		schedule: DefaultGasSchedule,
	}
}

func (e *Executor) WithSchedule(s GasSchedule) *Executor {
	e.schedule = s
	return e
}

type swapper interface {
	SwapExactIn(tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error)
	SwapExactOut(tokenIn, tokenOut common.Address, amountOut *big.Int) (*big.Int, error)
}

func (e *Executor) load(ctx context.Context, hop Hop) (swapper, common.Hash, error) {
	switch hop.Kind {
	case PoolConstantProduct:
		p, err := e.fork.Pair(ctx, hop.Pool)
		if err != nil {
			return nil, common.Hash{}, err
		}
		return p, common.BytesToHash(hop.Pool.Bytes()), nil
	case PoolConcentrated:
		p, err := e.fork.Pool(ctx, hop.Pool)
		if err != nil {
			return nil, common.Hash{}, err
		}
		return p, common.BytesToHash(hop.Pool.Bytes()), nil
	case PoolManaged:
		p, err := e.fork.ManagedPool(ctx, hop.Key)
		if err != nil {
			return nil, common.Hash{}, err
		}
		return p, p.ID, nil
	default:
		return nil, common.Hash{}, fmt.Errorf("unknown pool kind %d", hop.Kind)
	}
}

// SimulateHop runs one swap against the fork and reverts it. The result
// carries both amounts and the gas the swap would have used.
func (e *Executor) SimulateHop(ctx context.Context, hop Hop) (result *SimulationResult, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if hop.Amount == nil || hop.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s hop with non-positive amount", ErrSimulationFailed, hop.Kind)
	}

	pool, id, err := e.load(ctx, hop)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSimulationFailed, err)
	}
	cold := e.fork.touch(id)

	// Take snapshot so the swap never leaks into later hops
	snap := e.fork.Snapshot()
	defer func() {
		if rerr := e.fork.RevertToSnapshot(snap); rerr != nil && err == nil {
			result, err = nil, fmt.Errorf("%w: revert: %w", ErrSimulationFailed, rerr)
		}
	}()

	result = &SimulationResult{GasUsed: e.schedule.HopGas(hop.Kind, cold)}
	if hop.ExactInput {
		out, err := pool.SwapExactIn(hop.TokenIn, hop.TokenOut, hop.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s: %w", ErrSimulationFailed, hop.Kind, id.Hex(), err)
		}
		result.AmountIn = new(big.Int).Set(hop.Amount)
		result.AmountOut = out
	} else {
		in, err := pool.SwapExactOut(hop.TokenIn, hop.TokenOut, hop.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s: %w", ErrSimulationFailed, hop.Kind, id.Hex(), err)
		}
		result.AmountIn = in
		result.AmountOut = new(big.Int).Set(hop.Amount)
	}

	return result, nil
}
