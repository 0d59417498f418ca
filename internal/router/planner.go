package router

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Fallback-Solutions/universal-router/internal/amm"
)

// Planner builds the (commands, inputs) pair Quote consumes. Encoding errors
// are held until Plan so calls can be chained.
type Planner struct {
	commands []byte
	inputs   [][]byte
	err      error
}

func NewPlanner() *Planner {
	return &Planner{}
}

func (p *Planner) add(cmd Command, args abi.Arguments, values ...interface{}) *Planner {
	if p.err != nil {
		return p
	}
	input, err := args.Pack(values...)
	if err != nil {
		p.err = fmt.Errorf("encode %s: %w", cmd, err)
		return p
	}
	return p.Raw(cmd, input)
}

// Raw appends an opcode with a pre-encoded input.
func (p *Planner) Raw(cmd Command, input []byte) *Planner {
	p.commands = append(p.commands, byte(cmd))
	p.inputs = append(p.inputs, input)
	return p
}

func (p *Planner) Sweep(token, recipient common.Address) *Planner {
	return p.add(Sweep, sweepArgs, token, recipient)
}

// SwapV2 appends a constant-product swap; cmd selects family and direction.
func (p *Planner) SwapV2(cmd Command, recipient common.Address, amount *big.Int, path []common.Address) *Planner {
	return p.add(cmd, v2Args, recipient, amount, path)
}

// SwapV3 appends a concentrated swap over a packed path, see EncodePath.
func (p *Planner) SwapV3(cmd Command, recipient common.Address, amount *big.Int, path []byte) *Planner {
	return p.add(cmd, v3Args, recipient, amount, path)
}

func (p *Planner) V4Swap(b *V4Batch) *Planner {
	if p.err != nil {
		return p
	}
	input, err := b.Encode()
	if err != nil {
		p.err = err
		return p
	}
	return p.Raw(V4Swap, input)
}

func (p *Planner) SubPlan(sub *Planner) *Planner {
	if p.err != nil {
		return p
	}
	commands, inputs, err := sub.Plan()
	if err != nil {
		p.err = fmt.Errorf("sub-plan: %w", err)
		return p
	}
	return p.add(ExecuteSubPlan, batchArgs, commands, inputs)
}

func (p *Planner) Plan() ([]byte, [][]byte, error) {
	if p.err != nil {
		return nil, nil, p.err
	}
	return p.commands, p.inputs, nil
}

// V4Batch builds the action list of a single V4Swap command.
type V4Batch struct {
	actions []byte
	params  [][]byte
	err     error
}

func NewV4Batch() *V4Batch {
	return &V4Batch{}
}

func (b *V4Batch) add(a Action, args abi.Arguments, values ...interface{}) *V4Batch {
	if b.err != nil {
		return b
	}
	param, err := args.Pack(values...)
	if err != nil {
		b.err = fmt.Errorf("encode %s: %w", a, err)
		return b
	}
	return b.Raw(a, param)
}

func (b *V4Batch) Raw(a Action, param []byte) *V4Batch {
	b.actions = append(b.actions, byte(a))
	b.params = append(b.params, param)
	return b
}

func (b *V4Batch) single(a Action, key amm.PoolKey, zeroForOne bool, amount *big.Int) *V4Batch {
	return b.add(a, v4SingleArgs,
		key.Currency0, key.Currency1,
		big.NewInt(int64(key.Fee)), big.NewInt(int64(key.TickSpacing)),
		key.Hooks, zeroForOne, amount)
}

func (b *V4Batch) multi(a Action, currency common.Address, path []V4PathKey, amount *big.Int) *V4Batch {
	currencies := make([]common.Address, len(path))
	fees := make([]*big.Int, len(path))
	tickSpacings := make([]*big.Int, len(path))
	hooks := make([]common.Address, len(path))
	for i, pk := range path {
		currencies[i] = pk.Currency
		fees[i] = big.NewInt(int64(pk.Fee))
		tickSpacings[i] = big.NewInt(int64(pk.TickSpacing))
		hooks[i] = pk.Hooks
	}
	return b.add(a, v4MultiArgs, currency, currencies, fees, tickSpacings, hooks, amount)
}

// SwapExactInSingle spends amount; zero spends the session's whole input.
func (b *V4Batch) SwapExactInSingle(key amm.PoolKey, zeroForOne bool, amount *big.Int) *V4Batch {
	return b.single(ActionSwapExactInSingle, key, zeroForOne, amount)
}

func (b *V4Batch) SwapExactOutSingle(key amm.PoolKey, zeroForOne bool, amount *big.Int) *V4Batch {
	return b.single(ActionSwapExactOutSingle, key, zeroForOne, amount)
}

func (b *V4Batch) SwapExactIn(currencyIn common.Address, path []V4PathKey, amount *big.Int) *V4Batch {
	return b.multi(ActionSwapExactIn, currencyIn, path, amount)
}

// SwapExactOut takes the output currency; path runs input to output with
// each key naming the hop's input.
func (b *V4Batch) SwapExactOut(currencyOut common.Address, path []V4PathKey, amount *big.Int) *V4Batch {
	return b.multi(ActionSwapExactOut, currencyOut, path, amount)
}

func (b *V4Batch) Settle(currency common.Address, amount *big.Int, payerIsUser bool) *V4Batch {
	return b.add(ActionSettle, v4SettleArgs, currency, amount, payerIsUser)
}

func (b *V4Batch) Take(currency, recipient common.Address, amount *big.Int) *V4Batch {
	return b.add(ActionTake, v4TakeArgs, currency, recipient, amount)
}

func (b *V4Batch) TakePortion(currency, recipient common.Address, bips uint16) *V4Batch {
	return b.add(ActionTakePortion, v4TakePortionArgs, currency, recipient, big.NewInt(int64(bips)))
}

func (b *V4Batch) Encode() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	input, err := batchArgs.Pack(b.actions, b.params)
	if err != nil {
		return nil, fmt.Errorf("encode v4 batch: %w", err)
	}
	return input, nil
}
