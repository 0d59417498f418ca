// Package router quotes swap plans: a byte string of commands, one encoded
// input per command, dispatched in order against simulated pool state.
package router

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"github.com/Fallback-Solutions/universal-router/internal/amm"
	"github.com/Fallback-Solutions/universal-router/internal/eth"
	"github.com/Fallback-Solutions/universal-router/internal/ledger"
	"github.com/Fallback-Solutions/universal-router/internal/logging"
	"github.com/Fallback-Solutions/universal-router/internal/simulator"
)

const (
	DefaultMaxDepth        = 8
	defaultDeriveCacheSize = 4096
)

// Result is what a successful quote reports back to the caller.
type Result struct {
	FinalStartBalance *uint256.Int
	AmountOut         *uint256.Int
	CostEstimate      uint64
	TokenStart        common.Address
	TokenEnd          common.Address
}

// call is the per-quote state shared by every frame of one call tree
type call struct {
	ctx   context.Context
	exec  *simulator.Executor
	depth int
}

type handler func(c *call, l *ledger.Ledger, input []byte) error

// Router is safe for concurrent Quote calls.
type Router struct {
	self     common.Address
	source   amm.Source
	deriver  *amm.Deriver
	families map[eth.Family]eth.ProtocolConfig
	maxDepth int
	schedule simulator.GasSchedule
	logger   *logrus.Logger

	handlers map[Command]handler
}

type Option func(*Router)

func WithMaxDepth(depth int) Option {
	return func(r *Router) { r.maxDepth = depth }
}

func WithLogger(logger *logrus.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

// WithFamilies replaces the protocol deployments pools are derived from.
func WithFamilies(families map[eth.Family]eth.ProtocolConfig) Option {
	return func(r *Router) { r.families = families }
}

func WithDeriver(d *amm.Deriver) Option {
	return func(r *Router) { r.deriver = d }
}

func WithGasSchedule(s simulator.GasSchedule) Option {
	return func(r *Router) { r.schedule = s }
}

// New builds a router quoting as the engine identity self against source.
func New(self common.Address, source amm.Source, opts ...Option) (*Router, error) {
	if source == nil {
		return nil, fmt.Errorf("pool source is nil")
	}

	r := &Router{
		self:     self,
		source:   source,
		families: eth.KnownProtocols,
		maxDepth: DefaultMaxDepth,
		schedule: simulator.DefaultGasSchedule,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.maxDepth < 1 {
		return nil, fmt.Errorf("max depth %d: must be positive", r.maxDepth)
	}
	if r.deriver == nil {
		d, err := amm.NewDeriver(defaultDeriveCacheSize)
		if err != nil {
			return nil, fmt.Errorf("create deriver: %w", err)
		}
		r.deriver = d
	}

	r.handlers = map[Command]handler{
		Sweep:          r.sweep,
		V2SwapExactIn:  r.v2ExactIn(eth.FamilyUniswapV2),
		V2SwapExactOut: r.v2ExactOut(eth.FamilyUniswapV2),
		V3SwapExactIn:  r.v3ExactIn(eth.FamilyUniswapV3),
		V3SwapExactOut: r.v3ExactOut(eth.FamilyUniswapV3),
		V4Swap:         r.v4Swap,
		ExecuteSubPlan: r.subPlan,

		PancakeV3SwapExactIn:  r.v3ExactIn(eth.FamilyPancakeV3),
		PancakeV3SwapExactOut: r.v3ExactOut(eth.FamilyPancakeV3),
		SushiV3SwapExactIn:    r.v3ExactIn(eth.FamilySushiV3),
		SushiV3SwapExactOut:   r.v3ExactOut(eth.FamilySushiV3),
		SushiV2SwapExactIn:    r.v2ExactIn(eth.FamilySushiV2),
		SushiV2SwapExactOut:   r.v2ExactOut(eth.FamilySushiV2),
	}

	return r, nil
}

func (r *Router) Self() common.Address { return r.self }

// Families lists the deployments this router derives pools from.
func (r *Router) Families() map[eth.Family]eth.ProtocolConfig {
	out := make(map[eth.Family]eth.ProtocolConfig, len(r.families))
	for f, cfg := range r.families {
		out[f] = cfg
	}
	return out
}

// Supports reports whether an opcode has a handler.
func (r *Router) Supports(cmd Command) bool {
	_, ok := r.handlers[cmd]
	return ok
}

// Quote runs the plan against a fresh view of pool state. Nothing is
// committed: the same plan quoted twice against the same source returns the
// same result.
func (r *Router) Quote(ctx context.Context, commands []byte, inputs [][]byte, caller common.Address, startBalance *uint256.Int) (*Result, error) {
	if caller == (common.Address{}) {
		return nil, ErrInvalidCaller
	}
	if len(commands) != len(inputs) {
		return nil, fmt.Errorf("%w: %d commands, %d inputs", ErrLengthMismatch, len(commands), len(inputs))
	}

	fork := simulator.NewStateFork(r.source)
	c := &call{
		ctx:  ctx,
		exec: simulator.NewExecutor(fork).WithSchedule(r.schedule),
	}

	l := ledger.New(caller, r.self, startBalance)
	if err := r.execute(c, l, commands, inputs); err != nil {
		return nil, err
	}

	res := &Result{
		FinalStartBalance: l.FinalStartBalance(),
		AmountOut:         l.AmountOut(),
		CostEstimate:      l.Cost(),
		TokenStart:        l.TokenStart().Token,
		TokenEnd:          l.TokenEnd().Token,
	}

	r.logger.WithFields(logrus.Fields{
		"commands":  len(commands),
		"tokenEnd":  res.TokenEnd.Hex(),
		"amountOut": res.AmountOut.Dec(),
		"cost":      res.CostEstimate,
	}).Debug("quote complete")

	return res, nil
}

// execute dispatches every command in order then checks the ledger settled.
func (r *Router) execute(c *call, l *ledger.Ledger, commands []byte, inputs [][]byte) error {
	for i, op := range commands {
		if err := c.ctx.Err(); err != nil {
			return err
		}

		cmd := Command(op)
		h, ok := r.handlers[cmd]
		if !ok {
			return &CommandError{Index: i, Command: op, Err: &InvalidCommandError{Command: op}}
		}

		r.logger.WithFields(logrus.Fields{
			"index":   i,
			"command": cmd.String(),
			"depth":   c.depth,
		}).Debug("dispatch")

		if err := h(c, l, inputs[i]); err != nil {
			return &CommandError{Index: i, Command: op, Err: err}
		}
	}

	return l.ValidateEndState()
}

func (r *Router) family(f eth.Family) (eth.ProtocolConfig, error) {
	cfg, ok := r.families[f]
	if !ok {
		return eth.ProtocolConfig{}, fmt.Errorf("%w: %s", ErrUnknownFamily, f)
	}
	return cfg, nil
}

func (r *Router) sweep(_ *call, l *ledger.Ledger, input []byte) error {
	p, err := decodeSweep(input)
	if err != nil {
		return err
	}
	return l.Sweep(p.Token, p.Recipient)
}

// simulate runs one hop and charges its gas to l.
func (r *Router) simulate(c *call, l *ledger.Ledger, hop simulator.Hop) (*simulator.SimulationResult, error) {
	res, err := c.exec.SimulateHop(c.ctx, hop)
	if err != nil {
		return nil, err
	}
	l.AddCost(res.GasUsed)
	return res, nil
}

// takeInput pulls an exact-input amount off tokenIn.
func takeInput(l *ledger.Ledger, token common.Address, amount *big.Int) (*uint256.Int, error) {
	if amount.Cmp(ContractBalance) == 0 {
		return l.DrainIn(token)
	}
	v, err := toU256(amount)
	if err != nil {
		return nil, err
	}
	if err := l.DebitIn(token, v); err != nil {
		return nil, err
	}
	return v, nil
}
