package router

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/Fallback-Solutions/universal-router/internal/amm"
	"github.com/Fallback-Solutions/universal-router/internal/eth"
	"github.com/Fallback-Solutions/universal-router/internal/ledger"
	"github.com/Fallback-Solutions/universal-router/internal/simulator"
)

// session is one V4 batch: its own ledger settled against the parent's.
type session struct {
	r       *Router
	c       *call
	parent  *ledger.Ledger
	book    *ledger.Ledger
	manager common.Address
}

// v4Swap runs a batch of actions against the singleton manager. Settles pay
// into the session, takes pay out of it to the parent's recipients.
func (r *Router) v4Swap(c *call, l *ledger.Ledger, input []byte) error {
	cfg, err := r.family(eth.FamilyUniswapV4)
	if err != nil {
		return err
	}
	actions, params, err := decodeBatch(input)
	if err != nil {
		return err
	}

	s := &session{
		r:       r,
		c:       c,
		parent:  l,
		book:    ledger.New(l.Caller(), r.self, new(uint256.Int)),
		manager: cfg.Factory,
	}

	for i, a := range actions {
		if err := c.ctx.Err(); err != nil {
			return err
		}
		if err := s.dispatch(Action(a), params[i]); err != nil {
			return fmt.Errorf("action %d (%s): %w", i, Action(a), err)
		}
	}

	if err := s.book.ValidateEndState(); err != nil {
		return fmt.Errorf("v4 session: %w", err)
	}
	l.AddCost(s.book.Cost() + simulator.GasManagerUnlock)
	return nil
}

func (s *session) dispatch(a Action, data []byte) error {
	switch a {
	case ActionSwapExactInSingle:
		return s.swapExactInSingle(data)
	case ActionSwapExactIn:
		return s.swapExactIn(data)
	case ActionSwapExactOutSingle:
		return s.swapExactOutSingle(data)
	case ActionSwapExactOut:
		return s.swapExactOut(data)
	case ActionSettle:
		return s.settle(data)
	case ActionTake:
		return s.take(data)
	case ActionTakePortion:
		return s.takePortion(data)
	default:
		return &UnsupportedActionError{Action: byte(a)}
	}
}

func (s *session) hop(key amm.PoolKey, tokenIn, tokenOut common.Address, exactIn bool, amount *big.Int) (*simulator.SimulationResult, error) {
	return s.r.simulate(s.c, s.book, simulator.Hop{
		Kind:       simulator.PoolManaged,
		Pool:       s.manager,
		Key:        key,
		TokenIn:    tokenIn,
		TokenOut:   tokenOut,
		ExactInput: exactIn,
		Amount:     amount,
	})
}

// spend takes an exact-input amount from the session; zero spends it all.
func (s *session) spend(token common.Address, amount *big.Int) (*big.Int, error) {
	if amount.Sign() == 0 {
		v, err := s.book.DrainIn(token)
		if err != nil {
			return nil, err
		}
		return v.ToBig(), nil
	}
	v, err := toU256(amount)
	if err != nil {
		return nil, err
	}
	if err := s.book.DebitIn(token, v); err != nil {
		return nil, err
	}
	return amount, nil
}

func (s *session) receive(token common.Address, amount *big.Int) error {
	v, err := toU256(amount)
	if err != nil {
		return err
	}
	return s.book.CreditOut(token, v)
}

func (s *session) pay(token common.Address, amount *big.Int) error {
	v, err := toU256(amount)
	if err != nil {
		return err
	}
	return s.book.DebitIn(token, v)
}

func singleSides(p *v4SingleParams) (tokenIn, tokenOut common.Address) {
	if p.ZeroForOne {
		return p.Currency0, p.Currency1
	}
	return p.Currency1, p.Currency0
}

func (s *session) swapExactInSingle(data []byte) error {
	p, err := decodeV4Single(data)
	if err != nil {
		return err
	}
	tokenIn, tokenOut := singleSides(p)
	key := amm.NewPoolKey(p.Currency0, p.Currency1, p.Fee, p.TickSpacing, p.Hooks)

	amountIn, err := s.spend(tokenIn, p.Amount)
	if err != nil {
		return err
	}
	res, err := s.hop(key, tokenIn, tokenOut, true, amountIn)
	if err != nil {
		return err
	}
	return s.receive(tokenOut, res.AmountOut)
}

func (s *session) swapExactOutSingle(data []byte) error {
	p, err := decodeV4Single(data)
	if err != nil {
		return err
	}
	if p.Amount.Sign() == 0 {
		return &UnsupportedActionError{Action: byte(ActionSwapExactOutSingle)}
	}
	tokenIn, tokenOut := singleSides(p)
	key := amm.NewPoolKey(p.Currency0, p.Currency1, p.Fee, p.TickSpacing, p.Hooks)

	if err := s.receive(tokenOut, p.Amount); err != nil {
		return err
	}
	res, err := s.hop(key, tokenIn, tokenOut, false, p.Amount)
	if err != nil {
		return err
	}
	return s.pay(tokenIn, res.AmountIn)
}

// swapExactIn walks the path forward from Currency; each path key names the
// hop's output.
func (s *session) swapExactIn(data []byte) error {
	p, err := decodeV4Multi(data)
	if err != nil {
		return err
	}

	amount, err := s.spend(p.Currency, p.Amount)
	if err != nil {
		return err
	}

	tokenIn := p.Currency
	for _, pk := range p.Path {
		key := amm.NewPoolKey(tokenIn, pk.Currency, pk.Fee, pk.TickSpacing, pk.Hooks)
		res, err := s.hop(key, tokenIn, pk.Currency, true, amount)
		if err != nil {
			return err
		}
		tokenIn, amount = pk.Currency, res.AmountOut
	}
	return s.receive(tokenIn, amount)
}

// swapExactOut walks the path backward from Currency, the output; each path
// key names the hop's input.
func (s *session) swapExactOut(data []byte) error {
	p, err := decodeV4Multi(data)
	if err != nil {
		return err
	}
	if p.Amount.Sign() == 0 {
		return &UnsupportedActionError{Action: byte(ActionSwapExactOut)}
	}

	if err := s.receive(p.Currency, p.Amount); err != nil {
		return err
	}

	tokenOut, amount := p.Currency, p.Amount
	for i := len(p.Path) - 1; i >= 0; i-- {
		pk := p.Path[i]
		key := amm.NewPoolKey(pk.Currency, tokenOut, pk.Fee, pk.TickSpacing, pk.Hooks)
		res, err := s.hop(key, pk.Currency, tokenOut, false, amount)
		if err != nil {
			return err
		}
		tokenOut, amount = pk.Currency, res.AmountIn
	}
	return s.pay(tokenOut, amount)
}

// settle funds the session. An engine payer draws on the parent's input,
// a user payer funds the session directly.
func (s *session) settle(data []byte) error {
	p, err := decodeV4Settle(data)
	if err != nil {
		return err
	}
	if p.Amount.Sign() == 0 {
		return &UnsupportedActionError{Action: byte(ActionSettle)}
	}

	var amount *uint256.Int
	switch {
	case p.PayerIsUser:
		if p.Amount.Cmp(ContractBalance) == 0 {
			return fmt.Errorf("%w: contract balance with user payer", ErrInvalidParams)
		}
		if amount, err = toU256(p.Amount); err != nil {
			return err
		}
	default:
		if amount, err = takeInput(s.parent, p.Currency, p.Amount); err != nil {
			return err
		}
	}

	return s.book.CreditIn(p.Currency, amount)
}

func (s *session) takeAmount(currency common.Address, amount *uint256.Int) (*uint256.Int, error) {
	if amount.IsZero() {
		return s.book.DrainOut(currency)
	}
	if err := s.book.DebitOut(currency, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

func (s *session) deliver(currency, recipient common.Address, amount *uint256.Int) error {
	if err := s.book.CreditEnd(currency, amount); err != nil {
		return err
	}
	return s.parent.CreditRecipient(currency, amount, recipient)
}

func (s *session) take(data []byte) error {
	p, err := decodeV4Take(v4TakeArgs, data)
	if err != nil {
		return err
	}
	want, err := toU256(p.Amount)
	if err != nil {
		return err
	}
	amount, err := s.takeAmount(p.Currency, want)
	if err != nil {
		return err
	}
	return s.deliver(p.Currency, p.Recipient, amount)
}

func (s *session) takePortion(data []byte) error {
	p, err := decodeV4Take(v4TakePortionArgs, data)
	if err != nil {
		return err
	}
	if p.Amount.Cmp(big.NewInt(maxBips)) > 0 {
		return fmt.Errorf("%w: %s bips", ErrInvalidParams, p.Amount)
	}
	if err := s.book.ValidateAsOutput(p.Currency); err != nil {
		return err
	}

	bips := uint256.NewInt(p.Amount.Uint64())
	amount, _ := new(uint256.Int).MulDivOverflow(s.book.TokenOut().Balance, bips, uint256.NewInt(maxBips))
	if err := s.book.DebitOut(p.Currency, amount); err != nil {
		return err
	}
	return s.deliver(p.Currency, p.Recipient, amount)
}
