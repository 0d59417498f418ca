// Package ledger tracks the four token slots a quote threads through its
// commands: the opening asset, the asset being consumed, the asset being
// produced and the asset finally delivered to the caller.
package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Recipient sentinels
var (
	MsgSender   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	AddressThis = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

// Slot is one (asset, balance) pair. The zero address means unbound.
type Slot struct {
	Token   common.Address
	Balance *uint256.Int
}

func (s Slot) copy() Slot {
	return Slot{Token: s.Token, Balance: new(uint256.Int).Set(s.Balance)}
}

func emptySlot() Slot {
	return Slot{Balance: new(uint256.Int)}
}

// Ledger is owned by exactly one call frame and is not safe for concurrent use.
type Ledger struct {
	caller  common.Address
	self    common.Address
	subPlan bool

	start Slot
	in    Slot
	out   Slot
	end   Slot

	// opening balance waiting for tokenIn to bind
	pending *uint256.Int
	// tokenIn is still the opening asset, so tokenIn mutations mirror into start
	startLive bool

	cost uint64
}

// New opens a top-level ledger. The opening asset binds on first use.
func New(caller, self common.Address, startBalance *uint256.Int) *Ledger {
	return &Ledger{
		caller:  caller,
		self:    self,
		start:   emptySlot(),
		in:      emptySlot(),
		out:     emptySlot(),
		end:     emptySlot(),
		pending: balanceOrZero(startBalance),
	}
}

// NewSubPlan opens a caller-less ledger seeded with the parent's input. A zero
// startToken leaves the opening asset to bind on first use.
func NewSubPlan(self, startToken common.Address, startBalance *uint256.Int) *Ledger {
	l := New(common.Address{}, self, startBalance)
	l.subPlan = true
	if startToken != (common.Address{}) {
		l.bindIn(startToken)
	}
	return l
}

func balanceOrZero(b *uint256.Int) *uint256.Int {
	if b == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(b)
}

func (l *Ledger) Caller() common.Address { return l.caller }
func (l *Ledger) Self() common.Address   { return l.self }
func (l *Ledger) IsSubPlan() bool        { return l.subPlan }

func (l *Ledger) TokenStart() Slot { return l.start.copy() }
func (l *Ledger) TokenIn() Slot    { return l.in.copy() }
func (l *Ledger) TokenOut() Slot   { return l.out.copy() }
func (l *Ledger) TokenEnd() Slot   { return l.end.copy() }

// Available is what a nested plan may spend: the tokenIn slot, or the
// opening balance while tokenIn is unbound.
func (l *Ledger) Available() Slot {
	if l.in.Token == (common.Address{}) && l.start.Token == (common.Address{}) {
		return Slot{Balance: new(uint256.Int).Set(l.pending)}
	}
	return l.in.copy()
}

// FinalStartBalance is the unconsumed remainder of the opening balance.
func (l *Ledger) FinalStartBalance() *uint256.Int {
	if l.start.Token == (common.Address{}) {
		return new(uint256.Int).Set(l.pending)
	}
	return new(uint256.Int).Set(l.start.Balance)
}

// AmountOut is the balance delivered to the caller so far.
func (l *Ledger) AmountOut() *uint256.Int {
	return new(uint256.Int).Set(l.end.Balance)
}

func (l *Ledger) AddCost(gas uint64) { l.cost += gas }
func (l *Ledger) Cost() uint64       { return l.cost }

func (l *Ledger) bindIn(asset common.Address) {
	l.in.Token = asset
	if l.start.Token == (common.Address{}) {
		l.start.Token = asset
		l.in.Balance = new(uint256.Int).Set(l.pending)
		l.start.Balance = new(uint256.Int).Set(l.pending)
		l.pending.Clear()
		l.startLive = true
	}
}

func (l *Ledger) mirror() {
	if l.startLive {
		l.start.Balance.Set(l.in.Balance)
	}
}

func (l *Ledger) ValidateAsInput(asset common.Address) error {
	if asset == (common.Address{}) {
		return fmt.Errorf("%w: zero address", ErrInvalidTokenIn)
	}
	if asset == l.in.Token {
		return nil
	}
	if l.in.Token == (common.Address{}) {
		l.bindIn(asset)
		return nil
	}
	if asset == l.out.Token {
		if err := l.Advance(); err != nil {
			return err
		}
		return l.ValidateAsInput(asset)
	}
	return fmt.Errorf("%w: %s, slot holds %s", ErrInvalidTokenIn, asset.Hex(), l.in.Token.Hex())
}

func (l *Ledger) ValidateAsOutput(asset common.Address) error {
	if asset == (common.Address{}) {
		return fmt.Errorf("%w: zero address", ErrInvalidTokenOut)
	}
	if asset == l.out.Token {
		return nil
	}
	if l.out.Token == (common.Address{}) {
		l.out.Token = asset
		return nil
	}
	if err := l.Advance(); err != nil {
		return err
	}
	l.out.Token = asset
	return nil
}

// ValidateAsEnd binds the delivered asset; once bound it never changes.
func (l *Ledger) ValidateAsEnd(asset common.Address) error {
	if asset == (common.Address{}) {
		return fmt.Errorf("%w: zero address", ErrInvalidTokenEnd)
	}
	if asset == l.end.Token {
		return nil
	}
	if l.end.Token != (common.Address{}) {
		return fmt.Errorf("%w: %s, slot holds %s", ErrInvalidTokenEnd, asset.Hex(), l.end.Token.Hex())
	}
	if err := l.ValidateAsOutput(asset); err != nil {
		return err
	}
	l.end.Token = asset
	return nil
}

// Advance moves the path forward: tokenOut becomes tokenIn.
func (l *Ledger) Advance() error {
	if l.out.Token == l.end.Token {
		return fmt.Errorf("%w: %s is the end token", ErrInvalidNextToken, l.out.Token.Hex())
	}
	if !l.in.Balance.IsZero() && !(l.subPlan && l.startLive) {
		return fmt.Errorf("%w: %s still holds %s", ErrTokenInNotConsumed, l.in.Token.Hex(), l.in.Balance.Dec())
	}

	l.in = l.out
	l.out = emptySlot()
	l.startLive = false
	return nil
}

func credit(s *Slot, amount *uint256.Int) error {
	sum, overflow := new(uint256.Int).AddOverflow(s.Balance, amount)
	if overflow {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, s.Token.Hex())
	}
	s.Balance = sum
	return nil
}

func debit(s *Slot, amount *uint256.Int) error {
	if s.Balance.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, need %s", ErrBalanceTooLow, s.Token.Hex(), s.Balance.Dec(), amount.Dec())
	}
	s.Balance = new(uint256.Int).Sub(s.Balance, amount)
	return nil
}

func (l *Ledger) CreditIn(asset common.Address, amount *uint256.Int) error {
	if err := l.ValidateAsInput(asset); err != nil {
		return err
	}
	if err := credit(&l.in, amount); err != nil {
		return err
	}
	l.mirror()
	return nil
}

func (l *Ledger) DebitIn(asset common.Address, amount *uint256.Int) error {
	if err := l.ValidateAsInput(asset); err != nil {
		return err
	}
	if err := debit(&l.in, amount); err != nil {
		return err
	}
	l.mirror()
	return nil
}

func (l *Ledger) CreditOut(asset common.Address, amount *uint256.Int) error {
	if err := l.ValidateAsOutput(asset); err != nil {
		return err
	}
	return credit(&l.out, amount)
}

func (l *Ledger) DebitOut(asset common.Address, amount *uint256.Int) error {
	if err := l.ValidateAsOutput(asset); err != nil {
		return err
	}
	return debit(&l.out, amount)
}

func (l *Ledger) CreditEnd(asset common.Address, amount *uint256.Int) error {
	if err := l.ValidateAsEnd(asset); err != nil {
		return err
	}
	return credit(&l.end, amount)
}

// DrainIn returns and zeroes the whole tokenIn balance. A sub-plan may only
// spend literal amounts out of its seed.
func (l *Ledger) DrainIn(asset common.Address) (*uint256.Int, error) {
	if l.subPlan {
		return nil, ErrNotDuringSubPlan
	}
	if err := l.ValidateAsInput(asset); err != nil {
		return nil, err
	}
	amount := l.in.Balance
	l.in.Balance = new(uint256.Int)
	l.mirror()
	return amount, nil
}

func (l *Ledger) DrainOut(asset common.Address) (*uint256.Int, error) {
	if err := l.ValidateAsOutput(asset); err != nil {
		return nil, err
	}
	amount := l.out.Balance
	l.out.Balance = new(uint256.Int)
	return amount, nil
}

// ReplaceIn overwrites the tokenIn balance with what a nested plan left over.
func (l *Ledger) ReplaceIn(asset common.Address, balance *uint256.Int) error {
	if err := l.ValidateAsInput(asset); err != nil {
		return err
	}
	l.in.Balance = new(uint256.Int).Set(balance)
	l.mirror()
	return nil
}

func (l *Ledger) isCaller(recipient common.Address) bool {
	return recipient == MsgSender || (l.caller != (common.Address{}) && recipient == l.caller)
}

func (l *Ledger) isSelf(recipient common.Address) bool {
	return recipient == AddressThis || recipient == l.self
}

// CreditRecipient routes swap output: the caller receives into tokenEnd,
// the engine into tokenOut.
func (l *Ledger) CreditRecipient(asset common.Address, amount *uint256.Int, recipient common.Address) error {
	switch {
	case l.isCaller(recipient):
		return l.CreditEnd(asset, amount)
	case l.isSelf(recipient):
		return l.CreditOut(asset, amount)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidReceiver, recipient.Hex())
	}
}

// Sweep moves the whole tokenOut balance to the caller.
func (l *Ledger) Sweep(asset, recipient common.Address) error {
	if !l.isCaller(recipient) {
		return fmt.Errorf("%w: sweep to %s", ErrInvalidReceiver, recipient.Hex())
	}
	amount, err := l.DrainOut(asset)
	if err != nil {
		return err
	}
	return l.CreditEnd(asset, amount)
}

func (l *Ledger) ValidateEndState() error {
	if !l.out.Balance.IsZero() {
		return fmt.Errorf("%w: %s holds %s", ErrTokenOutNotConsumed, l.out.Token.Hex(), l.out.Balance.Dec())
	}
	if !l.in.Balance.IsZero() && !(l.subPlan && l.startLive) {
		return fmt.Errorf("%w: %s holds %s", ErrTokenInNotConsumed, l.in.Token.Hex(), l.in.Balance.Dec())
	}
	if l.end.Balance.IsZero() {
		return ErrTokenEndNotTransferred
	}
	return nil
}
