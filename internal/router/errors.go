package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fallback-Solutions/universal-router/internal/ledger"
	"github.com/Fallback-Solutions/universal-router/internal/simulator"
)

var (
	ErrLengthMismatch     = errors.New("length mismatch")
	ErrInvalidCommandType = errors.New("invalid command type")
	ErrUnsupportedAction  = errors.New("unsupported action")
	ErrInvalidCaller      = errors.New("invalid caller")
	ErrMaxDepthExceeded   = errors.New("max sub-plan depth exceeded")
	ErrInvalidPath        = errors.New("invalid path")
	ErrInvalidParams      = errors.New("invalid params")
	ErrUnknownFamily      = errors.New("unknown protocol family")
)

// InvalidCommandError carries the opcode nothing is bound to.
type InvalidCommandError struct {
	Command byte
}

func (e *InvalidCommandError) Error() string {
	return fmt.Sprintf("invalid command type 0x%02x", e.Command)
}

func (e *InvalidCommandError) Unwrap() error { return ErrInvalidCommandType }

// UnsupportedActionError carries the batch action a simulation cannot model.
type UnsupportedActionError struct {
	Action byte
}

func (e *UnsupportedActionError) Error() string {
	return fmt.Sprintf("unsupported action 0x%02x (%s)", e.Action, Action(e.Action))
}

func (e *UnsupportedActionError) Unwrap() error { return ErrUnsupportedAction }

// CommandError locates a failure within a plan.
type CommandError struct {
	Index   int
	Command byte
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %d (%s): %v", e.Index, Command(e.Command), e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// checked in order, the first match names the error
var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrLengthMismatch, "LengthMismatch"},
	{ErrInvalidCommandType, "InvalidCommandType"},
	{ErrUnsupportedAction, "UnsupportedAction"},
	{ErrInvalidCaller, "InvalidCaller"},
	{ErrMaxDepthExceeded, "MaxDepthExceeded"},
	{ErrInvalidPath, "InvalidPath"},
	{ErrInvalidParams, "InvalidParams"},
	{ErrUnknownFamily, "UnknownFamily"},
	{simulator.ErrSimulationFailed, "SimulationFailed"},
	{ledger.ErrInvalidTokenIn, "InvalidTokenIn"},
	{ledger.ErrInvalidTokenOut, "InvalidTokenOut"},
	{ledger.ErrInvalidTokenEnd, "InvalidTokenEnd"},
	{ledger.ErrBalanceTooLow, "BalanceTooLow"},
	{ledger.ErrBalanceOverflow, "BalanceOverflow"},
	{ledger.ErrInvalidNextToken, "InvalidNextToken"},
	{ledger.ErrTokenInNotConsumed, "TokenInNotConsumed"},
	{ledger.ErrTokenOutNotConsumed, "TokenOutNotConsumed"},
	{ledger.ErrTokenEndNotTransferred, "TokenEndNotTransferred"},
	{ledger.ErrNotDuringSubPlan, "NotDuringSubPlan"},
	{ledger.ErrInvalidReceiver, "InvalidReceiver"},
	{context.Canceled, "Canceled"},
	{context.DeadlineExceeded, "DeadlineExceeded"},
}

// ErrorKind names the cause of a quote failure, "Internal" if unknown.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "Internal"
}
