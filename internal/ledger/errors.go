package ledger

import "errors"

var (
	ErrInvalidTokenIn         = errors.New("invalid token in")
	ErrInvalidTokenOut        = errors.New("invalid token out")
	ErrInvalidTokenEnd        = errors.New("invalid token end")
	ErrBalanceTooLow          = errors.New("balance too low")
	ErrBalanceOverflow        = errors.New("balance overflow")
	ErrInvalidNextToken       = errors.New("invalid next token")
	ErrTokenInNotConsumed     = errors.New("token in not consumed")
	ErrTokenOutNotConsumed    = errors.New("token out not consumed")
	ErrTokenEndNotTransferred = errors.New("token end not transferred")
	ErrNotDuringSubPlan       = errors.New("not allowed during sub-plan")
	ErrInvalidReceiver        = errors.New("invalid receiver")
)
