package router

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/Fallback-Solutions/universal-router/internal/ledger"
)

var (
	// ContractBalance asks a command to spend the whole tokenIn balance
	ContractBalance = new(big.Int).Lsh(big.NewInt(1), 255)
)

const maxBips = 10_000

var (
	addressT    = mustType("address")
	addressArrT = mustType("address[]")
	uint256T    = mustType("uint256")
	uint24T     = mustType("uint24")
	uint24ArrT  = mustType("uint24[]")
	int24T      = mustType("int24")
	int24ArrT   = mustType("int24[]")
	boolT       = mustType("bool")
	bytesT      = mustType("bytes")
	bytesArrT   = mustType("bytes[]")

	sweepArgs = abi.Arguments{{Name: "token", Type: addressT}, {Name: "recipient", Type: addressT}}
	v2Args    = abi.Arguments{{Name: "recipient", Type: addressT}, {Name: "amount", Type: uint256T}, {Name: "path", Type: addressArrT}}
	v3Args    = abi.Arguments{{Name: "recipient", Type: addressT}, {Name: "amount", Type: uint256T}, {Name: "path", Type: bytesT}}

	// (bytes, bytes[]) carries both V4 batches and sub-plans
	batchArgs = abi.Arguments{{Name: "commands", Type: bytesT}, {Name: "inputs", Type: bytesArrT}}

	v4SingleArgs = abi.Arguments{
		{Name: "currency0", Type: addressT},
		{Name: "currency1", Type: addressT},
		{Name: "fee", Type: uint24T},
		{Name: "tickSpacing", Type: int24T},
		{Name: "hooks", Type: addressT},
		{Name: "zeroForOne", Type: boolT},
		{Name: "amount", Type: uint256T},
	}
	v4MultiArgs = abi.Arguments{
		{Name: "currency", Type: addressT},
		{Name: "currencies", Type: addressArrT},
		{Name: "fees", Type: uint24ArrT},
		{Name: "tickSpacings", Type: int24ArrT},
		{Name: "hooks", Type: addressArrT},
		{Name: "amount", Type: uint256T},
	}
	v4SettleArgs      = abi.Arguments{{Name: "currency", Type: addressT}, {Name: "amount", Type: uint256T}, {Name: "payerIsUser", Type: boolT}}
	v4TakeArgs        = abi.Arguments{{Name: "currency", Type: addressT}, {Name: "recipient", Type: addressT}, {Name: "amount", Type: uint256T}}
	v4TakePortionArgs = abi.Arguments{{Name: "currency", Type: addressT}, {Name: "recipient", Type: addressT}, {Name: "bips", Type: uint256T}}
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("abi type %s: %v", t, err))
	}
	return typ
}

func unpack(args abi.Arguments, data []byte) ([]interface{}, error) {
	values, err := args.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if len(values) != len(args) {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrInvalidParams, len(values), len(args))
	}
	return values, nil
}

func as[T any](v interface{}, field string) (T, error) {
	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s has type %T", ErrInvalidParams, field, v)
	}
	return out, nil
}

type sweepParams struct {
	Token     common.Address
	Recipient common.Address
}

func decodeSweep(data []byte) (*sweepParams, error) {
	v, err := unpack(sweepArgs, data)
	if err != nil {
		return nil, err
	}
	token, err := as[common.Address](v[0], "token")
	if err != nil {
		return nil, err
	}
	recipient, err := as[common.Address](v[1], "recipient")
	if err != nil {
		return nil, err
	}
	return &sweepParams{Token: token, Recipient: recipient}, nil
}

type v2Params struct {
	Recipient common.Address
	Amount    *big.Int
	Path      []common.Address
}

func decodeV2(data []byte) (*v2Params, error) {
	v, err := unpack(v2Args, data)
	if err != nil {
		return nil, err
	}
	p := &v2Params{}
	if p.Recipient, err = as[common.Address](v[0], "recipient"); err != nil {
		return nil, err
	}
	if p.Amount, err = as[*big.Int](v[1], "amount"); err != nil {
		return nil, err
	}
	if p.Path, err = as[[]common.Address](v[2], "path"); err != nil {
		return nil, err
	}
	if len(p.Path) < 2 {
		return nil, fmt.Errorf("%w: %d tokens", ErrInvalidPath, len(p.Path))
	}
	return p, nil
}

type v3Params struct {
	Recipient common.Address
	Amount    *big.Int
	Tokens    []common.Address
	Fees      []uint32
}

func decodeV3(data []byte) (*v3Params, error) {
	v, err := unpack(v3Args, data)
	if err != nil {
		return nil, err
	}
	p := &v3Params{}
	if p.Recipient, err = as[common.Address](v[0], "recipient"); err != nil {
		return nil, err
	}
	if p.Amount, err = as[*big.Int](v[1], "amount"); err != nil {
		return nil, err
	}
	path, err := as[[]byte](v[2], "path")
	if err != nil {
		return nil, err
	}
	if p.Tokens, p.Fees, err = DecodePath(path); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeBatch(data []byte) ([]byte, [][]byte, error) {
	v, err := unpack(batchArgs, data)
	if err != nil {
		return nil, nil, err
	}
	head, err := as[[]byte](v[0], "commands")
	if err != nil {
		return nil, nil, err
	}
	inputs, err := as[[][]byte](v[1], "inputs")
	if err != nil {
		return nil, nil, err
	}
	if len(head) != len(inputs) {
		return nil, nil, fmt.Errorf("%w: %d steps, %d inputs", ErrLengthMismatch, len(head), len(inputs))
	}
	return head, inputs, nil
}

type v4SingleParams struct {
	Currency0   common.Address
	Currency1   common.Address
	Fee         uint32
	TickSpacing int32
	Hooks       common.Address
	ZeroForOne  bool
	Amount      *big.Int
}

func fee24(b *big.Int) uint32 {
	return uint32(b.Uint64())
}

func tick24(b *big.Int) int32 {
	return int32(b.Int64())
}

func decodeV4Single(data []byte) (*v4SingleParams, error) {
	v, err := unpack(v4SingleArgs, data)
	if err != nil {
		return nil, err
	}
	p := &v4SingleParams{}
	if p.Currency0, err = as[common.Address](v[0], "currency0"); err != nil {
		return nil, err
	}
	if p.Currency1, err = as[common.Address](v[1], "currency1"); err != nil {
		return nil, err
	}
	fee, err := as[*big.Int](v[2], "fee")
	if err != nil {
		return nil, err
	}
	tickSpacing, err := as[*big.Int](v[3], "tickSpacing")
	if err != nil {
		return nil, err
	}
	if p.Hooks, err = as[common.Address](v[4], "hooks"); err != nil {
		return nil, err
	}
	if p.ZeroForOne, err = as[bool](v[5], "zeroForOne"); err != nil {
		return nil, err
	}
	if p.Amount, err = as[*big.Int](v[6], "amount"); err != nil {
		return nil, err
	}
	p.Fee, p.TickSpacing = fee24(fee), tick24(tickSpacing)
	return p, nil
}

// V4PathKey is one hop of a multi-hop V4 swap. Currency is the far side of
// the hop: the output for exact input, the input for exact output.
type V4PathKey struct {
	Currency    common.Address
	Fee         uint32
	TickSpacing int32
	Hooks       common.Address
}

type v4MultiParams struct {
	Currency common.Address
	Path     []V4PathKey
	Amount   *big.Int
}

func decodeV4Multi(data []byte) (*v4MultiParams, error) {
	v, err := unpack(v4MultiArgs, data)
	if err != nil {
		return nil, err
	}
	p := &v4MultiParams{}
	if p.Currency, err = as[common.Address](v[0], "currency"); err != nil {
		return nil, err
	}
	currencies, err := as[[]common.Address](v[1], "currencies")
	if err != nil {
		return nil, err
	}
	fees, err := as[[]*big.Int](v[2], "fees")
	if err != nil {
		return nil, err
	}
	tickSpacings, err := as[[]*big.Int](v[3], "tickSpacings")
	if err != nil {
		return nil, err
	}
	hooks, err := as[[]common.Address](v[4], "hooks")
	if err != nil {
		return nil, err
	}
	if p.Amount, err = as[*big.Int](v[5], "amount"); err != nil {
		return nil, err
	}

	n := len(currencies)
	if n == 0 || len(fees) != n || len(tickSpacings) != n || len(hooks) != n {
		return nil, fmt.Errorf("%w: %d currencies, %d fees, %d tick spacings, %d hooks",
			ErrInvalidPath, n, len(fees), len(tickSpacings), len(hooks))
	}
	p.Path = make([]V4PathKey, n)
	for i := range currencies {
		p.Path[i] = V4PathKey{
			Currency:    currencies[i],
			Fee:         fee24(fees[i]),
			TickSpacing: tick24(tickSpacings[i]),
			Hooks:       hooks[i],
		}
	}
	return p, nil
}

type v4SettleParams struct {
	Currency    common.Address
	Amount      *big.Int
	PayerIsUser bool
}

func decodeV4Settle(data []byte) (*v4SettleParams, error) {
	v, err := unpack(v4SettleArgs, data)
	if err != nil {
		return nil, err
	}
	p := &v4SettleParams{}
	if p.Currency, err = as[common.Address](v[0], "currency"); err != nil {
		return nil, err
	}
	if p.Amount, err = as[*big.Int](v[1], "amount"); err != nil {
		return nil, err
	}
	if p.PayerIsUser, err = as[bool](v[2], "payerIsUser"); err != nil {
		return nil, err
	}
	return p, nil
}

// take and take-portion share a layout; Amount holds bips for the latter
type v4TakeParams struct {
	Currency  common.Address
	Recipient common.Address
	Amount    *big.Int
}

func decodeV4Take(args abi.Arguments, data []byte) (*v4TakeParams, error) {
	v, err := unpack(args, data)
	if err != nil {
		return nil, err
	}
	p := &v4TakeParams{}
	if p.Currency, err = as[common.Address](v[0], "currency"); err != nil {
		return nil, err
	}
	if p.Recipient, err = as[common.Address](v[1], "recipient"); err != nil {
		return nil, err
	}
	if p.Amount, err = as[*big.Int](v[2], "amount"); err != nil {
		return nil, err
	}
	return p, nil
}

// toU256 moves a pool amount onto the ledger
func toU256(b *big.Int) (*uint256.Int, error) {
	v, overflow := uint256.FromBig(b)
	if overflow || b.Sign() < 0 {
		return nil, fmt.Errorf("%w: amount %s", ledger.ErrBalanceOverflow, b)
	}
	return v, nil
}
