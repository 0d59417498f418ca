package router

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fallback-Solutions/universal-router/internal/amm"
	"github.com/Fallback-Solutions/universal-router/internal/ledger"
	"github.com/Fallback-Solutions/universal-router/internal/simulator"
)

// a zero V4 amount means whatever the session holds
var openDelta = new(big.Int)

func managedHop(t *testing.T, src amm.Source, exactIn bool, amount int64) *simulator.SimulationResult {
	t.Helper()
	tokenIn, tokenOut := v4Key.Currency0, v4Key.Currency1
	return simulateFresh(t, src, simulator.Hop{
		Kind: simulator.PoolManaged, Key: v4Key,
		TokenIn: tokenIn, TokenOut: tokenOut, ExactInput: exactIn, Amount: big.NewInt(amount),
	})
}

func TestV4_SettleSwapTake(t *testing.T) {
	r, src := newTestRouter(t)

	batch := NewV4Batch().
		Settle(tokenA, ContractBalance, false).
		SwapExactInSingle(v4Key, true, openDelta).
		Take(tokenB, ledger.MsgSender, openDelta)
	res, err := quote(t, r, NewPlanner().V4Swap(batch), 1000)
	require.NoError(t, err)

	want := managedHop(t, src, true, 1000)
	assert.Equal(t, want.AmountOut.String(), res.AmountOut.Dec())
	assert.Equal(t, want.GasUsed+simulator.GasManagerUnlock, res.CostEstimate)
	assert.True(t, res.FinalStartBalance.IsZero())
	assert.Equal(t, tokenB, res.TokenEnd)
}

func TestV4_ExactOutSingle(t *testing.T) {
	r, src := newTestRouter(t)
	want := managedHop(t, src, false, 700)

	batch := NewV4Batch().
		Settle(tokenA, want.AmountIn, false).
		SwapExactOutSingle(v4Key, true, big.NewInt(700)).
		Take(tokenB, ledger.MsgSender, big.NewInt(700))
	res, err := quote(t, r, NewPlanner().V4Swap(batch), want.AmountIn.Uint64())
	require.NoError(t, err)

	assert.Equal(t, "700", res.AmountOut.Dec())
	assert.True(t, res.FinalStartBalance.IsZero())
}

func TestV4_MultiHopMatchesSingle(t *testing.T) {
	r, src := newTestRouter(t)
	want := managedHop(t, src, true, 1000)

	path := []V4PathKey{{Currency: tokenB, Fee: v4Key.Fee, TickSpacing: v4Key.TickSpacing}}
	batch := NewV4Batch().
		Settle(tokenA, big.NewInt(1000), false).
		SwapExactIn(tokenA, path, big.NewInt(1000)).
		Take(tokenB, ledger.MsgSender, openDelta)
	res, err := quote(t, r, NewPlanner().V4Swap(batch), 1000)
	require.NoError(t, err)
	assert.Equal(t, want.AmountOut.String(), res.AmountOut.Dec())

	exact := managedHop(t, src, false, 500)
	inPath := []V4PathKey{{Currency: tokenA, Fee: v4Key.Fee, TickSpacing: v4Key.TickSpacing}}
	batch = NewV4Batch().
		Settle(tokenA, exact.AmountIn, false).
		SwapExactOut(tokenB, inPath, big.NewInt(500)).
		Take(tokenB, ledger.MsgSender, openDelta)
	res, err = quote(t, r, NewPlanner().V4Swap(batch), exact.AmountIn.Uint64())
	require.NoError(t, err)
	assert.Equal(t, "500", res.AmountOut.Dec())
}

func TestV4_TakePortion(t *testing.T) {
	r, src := newTestRouter(t)
	want := managedHop(t, src, true, 1000)

	batch := NewV4Batch().
		Settle(tokenA, ContractBalance, false).
		SwapExactInSingle(v4Key, true, openDelta).
		TakePortion(tokenB, ledger.MsgSender, 2500).
		Take(tokenB, ledger.MsgSender, openDelta)
	res, err := quote(t, r, NewPlanner().V4Swap(batch), 1000)
	require.NoError(t, err)

	// both takes land with the caller
	assert.Equal(t, want.AmountOut.String(), res.AmountOut.Dec())
}

func TestV4_UserPaidSettle(t *testing.T) {
	r, src := newTestRouter(t)
	want := managedHop(t, src, true, 1000)

	// the caller funds the session directly, the engine's own balance is untouched
	batch := NewV4Batch().
		Settle(tokenA, big.NewInt(1000), true).
		SwapExactInSingle(v4Key, true, openDelta).
		Take(tokenB, ledger.MsgSender, openDelta)
	res, err := quote(t, r, NewPlanner().V4Swap(batch), 0)
	require.NoError(t, err)
	assert.Equal(t, want.AmountOut.String(), res.AmountOut.Dec())
}

func TestV4_Failures(t *testing.T) {
	tests := []struct {
		name   string
		batch  *V4Batch
		want   error
		action byte
	}{
		{
			name:   "settle full open debt",
			batch:  NewV4Batch().Settle(tokenA, openDelta, false),
			want:   ErrUnsupportedAction,
			action: byte(ActionSettle),
		},
		{
			name: "exact out of open delta",
			batch: NewV4Batch().
				Settle(tokenA, big.NewInt(1000), false).
				SwapExactOutSingle(v4Key, true, openDelta),
			want:   ErrUnsupportedAction,
			action: byte(ActionSwapExactOutSingle),
		},
		{
			name:   "unknown action",
			batch:  NewV4Batch().Raw(Action(0x15), nil),
			want:   ErrUnsupportedAction,
			action: 0x15,
		},
		{
			name: "portion above 100%",
			batch: NewV4Batch().
				Settle(tokenA, big.NewInt(1000), false).
				SwapExactInSingle(v4Key, true, openDelta).
				TakePortion(tokenB, ledger.MsgSender, 10_001),
			want: ErrInvalidParams,
		},
		{
			name:  "user payer with contract balance",
			batch: NewV4Batch().Settle(tokenA, ContractBalance, true),
			want:  ErrInvalidParams,
		},
		{
			name: "session output left behind",
			batch: NewV4Batch().
				Settle(tokenA, big.NewInt(1000), false).
				SwapExactInSingle(v4Key, true, openDelta),
			want: ledger.ErrTokenOutNotConsumed,
		},
		{
			name: "missing manager pool",
			batch: NewV4Batch().
				Settle(tokenA, big.NewInt(1000), false).
				SwapExactInSingle(amm.NewPoolKey(tokenA, tokenB, 500, 10, common.Address{}), true, openDelta),
			want: amm.ErrPoolNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(t)
			res, err := quote(t, r, NewPlanner().V4Swap(tt.batch), 1000)
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, res)

			if tt.action != 0 {
				var unsupported *UnsupportedActionError
				require.True(t, errors.As(err, &unsupported))
				assert.Equal(t, tt.action, unsupported.Action)
			}
		})
	}
}

func TestV4_BatchLengthMismatch(t *testing.T) {
	r, _ := newTestRouter(t)

	input, err := batchArgs.Pack([]byte{byte(ActionSettle), byte(ActionTake)}, [][]byte{{}})
	require.NoError(t, err)
	_, err = quote(t, r, NewPlanner().Raw(V4Swap, input), 1000)
	require.ErrorIs(t, err, ErrLengthMismatch)
}
