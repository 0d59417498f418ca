package router

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fallback-Solutions/universal-router/internal/amm"
	"github.com/Fallback-Solutions/universal-router/internal/eth"
	"github.com/Fallback-Solutions/universal-router/internal/ledger"
	"github.com/Fallback-Solutions/universal-router/internal/simulator"
)

var (
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	tokenC = common.HexToAddress("0x00000000000000000000000000000000000000cc")

	engine = common.HexToAddress("0x66a9893cC07D91D95644AEDD05D03f95e1dBA8Af")
	caller = common.HexToAddress("0x000000000000000000000000000000000000c0de")

	v4Key   = amm.NewPoolKey(tokenA, tokenB, 3000, 60, common.Address{})
	v4KeyBC = amm.NewPoolKey(tokenB, tokenC, 500, 10, common.Address{})
)

func q96() *big.Int { return new(big.Int).Lsh(big.NewInt(1), 96) }

func e18() *big.Int { return new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil) }

func pairAt(family eth.Family, a, b common.Address) common.Address {
	cfg := eth.KnownProtocols[family]
	return amm.PairAddress(cfg.Factory, cfg.InitCodeHash, a, b)
}

func poolAt(t *testing.T, family eth.Family, a, b common.Address, fee uint32) common.Address {
	t.Helper()
	cfg := eth.KnownProtocols[family]
	addr, err := amm.PoolAddress(cfg.Factory, cfg.InitCodeHash, a, b, fee)
	require.NoError(t, err)
	return addr
}

func newTestSource(t *testing.T) *amm.MemorySource {
	t.Helper()
	src := amm.NewMemorySource()

	src.AddPair(&amm.Pair{
		Address: pairAt(eth.FamilyUniswapV2, tokenA, tokenB), Token0: tokenA, Token1: tokenB,
		Reserve0: big.NewInt(1_000_000), Reserve1: big.NewInt(2_000_000),
	})
	src.AddPair(&amm.Pair{
		Address: pairAt(eth.FamilyUniswapV2, tokenB, tokenC), Token0: tokenB, Token1: tokenC,
		Reserve0: big.NewInt(2_000_000), Reserve1: big.NewInt(2_000_000),
	})
	src.AddPair(&amm.Pair{
		Address: pairAt(eth.FamilySushiV2, tokenA, tokenB), Token0: tokenA, Token1: tokenB,
		Reserve0: big.NewInt(1_000_000), Reserve1: big.NewInt(1_000_000),
	})

	for _, p := range []struct {
		family eth.Family
		fee    uint32
	}{
		{eth.FamilyUniswapV3, 3000},
		{eth.FamilyPancakeV3, 500},
		{eth.FamilySushiV3, 3000},
	} {
		src.AddPool(&amm.Pool{
			Address: poolAt(t, p.family, tokenA, tokenB, p.fee), Token0: tokenA, Token1: tokenB,
			Fee: p.fee, SqrtPriceX96: q96(), Liquidity: e18(),
		})
	}

	// second leg for two-hop concentrated paths
	src.AddPool(&amm.Pool{
		Address: poolAt(t, eth.FamilyUniswapV3, tokenB, tokenC, 500), Token0: tokenB, Token1: tokenC,
		Fee: 500, SqrtPriceX96: q96(), Liquidity: e18(),
	})

	require.NoError(t, src.AddManagedPool(v4Key, &amm.Pool{SqrtPriceX96: q96(), Liquidity: e18()}))
	require.NoError(t, src.AddManagedPool(v4KeyBC, &amm.Pool{SqrtPriceX96: q96(), Liquidity: e18()}))
	return src
}

func newTestRouter(t *testing.T, opts ...Option) (*Router, *amm.MemorySource) {
	t.Helper()
	src := newTestSource(t)
	r, err := New(engine, src, opts...)
	require.NoError(t, err)
	return r, src
}

// simulateFresh is what one hop costs on a cold fork.
func simulateFresh(t *testing.T, src amm.Source, hop simulator.Hop) *simulator.SimulationResult {
	t.Helper()
	res, err := simulator.NewExecutor(simulator.NewStateFork(src)).SimulateHop(context.Background(), hop)
	require.NoError(t, err)
	return res
}

func mustPath(t *testing.T, tokens []common.Address, fees []uint32) []byte {
	t.Helper()
	path, err := EncodePath(tokens, fees)
	require.NoError(t, err)
	return path
}

func quote(t *testing.T, r *Router, p *Planner, start uint64) (*Result, error) {
	t.Helper()
	commands, inputs, err := p.Plan()
	require.NoError(t, err)
	return r.Quote(context.Background(), commands, inputs, caller, uint256.NewInt(start))
}

func TestQuote_V3ExactInSingleHop(t *testing.T) {
	r, src := newTestRouter(t)

	p := NewPlanner().SwapV3(V3SwapExactIn, ledger.MsgSender, big.NewInt(1000), mustPath(t, []common.Address{tokenA, tokenB}, []uint32{3000}))
	res, err := quote(t, r, p, 1000)
	require.NoError(t, err)

	want := simulateFresh(t, src, simulator.Hop{
		Kind: simulator.PoolConcentrated, Pool: poolAt(t, eth.FamilyUniswapV3, tokenA, tokenB, 3000),
		TokenIn: tokenA, TokenOut: tokenB, ExactInput: true, Amount: big.NewInt(1000),
	})

	assert.Equal(t, want.AmountOut.String(), res.AmountOut.Dec())
	assert.Equal(t, want.GasUsed, res.CostEstimate)
	assert.True(t, res.FinalStartBalance.IsZero())
	assert.Equal(t, tokenA, res.TokenStart)
	assert.Equal(t, tokenB, res.TokenEnd)
}

func TestQuote_V2ExactInMultiHop(t *testing.T) {
	r, _ := newTestRouter(t)

	p := NewPlanner().SwapV2(V2SwapExactIn, ledger.MsgSender, big.NewInt(1000), []common.Address{tokenA, tokenB, tokenC})
	res, err := quote(t, r, p, 1000)
	require.NoError(t, err)

	mid := amm.GetAmountOut(big.NewInt(1000), big.NewInt(1_000_000), big.NewInt(2_000_000))
	out := amm.GetAmountOut(mid, big.NewInt(2_000_000), big.NewInt(2_000_000))
	assert.Equal(t, out.String(), res.AmountOut.Dec())

	coldHop := simulator.DefaultGasSchedule.HopGas(simulator.PoolConstantProduct, true)
	assert.Equal(t, 2*coldHop, res.CostEstimate)
	assert.Equal(t, tokenC, res.TokenEnd)
}

func TestQuote_ContractBalanceDrainsInput(t *testing.T) {
	r, _ := newTestRouter(t)

	p := NewPlanner().SwapV2(V2SwapExactIn, ledger.MsgSender, ContractBalance, []common.Address{tokenA, tokenB})
	res, err := quote(t, r, p, 5000)
	require.NoError(t, err)

	want := amm.GetAmountOut(big.NewInt(5000), big.NewInt(1_000_000), big.NewInt(2_000_000))
	assert.Equal(t, want.String(), res.AmountOut.Dec())
	assert.True(t, res.FinalStartBalance.IsZero())
}

func TestQuote_V2ExactOutRoundTrip(t *testing.T) {
	r, _ := newTestRouter(t)
	wantOut := big.NewInt(10_000)

	need := amm.GetAmountIn(wantOut, big.NewInt(1_000_000), big.NewInt(2_000_000))
	require.NotNil(t, need)

	exactOut := NewPlanner().SwapV2(V2SwapExactOut, ledger.MsgSender, wantOut, []common.Address{tokenA, tokenB})
	res, err := quote(t, r, exactOut, need.Uint64())
	require.NoError(t, err)
	assert.Equal(t, wantOut.String(), res.AmountOut.Dec())
	assert.True(t, res.FinalStartBalance.IsZero())

	// spending what exact output asked for buys at least the requested amount
	exactIn := NewPlanner().SwapV2(V2SwapExactIn, ledger.MsgSender, need, []common.Address{tokenA, tokenB})
	back, err := quote(t, r, exactIn, need.Uint64())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, back.AmountOut.Uint64(), wantOut.Uint64())
}

func TestQuote_V3ExactOutPathIsReversed(t *testing.T) {
	r, src := newTestRouter(t)
	wantOut := big.NewInt(5000)

	hop := simulateFresh(t, src, simulator.Hop{
		Kind: simulator.PoolConcentrated, Pool: poolAt(t, eth.FamilyUniswapV3, tokenA, tokenB, 3000),
		TokenIn: tokenA, TokenOut: tokenB, Amount: wantOut,
	})

	// output first
	path := mustPath(t, []common.Address{tokenB, tokenA}, []uint32{3000})
	p := NewPlanner().SwapV3(V3SwapExactOut, ledger.MsgSender, wantOut, path)
	res, err := quote(t, r, p, hop.AmountIn.Uint64())
	require.NoError(t, err)

	assert.Equal(t, wantOut.String(), res.AmountOut.Dec())
	assert.Equal(t, tokenA, res.TokenStart)
	assert.Equal(t, tokenB, res.TokenEnd)
	assert.Equal(t, hop.GasUsed, res.CostEstimate)
}

func TestQuote_ExactOutRejectsContractBalance(t *testing.T) {
	r, _ := newTestRouter(t)

	p := NewPlanner().SwapV2(V2SwapExactOut, ledger.MsgSender, ContractBalance, []common.Address{tokenA, tokenB})
	_, err := quote(t, r, p, 1000)
	require.ErrorIs(t, err, ErrInvalidParams)
}

func TestQuote_FamiliesUseTheirOwnPools(t *testing.T) {
	r, src := newTestRouter(t)

	sushi := NewPlanner().SwapV2(SushiV2SwapExactIn, ledger.MsgSender, big.NewInt(1000), []common.Address{tokenA, tokenB})
	res, err := quote(t, r, sushi, 1000)
	require.NoError(t, err)
	want := amm.GetAmountOut(big.NewInt(1000), big.NewInt(1_000_000), big.NewInt(1_000_000))
	assert.Equal(t, want.String(), res.AmountOut.Dec())

	pancake := NewPlanner().SwapV3(PancakeV3SwapExactIn, ledger.MsgSender, big.NewInt(1000), mustPath(t, []common.Address{tokenA, tokenB}, []uint32{500}))
	res, err = quote(t, r, pancake, 1000)
	require.NoError(t, err)
	hop := simulateFresh(t, src, simulator.Hop{
		Kind: simulator.PoolConcentrated, Pool: poolAt(t, eth.FamilyPancakeV3, tokenA, tokenB, 500),
		TokenIn: tokenA, TokenOut: tokenB, ExactInput: true, Amount: big.NewInt(1000),
	})
	assert.Equal(t, hop.AmountOut.String(), res.AmountOut.Dec())

	// no pancake pool at the 0.3% tier
	missing := NewPlanner().SwapV3(PancakeV3SwapExactIn, ledger.MsgSender, big.NewInt(1000), mustPath(t, []common.Address{tokenA, tokenB}, []uint32{3000}))
	_, err = quote(t, r, missing, 1000)
	require.ErrorIs(t, err, simulator.ErrSimulationFailed)
	assert.ErrorIs(t, err, amm.ErrPoolNotFound)
}

func TestQuote_UnknownFamily(t *testing.T) {
	families := map[eth.Family]eth.ProtocolConfig{eth.FamilyUniswapV2: eth.KnownProtocols[eth.FamilyUniswapV2]}
	r, _ := newTestRouter(t, WithFamilies(families))

	p := NewPlanner().SwapV2(SushiV2SwapExactIn, ledger.MsgSender, big.NewInt(1000), []common.Address{tokenA, tokenB})
	_, err := quote(t, r, p, 1000)
	require.ErrorIs(t, err, ErrUnknownFamily)
}

func TestQuote_LengthMismatch(t *testing.T) {
	r, _ := newTestRouter(t)

	_, err := r.Quote(context.Background(), []byte{byte(V2SwapExactIn), byte(Sweep)}, [][]byte{{}}, caller, uint256.NewInt(1000))
	require.ErrorIs(t, err, ErrLengthMismatch)

	var cmdErr *CommandError
	assert.False(t, errors.As(err, &cmdErr))
}

func TestQuote_ZeroCaller(t *testing.T) {
	r, _ := newTestRouter(t)

	_, err := r.Quote(context.Background(), nil, nil, common.Address{}, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrInvalidCaller)
}

func TestQuote_SweepOfEmptyOutputIsNoop(t *testing.T) {
	r, _ := newTestRouter(t)

	p := NewPlanner().
		SwapV2(V2SwapExactIn, ledger.MsgSender, big.NewInt(1000), []common.Address{tokenA, tokenB}).
		Sweep(tokenB, ledger.MsgSender)
	res, err := quote(t, r, p, 1000)
	require.NoError(t, err)

	want := amm.GetAmountOut(big.NewInt(1000), big.NewInt(1_000_000), big.NewInt(2_000_000))
	assert.Equal(t, want.String(), res.AmountOut.Dec())
}

func TestQuote_SwapToEngineThenSweep(t *testing.T) {
	r, _ := newTestRouter(t)

	p := NewPlanner().
		SwapV2(V2SwapExactIn, ledger.AddressThis, big.NewInt(1000), []common.Address{tokenA, tokenB}).
		SwapV2(V2SwapExactIn, engine, ContractBalance, []common.Address{tokenB, tokenC}).
		Sweep(tokenC, caller)
	res, err := quote(t, r, p, 1000)
	require.NoError(t, err)

	mid := amm.GetAmountOut(big.NewInt(1000), big.NewInt(1_000_000), big.NewInt(2_000_000))
	out := amm.GetAmountOut(mid, big.NewInt(2_000_000), big.NewInt(2_000_000))
	assert.Equal(t, out.String(), res.AmountOut.Dec())
	assert.Equal(t, tokenC, res.TokenEnd)
}

func TestQuote_LedgerFailures(t *testing.T) {
	stranger := common.HexToAddress("0x0000000000000000000000000000000000005555")

	tests := []struct {
		name  string
		plan  *Planner
		start uint64
		want  error
	}{
		{
			name:  "input left over",
			plan:  NewPlanner().SwapV2(V2SwapExactIn, ledger.MsgSender, big.NewInt(400), []common.Address{tokenA, tokenB}),
			start: 1000,
			want:  ledger.ErrTokenInNotConsumed,
		},
		{
			name:  "output never delivered",
			plan:  NewPlanner().SwapV2(V2SwapExactIn, ledger.AddressThis, big.NewInt(1000), []common.Address{tokenA, tokenB}),
			start: 1000,
			want:  ledger.ErrTokenOutNotConsumed,
		},
		{
			name:  "spend more than held",
			plan:  NewPlanner().SwapV2(V2SwapExactIn, ledger.MsgSender, big.NewInt(2000), []common.Address{tokenA, tokenB}),
			start: 1000,
			want:  ledger.ErrBalanceTooLow,
		},
		{
			name:  "unknown recipient",
			plan:  NewPlanner().SwapV2(V2SwapExactIn, stranger, big.NewInt(1000), []common.Address{tokenA, tokenB}),
			start: 1000,
			want:  ledger.ErrInvalidReceiver,
		},
		{
			name:  "sweep to engine",
			plan:  NewPlanner().SwapV2(V2SwapExactIn, ledger.AddressThis, big.NewInt(1000), []common.Address{tokenA, tokenB}).Sweep(tokenB, ledger.AddressThis),
			start: 1000,
			want:  ledger.ErrInvalidReceiver,
		},
		{
			name:  "zero amount",
			plan:  NewPlanner().SwapV2(V2SwapExactIn, ledger.MsgSender, big.NewInt(0), []common.Address{tokenA, tokenB}),
			start: 0,
			want:  simulator.ErrSimulationFailed,
		},
		{
			name:  "short path",
			plan:  NewPlanner().SwapV2(V2SwapExactIn, ledger.MsgSender, big.NewInt(1000), []common.Address{tokenA}),
			start: 1000,
			want:  ErrInvalidPath,
		},
		{
			name:  "garbage input",
			plan:  NewPlanner().Raw(V2SwapExactIn, []byte{0x01, 0x02}),
			start: 1000,
			want:  ErrInvalidParams,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(t)
			_, err := quote(t, r, tt.plan, tt.start)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestQuote_UnboundOpcodes(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, op := range []byte{0x02, 0x03, 0x05, 0x06, 0x07, 0x0a, 0x0b, 0x0c, 0x0d, 0x11, 0x20, 0x46, 0xff} {
		t.Run(Command(op).String(), func(t *testing.T) {
			assert.False(t, r.Supports(Command(op)))

			_, err := r.Quote(context.Background(), []byte{op}, [][]byte{nil}, caller, uint256.NewInt(1))
			require.ErrorIs(t, err, ErrInvalidCommandType)

			var invalid *InvalidCommandError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, op, invalid.Command)

			var cmdErr *CommandError
			require.True(t, errors.As(err, &cmdErr))
			assert.Equal(t, 0, cmdErr.Index)
		})
	}
}

func TestQuote_ErrorLocatesCommand(t *testing.T) {
	r, _ := newTestRouter(t)

	p := NewPlanner().
		SwapV2(V2SwapExactIn, ledger.AddressThis, big.NewInt(1000), []common.Address{tokenA, tokenB}).
		Raw(Command(0x0b), nil)
	_, err := quote(t, r, p, 1000)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 1, cmdErr.Index)
	assert.Equal(t, byte(WrapETH), cmdErr.Command)
	assert.Equal(t, "InvalidCommandType", ErrorKind(err))
}

func TestQuote_ContextCanceled(t *testing.T) {
	r, _ := newTestRouter(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	commands, inputs, err := NewPlanner().Sweep(tokenB, ledger.MsgSender).Plan()
	require.NoError(t, err)
	_, err = r.Quote(ctx, commands, inputs, caller, uint256.NewInt(1))
	require.ErrorIs(t, err, context.Canceled)
}

func TestQuote_IsRepeatableAndConcurrent(t *testing.T) {
	r, _ := newTestRouter(t)

	p := NewPlanner().SwapV3(V3SwapExactIn, ledger.MsgSender, big.NewInt(1000), mustPath(t, []common.Address{tokenA, tokenB}, []uint32{3000}))
	first, err := quote(t, r, p, 1000)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			commands, inputs, _ := p.Plan()
			results[i], errs[i] = r.Quote(context.Background(), commands, inputs, caller, uint256.NewInt(1000))
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, first.AmountOut.Dec(), results[i].AmountOut.Dec())
		assert.Equal(t, first.CostEstimate, results[i].CostEstimate)
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(engine, nil)
	require.Error(t, err)

	_, err = New(engine, amm.NewMemorySource(), WithMaxDepth(0))
	require.Error(t, err)
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&CommandError{Err: &UnsupportedActionError{Action: 0x0b}}, "UnsupportedAction"},
		{&CommandError{Err: ledger.ErrBalanceTooLow}, "BalanceTooLow"},
		{errors.New("boom"), "Internal"},
		{context.DeadlineExceeded, "DeadlineExceeded"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err))
	}
}
