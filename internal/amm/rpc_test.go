package amm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fallback-Solutions/universal-router/internal/eth"
)

type callArgs struct {
	To    *common.Address `json:"to"`
	Data  *hexutil.Bytes  `json:"data"`
	Input *hexutil.Bytes  `json:"input"`
}

// fakeEth answers eth_call from a table keyed by target and calldata
type fakeEth struct {
	mu        sync.Mutex
	responses map[string][]byte
	blocks    []string
}

func (f *fakeEth) set(to common.Address, calldata, result []byte) {
	f.responses[to.Hex()+hexutil.Encode(calldata)] = result
}

func (f *fakeEth) Call(_ context.Context, args callArgs, block string) (hexutil.Bytes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks = append(f.blocks, block)

	data := args.Input
	if data == nil {
		data = args.Data
	}
	if args.To == nil || data == nil {
		return nil, fmt.Errorf("bad call")
	}
	if out, ok := f.responses[args.To.Hex()+hexutil.Encode(*data)]; ok {
		return out, nil
	}
	return hexutil.Bytes{}, nil
}

func newInprocClient(t *testing.T, fe *fakeEth) *eth.Client {
	t.Helper()
	srv := gethrpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", fe))
	c := gethrpc.DialInProc(srv)
	client := eth.Wrap(ethclient.NewClient(c), 5*time.Second)
	t.Cleanup(client.Close)
	return client
}

func mustABI(t *testing.T, def string) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(def))
	require.NoError(t, err)
	return parsed
}

func stub(t *testing.T, fe *fakeEth, contract abi.ABI, to common.Address, method string, in []interface{}, out ...interface{}) {
	t.Helper()
	calldata, err := contract.Pack(method, in...)
	require.NoError(t, err)
	result, err := contract.Methods[method].Outputs.Pack(out...)
	require.NoError(t, err)
	fe.set(to, calldata, result)
}

func TestRPCSource_Pair(t *testing.T) {
	fe := &fakeEth{responses: make(map[string][]byte)}
	pairABI := mustABI(t, eth.UniswapV2PairABI)
	addr := common.HexToAddress("0x0000000000000000000000000000000000000abc")

	stub(t, fe, pairABI, addr, "token0", nil, tokenA)
	stub(t, fe, pairABI, addr, "token1", nil, tokenB)
	stub(t, fe, pairABI, addr, "getReserves", nil, big.NewInt(1_000_000), big.NewInt(2_000_000), uint32(0))

	src, err := NewRPCSource(newInprocClient(t, fe), big.NewInt(123), eth.V4StateView)
	require.NoError(t, err)

	p, err := src.Pair(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, tokenA, p.Token0)
	assert.Equal(t, tokenB, p.Token1)
	assert.Equal(t, int64(1_000_000), p.Reserve0.Int64())
	assert.Equal(t, int64(2_000_000), p.Reserve1.Int64())

	// every call pinned to the quote block
	for _, b := range fe.blocks {
		assert.Equal(t, "0x7b", b)
	}
}

func TestRPCSource_Pool(t *testing.T) {
	fe := &fakeEth{responses: make(map[string][]byte)}
	poolABI := mustABI(t, eth.UniswapV3PoolABI)
	addr := common.HexToAddress("0x0000000000000000000000000000000000000def")

	stub(t, fe, poolABI, addr, "token0", nil, tokenA)
	stub(t, fe, poolABI, addr, "token1", nil, tokenB)
	stub(t, fe, poolABI, addr, "fee", nil, big.NewInt(500))
	stub(t, fe, poolABI, addr, "liquidity", nil, e18(1))
	stub(t, fe, poolABI, addr, "slot0", nil,
		new(big.Int).Set(q96), big.NewInt(0), uint16(1), uint16(1), uint16(1), uint8(0), true)

	src, err := NewRPCSource(newInprocClient(t, fe), nil, eth.V4StateView)
	require.NoError(t, err)

	p, err := src.Pool(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, uint32(500), p.Fee)
	assert.Equal(t, 0, p.SqrtPriceX96.Cmp(q96))
	assert.Equal(t, 0, p.Liquidity.Cmp(e18(1)))
	assert.Equal(t, "latest", fe.blocks[0])
}

func TestRPCSource_ManagedPool(t *testing.T) {
	fe := &fakeEth{responses: make(map[string][]byte)}
	viewABI := mustABI(t, eth.UniswapV4StateViewABI)

	key := NewPoolKey(tokenA, tokenB, dynamicFeeFlag, 60, common.Address{})
	id, err := key.ID()
	require.NoError(t, err)

	stub(t, fe, viewABI, eth.V4StateView, "getSlot0", []interface{}{[32]byte(id)},
		new(big.Int).Set(q96), big.NewInt(-10), big.NewInt(0), big.NewInt(2500))
	stub(t, fe, viewABI, eth.V4StateView, "getLiquidity", []interface{}{[32]byte(id)}, e18(1))

	src, err := NewRPCSource(newInprocClient(t, fe), nil, eth.V4StateView)
	require.NoError(t, err)

	p, err := src.ManagedPool(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	assert.Equal(t, uint32(2500), p.Fee)
	assert.Equal(t, int32(60), p.TickSpacing)

	// an unknown key reads back empty
	_, err = src.ManagedPool(context.Background(), NewPoolKey(tokenA, tokenC, 500, 10, common.Address{}))
	assert.ErrorIs(t, err, ErrPoolNotFound)
}

func TestMemorySource(t *testing.T) {
	src := NewMemorySource()
	src.AddPair(testPair())

	p, err := src.Pair(context.Background(), testPair().Address)
	require.NoError(t, err)
	p.Reserve0.SetInt64(0)

	again, err := src.Pair(context.Background(), testPair().Address)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), again.Reserve0.Int64())

	_, err = src.Pool(context.Background(), tokenC)
	assert.ErrorIs(t, err, ErrPoolNotFound)

	key := NewPoolKey(tokenA, tokenB, 3000, 60, common.Address{})
	require.NoError(t, src.AddManagedPool(key, testPool(0)))
	mp, err := src.ManagedPool(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, uint32(3000), mp.Fee)
}
