package amm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Fallback-Solutions/universal-router/internal/eth"
)

// dynamicFeeFlag marks a manager pool whose fee lives in slot0
const dynamicFeeFlag = 0x800000

// ContractCaller is satisfied by *eth.Client
type ContractCaller interface {
	CallContract(ctx context.Context, to common.Address, data []byte, blockNumber *big.Int) ([]byte, error)
}

// RPCSource loads pool state with eth_call pinned to one block (nil = latest).
type RPCSource struct {
	client    ContractCaller
	block     *big.Int
	stateView common.Address

	pairABI abi.ABI
	poolABI abi.ABI
	viewABI abi.ABI
}

func NewRPCSource(client ContractCaller, block *big.Int, stateView common.Address) (*RPCSource, error) {
	pairABI, err := abi.JSON(strings.NewReader(eth.UniswapV2PairABI))
	if err != nil {
		return nil, fmt.Errorf("parse pair abi: %w", err)
	}
	poolABI, err := abi.JSON(strings.NewReader(eth.UniswapV3PoolABI))
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	viewABI, err := abi.JSON(strings.NewReader(eth.UniswapV4StateViewABI))
	if err != nil {
		return nil, fmt.Errorf("parse state view abi: %w", err)
	}

	return &RPCSource{
		client:    client,
		block:     block,
		stateView: stateView,
		pairABI:   pairABI,
		poolABI:   poolABI,
		viewABI:   viewABI,
	}, nil
}

func (s *RPCSource) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	result, err := s.client.CallContract(ctx, to, data, s.block)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("call %s on %s: empty result: %w", method, to.Hex(), ErrPoolNotFound)
	}

	out, err := contract.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

func (s *RPCSource) tokens(ctx context.Context, contract abi.ABI, addr common.Address) (token0, token1 common.Address, err error) {
	out0, err := s.call(ctx, contract, addr, "token0")
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	out1, err := s.call(ctx, contract, addr, "token1")
	if err != nil {
		return common.Address{}, common.Address{}, err
	}

	token0, ok0 := out0[0].(common.Address)
	token1, ok1 := out1[0].(common.Address)
	if !ok0 || !ok1 {
		return common.Address{}, common.Address{}, fmt.Errorf("token type assertion failed")
	}
	return token0, token1, nil
}

func (s *RPCSource) Pair(ctx context.Context, addr common.Address) (*Pair, error) {
	token0, token1, err := s.tokens(ctx, s.pairABI, addr)
	if err != nil {
		return nil, fmt.Errorf("fetch tokens: %w", err)
	}

	out, err := s.call(ctx, s.pairABI, addr, "getReserves")
	if err != nil {
		return nil, fmt.Errorf("fetch reserves: %w", err)
	}
	if len(out) < 2 {
		return nil, fmt.Errorf("unexpected unpack result length: %d", len(out))
	}
	reserve0, ok0 := out[0].(*big.Int)
	reserve1, ok1 := out[1].(*big.Int)
	if !ok0 || !ok1 {
		return nil, fmt.Errorf("reserve type assertion failed")
	}

	return &Pair{Address: addr, Token0: token0, Token1: token1, Reserve0: reserve0, Reserve1: reserve1}, nil
}

func (s *RPCSource) Pool(ctx context.Context, addr common.Address) (*Pool, error) {
	token0, token1, err := s.tokens(ctx, s.poolABI, addr)
	if err != nil {
		return nil, fmt.Errorf("fetch tokens: %w", err)
	}

	feeOut, err := s.call(ctx, s.poolABI, addr, "fee")
	if err != nil {
		return nil, err
	}
	liqOut, err := s.call(ctx, s.poolABI, addr, "liquidity")
	if err != nil {
		return nil, err
	}
	slotOut, err := s.call(ctx, s.poolABI, addr, "slot0")
	if err != nil {
		return nil, err
	}

	fee, ok := feeOut[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("fee type assertion failed")
	}
	liquidity, ok := liqOut[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("liquidity type assertion failed")
	}
	sqrtPrice, ok := slotOut[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("sqrtPriceX96 type assertion failed")
	}

	return &Pool{
		Address:      addr,
		Token0:       token0,
		Token1:       token1,
		Fee:          uint32(fee.Uint64()),
		SqrtPriceX96: sqrtPrice,
		Liquidity:    liquidity,
	}, nil
}

func (s *RPCSource) ManagedPool(ctx context.Context, key PoolKey) (*Pool, error) {
	id, err := key.ID()
	if err != nil {
		return nil, err
	}

	slotOut, err := s.call(ctx, s.viewABI, s.stateView, "getSlot0", [32]byte(id))
	if err != nil {
		return nil, err
	}
	liqOut, err := s.call(ctx, s.viewABI, s.stateView, "getLiquidity", [32]byte(id))
	if err != nil {
		return nil, err
	}

	if len(slotOut) < 4 {
		return nil, fmt.Errorf("unexpected unpack result length: %d", len(slotOut))
	}
	sqrtPrice, ok := slotOut[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("sqrtPriceX96 type assertion failed")
	}
	// an uninitialised pool reads as all zeros
	if sqrtPrice.Sign() == 0 {
		return nil, fmt.Errorf("managed pool %s: %w", id.Hex(), ErrPoolNotFound)
	}
	lpFee, ok := slotOut[3].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("lpFee type assertion failed")
	}
	liquidity, ok := liqOut[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("liquidity type assertion failed")
	}

	fee := key.Fee
	if fee == dynamicFeeFlag {
		fee = uint32(lpFee.Uint64())
	}

	return &Pool{
		ID:           id,
		Token0:       key.Currency0,
		Token1:       key.Currency1,
		Fee:          fee,
		TickSpacing:  key.TickSpacing,
		Hooks:        key.Hooks,
		SqrtPriceX96: sqrtPrice,
		Liquidity:    liquidity,
	}, nil
}
