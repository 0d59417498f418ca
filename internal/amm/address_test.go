package amm

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fallback-Solutions/universal-router/internal/eth"
)

func TestPairAddress_Mainnet(t *testing.T) {
	uni := eth.KnownProtocols[eth.FamilyUniswapV2]
	sushi := eth.KnownProtocols[eth.FamilySushiV2]

	tests := []struct {
		name string
		cfg  eth.ProtocolConfig
		a, b common.Address
		want common.Address
	}{
		{"uniswap usdc/weth", uni, eth.USDCAddress, eth.WETHAddress, common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc")},
		{"uniswap weth/usdc order independent", uni, eth.WETHAddress, eth.USDCAddress, common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc")},
		{"sushiswap usdc/weth", sushi, eth.USDCAddress, eth.WETHAddress, common.HexToAddress("0x397FF1542f962076d0BFE58eA045FfA2d347ACa0")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PairAddress(tt.cfg.Factory, tt.cfg.InitCodeHash, tt.a, tt.b))
		})
	}
}

func TestPoolAddress_Mainnet(t *testing.T) {
	cfg := eth.KnownProtocols[eth.FamilyUniswapV3]

	addr, err := PoolAddress(cfg.Factory, cfg.InitCodeHash, eth.WETHAddress, eth.USDCAddress, 500)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640"), addr)

	other, err := PoolAddress(cfg.Factory, cfg.InitCodeHash, eth.WETHAddress, eth.USDCAddress, 3000)
	require.NoError(t, err)
	assert.NotEqual(t, addr, other)
}

func TestDeriver_Caches(t *testing.T) {
	d, err := NewDeriver(8)
	require.NoError(t, err)

	uni := eth.KnownProtocols[eth.FamilyUniswapV3]
	sushi := eth.KnownProtocols[eth.FamilySushiV3]

	a, err := d.Pool(uni, eth.USDCAddress, eth.WETHAddress, 500)
	require.NoError(t, err)
	b, err := d.Pool(uni, eth.WETHAddress, eth.USDCAddress, 500)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, d.Len())

	// same init code hash, different factory
	s, err := d.Pool(sushi, eth.USDCAddress, eth.WETHAddress, 500)
	require.NoError(t, err)
	assert.NotEqual(t, a, s)
	assert.Equal(t, 2, d.Len())

	pair := d.Pair(eth.KnownProtocols[eth.FamilyUniswapV2], eth.USDCAddress, eth.WETHAddress)
	assert.Equal(t, common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"), pair)
	assert.Equal(t, 3, d.Len())
}

func TestPoolKey_ID(t *testing.T) {
	hooks := common.HexToAddress("0x0000000000000000000000000000000000000def")
	k1 := NewPoolKey(tokenB, tokenA, 3000, -60, hooks)
	k2 := NewPoolKey(tokenA, tokenB, 3000, -60, hooks)
	assert.Equal(t, k1, k2)
	assert.Equal(t, tokenA, k1.Currency0)

	id, err := k1.ID()
	require.NoError(t, err)

	// abi.encode of five static words
	var enc []byte
	enc = append(enc, common.LeftPadBytes(tokenA.Bytes(), 32)...)
	enc = append(enc, common.LeftPadBytes(tokenB.Bytes(), 32)...)
	enc = append(enc, common.LeftPadBytes(big.NewInt(3000).Bytes(), 32)...)
	negSixty := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(60))
	enc = append(enc, negSixty.Bytes()...)
	enc = append(enc, common.LeftPadBytes(hooks.Bytes(), 32)...)
	assert.Equal(t, crypto.Keccak256Hash(enc), id)

	k3 := NewPoolKey(tokenA, tokenB, 500, -60, hooks)
	id3, err := k3.ID()
	require.NoError(t, err)
	assert.NotEqual(t, id, id3)
}
