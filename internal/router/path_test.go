package router

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePath(t *testing.T) {
	path, err := EncodePath([]common.Address{tokenA, tokenB, tokenC}, []uint32{500, 10_000})
	require.NoError(t, err)
	require.Len(t, path, 20+23+23)

	assert.Equal(t, tokenA.Bytes(), path[:20])
	assert.Equal(t, []byte{0x00, 0x01, 0xf4}, path[20:23])
	assert.Equal(t, []byte{0x00, 0x27, 0x10}, path[43:46])
	assert.Equal(t, tokenC.Bytes(), path[46:])

	tokens, fees, err := DecodePath(path)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{tokenA, tokenB, tokenC}, tokens)
	assert.Equal(t, []uint32{500, 10_000}, fees)
}

func TestDecodePath_Invalid(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"single token", 20},
		{"missing last token", 23},
		{"trailing bytes", 44},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodePath(make([]byte, tt.size))
			require.ErrorIs(t, err, ErrInvalidPath)
		})
	}
}

func TestEncodePath_Invalid(t *testing.T) {
	_, err := EncodePath([]common.Address{tokenA}, nil)
	require.ErrorIs(t, err, ErrInvalidPath)

	_, err = EncodePath([]common.Address{tokenA, tokenB}, []uint32{1 << 24})
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestPlanner_DecodesBack(t *testing.T) {
	commands, inputs, err := NewPlanner().
		Sweep(tokenB, tokenC).
		SwapV2(SushiV2SwapExactOut, tokenC, ContractBalance, []common.Address{tokenA, tokenB}).
		Plan()
	require.NoError(t, err)
	assert.Equal(t, []byte{byte(Sweep), byte(SushiV2SwapExactOut)}, commands)

	sweep, err := decodeSweep(inputs[0])
	require.NoError(t, err)
	assert.Equal(t, tokenB, sweep.Token)
	assert.Equal(t, tokenC, sweep.Recipient)

	v2, err := decodeV2(inputs[1])
	require.NoError(t, err)
	assert.Equal(t, 0, v2.Amount.Cmp(ContractBalance))
	assert.Equal(t, []common.Address{tokenA, tokenB}, v2.Path)
}
