package router

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

const (
	addrSize = common.AddressLength
	feeSize  = 3
	hopSize  = addrSize + feeSize
	// token fee token
	minPathSize = addrSize + hopSize
)

// DecodePath splits a packed token(20) fee(3) token(20) ... path.
func DecodePath(path []byte) ([]common.Address, []uint32, error) {
	if len(path) < minPathSize || (len(path)-addrSize)%hopSize != 0 {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrInvalidPath, len(path))
	}

	hops := (len(path) - addrSize) / hopSize
	tokens := make([]common.Address, 0, hops+1)
	fees := make([]uint32, 0, hops)

	for i := 0; i < hops; i++ {
		off := i * hopSize
		tokens = append(tokens, common.BytesToAddress(path[off:off+addrSize]))
		f := path[off+addrSize : off+hopSize]
		fees = append(fees, uint32(f[0])<<16|uint32(f[1])<<8|uint32(f[2]))
	}
	tokens = append(tokens, common.BytesToAddress(path[len(path)-addrSize:]))
	return tokens, fees, nil
}

// EncodePath is the inverse of DecodePath.
func EncodePath(tokens []common.Address, fees []uint32) ([]byte, error) {
	if len(tokens) < 2 || len(fees) != len(tokens)-1 {
		return nil, fmt.Errorf("%w: %d tokens, %d fees", ErrInvalidPath, len(tokens), len(fees))
	}

	out := make([]byte, 0, addrSize+len(fees)*hopSize)
	for i, fee := range fees {
		if fee >= 1<<24 {
			return nil, fmt.Errorf("%w: fee %d exceeds uint24", ErrInvalidPath, fee)
		}
		out = append(out, tokens[i].Bytes()...)
		out = append(out, byte(fee>>16), byte(fee>>8), byte(fee))
	}
	return append(out, tokens[len(tokens)-1].Bytes()...), nil
}
