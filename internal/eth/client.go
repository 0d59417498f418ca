package eth

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client is the slice of an execution node the quoter needs: pinned-block
// eth_call plus head lookups.
type Client struct {
	rpc     *ethclient.Client
	timeout time.Duration
}

func NewClient(ctx context.Context, url string, timeout time.Duration) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("rpc url not set")
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := rpc.DialContext(dialCtx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	return &Client{rpc: ethclient.NewClient(raw), timeout: timeout}, nil
}

// Wrap adapts an existing ethclient, used by tests that dial in-process.
func Wrap(ec *ethclient.Client, timeout time.Duration) *Client {
	return &Client{rpc: ec, timeout: timeout}
}

func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte, blockNumber *big.Int) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	return c.rpc.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, blockNumber)
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	return c.rpc.BlockNumber(ctx)
}

func (c *Client) Close() {
	c.rpc.Close()
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
