// Package chainclock reads chain time from a node over JSON-RPC.
package chainclock

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

var ErrNoBlock = errors.New("node returned no block")

type header struct {
	Number    hexutil.Uint64 `json:"number"`
	Timestamp hexutil.Uint64 `json:"timestamp"`
}

// RPCClock uses the timestamp of the node's latest block.
type RPCClock struct {
	client *rpc.Client
}

func New(client *rpc.Client) *RPCClock {
	return &RPCClock{client: client}
}

// Dial connects to the node at url.
func Dial(ctx context.Context, url string) (*RPCClock, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to node: %w", err)
	}
	return New(client), nil
}

// Now returns the latest block timestamp in milliseconds.
func (c *RPCClock) Now(ctx context.Context) (uint64, error) {
	var res *header
	err := c.client.CallContext(ctx, &res, "eth_getBlockByNumber", "latest", false)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}
	if res == nil {
		return 0, ErrNoBlock
	}
	return uint64(res.Timestamp) * 1000, nil
}

func (c *RPCClock) Close() {
	c.client.Close()
}
