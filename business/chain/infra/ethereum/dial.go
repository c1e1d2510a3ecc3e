// Package ethereum provides Ethereum node adapters for the chain context.
package ethereum

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gorilla/websocket"
)

const (
	tracerName = "github.com/fd1az/sandwich-bot/business/chain/infra/ethereum"
	meterName  = "github.com/fd1az/sandwich-bot/business/chain/infra/ethereum"
)

// wsReadBuffer fits a full pending transaction notification in one read.
const wsReadBuffer = 1 << 20

// DialRPC connects to a JSON-RPC endpoint. ws/wss URLs use a gorilla dialer
// sized for mempool traffic; http/https URLs use httpClient when provided.
func DialRPC(ctx context.Context, url string, httpClient *http.Client) (*rpc.Client, error) {
	var opts []rpc.ClientOption

	switch {
	case strings.HasPrefix(url, "ws://"), strings.HasPrefix(url, "wss://"):
		opts = append(opts, rpc.WithWebsocketDialer(websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 15 * time.Second,
			ReadBufferSize:   wsReadBuffer,
			WriteBufferSize:  wsReadBuffer / 8,
		}))
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		if httpClient != nil {
			opts = append(opts, rpc.WithHTTPClient(httpClient))
		}
	}

	client, err := rpc.DialOptions(ctx, url, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", redact(url), err)
	}
	return client, nil
}

// redact drops the path, which often carries a provider API key.
func redact(url string) string {
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return "<invalid url>"
	}
	host, _, _ := strings.Cut(rest, "/")
	return scheme + "://" + host
}
