package upstream

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
)

const (
	// MethodGetBalance is the JSON-RPC method queried for account balances.
	MethodGetBalance = "eth_getBalance"
	// BlockTagLatest selects the latest known chain state.
	BlockTagLatest = "latest"
)

// BalanceFetcher queries account balances from a WebSocket RPC endpoint.
// Every call dials a fresh connection and closes it before returning;
// nothing is cached and failures are not retried.
type BalanceFetcher struct {
	wsURL  string
	logger zerolog.Logger
}

// NewBalanceFetcher creates a fetcher for the given endpoint URL. An empty
// URL is accepted; every call then fails with ErrConfiguration.
func NewBalanceFetcher(wsURL string, logger zerolog.Logger) *BalanceFetcher {
	return &BalanceFetcher{
		wsURL:  wsURL,
		logger: logger.With().Str("component", "fetcher").Logger(),
	}
}

// Endpoint returns the endpoint with path, query and credentials removed.
func (f *BalanceFetcher) Endpoint() string {
	if f.wsURL == "" {
		return ""
	}
	return redactURL(f.wsURL)
}

// FetchBalance returns the balance of address in wei at the latest block.
//
// Errors are ErrConfiguration, *ConnectionError or *RPCError. When ctx
// expired the returned error also matches ctx.Err() under errors.Is.
func (f *BalanceFetcher) FetchBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	if f.wsURL == "" {
		return nil, ErrConfiguration
	}

	start := time.Now()
	client, err := DialWSClient(ctx, f.wsURL, f.logger)
	if err != nil {
		return nil, withContextErr(ctx, &ConnectionError{Endpoint: redactURL(f.wsURL), Err: err})
	}
	defer client.Close()

	var balance hexutil.Big
	params := []interface{}{address, BlockTagLatest}
	if err := client.Call(ctx, MethodGetBalance, params, &balance); err != nil {
		return nil, withContextErr(ctx, &RPCError{Method: MethodGetBalance, Err: err})
	}

	wei := balance.ToInt()
	f.logger.Debug().
		Str("address", address.Hex()).
		Str("wei", wei.String()).
		Dur("latency", time.Since(start)).
		Msg("balance fetched")
	return wei, nil
}

// withContextErr attaches ctx.Err() to err when the context is done, so
// callers can tell a timeout from a plain upstream failure.
func withContextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}
