package handlers

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"weibalance/internal/models"
	"weibalance/internal/upstream"
)

// statusClientClosedRequest is the non-standard status logged when the
// client went away before the balance was fetched.
const statusClientClosedRequest = 499

// BalanceFetcher looks up the current balance of an account in wei.
type BalanceFetcher interface {
	FetchBalance(ctx context.Context, address common.Address) (*big.Int, error)
}

// BalanceHandler handles balance API requests
type BalanceHandler struct {
	fetcher BalanceFetcher
	timeout time.Duration
	logger  zerolog.Logger
}

// NewBalanceHandler creates a new BalanceHandler. Each fetch is bounded by
// timeout.
func NewBalanceHandler(fetcher BalanceFetcher, timeout time.Duration, logger zerolog.Logger) *BalanceHandler {
	return &BalanceHandler{
		fetcher: fetcher,
		timeout: timeout,
		logger:  logger.With().Str("component", "balance").Logger(),
	}
}

// Get returns the balance of an address
// GET /balance/:address
func (h *BalanceHandler) Get(c *gin.Context) {
	address, err := models.ParseAddress(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	wei, err := h.fetcher.FetchBalance(ctx, address)
	if err != nil {
		status, message := h.classify(err)
		event := h.logger.Warn()
		if status == http.StatusInternalServerError {
			event = h.logger.Error()
		}
		event.Err(err).Str("address", address.Hex()).Int("status", status).Msg("balance fetch failed")
		c.JSON(status, gin.H{"error": message})
		return
	}

	c.JSON(http.StatusOK, models.NewBalance(address, wei))
}

// classify maps a fetch error to an HTTP status and a short message that
// is safe to show to clients.
func (h *BalanceHandler) classify(err error) (int, string) {
	var connErr *upstream.ConnectionError
	var rpcErr *upstream.RPCError

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "rpc endpoint timed out"
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "request canceled"
	case errors.Is(err, upstream.ErrConfiguration):
		return http.StatusInternalServerError, "rpc endpoint is not configured"
	case errors.As(err, &connErr):
		return http.StatusBadGateway, "rpc endpoint unreachable"
	case errors.As(err, &rpcErr):
		return http.StatusBadGateway, "rpc call failed"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
