package ingestion

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"golang.org/x/time/rate"

	"dex-ledger/internal/observability"
)

// NewLimiter returns a limiter allowing limit calls per second. A limit of
// zero or less is unlimited; burst defaults to 1.
func NewLimiter(limit rate.Limit, burst int) *rate.Limiter {
	if limit <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(limit, burst)
}

// LimitedCaller sends eth_call through a limiter shared with the log source,
// so metadata calls count against the same node budget.
type LimitedCaller struct {
	caller  ethereum.ContractCaller
	limiter *rate.Limiter
}

// NewLimitedCaller wraps caller.
func NewLimitedCaller(caller ethereum.ContractCaller, limiter *rate.Limiter) *LimitedCaller {
	return &LimitedCaller{caller: caller, limiter: limiter}
}

// CallContract waits for the limiter, then performs the call.
func (c *LimitedCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	out, err := c.caller.CallContract(ctx, msg, block)
	observability.RecordRPCLatency("eth_call", time.Since(start).Seconds())
	return out, err
}

var _ ethereum.ContractCaller = (*LimitedCaller)(nil)
