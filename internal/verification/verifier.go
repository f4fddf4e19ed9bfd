// Package verification checks that persisted ledger records match the
// records produced by a deterministic replay of the same events.
package verification

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"dex-ledger/internal/domain"
)

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// VerificationResult contains the result of verifying a single record.
type VerificationResult struct {
	Kind        string            // "pair" or "position"
	Key         string            // pair address, or user/token
	Match       bool              // true if all fields match
	Divergences []FieldDivergence // list of divergent fields
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalRecords     int                  // records verified
	MatchedRecords   int                  // records that matched exactly
	DivergentRecords int                  // records with divergences
	Results          []VerificationResult // individual results
}

// Verifier compares persisted records against a replay.
type Verifier interface {
	// VerifyAll verifies every replayed pair and, for each user, the
	// positions in tokens traded on those pairs.
	VerifyAll(ctx context.Context, users []common.Address) (*VerificationReport, error)
}

type comparer struct {
	divergences []FieldDivergence
}

func (c *comparer) dec(field string, stored, replayed decimal.Decimal) {
	if !stored.Equal(replayed) {
		c.divergences = append(c.divergences, FieldDivergence{Field: field, Expected: stored.String(), Actual: replayed.String()})
	}
}

func (c *comparer) eq(field string, stored, replayed interface{}) {
	if stored != replayed {
		c.divergences = append(c.divergences, FieldDivergence{Field: field, Expected: stored, Actual: replayed})
	}
}

// ComparePairs compares two pair records and returns divergences.
// Decimals compare by value, so 1.50 equals 1.5.
func ComparePairs(stored, replayed *domain.Pair) []FieldDivergence {
	var c comparer

	c.eq("Address", stored.Address, replayed.Address)
	c.eq("Token0", stored.Token0, replayed.Token0)
	c.eq("Token1", stored.Token1, replayed.Token1)

	c.dec("Reserve0", stored.Reserve0, replayed.Reserve0)
	c.dec("Reserve1", stored.Reserve1, replayed.Reserve1)
	c.dec("TotalSupply", stored.TotalSupply, replayed.TotalSupply)
	c.dec("ReserveETH", stored.ReserveETH, replayed.ReserveETH)
	c.dec("ReserveUSD", stored.ReserveUSD, replayed.ReserveUSD)
	c.dec("TrackedReserveETH", stored.TrackedReserveETH, replayed.TrackedReserveETH)
	c.dec("Token0Price", stored.Token0Price, replayed.Token0Price)
	c.dec("Token1Price", stored.Token1Price, replayed.Token1Price)
	c.dec("VolumeToken0", stored.VolumeToken0, replayed.VolumeToken0)
	c.dec("VolumeToken1", stored.VolumeToken1, replayed.VolumeToken1)
	c.dec("VolumeUSD", stored.VolumeUSD, replayed.VolumeUSD)
	c.dec("UntrackedVolumeUSD", stored.UntrackedVolumeUSD, replayed.UntrackedVolumeUSD)

	c.eq("TxCount", stored.TxCount, replayed.TxCount)
	c.eq("CreatedAtTimestamp", stored.CreatedAtTimestamp, replayed.CreatedAtTimestamp)
	c.eq("CreatedAtBlock", stored.CreatedAtBlock, replayed.CreatedAtBlock)

	return c.divergences
}

// ComparePositions compares two position records and returns divergences.
func ComparePositions(stored, replayed *domain.Position) []FieldDivergence {
	var c comparer

	c.eq("ID", stored.ID, replayed.ID)
	c.eq("User", stored.User, replayed.User)
	c.eq("Token", stored.Token, replayed.Token)

	c.dec("OutstandingQuantity", stored.OutstandingQuantity, replayed.OutstandingQuantity)
	c.dec("WeightedAverageCostUSD", stored.WeightedAverageCostUSD, replayed.WeightedAverageCostUSD)
	c.dec("ConsumedQuantity", stored.ConsumedQuantity, replayed.ConsumedQuantity)
	c.dec("RealizedProfitUSD", stored.RealizedProfitUSD, replayed.RealizedProfitUSD)
	c.dec("RealizedLossUSD", stored.RealizedLossUSD, replayed.RealizedLossUSD)
	c.dec("RealizedNetProceedsUSD", stored.RealizedNetProceedsUSD, replayed.RealizedNetProceedsUSD)
	c.dec("UnrecognizableQuantity", stored.UnrecognizableQuantity, replayed.UnrecognizableQuantity)

	c.eq("SaleCount", stored.SaleCount, replayed.SaleCount)
	c.eq("ContractAttributionDisproven", stored.ContractAttributionDisproven, replayed.ContractAttributionDisproven)

	return c.divergences
}
