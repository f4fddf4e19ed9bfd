package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Position is the running cost-basis record for one (user, token) pair.
// Corresponds to positions table in PostgreSQL.
type Position struct {
	ID                           string          `json:"id"`    // idhash.PositionID(user, token)
	User                         common.Address  `json:"user"`  // creditor/debitor address
	Token                        common.Address  `json:"token"` // token contract
	OutstandingQuantity          decimal.Decimal `json:"outstandingQuantity"`
	WeightedAverageCostUSD       decimal.Decimal `json:"weightedAverageCostUsd"`
	ConsumedQuantity             decimal.Decimal `json:"consumedQuantity"`
	RealizedProfitUSD            decimal.Decimal `json:"realizedProfitUsd"`
	RealizedLossUSD              decimal.Decimal `json:"realizedLossUsd"` // non-positive
	RealizedNetProceedsUSD       decimal.Decimal `json:"realizedNetProceedsUsd"`
	UnrecognizableQuantity       decimal.Decimal `json:"unrecognizableQuantity"` // sold beyond known holdings
	SaleCount                    int64           `json:"saleCount"`
	ContractAttributionDisproven bool            `json:"contractAttributionDisproven"` // sticky
}

// NewPosition returns an empty position for (user, token).
func NewPosition(id string, user, token common.Address, verifiedWallet bool) *Position {
	return &Position{
		ID:                           id,
		User:                         user,
		Token:                        token,
		ContractAttributionDisproven: verifiedWallet,
	}
}

// User is an address seen as a trader or liquidity holder.
// Corresponds to users table in PostgreSQL.
type User struct {
	Address    common.Address  `json:"address"`
	USDSwapped decimal.Decimal `json:"usdSwapped"`
}
