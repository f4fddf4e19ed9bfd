package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// BundleID is the key of the single price bundle record.
const BundleID = "1"

// Factory holds exchange-wide running totals.
// Corresponds to factories table in PostgreSQL.
type Factory struct {
	Address            common.Address  `json:"address"`
	PairCount          int64           `json:"pairCount"`
	TotalVolumeUSD     decimal.Decimal `json:"totalVolumeUSD"`
	TotalVolumeETH     decimal.Decimal `json:"totalVolumeETH"`
	UntrackedVolumeUSD decimal.Decimal `json:"untrackedVolumeUSD"`
	TotalLiquidityUSD  decimal.Decimal `json:"totalLiquidityUSD"`
	TotalLiquidityETH  decimal.Decimal `json:"totalLiquidityETH"`
	TxCount            int64           `json:"txCount"`
}

// Bundle holds the global reference price.
// Corresponds to bundles table in PostgreSQL.
type Bundle struct {
	ID          string          `json:"id"`
	EthPriceUSD decimal.Decimal `json:"ethPriceUSD"`
}
