package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Pair is the reserve and volume state of one constant-product market.
// Corresponds to pairs table in PostgreSQL.
type Pair struct {
	Address common.Address `json:"address"`
	Token0  common.Address `json:"token0"`
	Token1  common.Address `json:"token1"`

	Reserve0    decimal.Decimal `json:"reserve0"`
	Reserve1    decimal.Decimal `json:"reserve1"`
	TotalSupply decimal.Decimal `json:"totalSupply"` // LP tokens, 18 decimals

	ReserveETH        decimal.Decimal `json:"reserveETH"`
	ReserveUSD        decimal.Decimal `json:"reserveUSD"`
	TrackedReserveETH decimal.Decimal `json:"trackedReserveETH"` // whitelisted contribution to factory totals

	Token0Price decimal.Decimal `json:"token0Price"` // reserve0 / reserve1
	Token1Price decimal.Decimal `json:"token1Price"` // reserve1 / reserve0

	VolumeToken0       decimal.Decimal `json:"volumeToken0"`
	VolumeToken1       decimal.Decimal `json:"volumeToken1"`
	VolumeUSD          decimal.Decimal `json:"volumeUSD"`
	UntrackedVolumeUSD decimal.Decimal `json:"untrackedVolumeUSD"`
	TxCount            int64           `json:"txCount"`

	CreatedAtTimestamp int64  `json:"createdAtTimestamp"` // unix seconds
	CreatedAtBlock     uint64 `json:"createdAtBlock"`
}
