package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Token is an ERC-20 traded on at least one pair.
// Corresponds to tokens table in PostgreSQL.
type Token struct {
	Address     common.Address  `json:"address"`
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name"`
	Decimals    uint8           `json:"decimals"`
	TotalSupply decimal.Decimal `json:"totalSupply"` // raw units

	TradeVolume        decimal.Decimal `json:"tradeVolume"`
	TradeVolumeUSD     decimal.Decimal `json:"tradeVolumeUSD"`
	UntrackedVolumeUSD decimal.Decimal `json:"untrackedVolumeUSD"`
	TxCount            int64           `json:"txCount"`

	TotalLiquidity decimal.Decimal `json:"totalLiquidity"` // sum of reserves across pairs
	DerivedETH     decimal.Decimal `json:"derivedETH"`
}

// TokenMetadata is the display data resolved for a token contract.
type TokenMetadata struct {
	Symbol      string
	Name        string
	Decimals    uint8
	TotalSupply decimal.Decimal
}
