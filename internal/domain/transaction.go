package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Transaction is the per-transaction chain state shared by every swap in it.
// Corresponds to transactions table in PostgreSQL.
type Transaction struct {
	Hash             common.Hash     `json:"hash"`
	BlockNumber      uint64          `json:"blockNumber"`
	Timestamp        int64           `json:"timestamp"` // unix seconds
	SwapIDs          []string        `json:"swaps"`     // ordered leg IDs
	ChainInProgress  bool            `json:"chainInProgress"`
	ChainBeneficiary *common.Address `json:"chainBeneficiary,omitempty"`
}

// NextLegID returns the ID the next appended swap leg will carry.
func (t *Transaction) NextLegID() string {
	return fmt.Sprintf("%s-%d", t.Hash.Hex(), len(t.SwapIDs))
}

// AppendLeg records a processed swap leg.
func (t *Transaction) AppendLeg(id string) {
	t.SwapIDs = append(t.SwapIDs, id)
}

// OpenChain marks a multi-hop sequence as in progress. Calling it while a
// chain is already open continues that chain.
func (t *Transaction) OpenChain() {
	t.ChainInProgress = true
	t.ChainBeneficiary = nil
}

// CloseChain ends the open sequence, if any, at the given recipient.
func (t *Transaction) CloseChain(beneficiary common.Address) {
	if t.ChainInProgress {
		b := beneficiary
		t.ChainBeneficiary = &b
	}
	t.ChainInProgress = false
}

// Clone returns a deep copy.
func (t *Transaction) Clone() *Transaction {
	c := *t
	c.SwapIDs = append([]string(nil), t.SwapIDs...)
	if t.ChainBeneficiary != nil {
		b := *t.ChainBeneficiary
		c.ChainBeneficiary = &b
	}
	return &c
}

// SwapLeg is one processed swap event.
// Corresponds to swap_legs table (PostgreSQL and ClickHouse journal).
type SwapLeg struct {
	ID          string         `json:"id"` // <txhash>-<n>
	Transaction common.Hash    `json:"transaction"`
	LogIndex    uint           `json:"logIndex"`
	BlockNumber uint64         `json:"blockNumber"`
	Timestamp   int64          `json:"timestamp"`
	Pair        common.Address `json:"pair"`
	Sender      common.Address `json:"sender"`
	From        common.Address `json:"from"`        // transaction origin
	To          common.Address `json:"to"`          // recipient as emitted
	Destination common.Address `json:"destination"` // recipient after router substitution

	Amount0In  decimal.Decimal `json:"amount0In"`
	Amount1In  decimal.Decimal `json:"amount1In"`
	Amount0Out decimal.Decimal `json:"amount0Out"`
	Amount1Out decimal.Decimal `json:"amount1Out"`
	AmountUSD  decimal.Decimal `json:"amountUSD"`

	RouterSwap   bool   `json:"routerSwap"`
	Accounted    bool   `json:"accounted"`
	CostBasisRef string `json:"costBasisRef,omitempty"` // position ID of the recognized sale
}
