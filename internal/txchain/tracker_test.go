package txchain

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/storage/memory"
)

func TestTracker_BeginCreatesThenLoads(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(memory.NewTransactionStore())
	meta := domain.EventMeta{TxHash: common.HexToHash("0x01"), BlockNumber: 10, Timestamp: 1000}

	tx, err := tracker.Begin(ctx, meta)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), tx.BlockNumber)
	assert.Equal(t, int64(1000), tx.Timestamp)
	assert.Empty(t, tx.SwapIDs)
	assert.False(t, tx.ChainInProgress)

	tx.AppendLeg(tx.NextLegID())
	tx.OpenChain()
	require.NoError(t, tracker.Save(ctx, tx))

	again, err := tracker.Begin(ctx, domain.EventMeta{TxHash: meta.TxHash, BlockNumber: 99})
	require.NoError(t, err)
	assert.Equal(t, uint64(10), again.BlockNumber)
	assert.True(t, again.ChainInProgress)
	assert.Equal(t, meta.TxHash.Hex()+"-1", again.NextLegID())
}

func TestTransaction_ChainLifecycle(t *testing.T) {
	final := common.HexToAddress("0xf1")
	tx := &domain.Transaction{Hash: common.HexToHash("0x02")}

	// closing with nothing open records no beneficiary
	tx.CloseChain(final)
	assert.False(t, tx.ChainInProgress)
	assert.Nil(t, tx.ChainBeneficiary)

	tx.OpenChain()
	tx.OpenChain() // a middle hop continues the open chain
	assert.True(t, tx.ChainInProgress)

	tx.CloseChain(final)
	assert.False(t, tx.ChainInProgress)
	require.NotNil(t, tx.ChainBeneficiary)
	assert.Equal(t, final, *tx.ChainBeneficiary)

	tx.OpenChain()
	assert.Nil(t, tx.ChainBeneficiary)
}
