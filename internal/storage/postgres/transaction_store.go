package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"dex-ledger/internal/domain"
	"dex-ledger/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

// Get retrieves a transaction by hash. Returns ErrNotFound if not exists.
func (s *TransactionStore) Get(ctx context.Context, hash common.Hash) (*domain.Transaction, error) {
	query := `
		SELECT block_number, timestamp, swap_ids, chain_in_progress, chain_beneficiary
		FROM transactions
		WHERE hash = $1
	`

	var (
		tx          = domain.Transaction{Hash: hash}
		block       int64
		beneficiary *string
	)
	err := s.pool.db(ctx).QueryRow(ctx, query, hashText(hash)).Scan(
		&block,
		&tx.Timestamp,
		&tx.SwapIDs,
		&tx.ChainInProgress,
		&beneficiary,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}

	tx.BlockNumber = uint64(block)
	if beneficiary != nil {
		b := common.HexToAddress(*beneficiary)
		tx.ChainBeneficiary = &b
	}
	return &tx, nil
}

// Put inserts or replaces the transaction.
func (s *TransactionStore) Put(ctx context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.Hash == (common.Hash{}) {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO transactions (hash, block_number, timestamp, swap_ids, chain_in_progress, chain_beneficiary)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (hash) DO UPDATE SET
			swap_ids = EXCLUDED.swap_ids,
			chain_in_progress = EXCLUDED.chain_in_progress,
			chain_beneficiary = EXCLUDED.chain_beneficiary
	`

	var beneficiary *string
	if tx.ChainBeneficiary != nil {
		b := addrText(*tx.ChainBeneficiary)
		beneficiary = &b
	}
	swapIDs := tx.SwapIDs
	if swapIDs == nil {
		swapIDs = []string{}
	}

	_, err := s.pool.db(ctx).Exec(ctx, query,
		hashText(tx.Hash),
		int64(tx.BlockNumber),
		tx.Timestamp,
		swapIDs,
		tx.ChainInProgress,
		beneficiary,
	)
	if err != nil {
		return fmt.Errorf("put transaction: %w", err)
	}
	return nil
}
