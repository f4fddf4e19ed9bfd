package memory

import "dex-ledger/internal/storage"

// NewStores returns a storage.Stores backed entirely by memory.
func NewStores() storage.Stores {
	return storage.Stores{
		Positions:    NewPositionStore(),
		Users:        NewUserStore(),
		Pairs:        NewPairStore(),
		Tokens:       NewTokenStore(),
		Factories:    NewFactoryStore(),
		Bundles:      NewBundleStore(),
		Transactions: NewTransactionStore(),
		SwapLegs:     NewSwapLegStore(),
	}
}
