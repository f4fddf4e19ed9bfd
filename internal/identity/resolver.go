// Package identity classifies addresses and resolves the economic party of a swap.
package identity

import "github.com/ethereum/go-ethereum/common"

// Resolver holds the static router allow-list.
type Resolver struct {
	intermediaries map[common.Address]struct{}
}

// NewResolver builds a resolver over the configured intermediary addresses.
func NewResolver(intermediaries []common.Address) *Resolver {
	set := make(map[common.Address]struct{}, len(intermediaries))
	for _, a := range intermediaries {
		set[a] = struct{}{}
	}
	return &Resolver{intermediaries: set}
}

// IsIntermediary reports whether addr is a known router or aggregator.
func (r *Resolver) IsIntermediary(addr common.Address) bool {
	_, ok := r.intermediaries[addr]
	return ok
}

// ResolveCreditor returns the address that actually funded a swap.
//
// A swap sent by an ordinary account is funded by that account. A swap sent
// by a router is funded by transferFrom when the transaction itself targets a
// router (the router forwarded the trader's tokens), and otherwise by the
// transaction's top-level target contract.
func (r *Resolver) ResolveCreditor(sender, transferFrom, txTarget common.Address) common.Address {
	if !r.IsIntermediary(sender) {
		return sender
	}
	if r.IsIntermediary(txTarget) {
		return transferFrom
	}
	return txTarget
}
