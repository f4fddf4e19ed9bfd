package storage

import "context"

// Transactor runs fn as one atomic unit. Every store write made with the
// context passed to fn, the checkpoint included, is committed together or
// discarded together.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Direct runs fn without isolation. It suits stores that cannot roll back.
type Direct struct{}

// WithinTx calls fn.
func (Direct) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var _ Transactor = Direct{}
