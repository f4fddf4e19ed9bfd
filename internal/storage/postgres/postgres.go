package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"dex-ledger/internal/observability"
	"dex-ledger/internal/storage"
)

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a new Postgres connection pool.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	config.ConnConfig.Tracer = queryTracer{}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

type queryStartKey struct{}

type queryStart struct {
	op    string
	start time.Time
}

// queryTracer reports every statement's duration and failure to the
// database metrics, labeled by its leading SQL keyword.
type queryTracer struct{}

func (queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{op: statementKind(data.SQL), start: time.Now()})
}

func (queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qs, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	err := data.Err
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
	}
	observability.RecordDBQuery("postgres", qs.op, time.Since(qs.start).Seconds(), err)
}

func statementKind(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}

type txKey struct{}

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// db returns the transaction carried by ctx, or the pool outside one.
func (p *Pool) db(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return p.Pool
}

// WithinTx runs fn in a single database transaction. Stores called with the
// context handed to fn write through that transaction. A nested call joins
// the outer transaction.
func (p *Pool) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	return pgx.BeginFunc(ctx, p.Pool, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

var _ storage.Transactor = (*Pool)(nil)

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// NewStores returns every record store backed by the pool.
func NewStores(pool *Pool) storage.Stores {
	return storage.Stores{
		Positions:    NewPositionStore(pool),
		Users:        NewUserStore(pool),
		Pairs:        NewPairStore(pool),
		Tokens:       NewTokenStore(pool),
		Factories:    NewFactoryStore(pool),
		Bundles:      NewBundleStore(pool),
		Transactions: NewTransactionStore(pool),
		SwapLegs:     NewSwapLegStore(pool),
	}
}

// isNotFoundError checks if error indicates no rows found.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Addresses are stored as lowercase hex. NUMERIC columns are written from
// decimal strings and read back through ::text casts.

func addrText(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func hashText(h common.Hash) string {
	return strings.ToLower(h.Hex())
}

func decText(d decimal.Decimal) string {
	return d.String()
}

// decimalScanner collects ::text columns and parses them after Scan.
type decimalScanner struct {
	raw  []*string
	dsts []*decimal.Decimal
}

func (s *decimalScanner) col(dst *decimal.Decimal) *string {
	r := new(string)
	s.raw = append(s.raw, r)
	s.dsts = append(s.dsts, dst)
	return r
}

func (s *decimalScanner) parse() error {
	for i, r := range s.raw {
		d, err := decimal.NewFromString(*r)
		if err != nil {
			return fmt.Errorf("parse numeric %q: %w", *r, err)
		}
		*s.dsts[i] = d
	}
	return nil
}
