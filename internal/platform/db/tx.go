package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type txKey struct{}

// Querier is the part of the pgx API shared by pools, pooled connections and
// transactions. Repositories only talk to the database through it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// TxFromContext returns the transaction started by TxManager, if any.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

// Conn picks the querier for ctx: the active transaction, then the tenant
// connection, then the pool.
func Conn(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

type txBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// TxManager runs functions inside a database transaction. The transaction is
// opened on the tenant connection when one is in the context so it keeps the
// tenant search_path.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithTx runs fn in a READ COMMITTED transaction.
func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.WithTxOptions(ctx, pgx.TxOptions{}, fn)
}

// WithSerializableTx runs fn in a SERIALIZABLE transaction. A serialization
// failure on commit is reported as a conflict.
func (m *TxManager) WithSerializableTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.WithTxOptions(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
}

// WithTxOptions commits when fn returns nil and rolls back otherwise. Calls
// nested inside an open transaction join it.
func (m *TxManager) WithTxOptions(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context) error) (err error) {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	var beginner txBeginner = m.pool
	if c := ConnFromContext(ctx); c != nil {
		beginner = c
	}

	tx, err := beginner.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return MapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return MapError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}
