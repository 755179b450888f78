// Package repokit provides common types and helpers for repository implementations
package repokit

import (
	"context"

	"moviesync/internal/platform/store"
)

// Queryer is the minimal read and write surface for SQL repos
type Queryer = store.RowQuerier

// TxRunner can execute a function inside a transaction
type TxRunner = store.TxRunner

type (
	// Rows are the result set of a query
	Rows = store.Rows

	// Row is a single row result from a query
	Row = store.Row

	// CommandTag is the result of a command that modifies data
	CommandTag = store.CommandTag
)

// WithSnapshot runs fn inside a read-only repeatable-read transaction so every
// query fn issues observes the same committed state
func WithSnapshot(ctx context.Context, tx TxRunner, fn func(q Queryer) error) error {
	return tx.TxWith(ctx, store.Snapshot, fn)
}

// BindSnapshot binds b inside a snapshot transaction and hands the bound repo to fn
func BindSnapshot[T any](ctx context.Context, tx TxRunner, b Binder[T], fn func(T) error) error {
	return WithSnapshot(ctx, tx, func(q Queryer) error {
		return fn(MustBind(b, q))
	})
}
