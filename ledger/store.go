/*
store.go - Persistence interface for ledger entries

PURPOSE:
  Defines the interface between the engine and the database. The balance
  engine only needs the narrow Summer slice; listing and directory
  derivation need the full Store.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store (blood and organ tables)
  - ledger/store: in-memory store for tests and development

ORDERING:
  Query always returns entries most recent first (creation time
  descending). Balance sums are order-independent.

SEE ALSO:
  - balance.go: Uses Summer
  - ledger/store/memory.go: In-memory implementation
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Summer is the slice of a ledger store the balance engine depends on.
// Absence of matching rows sums to zero, not an error.
type Summer interface {
	// SumQuantity returns the exact sum of Quantity over entries matching f.
	SumQuantity(ctx context.Context, f Filter) (decimal.Decimal, error)
}

// Store persists ledger entries for one resource kind.
type Store interface {
	Summer

	// Append validates nothing; callers validate first. It assigns the
	// generated id and timestamps and returns the stored entry.
	Append(ctx context.Context, e Entry) (Entry, error)

	// Query returns entries matching f, most recent first.
	Query(ctx context.Context, f Filter, opts QueryOptions) ([]Entry, error)

	// Distinct returns the set of distinct non-empty values of a reference
	// field among entries matching f.
	Distinct(ctx context.Context, field RefField, f Filter) ([]string, error)
}
