/*
balance.go - Stock balance computation

PURPOSE:
  Computes available stock for a (organisation, subtype) pair. This is the
  central calculation that answers "how much O+ does this blood bank have?"

KEY INSIGHT:
  Balance is always derived. There is no stored counter that can drift out
  of sync with the ledger: every query replays the scoped sums.

    available = sum(quantity where direction=in)
              - sum(quantity where direction=out)

  The two sums are independent and run concurrently, as do the per-subtype
  computations of a full report.

NEGATIVE BALANCES:
  Available can only be read as negative if the admission check was
  bypassed (e.g. by editing organ records). The engine reports what the
  ledger says; enforcement lives in admission.go and in the organ service's
  edit re-validation.

SEE ALSO:
  - admission.go: Uses BalanceFor to gate outbound entries
  - store.go: Summer interface providing the scoped sums
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// BALANCE - Derived stock level for one (organisation, subtype) pair
// =============================================================================

// Balance is the derived stock level for a single subtype within one
// organisation partition (or across all partitions when unscoped).
type Balance struct {
	Subtype   string
	TotalIn   decimal.Decimal
	TotalOut  decimal.Decimal
	Available decimal.Decimal
}

// =============================================================================
// ENGINE - Computes balances from scoped sums
// =============================================================================

// Engine computes balances over a ledger store.
type Engine struct {
	Sums Summer
}

func NewEngine(sums Summer) *Engine {
	return &Engine{Sums: sums}
}

// BalanceFor computes the balance for one (organisation, subtype) pair.
// An empty scope computes across all organisations (admin view).
// The inbound and outbound sums run concurrently.
func (e *Engine) BalanceFor(ctx context.Context, scope, subtype string) (Balance, error) {
	var totalIn, totalOut decimal.Decimal

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totalIn, err = e.Sums.SumQuantity(ctx, Filter{Organisation: scope, Direction: In, Subtype: subtype})
		return err
	})
	g.Go(func() error {
		var err error
		totalOut, err = e.Sums.SumQuantity(ctx, Filter{Organisation: scope, Direction: Out, Subtype: subtype})
		return err
	})
	if err := g.Wait(); err != nil {
		return Balance{}, err
	}

	return Balance{
		Subtype:   subtype,
		TotalIn:   totalIn,
		TotalOut:  totalOut,
		Available: totalIn.Sub(totalOut),
	}, nil
}

// Report computes BalanceFor for every given subtype concurrently.
// Results come back in the order of subtypes, so fixed-set reports
// (the eight blood groups) render stably.
func (e *Engine) Report(ctx context.Context, scope string, subtypes []string) ([]Balance, error) {
	results := make([]Balance, len(subtypes))

	g, ctx := errgroup.WithContext(ctx)
	for i, subtype := range subtypes {
		i, subtype := i, subtype
		g.Go(func() error {
			b, err := e.BalanceFor(ctx, scope, subtype)
			if err != nil {
				return err
			}
			results[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
