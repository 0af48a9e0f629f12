/*
admission.go - Outbound stock admission check

PURPOSE:
  Gates the creation of outbound entries. Stock must never go negative:
  for every (organisation, subtype) pair, the total issued can never
  exceed the total donated.

CHECK-THEN-COMMIT:
  A naive implementation reads the balance, compares, then appends. Two
  concurrent outbound requests against the same pair could both pass the
  read against a stale balance and jointly overdraw. The admission
  controller closes that race by serializing the whole check-then-commit
  sequence per (organisation, subtype) with a keyed mutex. Requests
  against different pairs do not contend.

  Mutable ledgers (organs support update and delete) route their edits
  through Serialize with every affected pair, so an edit cannot interleave
  with an admission check on the same stock.

SEE ALSO:
  - balance.go: BalanceFor used for the check
  - errors.go: InsufficientStockError carried to the caller
*/
package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ADMISSION - Serialized outbound stock check
// =============================================================================

// Pair identifies one stock partition: an organisation and a subtype.
type Pair struct {
	Scope   string
	Subtype string
}

// Admission gates outbound entries against the derived balance.
type Admission struct {
	Balances *Engine

	// Unit is the display unit carried on rejection errors ("ml" for
	// blood, empty for organ counts).
	Unit string

	mu    sync.Mutex
	locks map[Pair]*sync.Mutex
}

func NewAdmission(balances *Engine, unit string) *Admission {
	return &Admission{
		Balances: balances,
		Unit:     unit,
		locks:    make(map[Pair]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing one pair. Lock objects are never
// removed; the key space (organisations times subtypes) is small and
// bounded over a process lifetime.
func (a *Admission) lockFor(p Pair) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()

	l, ok := a.locks[p]
	if !ok {
		l = &sync.Mutex{}
		a.locks[p] = l
	}
	return l
}

// Serialize runs fn while holding the lock of every distinct pair.
// Locks are acquired in sorted order so concurrent callers touching
// overlapping pair sets cannot deadlock.
func (a *Admission) Serialize(pairs []Pair, fn func() error) error {
	distinct := make(map[Pair]bool, len(pairs))
	ordered := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if !distinct[p] {
			distinct[p] = true
			ordered = append(ordered, p)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Scope != ordered[j].Scope {
			return ordered[i].Scope < ordered[j].Scope
		}
		return ordered[i].Subtype < ordered[j].Subtype
	})

	for _, p := range ordered {
		l := a.lockFor(p)
		l.Lock()
		defer l.Unlock()
	}
	return fn()
}

// Commit runs the balance check for an outbound request and, if it
// passes, invokes commit while still holding the pair's lock. The commit
// callback performs the actual append, so no concurrent admission against
// the same pair can observe a stale balance.
//
// Returns *InsufficientStockError when requested exceeds available.
func (a *Admission) Commit(ctx context.Context, scope, subtype string, requested decimal.Decimal, commit func(context.Context) error) error {
	if !requested.IsPositive() {
		return &ValidationError{Field: "quantity", Message: "must be greater than zero"}
	}

	return a.Serialize([]Pair{{Scope: scope, Subtype: subtype}}, func() error {
		balance, err := a.Balances.BalanceFor(ctx, scope, subtype)
		if err != nil {
			return err
		}
		if requested.GreaterThan(balance.Available) {
			return &InsufficientStockError{
				Subtype:   subtype,
				Available: balance.Available,
				Requested: requested,
				Unit:      a.Unit,
			}
		}
		return commit(ctx)
	})
}
