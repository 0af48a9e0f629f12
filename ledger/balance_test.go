/*
balance_test.go - Balance derivation tests

CORE DESIGN:
- Balance is always derived from the entries, never stored
- Sums are exact decimal arithmetic; no float drift
- Every balance is computed within one organisation partition
*/
package ledger_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redcell/inventory-engine/ledger"
	ledgerstore "github.com/redcell/inventory-engine/ledger/store"
)

func qty(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func mustAppend(t *testing.T, s *ledgerstore.Memory, e ledger.Entry) {
	t.Helper()
	_, err := s.Append(context.Background(), e)
	require.NoError(t, err)
}

func entry(dir ledger.Direction, subtype, quantity, org string) ledger.Entry {
	e := ledger.Entry{
		Direction:    dir,
		Subtype:      subtype,
		Quantity:     qty(quantity),
		Organisation: org,
	}
	if dir == ledger.In {
		e.Donor = "donor-1"
	} else {
		e.Hospital = "hospital-1"
	}
	return e
}

// =============================================================================
// BALANCE CALCULATION TESTS
// =============================================================================

func TestBalanceFor_DerivedFromEntries(t *testing.T) {
	// GIVEN: Two donations of 450 and one issue of 300 for (org-1, O+)
	// WHEN: Computing the balance
	// THEN: available = 450 + 450 - 300 = 600

	store := ledgerstore.NewMemory()
	mustAppend(t, store, entry(ledger.In, "O+", "450", "org-1"))
	mustAppend(t, store, entry(ledger.In, "O+", "450", "org-1"))
	mustAppend(t, store, entry(ledger.Out, "O+", "300", "org-1"))

	engine := ledger.NewEngine(store)
	balance, err := engine.BalanceFor(context.Background(), "org-1", "O+")
	require.NoError(t, err)

	assert.True(t, balance.TotalIn.Equal(qty("900")), "total in: got %s", balance.TotalIn)
	assert.True(t, balance.TotalOut.Equal(qty("300")), "total out: got %s", balance.TotalOut)
	assert.True(t, balance.Available.Equal(qty("600")), "available: got %s", balance.Available)
}

func TestBalanceFor_ExactDecimalArithmetic(t *testing.T) {
	// GIVEN: Fractional quantities that don't sum cleanly in binary floats
	// WHEN: Summing 0.1 + 0.2 and issuing 0.3
	// THEN: The balance is exactly zero

	store := ledgerstore.NewMemory()
	mustAppend(t, store, entry(ledger.In, "O-", "0.1", "org-1"))
	mustAppend(t, store, entry(ledger.In, "O-", "0.2", "org-1"))
	mustAppend(t, store, entry(ledger.Out, "O-", "0.3", "org-1"))

	engine := ledger.NewEngine(store)
	balance, err := engine.BalanceFor(context.Background(), "org-1", "O-")
	require.NoError(t, err)

	assert.True(t, balance.Available.IsZero(), "available should be exactly zero, got %s", balance.Available)
}

func TestBalanceFor_ScopedToOrganisation(t *testing.T) {
	// GIVEN: Stock held by two different organisations
	// WHEN: Computing org-1's balance
	// THEN: org-2's entries do not count; an empty scope counts both

	store := ledgerstore.NewMemory()
	mustAppend(t, store, entry(ledger.In, "A+", "100", "org-1"))
	mustAppend(t, store, entry(ledger.In, "A+", "250", "org-2"))

	engine := ledger.NewEngine(store)

	scoped, err := engine.BalanceFor(context.Background(), "org-1", "A+")
	require.NoError(t, err)
	assert.True(t, scoped.Available.Equal(qty("100")), "scoped available: got %s", scoped.Available)

	global, err := engine.BalanceFor(context.Background(), "", "A+")
	require.NoError(t, err)
	assert.True(t, global.Available.Equal(qty("350")), "global available: got %s", global.Available)
}

func TestBalanceFor_RepeatedReadsAgree(t *testing.T) {
	// Balance queries have no side effects: asking twice gives the same
	// answer and appends nothing.

	store := ledgerstore.NewMemory()
	mustAppend(t, store, entry(ledger.In, "B+", "120", "org-1"))

	engine := ledger.NewEngine(store)
	first, err := engine.BalanceFor(context.Background(), "org-1", "B+")
	require.NoError(t, err)
	second, err := engine.BalanceFor(context.Background(), "org-1", "B+")
	require.NoError(t, err)

	assert.True(t, first.Available.Equal(second.Available))

	entries, err := store.Query(context.Background(), ledger.Filter{}, ledger.QueryOptions{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// =============================================================================
// REPORT TESTS
// =============================================================================

func TestReport_IncludesZeroRowsInOrder(t *testing.T) {
	// GIVEN: Entries for only one of three requested subtypes
	// WHEN: Computing the report
	// THEN: Every subtype gets a row, zeros included, in input order

	store := ledgerstore.NewMemory()
	mustAppend(t, store, entry(ledger.In, "O+", "500", "org-1"))

	engine := ledger.NewEngine(store)
	report, err := engine.Report(context.Background(), "org-1", []string{"O+", "O-", "AB+"})
	require.NoError(t, err)

	require.Len(t, report, 3)
	assert.Equal(t, "O+", report[0].Subtype)
	assert.True(t, report[0].Available.Equal(qty("500")))
	assert.Equal(t, "O-", report[1].Subtype)
	assert.True(t, report[1].Available.IsZero())
	assert.Equal(t, "AB+", report[2].Subtype)
	assert.True(t, report[2].Available.IsZero())
}

// =============================================================================
// VISIBILITY TESTS
// =============================================================================

func TestVisibility_ApplyPinsOrganisation(t *testing.T) {
	f := ledger.Filter{Organisation: "someone-else", Subtype: "O+"}

	scoped := ledger.ScopedTo("org-1").Apply(f)
	assert.Equal(t, "org-1", scoped.Organisation, "scoped callers cannot query other partitions")
	assert.Equal(t, "O+", scoped.Subtype, "other filter fields pass through")

	open := ledger.Unrestricted().Apply(f)
	assert.Equal(t, "someone-else", open.Organisation, "admins keep their filter")

	// The zero value is the unrestricted view.
	var zero ledger.Visibility
	assert.Equal(t, ledger.Unrestricted(), zero)
	assert.Equal(t, f, zero.Apply(f))
	assert.Equal(t, "", zero.Scope())
}

func TestEntry_ValidateConditionalCounterparty(t *testing.T) {
	in := entry(ledger.In, "O+", "450", "org-1")
	in.Donor = ""
	err := in.Validate(true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrValidation)

	out := entry(ledger.Out, "O+", "450", "org-1")
	out.Hospital = ""
	err = out.Validate(true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrValidation)
}
