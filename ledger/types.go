/*
Package ledger provides the core inventory engine.

PURPOSE:
  This package contains the domain-agnostic types and algorithms for
  tracking donated resources. Whether the ledger records blood units or
  organs, the same engine handles entry validation, balance computation,
  and the outbound admission check.

KEY CONCEPTS IN THIS FILE (types.go):
  - Entry: A single inventory movement (inbound donation or outbound issue)
  - Direction: Whether stock moved into or out of an organisation
  - Filter: Exact-match query predicate over ledger entries

DESIGN PRINCIPLES:
  1. Derived balance: Stock level is always computed from the entries,
     never stored alongside them.
  2. Precision: Uses decimal.Decimal so sums are exact (no float drift).
  3. Partitioning: Every balance question is scoped to an organisation;
     organisations never see each other's stock.

SEE ALSO:
  - balance.go: Balance computation from scoped sums
  - admission.go: Outbound stock check
  - store.go: Persistence interface
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DIRECTION - Inbound vs outbound movement
// =============================================================================

// Direction records whether an entry adds stock (a donation coming in) or
// removes stock (units issued to a hospital).
type Direction string

const (
	In  Direction = "in"
	Out Direction = "out"
)

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == In || d == Out
}

// =============================================================================
// ENTRY - A single inventory movement
// =============================================================================

// Entry is one row of an inventory ledger.
//
// The counterparty depends on the direction: inbound entries reference the
// donor the stock came from, outbound entries reference the hospital the
// stock went to. Entries are partitioned by Organisation; every balance is
// computed within a single partition.
type Entry struct {
	ID        string
	Direction Direction

	// Subtype classifies the resource within the ledger: a blood group
	// for the blood ledger, an organ type for the organ ledger.
	Subtype string

	// Quantity is always positive; the direction carries the sign.
	Quantity decimal.Decimal

	// Organisation is the owning blood bank (the balance partition).
	Organisation string

	// Donor is set for inbound entries, Hospital for outbound ones.
	Donor    string
	Hospital string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the required-field and conditional-required invariants.
// requireScope is false for ledgers that allow unscoped entries.
func (e Entry) Validate(requireScope bool) error {
	if !e.Direction.Valid() {
		return &ValidationError{Field: "direction", Message: "must be \"in\" or \"out\""}
	}
	if e.Subtype == "" {
		return &ValidationError{Field: "subtype", Message: "is required"}
	}
	if !e.Quantity.IsPositive() {
		return &ValidationError{Field: "quantity", Message: "must be greater than zero"}
	}
	if requireScope && e.Organisation == "" {
		return &ValidationError{Field: "organisation", Message: "is required"}
	}
	if e.Direction == In && e.Donor == "" {
		return &ValidationError{Field: "donor", Message: "is required for inbound entries"}
	}
	if e.Direction == Out && e.Hospital == "" {
		return &ValidationError{Field: "hospital", Message: "is required for outbound entries"}
	}
	return nil
}

// =============================================================================
// FILTER - Exact-match query predicate
// =============================================================================

// Filter selects ledger entries by exact match on the set fields.
// Zero-valued fields match everything.
type Filter struct {
	Organisation string
	Direction    Direction
	Subtype      string
	Donor        string
	Hospital     string
}

// Matches reports whether e satisfies every set field of f.
func (f Filter) Matches(e Entry) bool {
	if f.Organisation != "" && e.Organisation != f.Organisation {
		return false
	}
	if f.Direction != "" && e.Direction != f.Direction {
		return false
	}
	if f.Subtype != "" && e.Subtype != f.Subtype {
		return false
	}
	if f.Donor != "" && e.Donor != f.Donor {
		return false
	}
	if f.Hospital != "" && e.Hospital != f.Hospital {
		return false
	}
	return true
}

// QueryOptions tunes a ledger query. Results are always ordered most
// recent first; Limit of 0 means no limit.
type QueryOptions struct {
	Limit int
}

// RefField names a reference column of the ledger, used when deriving
// participant directories from distinct references.
type RefField string

const (
	RefDonor        RefField = "donor"
	RefHospital     RefField = "hospital"
	RefOrganisation RefField = "organisation"
)
