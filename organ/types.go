/*
Package organ wraps the generic ledger for organ inventory.

PURPOSE:
  The second ledger of the platform. Unlike blood, organ subtypes are
  free-form strings ("kidney", "liver", ...), quantities are counts
  rather than volumes, and records are mutable: entries can be updated
  and deleted after the fact for administrative correction.

MUTABILITY AND THE STOCK INVARIANT:
  Editing or deleting an inbound entry can retroactively invalidate the
  outbound entries it once covered. Edits are therefore re-validated:
  any change that would drive an affected (organisation, organ type)
  balance negative is rejected, the same way an over-large outbound
  request is.

SEE ALSO:
  - ledger: generic engine (balance, admission, visibility)
  - blood: the immutable, fixed-subtype sibling ledger
*/
package organ

import (
	"context"

	"github.com/redcell/inventory-engine/ledger"
)

// Entry is an organ ledger record. The embedded ledger.Entry carries the
// direction, organ type (as Subtype), quantity, and references; the rest
// is intake paperwork recorded alongside the movement.
type Entry struct {
	ledger.Entry

	// BloodGroup of the organ's donor or intended receiver.
	BloodGroup string

	// PatientName names the donor or receiver the entry concerns.
	PatientName string
	Age         int
	Email       string
	Phone       string

	// Supporting document URLs, set when proof files were uploaded.
	MedicalDocumentURL string
	IdentityProofURL   string
}

// Validate checks organ-specific required fields on top of the core
// ledger invariants. Organ entries may be unscoped (no organisation) and
// their counterparty references are optional; the paperwork fields are
// mandatory instead.
func (e Entry) Validate() error {
	if !e.Direction.Valid() {
		return &ledger.ValidationError{Field: "direction", Message: "must be \"in\" or \"out\""}
	}
	if e.Subtype == "" {
		return &ledger.ValidationError{Field: "organ_type", Message: "is required"}
	}
	if !e.Quantity.IsPositive() {
		return &ledger.ValidationError{Field: "quantity", Message: "must be greater than zero"}
	}
	if e.BloodGroup == "" {
		return &ledger.ValidationError{Field: "blood_group", Message: "is required"}
	}
	if e.PatientName == "" {
		return &ledger.ValidationError{Field: "patient_name", Message: "is required"}
	}
	if e.Age < 0 {
		return &ledger.ValidationError{Field: "age", Message: "must not be negative"}
	}
	if e.Email == "" {
		return &ledger.ValidationError{Field: "email", Message: "is required"}
	}
	if e.Phone == "" {
		return &ledger.ValidationError{Field: "phone", Message: "is required"}
	}
	return nil
}

// Store persists organ entries. It extends the generic summing contract
// with the mutations the organ ledger supports.
type Store interface {
	ledger.Summer

	// AppendOrgan assigns id and timestamps and returns the stored entry.
	AppendOrgan(ctx context.Context, e Entry) (Entry, error)

	// ListOrgans returns matching entries, most recent first.
	ListOrgans(ctx context.Context, f ledger.Filter, opts ledger.QueryOptions) ([]Entry, error)

	// GetOrgan returns the entry with the given id, or nil.
	GetOrgan(ctx context.Context, id string) (*Entry, error)

	// UpdateOrgan replaces the non-identity fields of the entry with
	// e's, bumps UpdatedAt, and returns the updated record.
	UpdateOrgan(ctx context.Context, e Entry) (Entry, error)

	// DeleteOrgan removes the entry. Hard removal.
	DeleteOrgan(ctx context.Context, id string) error

	// OrganTypes returns the distinct organ types among matching entries.
	OrganTypes(ctx context.Context, f ledger.Filter) ([]string, error)
}
