/*
service.go - Organ ledger operations

PURPOSE:
  Create, list, update and delete organ inventory records, and compute
  the per-organ-type analytics report.

EDIT RE-VALIDATION:
  Every mutation runs under the admission locks of the stock pairs it
  touches. An update moving an entry between pairs locks both. The net
  effect of the edit on each pair's available stock is computed first;
  if any pair would go negative the edit is rejected with the same
  insufficient-stock error an over-large outbound request gets.
*/
package organ

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/redcell/inventory-engine/ledger"
)

// Service exposes organ ledger operations.
type Service struct {
	Store     Store
	Balances  *ledger.Engine
	Admission *ledger.Admission
}

func NewService(store Store) *Service {
	engine := ledger.NewEngine(store)
	return &Service{
		Store:     store,
		Balances:  engine,
		Admission: ledger.NewAdmission(engine, ""),
	}
}

// =============================================================================
// RECORDING
// =============================================================================

// Params carries the editable fields of an organ record.
type Params struct {
	Direction    ledger.Direction
	OrganType    string
	BloodGroup   string
	Quantity     decimal.Decimal
	Organisation string
	Donor        string
	Hospital     string
	PatientName  string
	Age          int
	Email        string
	Phone        string

	// Document URLs; empty means "no new upload" on update.
	MedicalDocumentURL string
	IdentityProofURL   string
}

func (p Params) entry() Entry {
	return Entry{
		Entry: ledger.Entry{
			Direction:    p.Direction,
			Subtype:      p.OrganType,
			Quantity:     p.Quantity,
			Organisation: p.Organisation,
			Donor:        p.Donor,
			Hospital:     p.Hospital,
		},
		BloodGroup:         p.BloodGroup,
		PatientName:        p.PatientName,
		Age:                p.Age,
		Email:              p.Email,
		Phone:              p.Phone,
		MedicalDocumentURL: p.MedicalDocumentURL,
		IdentityProofURL:   p.IdentityProofURL,
	}
}

// Add validates and appends a new organ entry. Outbound entries pass the
// admission check first.
func (s *Service) Add(ctx context.Context, p Params) (Entry, error) {
	entry := p.entry()
	if err := entry.Validate(); err != nil {
		return Entry{}, err
	}

	var stored Entry
	var err error
	if entry.Direction == ledger.Out {
		err = s.Admission.Commit(ctx, entry.Organisation, entry.Subtype, entry.Quantity, func(ctx context.Context) error {
			var appendErr error
			stored, appendErr = s.Store.AppendOrgan(ctx, entry)
			return appendErr
		})
	} else {
		stored, err = s.Store.AppendOrgan(ctx, entry)
	}
	if err != nil {
		return Entry{}, err
	}
	return stored, nil
}

// =============================================================================
// MUTATION - update and delete with invariant re-validation
// =============================================================================

// Update replaces the editable fields of an existing record. Uploaded
// document URLs are kept unless the params carry replacements.
func (s *Service) Update(ctx context.Context, id string, p Params) (Entry, error) {
	existing, err := s.Store.GetOrgan(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	if existing == nil {
		return Entry{}, &ledger.NotFoundError{Kind: "organ record", Ref: id}
	}

	updated := p.entry()
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	if updated.MedicalDocumentURL == "" {
		updated.MedicalDocumentURL = existing.MedicalDocumentURL
	}
	if updated.IdentityProofURL == "" {
		updated.IdentityProofURL = existing.IdentityProofURL
	}
	if err := updated.Validate(); err != nil {
		return Entry{}, err
	}

	pairs := []ledger.Pair{pairOf(existing.Entry), pairOf(updated.Entry)}
	var stored Entry
	err = s.Admission.Serialize(pairs, func() error {
		deltas := map[ledger.Pair]decimal.Decimal{
			pairOf(existing.Entry): contribution(existing.Entry).Neg(),
		}
		target := pairOf(updated.Entry)
		deltas[target] = deltas[target].Add(contribution(updated.Entry))

		if err := s.checkDeltas(ctx, deltas); err != nil {
			return err
		}
		var updateErr error
		stored, updateErr = s.Store.UpdateOrgan(ctx, updated)
		return updateErr
	})
	if err != nil {
		return Entry{}, err
	}
	return stored, nil
}

// Delete removes a record. Deleting an inbound entry that outbound
// entries already drew on is rejected.
func (s *Service) Delete(ctx context.Context, id string) error {
	existing, err := s.Store.GetOrgan(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return &ledger.NotFoundError{Kind: "organ record", Ref: id}
	}

	pair := pairOf(existing.Entry)
	return s.Admission.Serialize([]ledger.Pair{pair}, func() error {
		deltas := map[ledger.Pair]decimal.Decimal{pair: contribution(existing.Entry).Neg()}
		if err := s.checkDeltas(ctx, deltas); err != nil {
			return err
		}
		return s.Store.DeleteOrgan(ctx, id)
	})
}

func pairOf(e ledger.Entry) ledger.Pair {
	return ledger.Pair{Scope: e.Organisation, Subtype: e.Subtype}
}

// contribution is the entry's signed effect on its pair's available
// stock: donations add, issues subtract.
func contribution(e ledger.Entry) decimal.Decimal {
	if e.Direction == ledger.Out {
		return e.Quantity.Neg()
	}
	return e.Quantity
}

// checkDeltas rejects any edit whose net effect would drive an affected
// pair's available stock negative. Pairs the edit only adds stock to are
// trivially safe and skipped.
func (s *Service) checkDeltas(ctx context.Context, deltas map[ledger.Pair]decimal.Decimal) error {
	for pair, delta := range deltas {
		if !delta.IsNegative() {
			continue
		}
		balance, err := s.Balances.BalanceFor(ctx, pair.Scope, pair.Subtype)
		if err != nil {
			return err
		}
		if balance.Available.Add(delta).IsNegative() {
			return &ledger.InsufficientStockError{
				Subtype:   pair.Subtype,
				Available: balance.Available,
				Requested: delta.Neg(),
			}
		}
	}
	return nil
}

// =============================================================================
// LISTING AND REPORTING
// =============================================================================

// List returns entries within the caller's visibility, narrowed by f,
// most recent first.
func (s *Service) List(ctx context.Context, vis ledger.Visibility, f ledger.Filter, opts ledger.QueryOptions) ([]Entry, error) {
	return s.Store.ListOrgans(ctx, vis.Apply(f), opts)
}

// Get returns one record or NotFoundError.
func (s *Service) Get(ctx context.Context, id string) (Entry, error) {
	e, err := s.Store.GetOrgan(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	if e == nil {
		return Entry{}, &ledger.NotFoundError{Kind: "organ record", Ref: id}
	}
	return *e, nil
}

// Analytics computes totalIn/totalOut/available for every organ type
// observed within the caller's visibility.
func (s *Service) Analytics(ctx context.Context, vis ledger.Visibility) ([]ledger.Balance, error) {
	types, err := s.Store.OrganTypes(ctx, vis.Apply(ledger.Filter{}))
	if err != nil {
		return nil, err
	}
	return s.Balances.Report(ctx, vis.Scope(), types)
}
