/*
service.go - Blood ledger operations

PURPOSE:
  The application-facing surface of the blood ledger: record donations
  and issues, list transactions within the caller's visibility, and
  compute the per-group stock report.

RECORDING FLOW (outbound):
  1. Validate direction, group, quantity
  2. Resolve the counterparty hospital by email (404 if unknown)
  3. Admission check: requested <= available for (organisation, group)
  4. Append - steps 3 and 4 run under the per-pair admission lock

  Inbound recording skips step 3; donations always admit.
*/
package blood

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/redcell/inventory-engine/identity"
	"github.com/redcell/inventory-engine/ledger"
)

// Service exposes blood ledger operations.
type Service struct {
	Store     ledger.Store
	Users     identity.Store
	Balances  *ledger.Engine
	Admission *ledger.Admission
}

func NewService(store ledger.Store, users identity.Store) *Service {
	engine := ledger.NewEngine(store)
	return &Service{
		Store:     store,
		Users:     users,
		Balances:  engine,
		Admission: ledger.NewAdmission(engine, Unit),
	}
}

// =============================================================================
// RECORDING
// =============================================================================

// CreateParams carries a new blood transaction.
type CreateParams struct {
	Direction    ledger.Direction
	Group        string
	Quantity     decimal.Decimal
	Organisation string

	// Email identifies the counterparty: the donor for inbound entries,
	// the receiving hospital for outbound ones.
	Email string
}

// Create validates, resolves the counterparty, runs the admission check
// for outbound entries, and appends. No ledger mutation happens on any
// failure path.
func (s *Service) Create(ctx context.Context, p CreateParams) (ledger.Entry, error) {
	if !p.Direction.Valid() {
		return ledger.Entry{}, &ledger.ValidationError{Field: "direction", Message: "must be \"in\" or \"out\""}
	}
	if !ValidGroup(p.Group) {
		return ledger.Entry{}, &ledger.ValidationError{Field: "blood_group", Message: "must be one of O+, O-, AB+, AB-, A+, A-, B+, B-"}
	}
	if !p.Quantity.IsPositive() {
		return ledger.Entry{}, &ledger.ValidationError{Field: "quantity", Message: "must be greater than zero"}
	}
	if p.Organisation == "" {
		return ledger.Entry{}, &ledger.ValidationError{Field: "organisation", Message: "is required"}
	}

	counterparty, err := s.resolveByEmail(ctx, p.Email)
	if err != nil {
		return ledger.Entry{}, err
	}

	entry := ledger.Entry{
		Direction:    p.Direction,
		Subtype:      p.Group,
		Quantity:     p.Quantity,
		Organisation: p.Organisation,
	}
	switch p.Direction {
	case ledger.In:
		entry.Donor = counterparty.ID
	case ledger.Out:
		entry.Hospital = counterparty.ID
	}
	if err := entry.Validate(true); err != nil {
		return ledger.Entry{}, err
	}

	var stored ledger.Entry
	if p.Direction == ledger.Out {
		err = s.Admission.Commit(ctx, p.Organisation, p.Group, p.Quantity, func(ctx context.Context) error {
			var appendErr error
			stored, appendErr = s.Store.Append(ctx, entry)
			return appendErr
		})
	} else {
		stored, err = s.Store.Append(ctx, entry)
	}
	if err != nil {
		return ledger.Entry{}, err
	}
	return stored, nil
}

func (s *Service) resolveByEmail(ctx context.Context, email string) (identity.User, error) {
	if email == "" {
		return identity.User{}, &ledger.ValidationError{Field: "email", Message: "is required"}
	}
	u, err := s.Users.UserByEmail(ctx, email)
	if err != nil {
		return identity.User{}, err
	}
	if u == nil {
		return identity.User{}, &ledger.NotFoundError{Kind: "user", Ref: email}
	}
	return *u, nil
}

// =============================================================================
// LISTING
// =============================================================================

// Record is a ledger entry with its references resolved for display.
// Unresolvable references leave the corresponding field nil.
type Record struct {
	ledger.Entry
	DonorUser        *identity.User
	HospitalUser     *identity.User
	OrganisationUser *identity.User
}

// List returns entries within the caller's visibility, narrowed by f,
// most recent first, with participant references expanded.
func (s *Service) List(ctx context.Context, vis ledger.Visibility, f ledger.Filter, opts ledger.QueryOptions) ([]Record, error) {
	entries, err := s.Store.Query(ctx, vis.Apply(f), opts)
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, entries)
}

// Recent returns the latest entries within the caller's visibility.
func (s *Service) Recent(ctx context.Context, vis ledger.Visibility, limit int) ([]Record, error) {
	return s.List(ctx, vis, ledger.Filter{}, ledger.QueryOptions{Limit: limit})
}

// expand resolves user references in one batch per field kind.
func (s *Service) expand(ctx context.Context, entries []ledger.Entry) ([]Record, error) {
	ids := make(map[string]bool)
	for _, e := range entries {
		for _, ref := range []string{e.Donor, e.Hospital, e.Organisation} {
			if ref != "" {
				ids[ref] = true
			}
		}
	}

	all := make([]string, 0, len(ids))
	for id := range ids {
		all = append(all, id)
	}
	users, err := s.Users.UsersByIDs(ctx, all)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]identity.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	lookup := func(id string) *identity.User {
		if u, ok := byID[id]; ok {
			return &u
		}
		return nil
	}

	records := make([]Record, len(entries))
	for i, e := range entries {
		records[i] = Record{
			Entry:            e,
			DonorUser:        lookup(e.Donor),
			HospitalUser:     lookup(e.Hospital),
			OrganisationUser: lookup(e.Organisation),
		}
	}
	return records, nil
}

// =============================================================================
// REPORTING
// =============================================================================

// Report computes totalIn/totalOut/available for all eight blood groups
// within the caller's visibility. Groups without entries report zeros.
func (s *Service) Report(ctx context.Context, vis ledger.Visibility) ([]ledger.Balance, error) {
	return s.Balances.Report(ctx, vis.Scope(), Groups)
}

// BalanceFor computes the balance of a single group for one organisation.
func (s *Service) BalanceFor(ctx context.Context, organisation, group string) (ledger.Balance, error) {
	return s.Balances.BalanceFor(ctx, organisation, group)
}
