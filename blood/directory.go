/*
directory.go - Participant directories derived from the ledger

PURPOSE:
  A blood bank's donor list is "everyone who ever donated here", not a
  separately maintained roster. These lookups derive directories from the
  distinct references on ledger entries and resolve them against the user
  directory. References that no longer resolve (deleted accounts) are
  skipped silently; they never fail the overall call.
*/
package blood

import (
	"context"

	"github.com/redcell/inventory-engine/identity"
	"github.com/redcell/inventory-engine/ledger"
)

// Donors returns every donor who has an inbound entry with the
// organisation.
func (s *Service) Donors(ctx context.Context, organisation string) ([]identity.User, error) {
	return s.resolveDistinct(ctx, ledger.RefDonor, ledger.Filter{Organisation: organisation})
}

// Hospitals returns every hospital the organisation has issued stock to.
func (s *Service) Hospitals(ctx context.Context, organisation string) ([]identity.User, error) {
	return s.resolveDistinct(ctx, ledger.RefHospital, ledger.Filter{Organisation: organisation})
}

// OrganisationsForDonor returns the organisations a donor has donated to.
func (s *Service) OrganisationsForDonor(ctx context.Context, donorID string) ([]identity.User, error) {
	return s.resolveDistinct(ctx, ledger.RefOrganisation, ledger.Filter{Donor: donorID})
}

// OrganisationsForHospital returns the organisations that have issued
// stock to a hospital.
func (s *Service) OrganisationsForHospital(ctx context.Context, hospitalID string) ([]identity.User, error) {
	return s.resolveDistinct(ctx, ledger.RefOrganisation, ledger.Filter{Hospital: hospitalID})
}

func (s *Service) resolveDistinct(ctx context.Context, field ledger.RefField, f ledger.Filter) ([]identity.User, error) {
	ids, err := s.Store.Distinct(ctx, field, f)
	if err != nil {
		return nil, err
	}
	// UsersByIDs drops ids that no longer resolve.
	return s.Users.UsersByIDs(ctx, ids)
}
