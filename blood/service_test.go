/*
service_test.go - Blood ledger service tests

Covers counterparty resolution, the outbound admission path, directory
derivation, and the fixed-group stock report.
*/
package blood_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/redcell/inventory-engine/blood"
	"github.com/redcell/inventory-engine/identity"
	"github.com/redcell/inventory-engine/ledger"
	ledgerstore "github.com/redcell/inventory-engine/ledger/store"
)

type fixture struct {
	svc      *blood.Service
	org      identity.User
	donor    identity.User
	hospital identity.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	users := identity.NewMemoryStore()

	mk := func(role identity.Role, name, email string) identity.User {
		u, err := users.CreateUser(ctx, identity.User{Role: role, Name: name, Email: email, PasswordHash: "x"})
		if err != nil {
			t.Fatalf("create %s: %v", role, err)
		}
		return u
	}

	return &fixture{
		svc:      blood.NewService(ledgerstore.NewMemory(), users),
		org:      mk(identity.RoleOrganisation, "Central Bank", "central@bank.test"),
		donor:    mk(identity.RoleDonor, "Dana Donor", "dana@donors.test"),
		hospital: mk(identity.RoleHospital, "City Hospital", "intake@city.test"),
	}
}

func qty(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (f *fixture) donate(t *testing.T, group, quantity string) ledger.Entry {
	t.Helper()
	e, err := f.svc.Create(context.Background(), blood.CreateParams{
		Direction:    ledger.In,
		Group:        group,
		Quantity:     qty(quantity),
		Organisation: f.org.ID,
		Email:        f.donor.Email,
	})
	if err != nil {
		t.Fatalf("donate: %v", err)
	}
	return e
}

func (f *fixture) issue(group, quantity string) (ledger.Entry, error) {
	return f.svc.Create(context.Background(), blood.CreateParams{
		Direction:    ledger.Out,
		Group:        group,
		Quantity:     qty(quantity),
		Organisation: f.org.ID,
		Email:        f.hospital.Email,
	})
}

// =============================================================================
// RECORDING TESTS
// =============================================================================

func TestCreate_InboundReferencesDonor(t *testing.T) {
	f := newFixture(t)

	e := f.donate(t, "O+", "450")

	if e.Donor != f.donor.ID {
		t.Errorf("expected donor reference %s, got %s", f.donor.ID, e.Donor)
	}
	if e.Hospital != "" {
		t.Errorf("inbound entry must not reference a hospital, got %s", e.Hospital)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Error("stored entry must carry id and timestamp")
	}
}

func TestCreate_OutboundReferencesHospital(t *testing.T) {
	f := newFixture(t)
	f.donate(t, "O+", "450")

	e, err := f.issue("O+", "200")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if e.Hospital != f.hospital.ID {
		t.Errorf("expected hospital reference %s, got %s", f.hospital.ID, e.Hospital)
	}
	if e.Donor != "" {
		t.Errorf("outbound entry must not reference a donor, got %s", e.Donor)
	}
}

func TestCreate_OutboundRejectedWithoutStock(t *testing.T) {
	// GIVEN: 100ml of AB- in stock
	// WHEN: Issuing 150ml
	// THEN: Rejected with the available amount; ledger unchanged

	f := newFixture(t)
	f.donate(t, "AB-", "100")

	_, err := f.issue("AB-", "150")
	if !errors.Is(err, ledger.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	var stockErr *ledger.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected *InsufficientStockError, got %T", err)
	}
	if !stockErr.Available.Equal(qty("100")) {
		t.Errorf("expected available 100, got %s", stockErr.Available)
	}
	if stockErr.Unit != blood.Unit {
		t.Errorf("expected unit %q, got %q", blood.Unit, stockErr.Unit)
	}

	balance, err := f.svc.BalanceFor(context.Background(), f.org.ID, "AB-")
	if err != nil {
		t.Fatal(err)
	}
	if !balance.Available.Equal(qty("100")) {
		t.Errorf("rejected issue must not change the balance, got %s", balance.Available)
	}
}

func TestCreate_UnknownCounterpartyIs404(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), blood.CreateParams{
		Direction:    ledger.In,
		Group:        "O+",
		Quantity:     qty("450"),
		Organisation: f.org.ID,
		Email:        "nobody@nowhere.test",
	})
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreate_ValidatesGroupAndQuantity(t *testing.T) {
	f := newFixture(t)

	cases := []blood.CreateParams{
		{Direction: ledger.In, Group: "X+", Quantity: qty("450"), Organisation: f.org.ID, Email: f.donor.Email},
		{Direction: ledger.In, Group: "O+", Quantity: qty("-1"), Organisation: f.org.ID, Email: f.donor.Email},
		{Direction: "sideways", Group: "O+", Quantity: qty("450"), Organisation: f.org.ID, Email: f.donor.Email},
		{Direction: ledger.In, Group: "O+", Quantity: qty("450"), Email: f.donor.Email},
	}
	for i, p := range cases {
		if _, err := f.svc.Create(context.Background(), p); !errors.Is(err, ledger.ErrValidation) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

// =============================================================================
// LISTING TESTS
// =============================================================================

func TestList_ExpandsParticipantReferences(t *testing.T) {
	f := newFixture(t)
	f.donate(t, "O+", "450")

	records, err := f.svc.List(context.Background(), ledger.ScopedTo(f.org.ID), ledger.Filter{}, ledger.QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.DonorUser == nil || rec.DonorUser.Name != "Dana Donor" {
		t.Errorf("expected donor expanded, got %+v", rec.DonorUser)
	}
	if rec.OrganisationUser == nil || rec.OrganisationUser.Name != "Central Bank" {
		t.Errorf("expected organisation expanded, got %+v", rec.OrganisationUser)
	}
}

func TestRecent_AppliesLimit(t *testing.T) {
	f := newFixture(t)
	f.donate(t, "O+", "1")
	f.donate(t, "O+", "2")
	f.donate(t, "O+", "3")

	records, err := f.svc.Recent(context.Background(), ledger.ScopedTo(f.org.ID), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	// Most recent first
	if !records[0].Quantity.Equal(qty("3")) {
		t.Errorf("expected the latest entry first, got %s", records[0].Quantity)
	}
}

func TestList_ScopedVisibilityHidesOtherPartitions(t *testing.T) {
	f := newFixture(t)
	f.donate(t, "O+", "450")

	records, err := f.svc.List(context.Background(), ledger.ScopedTo("some-other-org"), ledger.Filter{}, ledger.QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records for another organisation, got %d", len(records))
	}
}

// =============================================================================
// DIRECTORY TESTS
// =============================================================================

func TestDonors_DerivedFromLedger(t *testing.T) {
	// Two donations by the same donor yield one directory row; references
	// to deleted accounts are skipped, not errors.

	f := newFixture(t)
	f.donate(t, "O+", "450")
	f.donate(t, "A+", "450")

	// A dangling reference from an account that no longer exists.
	_, err := f.svc.Store.Append(context.Background(), ledger.Entry{
		Direction:    ledger.In,
		Subtype:      "B+",
		Quantity:     qty("450"),
		Organisation: f.org.ID,
		Donor:        "deleted-user",
	})
	if err != nil {
		t.Fatal(err)
	}

	donors, err := f.svc.Donors(context.Background(), f.org.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(donors) != 1 {
		t.Fatalf("expected 1 resolvable donor, got %d", len(donors))
	}
	if donors[0].ID != f.donor.ID {
		t.Errorf("expected donor %s, got %s", f.donor.ID, donors[0].ID)
	}
}

func TestOrganisationsForHospital_DerivedFromIssues(t *testing.T) {
	f := newFixture(t)
	f.donate(t, "O+", "450")
	if _, err := f.issue("O+", "100"); err != nil {
		t.Fatal(err)
	}

	orgs, err := f.svc.OrganisationsForHospital(context.Background(), f.hospital.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(orgs) != 1 || orgs[0].ID != f.org.ID {
		t.Fatalf("expected the issuing organisation, got %+v", orgs)
	}
}

// =============================================================================
// REPORT TESTS
// =============================================================================

func TestReport_CoversAllEightGroups(t *testing.T) {
	f := newFixture(t)
	f.donate(t, "O+", "500")

	report, err := f.svc.Report(context.Background(), ledger.ScopedTo(f.org.ID))
	if err != nil {
		t.Fatal(err)
	}
	if len(report) != len(blood.Groups) {
		t.Fatalf("expected %d rows, got %d", len(blood.Groups), len(report))
	}
	for i, b := range report {
		if b.Subtype != blood.Groups[i] {
			t.Errorf("row %d: expected %s, got %s", i, blood.Groups[i], b.Subtype)
		}
		if b.Subtype == "O+" {
			if !b.Available.Equal(qty("500")) {
				t.Errorf("O+: expected 500 available, got %s", b.Available)
			}
		} else if !b.Available.IsZero() {
			t.Errorf("%s: expected zero available, got %s", b.Subtype, b.Available)
		}
	}
}
