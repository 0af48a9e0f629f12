/*
sqlite_test.go - SQLite store tests

Runs against :memory: databases. Covers the three interface views (blood
ledger, organ ledger, user directory), decimal-exact sums, and recency
ordering.
*/
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/redcell/inventory-engine/identity"
	"github.com/redcell/inventory-engine/ledger"
	"github.com/redcell/inventory-engine/organ"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func qty(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func bloodEntry(dir ledger.Direction, group, quantity, org string) ledger.Entry {
	e := ledger.Entry{
		Direction:    dir,
		Subtype:      group,
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

func organEntry(dir ledger.Direction, organType string, quantity int64) organ.Entry {
	return organ.Entry{
		Entry: ledger.Entry{
			Direction:    dir,
			Subtype:      organType,
			Quantity:     decimal.NewFromInt(quantity),
			Organisation: "org-1",
		},
		BloodGroup:  "O+",
		PatientName: "Pat Smith",
		Age:         34,
		Email:       "pat@example.test",
		Phone:       "555-0100",
	}
}

// =============================================================================
// BLOOD LEDGER TESTS
// =============================================================================

func TestBlood_AppendAssignsIdentity(t *testing.T) {
	s := newTestStore(t)

	e, err := s.Blood().Append(context.Background(), bloodEntry(ledger.In, "O+", "450", "org-1"))
	if err != nil {
		t.Fatal(err)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Error("expected generated id and timestamp")
	}
}

func TestBlood_ConcurrentBalanceReadsOnMemoryDatabase(t *testing.T) {
	// GIVEN: a :memory: store with one donation recorded
	// WHEN: many goroutines derive the balance concurrently (the engine
	//   sums in and out in parallel, so each call fans out two queries)
	// THEN: every read succeeds and agrees; no query lands on a fresh
	//   schema-less connection

	s := newTestStore(t)
	if _, err := s.Blood().Append(context.Background(), bloodEntry(ledger.In, "O+", "500", "org-1")); err != nil {
		t.Fatal(err)
	}
	engine := ledger.NewEngine(s.Blood())

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				balance, err := engine.BalanceFor(context.Background(), "org-1", "O+")
				if err != nil {
					errs <- err
					return
				}
				if !balance.Available.Equal(qty("500")) {
					errs <- fmt.Errorf("available = %s, want 500", balance.Available)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestBlood_QueryOrdersAndLimits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	blood := s.Blood()

	for _, q := range []string{"1", "2", "3"} {
		if _, err := blood.Append(ctx, bloodEntry(ledger.In, "O+", q, "org-1")); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := blood.Query(ctx, ledger.Filter{}, ledger.QueryOptions{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[0].Quantity.Equal(qty("3")) || !entries[1].Quantity.Equal(qty("2")) {
		t.Errorf("expected most recent first, got %s then %s", entries[0].Quantity, entries[1].Quantity)
	}
}

func TestBlood_QueryFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	blood := s.Blood()

	if _, err := blood.Append(ctx, bloodEntry(ledger.In, "O+", "450", "org-1")); err != nil {
		t.Fatal(err)
	}
	if _, err := blood.Append(ctx, bloodEntry(ledger.Out, "O+", "100", "org-1")); err != nil {
		t.Fatal(err)
	}
	if _, err := blood.Append(ctx, bloodEntry(ledger.In, "A-", "450", "org-2")); err != nil {
		t.Fatal(err)
	}

	entries, err := blood.Query(ctx, ledger.Filter{Organisation: "org-1", Direction: ledger.In}, ledger.QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Subtype != "O+" {
		t.Fatalf("expected the single org-1 inbound entry, got %+v", entries)
	}
}

func TestBlood_SumQuantityIsExact(t *testing.T) {
	// Quantities are stored as decimal strings and summed in Go; SQL SUM
	// over floats would make 0.1+0.2 miss.

	s := newTestStore(t)
	ctx := context.Background()
	blood := s.Blood()

	for _, q := range []string{"0.1", "0.2"} {
		if _, err := blood.Append(ctx, bloodEntry(ledger.In, "O-", q, "org-1")); err != nil {
			t.Fatal(err)
		}
	}

	total, err := blood.SumQuantity(ctx, ledger.Filter{Organisation: "org-1", Direction: ledger.In, Subtype: "O-"})
	if err != nil {
		t.Fatal(err)
	}
	if !total.Equal(qty("0.3")) {
		t.Errorf("expected exactly 0.3, got %s", total)
	}
}

func TestBlood_DistinctReferences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	blood := s.Blood()

	for _, donor := range []string{"donor-a", "donor-a", "donor-b"} {
		e := bloodEntry(ledger.In, "O+", "450", "org-1")
		e.Donor = donor
		if _, err := blood.Append(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	donors, err := blood.Distinct(ctx, ledger.RefDonor, ledger.Filter{Organisation: "org-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(donors) != 2 {
		t.Fatalf("expected 2 distinct donors, got %v", donors)
	}
}

// =============================================================================
// ORGAN LEDGER TESTS
// =============================================================================

func TestOrgans_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	organs := s.Organs()

	e := organEntry(ledger.In, "kidney", 2)
	e.MedicalDocumentURL = "/uploads/medical_document-abc.pdf"
	stored, err := organs.AppendOrgan(ctx, e)
	if err != nil {
		t.Fatal(err)
	}

	got, err := organs.GetOrgan(ctx, stored.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected the stored entry back")
	}
	if got.PatientName != "Pat Smith" || got.MedicalDocumentURL != e.MedicalDocumentURL {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.Quantity.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected quantity 2, got %s", got.Quantity)
	}
}

func TestOrgans_UpdatePersists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	organs := s.Organs()

	stored, err := organs.AppendOrgan(ctx, organEntry(ledger.In, "kidney", 2))
	if err != nil {
		t.Fatal(err)
	}

	stored.Subtype = "liver"
	stored.PatientName = "Pat Q. Smith"
	if _, err := organs.UpdateOrgan(ctx, stored); err != nil {
		t.Fatal(err)
	}

	got, err := organs.GetOrgan(ctx, stored.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Subtype != "liver" || got.PatientName != "Pat Q. Smith" {
		t.Errorf("update not persisted: %+v", got)
	}
}

func TestOrgans_UpdateUnknownIs404(t *testing.T) {
	s := newTestStore(t)
	e := organEntry(ledger.In, "kidney", 1)
	e.ID = "no-such-id"

	_, err := s.Organs().UpdateOrgan(context.Background(), e)
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrgans_DeleteRemovesRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	organs := s.Organs()

	stored, err := organs.AppendOrgan(ctx, organEntry(ledger.In, "kidney", 1))
	if err != nil {
		t.Fatal(err)
	}
	if err := organs.DeleteOrgan(ctx, stored.ID); err != nil {
		t.Fatal(err)
	}

	got, err := organs.GetOrgan(ctx, stored.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("expected entry gone after delete")
	}
	if err := organs.DeleteOrgan(ctx, stored.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("second delete: expected not found, got %v", err)
	}
}

func TestOrgans_TypesAreDistinctAndScoped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	organs := s.Organs()

	for _, typ := range []string{"kidney", "kidney", "liver"} {
		if _, err := organs.AppendOrgan(ctx, organEntry(ledger.In, typ, 1)); err != nil {
			t.Fatal(err)
		}
	}
	other := organEntry(ledger.In, "cornea", 1)
	other.Organisation = "org-2"
	if _, err := organs.AppendOrgan(ctx, other); err != nil {
		t.Fatal(err)
	}

	types, err := organs.OrganTypes(ctx, ledger.Filter{Organisation: "org-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(types) != 2 || types[0] != "kidney" || types[1] != "liver" {
		t.Fatalf("expected [kidney liver], got %v", types)
	}
}

// =============================================================================
// USER DIRECTORY TESTS
// =============================================================================

func TestUsers_CreateAndLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, identity.User{
		Role: identity.RoleDonor, Name: "Dana", Email: "dana@donors.test", PasswordHash: "hash",
	})
	if err != nil {
		t.Fatal(err)
	}

	byEmail, err := s.UserByEmail(ctx, "dana@donors.test")
	if err != nil {
		t.Fatal(err)
	}
	if byEmail == nil || byEmail.ID != u.ID {
		t.Fatalf("lookup by email failed: %+v", byEmail)
	}

	missing, err := s.UserByID(ctx, "no-such-id")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Error("expected nil for unknown id")
	}
}

func TestUsers_DuplicateEmailIsValidationError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, identity.User{Role: identity.RoleDonor, Name: "A", Email: "x@y.test", PasswordHash: "h"}); err != nil {
		t.Fatal(err)
	}
	_, err := s.CreateUser(ctx, identity.User{Role: identity.RoleHospital, Name: "B", Email: "x@y.test", PasswordHash: "h"})
	if !errors.Is(err, ledger.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUsers_ByIDsSkipsMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, identity.User{Role: identity.RoleDonor, Name: "A", Email: "a@b.test", PasswordHash: "h"})
	if err != nil {
		t.Fatal(err)
	}

	users, err := s.UsersByIDs(ctx, []string{u.ID, "ghost"})
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 || users[0].ID != u.ID {
		t.Fatalf("expected only the existing user, got %+v", users)
	}
}

func TestUsers_ListFiltersByRole(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, role := range []identity.Role{identity.RoleDonor, identity.RoleDonor, identity.RoleHospital} {
		_, err := s.CreateUser(ctx, identity.User{
			Role: role, Name: "U", Email: string(rune('a'+i)) + "@x.test", PasswordHash: "h",
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	donors, err := s.ListUsers(ctx, identity.RoleDonor)
	if err != nil {
		t.Fatal(err)
	}
	if len(donors) != 2 {
		t.Fatalf("expected 2 donors, got %d", len(donors))
	}

	all, err := s.ListUsers(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 users, got %d", len(all))
	}
}
