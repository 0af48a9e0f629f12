/*
Package identity manages the participant directory and authentication.

PURPOSE:
  Every ledger entry references participants - the donor who gave, the
  hospital that received, the organisation that owns the stock. This
  package stores those users, authenticates them, and issues the access
  tokens the API layer verifies.

ROLES:
  admin         sees and manages every organisation's records
  organisation  a blood bank; the scope ledger balances are computed in
  donor         gives blood/organs; referenced by inbound entries
  hospital      receives stock; referenced by outbound entries
*/
package identity

import (
	"context"
	"time"
)

// Role determines visibility and which operations a user may perform.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleOrganisation Role = "organisation"
	RoleDonor        Role = "donor"
	RoleHospital     Role = "hospital"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOrganisation, RoleDonor, RoleHospital:
		return true
	}
	return false
}

// User is a directory participant.
type User struct {
	ID           string
	Role         Role
	Name         string
	Email        string
	PasswordHash string
	Phone        string
	Address      string
	CreatedAt    time.Time
}

// Store persists users.
type Store interface {
	// CreateUser stores u with its generated id and timestamp and
	// returns the stored record. Fails if the email is already taken.
	CreateUser(ctx context.Context, u User) (User, error)

	// UserByEmail returns the user with the given email, or nil.
	UserByEmail(ctx context.Context, email string) (*User, error)

	// UserByID returns the user with the given id, or nil.
	UserByID(ctx context.Context, id string) (*User, error)

	// UsersByIDs resolves a set of ids. Missing ids are skipped, not
	// errors - directory derivation tolerates dangling references.
	UsersByIDs(ctx context.Context, ids []string) ([]User, error)

	// ListUsers returns users, optionally filtered by role.
	ListUsers(ctx context.Context, role Role) ([]User, error)
}
