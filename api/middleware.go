/*
middleware.go - Authentication and authorization middleware

PURPOSE:
  Verifies bearer tokens, attaches the caller's identity to the request
  context, and enforces role requirements on route groups.

CALLER VISIBILITY:
  The caller's role decides what listings return:
    admin         everything
    organisation  entries scoped to their own organisation
    donor         entries referencing them as donor
    hospital      entries referencing them as receiving hospital
*/
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/redcell/inventory-engine/identity"
	"github.com/redcell/inventory-engine/ledger"
)

// Caller is the authenticated principal attached to the request context.
type Caller struct {
	UserID string
	Role   identity.Role
}

type contextKey string

const callerKey contextKey = "caller"

// CallerFrom returns the authenticated caller, or false when the request
// did not pass RequireAuth.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	return c, ok
}

// RequireAuth verifies the Authorization bearer token and stores the
// caller in the request context.
func RequireAuth(tokens *identity.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
				return
			}

			claims, err := tokens.Verify(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token", nil)
				return
			}

			caller := Caller{UserID: claims.UserID, Role: identity.Role(claims.Role)}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey, caller)))
		})
	}
}

// RequireRole rejects callers whose role is not in the allowed set.
// Admins always pass.
func RequireRole(roles ...identity.Role) func(http.Handler) http.Handler {
	allowed := make(map[identity.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
				return
			}
			if caller.Role != identity.RoleAdmin && !allowed[caller.Role] {
				writeError(w, http.StatusForbidden, "Insufficient role", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// visibility maps the caller to the organisation-partition visibility
// used for balance reports and organisation-scoped listings.
func visibility(c Caller) ledger.Visibility {
	if c.Role == identity.RoleAdmin {
		return ledger.Unrestricted()
	}
	return ledger.ScopedTo(c.UserID)
}

// callerFilter narrows a ledger filter to the entries the caller may see.
// Organisation partitioning is handled by visibility; donors and hospitals
// are additionally pinned to their own reference column.
func callerFilter(c Caller, f ledger.Filter) (ledger.Visibility, ledger.Filter) {
	switch c.Role {
	case identity.RoleAdmin:
		return ledger.Unrestricted(), f
	case identity.RoleOrganisation:
		return ledger.ScopedTo(c.UserID), f
	case identity.RoleDonor:
		f.Donor = c.UserID
		return ledger.Unrestricted(), f
	case identity.RoleHospital:
		f.Hospital = c.UserID
		return ledger.Unrestricted(), f
	}
	// Unknown role: scope to the caller's id, which owns no partition,
	// so nothing matches.
	return ledger.ScopedTo(c.UserID), f
}
