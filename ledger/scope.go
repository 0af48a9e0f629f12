/*
scope.go - Caller visibility policy

PURPOSE:
  Maps an authenticated caller to a visibility filter. Admins see every
  organisation's records; everyone else sees only records scoped to their
  own organisation identity. This is the sole authorization mechanism for
  listings and reports - there is no per-record ACL.
*/
package ledger

// Visibility restricts queries to what the caller may see.
// The zero value is the unrestricted admin view; only hand one out
// through Unrestricted or ScopedTo, after the caller's role is known.
type Visibility struct {
	restricted bool
	org        string
}

// Unrestricted sees all records (admin callers).
func Unrestricted() Visibility {
	return Visibility{}
}

// ScopedTo sees only records belonging to one organisation.
func ScopedTo(org string) Visibility {
	return Visibility{restricted: true, org: org}
}

// Apply narrows f to the caller's visibility.
func (v Visibility) Apply(f Filter) Filter {
	if v.restricted {
		f.Organisation = v.org
	}
	return f
}

// Scope returns the organisation partition balances should be computed
// in: the caller's own organisation, or "" for all partitions.
func (v Visibility) Scope() string {
	if v.restricted {
		return v.org
	}
	return ""
}
