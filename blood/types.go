/*
Package blood wraps the generic ledger with blood-bank specific rules.

PURPOSE:
  The ledger engine doesn't know what a blood group is. This package
  pins the subtype dimension to the eight blood groups, measures
  quantities in millilitres, and resolves counterparties by email the
  way donation desks record them.

INVARIANTS:
  1. Subtype is always one of the eight blood groups.
  2. Outbound entries pass the admission check; issued stock can never
     exceed donated stock per (organisation, group).
  3. Inbound entries reference a donor, outbound entries a hospital.

SEE ALSO:
  - ledger: generic engine (balance, admission, visibility)
  - organ: the second ledger, with free-form subtypes and mutability
*/
package blood

// Groups is the fixed set of blood groups, in display order.
// Reports always cover all eight, even when a group has no entries.
var Groups = []string{"O+", "O-", "AB+", "AB-", "A+", "A-", "B+", "B-"}

// ValidGroup reports whether g is one of the eight blood groups.
func ValidGroup(g string) bool {
	for _, known := range Groups {
		if g == known {
			return true
		}
	}
	return false
}

// Unit is the display unit for blood quantities.
const Unit = "ml"
