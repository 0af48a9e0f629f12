/*
errors.go - Centralized error taxonomy for the inventory engine

PURPOSE:
  All error kinds in one place so the HTTP boundary can map each to a
  status code without inspecting message strings.

ERROR CATEGORIES:
  1. Validation errors - malformed or missing input; caller must fix
  2. Not-found errors  - referenced user or record is absent
  3. Stock errors      - outbound request exceeds available balance
  4. Auth errors       - missing credential or insufficient role

USAGE:
  Match with errors.Is / errors.As:

    var stockErr *ledger.InsufficientStockError
    if errors.As(err, &stockErr) {
        // stockErr.Available, stockErr.Subtype for the user message
    }
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all input validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced record or user is absent.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientStock is returned when an outbound request exceeds
	// the available balance for its (organisation, subtype) pair.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrUnauthenticated is returned when no valid credential accompanies
	// a request.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden is returned when the caller's role does not permit the
	// operation.
	ErrForbidden = errors.New("forbidden")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a single invalid or missing field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError identifies which reference failed to resolve.
type NotFoundError struct {
	Kind string // "user", "organ record", ...
	Ref  string // the id or email that was looked up
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Ref)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientStockError reports a rejected outbound admission. It carries
// the available amount and subtype so the boundary can render a message
// like "Only 120ml of O+ available".
type InsufficientStockError struct {
	Subtype   string
	Available decimal.Decimal
	Requested decimal.Decimal
	Unit      string // display unit: "ml" for blood, "" for organ counts
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: only %s%s of %s available, requested %s%s",
		e.Available, e.Unit, e.Subtype, e.Requested, e.Unit)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is the caller's to fix, as
// opposed to a storage or backend failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInsufficientStock)
}
