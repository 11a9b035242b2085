/*
errors.go - Centralized error types for the commission domain

PURPOSE:
  All domain error types in one place for consistency and discoverability.
  Surrounding packages (workflow, store, api) wrap these with context and
  map them to HTTP statuses via the classification helpers.

ERROR CATEGORIES:
  1. Configuration errors - Missing or invalid rate configuration
  2. Lifecycle errors     - Illegal status transitions, duplicates
  3. Not-found errors     - Referenced records that do not exist

SEE ALSO:
  - workflow/: Raises lifecycle errors
  - api/handlers.go: Maps errors to HTTP statuses
*/
package commission

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingConfiguration is returned when no active rate configuration
	// resolves for an account executive. This must surface, never silently
	// default: a default rate is a billing decision, not a fallback.
	ErrMissingConfiguration = errors.New("no active rate configuration")

	// ErrInvalidConfig is returned when a rate configuration fails validation.
	ErrInvalidConfig = errors.New("invalid rate configuration")

	// ErrInvalidTransition is returned for an illegal status change, e.g.
	// approving an already-rejected commission.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDuplicateCommission is returned when an invoice already has a
	// commission. Exactly one commission exists per invoice.
	ErrDuplicateCommission = errors.New("commission already exists for invoice")

	// ErrNegativeAmount is returned when an invoice carries a negative
	// amount. The engine assumes non-negative input; callers reject first.
	ErrNegativeAmount = errors.New("negative invoice amount")

	// ErrOverlappingAssignment is returned when assigning a plan would give
	// an executive two active configurations at once.
	ErrOverlappingAssignment = errors.New("overlapping plan assignment")

	// Not-found errors for referenced records.
	ErrExecutiveNotFound  = errors.New("account executive not found")
	ErrContractNotFound   = errors.New("contract not found")
	ErrInvoiceNotFound    = errors.New("invoice not found")
	ErrCommissionNotFound = errors.New("commission not found")
	ErrPlanNotFound       = errors.New("rate plan not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MissingConfigurationError identifies which executive lacked a config.
type MissingConfigurationError struct {
	ExecutiveID ExecutiveID
}

func (e *MissingConfigurationError) Error() string {
	return fmt.Sprintf("no active rate configuration for executive %s", e.ExecutiveID)
}

func (e *MissingConfigurationError) Unwrap() error {
	return ErrMissingConfiguration
}

// TransitionError describes an illegal status change.
type TransitionError struct {
	CommissionID CommissionID
	From         Status
	To           Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("commission %s: cannot transition %s -> %s", e.CommissionID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// or a conflicting state, rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDuplicateCommission) ||
		errors.Is(err, ErrNegativeAmount) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrOverlappingAssignment)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrExecutiveNotFound) ||
		errors.Is(err, ErrContractNotFound) ||
		errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrCommissionNotFound) ||
		errors.Is(err, ErrPlanNotFound)
}
