/*
Package commission provides the core commission calculation engine.

PURPOSE:
  This package contains the value types and the pure calculation logic
  that turns an invoice, its contract, and a rate configuration into a
  commission breakdown. It knows nothing about HTTP, databases, or the
  approval workflow - those live in the surrounding packages.

KEY CONCEPTS IN THIS FILE (types.go):
  - Contract: A signed deal (value, ACV, term, payment terms, pilot flag)
  - Invoice: A billing event against a contract
  - Breakdown: The four commission components plus total and cap flag
  - Commission: The persisted record wrapping a Breakdown with status
  - Typed IDs: Prevent mixing executive/contract/invoice identifiers

DESIGN PRINCIPLES:
  1. Precision: All money and rates are decimal.Decimal, never float
  2. Immutability: Contracts and invoices are never modified once created
  3. Purity: Calculation has no side effects and no I/O
  4. Single currency: Amounts carry no currency tag by design

SEE ALSO:
  - engine.go: The Calculate function
  - config.go: RateConfig and its defaults
  - errors.go: Domain error types
*/
package commission

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ExecutiveID string
type ContractID string
type InvoiceID string
type CommissionID string
type PlanID string

// =============================================================================
// CONTRACT - A signed deal, immutable once created
// =============================================================================

type ContractType string

const (
	ContractNew     ContractType = "new"
	ContractRenewal ContractType = "renewal"
	ContractUpsell  ContractType = "upsell"
)

type PaymentTerms string

const (
	TermsAnnual      PaymentTerms = "annual"
	TermsQuarterly   PaymentTerms = "quarterly"
	TermsMonthly     PaymentTerms = "monthly"
	TermsUpfront     PaymentTerms = "upfront"
	TermsFullUpfront PaymentTerms = "full-upfront"
)

// Contract represents a signed deal owned by an account executive.
// Invoices reference it; the engine reads it but never writes it.
type Contract struct {
	ID            ContractID
	ClientName    string
	ExecutiveID   ExecutiveID
	ContractValue decimal.Decimal
	ACV           decimal.Decimal // Annualized contract value
	Type          ContractType
	LengthYears   int
	PaymentTerms  PaymentTerms
	IsPilot       bool
	SignedAt      time.Time
}

// =============================================================================
// INVOICE - A billing event, immutable once created
// =============================================================================

type RevenueType string

const (
	RevenueRecurring    RevenueType = "recurring"
	RevenueNonRecurring RevenueType = "non-recurring"
	RevenueService      RevenueType = "service"
)

// Commissionable reports whether this revenue type earns commission.
// Non-recurring and service revenue never do, regardless of amount.
func (r RevenueType) Commissionable() bool {
	return r == RevenueRecurring
}

// Invoice represents a billing event against a contract.
// Exactly one commission is computed from each invoice.
type Invoice struct {
	ID          InvoiceID
	ContractID  ContractID
	Amount      decimal.Decimal // >= 0, enforced by the caller
	RevenueType RevenueType
	Date        time.Time // Informational for the calculation itself
}

// Year returns the calendar year the invoice is dated in, which is the
// year its commission counts toward for the annual cap.
func (i Invoice) Year() int {
	return i.Date.Year()
}

// =============================================================================
// BREAKDOWN - The engine's output
// =============================================================================

// Breakdown is the computed commission for a single invoice.
//
// When CapApplied is true, Total carries the decelerated value while the
// four components keep their pre-decelerator values. The sum of parts then
// intentionally differs from Total; the UI surfaces the difference as an
// explicit "OTE cap applied" adjustment line rather than hiding it.
type Breakdown struct {
	Base       decimal.Decimal
	PilotBonus decimal.Decimal
	MultiYear  decimal.Decimal
	Upfront    decimal.Decimal
	Total      decimal.Decimal
	CapApplied bool
}

// Subtotal is the pre-decelerator sum of the four components.
func (b Breakdown) Subtotal() decimal.Decimal {
	return b.Base.Add(b.PilotBonus).Add(b.MultiYear).Add(b.Upfront)
}

// =============================================================================
// COMMISSION - Persisted record with approval status
// =============================================================================

// Status is the approval state of a commission record.
// Lifecycle: pending -> approved -> paid, or pending -> rejected.
// Transitions are owned by the workflow package, never by the engine.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusPaid     Status = "paid"
)

// Earned reports whether a commission in this status counts toward the
// account executive's year-to-date earned total.
func (s Status) Earned() bool {
	return s == StatusApproved || s == StatusPaid
}

// Commission is the stored result of a calculation. The breakdown fields
// are written once at creation; only the approval workflow mutates status
// and its audit fields afterwards.
type Commission struct {
	ID          CommissionID
	InvoiceID   InvoiceID
	ExecutiveID ExecutiveID
	Breakdown   Breakdown
	Status      Status

	// Audit fields, set by the approval workflow
	DecidedBy       string
	DecidedAt       *time.Time
	RejectionReason string
	PaidAt          *time.Time

	CreatedAt time.Time
}

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

// MustDecimal parses s as a decimal, returning zero on malformed input.
// Intended for constants and seed data, not user input.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
