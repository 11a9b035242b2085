/*
store.go - Persistence interface for the commission workflow

PURPOSE:
  Defines the interface between the workflow and the database. The engine
  itself performs no I/O; everything it needs (contract, active config,
  year-to-date earned total) is resolved through this interface, and the
  resulting commission record is written back through it.

KEY INTERFACES:
  Store:   Record lookups and writes the workflow needs
  TxStore: Store plus transactional execution

CONSISTENCY CONTRACT:
  The year-to-date total read for a calculation and the insert of the
  resulting commission must observe a consistent snapshot, or concurrent
  invoices for the same executive can under- or over-count cap headroom.
  The workflow runs every compute-and-record inside WithTx; implementations
  must make WithTx a real serialization point (database transaction plus,
  for SQLite, a store-level write lock).

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - store/memory: In-memory for testing

SEE ALSO:
  - workflow.go: Uses these interfaces
*/
package workflow

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/salesdesk/commission-engine/commission"
)

// =============================================================================
// STORE - Interface for workflow persistence
// =============================================================================

// Store is the persistence surface the workflow operates on.
type Store interface {
	// GetContract returns the contract, or ErrContractNotFound.
	GetContract(ctx context.Context, id commission.ContractID) (*commission.Contract, error)

	// InsertInvoice persists a new invoice. Invoices are immutable; there
	// is no update operation.
	InsertInvoice(ctx context.Context, inv commission.Invoice) error

	// GetInvoice returns the invoice, or ErrInvoiceNotFound.
	GetInvoice(ctx context.Context, id commission.InvoiceID) (*commission.Invoice, error)

	// ActiveRateConfig resolves the single rate configuration active for
	// the executive at the given time. Returns (nil, nil) when none is
	// assigned - the workflow turns that into ErrMissingConfiguration,
	// never a default.
	ActiveRateConfig(ctx context.Context, id commission.ExecutiveID, at time.Time) (*commission.RateConfig, error)

	// YearToDateEarned returns the sum of totals across the executive's
	// approved and paid commissions whose invoices are dated in the given
	// calendar year.
	YearToDateEarned(ctx context.Context, id commission.ExecutiveID, year int) (decimal.Decimal, error)

	// InsertCommission persists a freshly calculated commission. Returns
	// ErrDuplicateCommission if the invoice already has one.
	InsertCommission(ctx context.Context, cm commission.Commission) error

	// GetCommission returns the commission, or ErrCommissionNotFound.
	GetCommission(ctx context.Context, id commission.CommissionID) (*commission.Commission, error)

	// UpdateCommissionStatus persists a status transition and its audit
	// fields. Breakdown fields are never rewritten.
	UpdateCommissionStatus(ctx context.Context, cm commission.Commission) error

	// ListByExecutive returns the executive's commissions for a calendar
	// year (by invoice date), newest first.
	ListByExecutive(ctx context.Context, id commission.ExecutiveID, year int) ([]commission.Commission, error)
}

// TxStore wraps Store with transaction support. WithTx executes fn against
// a Store view inside one transaction; fn returning an error rolls back.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
