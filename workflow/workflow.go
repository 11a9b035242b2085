/*
Package workflow owns the commission lifecycle around the pure engine.

PURPOSE:
  The engine computes; this package decides when and with what. It resolves
  the inputs the engine needs (contract, active rate configuration,
  year-to-date earned total), records the resulting commission as pending,
  and drives the approval state machine afterwards.

LIFECYCLE:
  pending -> approved -> paid
  pending -> rejected

  A commission is created exactly once per invoice, at invoice recording
  time. Configuration changes never re-derive existing commissions. The
  breakdown is written once; only status and audit fields change later.

SERIALIZATION:
  Recording runs inside a single store transaction so the year-to-date
  snapshot read for the cap check and the insert are atomic. Concurrent
  invoices for the same executive therefore cannot both claim the same cap
  headroom.

SEE ALSO:
  - commission/engine.go: The calculation itself
  - store/sqlite: Production TxStore implementation
*/
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/salesdesk/commission-engine/commission"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service orchestrates commission creation and approval over a TxStore.
type Service struct {
	store TxStore

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// NewService creates a workflow service on top of the given store.
func NewService(store TxStore) *Service {
	return &Service{store: store, now: time.Now}
}

// NewServiceWithClock creates a service with a fixed clock, for tests.
func NewServiceWithClock(store TxStore, now func() time.Time) *Service {
	return &Service{store: store, now: now}
}

// =============================================================================
// RECORDING - invoice in, pending commission out
// =============================================================================

// RecordInvoice persists an invoice and its computed commission atomically.
// The commission starts pending; nothing counts toward the executive's
// earned total until approval.
//
// Returns ErrNegativeAmount for negative invoices, ErrContractNotFound for
// unknown contracts, and ErrMissingConfiguration when no rate plan is
// active for the owning executive - recording must fail loudly rather than
// fall back to default rates.
func (s *Service) RecordInvoice(ctx context.Context, inv commission.Invoice) (commission.Commission, error) {
	if inv.Amount.IsNegative() {
		return commission.Commission{}, fmt.Errorf("invoice %s: %w", inv.ID, commission.ErrNegativeAmount)
	}
	if inv.ID == "" {
		inv.ID = commission.InvoiceID(uuid.NewString())
	}
	if inv.Date.IsZero() {
		inv.Date = s.now().UTC()
	}

	var cm commission.Commission
	err := s.store.WithTx(ctx, func(tx Store) error {
		contract, err := tx.GetContract(ctx, inv.ContractID)
		if err != nil {
			return err
		}

		cfg, err := tx.ActiveRateConfig(ctx, contract.ExecutiveID, inv.Date)
		if err != nil {
			return err
		}
		if cfg == nil {
			return &commission.MissingConfigurationError{ExecutiveID: contract.ExecutiveID}
		}

		ytd, err := tx.YearToDateEarned(ctx, contract.ExecutiveID, inv.Year())
		if err != nil {
			return err
		}

		breakdown := commission.Calculate(inv, *contract, *cfg, ytd)

		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return err
		}

		cm = commission.Commission{
			ID:          commission.CommissionID(uuid.NewString()),
			InvoiceID:   inv.ID,
			ExecutiveID: contract.ExecutiveID,
			Breakdown:   breakdown,
			Status:      commission.StatusPending,
			CreatedAt:   s.now().UTC(),
		}
		return tx.InsertCommission(ctx, cm)
	})
	if err != nil {
		return commission.Commission{}, err
	}
	return cm, nil
}

// =============================================================================
// APPROVAL STATE MACHINE
// =============================================================================

var transitions = map[commission.Status][]commission.Status{
	commission.StatusPending:  {commission.StatusApproved, commission.StatusRejected},
	commission.StatusApproved: {commission.StatusPaid},
	commission.StatusRejected: {},
	commission.StatusPaid:     {},
}

func canTransition(from, to commission.Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Approve moves a pending commission to approved. From that point its
// total counts toward the executive's year-to-date earned total.
func (s *Service) Approve(ctx context.Context, id commission.CommissionID, actor string) (commission.Commission, error) {
	return s.transition(ctx, id, commission.StatusApproved, actor, "")
}

// Reject moves a pending commission to rejected. Rejected commissions are
// terminal and never count toward earnings.
func (s *Service) Reject(ctx context.Context, id commission.CommissionID, actor, reason string) (commission.Commission, error) {
	return s.transition(ctx, id, commission.StatusRejected, actor, reason)
}

// MarkPaid moves an approved commission to paid.
func (s *Service) MarkPaid(ctx context.Context, id commission.CommissionID, actor string) (commission.Commission, error) {
	return s.transition(ctx, id, commission.StatusPaid, actor, "")
}

func (s *Service) transition(ctx context.Context, id commission.CommissionID, to commission.Status, actor, reason string) (commission.Commission, error) {
	var result commission.Commission
	err := s.store.WithTx(ctx, func(tx Store) error {
		cm, err := tx.GetCommission(ctx, id)
		if err != nil {
			return err
		}
		if !canTransition(cm.Status, to) {
			return &commission.TransitionError{CommissionID: id, From: cm.Status, To: to}
		}

		now := s.now().UTC()
		cm.Status = to
		switch to {
		case commission.StatusApproved:
			cm.DecidedBy = actor
			cm.DecidedAt = &now
		case commission.StatusRejected:
			cm.DecidedBy = actor
			cm.DecidedAt = &now
			cm.RejectionReason = reason
		case commission.StatusPaid:
			cm.PaidAt = &now
		}

		if err := tx.UpdateCommissionStatus(ctx, *cm); err != nil {
			return err
		}
		result = *cm
		return nil
	})
	if err != nil {
		return commission.Commission{}, err
	}
	return result, nil
}

// =============================================================================
// DASHBOARD
// =============================================================================

// Summary is an executive's earnings picture for one calendar year.
type Summary struct {
	ExecutiveID     commission.ExecutiveID
	Year            int
	Earned          decimal.Decimal // approved + paid totals
	Pending         decimal.Decimal // pending totals
	CapAmount       decimal.Decimal
	CapProgress     decimal.Decimal // Earned / CapAmount, in [0,..]
	CapAppliedCount int             // commissions that hit the decelerator
	ByStatus        map[commission.Status]int
}

// Dashboard assembles the summary an executive sees: earned versus the
// annual cap, pending amounts, and how often the decelerator has bitten.
// Requires an active rate configuration; there is no capless fallback.
func (s *Service) Dashboard(ctx context.Context, id commission.ExecutiveID, year int) (Summary, error) {
	at := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	if year == s.now().UTC().Year() {
		at = s.now().UTC()
	}

	cfg, err := s.store.ActiveRateConfig(ctx, id, at)
	if err != nil {
		return Summary{}, err
	}
	if cfg == nil {
		return Summary{}, &commission.MissingConfigurationError{ExecutiveID: id}
	}

	cms, err := s.store.ListByExecutive(ctx, id, year)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		ExecutiveID: id,
		Year:        year,
		Earned:      decimal.Zero,
		Pending:     decimal.Zero,
		CapAmount:   cfg.OTECap,
		ByStatus:    make(map[commission.Status]int),
	}
	for _, cm := range cms {
		sum.ByStatus[cm.Status]++
		if cm.Breakdown.CapApplied {
			sum.CapAppliedCount++
		}
		switch {
		case cm.Status.Earned():
			sum.Earned = sum.Earned.Add(cm.Breakdown.Total)
		case cm.Status == commission.StatusPending:
			sum.Pending = sum.Pending.Add(cm.Breakdown.Total)
		}
	}
	if cfg.OTECap.IsPositive() {
		sum.CapProgress = sum.Earned.Div(cfg.OTECap).Round(4)
	}
	return sum, nil
}
