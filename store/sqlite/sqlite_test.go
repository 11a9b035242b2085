package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/salesdesk/commission-engine/commission"
	"github.com/salesdesk/commission-engine/factory"
	"github.com/salesdesk/commission-engine/store/sqlite"
	"github.com/salesdesk/commission-engine/workflow"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func d(s string) decimal.Decimal {
	return commission.MustDecimal(s)
}

func testContract(id commission.ContractID) commission.Contract {
	return commission.Contract{
		ID:            id,
		ClientName:    "Globex",
		ExecutiveID:   "ae-1",
		ContractValue: d("256000"),
		ACV:           d("64000"),
		Type:          commission.ContractNew,
		LengthYears:   4,
		PaymentTerms:  commission.TermsMonthly,
		SignedAt:      time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
	}
}

func testInvoice(id commission.InvoiceID, contractID commission.ContractID, date time.Time) commission.Invoice {
	return commission.Invoice{
		ID:          id,
		ContractID:  contractID,
		Amount:      d("64000"),
		RevenueType: commission.RevenueRecurring,
		Date:        date,
	}
}

func testCommission(id commission.CommissionID, invoiceID commission.InvoiceID, total string, status commission.Status) commission.Commission {
	return commission.Commission{
		ID:          id,
		InvoiceID:   invoiceID,
		ExecutiveID: "ae-1",
		Breakdown: commission.Breakdown{
			Base:       d(total),
			PilotBonus: decimal.Zero,
			MultiYear:  decimal.Zero,
			Upfront:    decimal.Zero,
			Total:      d(total),
		},
		Status:    status,
		CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// CONTRACT AND INVOICE PERSISTENCE
// =============================================================================

func TestContractRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// GIVEN a saved contract
	ct := testContract("ct-1")
	if err := store.SaveContract(ctx, ct); err != nil {
		t.Fatalf("SaveContract: %v", err)
	}

	// WHEN it is read back
	got, err := store.GetContract(ctx, "ct-1")
	if err != nil {
		t.Fatalf("GetContract: %v", err)
	}

	// THEN the decimal values round-trip exactly
	if !got.ContractValue.Equal(ct.ContractValue) {
		t.Errorf("expected contract value %s, got %s", ct.ContractValue, got.ContractValue)
	}
	if !got.ACV.Equal(ct.ACV) {
		t.Errorf("expected ACV %s, got %s", ct.ACV, got.ACV)
	}
	if got.LengthYears != 4 || got.PaymentTerms != commission.TermsMonthly {
		t.Errorf("contract fields did not round-trip: %+v", got)
	}
}

func TestGetContract_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetContract(context.Background(), "nope")
	if !errors.Is(err, commission.ErrContractNotFound) {
		t.Errorf("expected ErrContractNotFound, got %v", err)
	}
}

func TestInvoiceRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inv := testInvoice("inv-1", "ct-1", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	if err := store.InsertInvoice(ctx, inv); err != nil {
		t.Fatalf("InsertInvoice: %v", err)
	}

	got, err := store.GetInvoice(ctx, "inv-1")
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if !got.Amount.Equal(inv.Amount) {
		t.Errorf("expected amount %s, got %s", inv.Amount, got.Amount)
	}
	if got.RevenueType != commission.RevenueRecurring {
		t.Errorf("expected recurring revenue type, got %s", got.RevenueType)
	}
}

// =============================================================================
// COMMISSION UNIQUENESS
// =============================================================================

func TestInsertCommission_DuplicateInvoice(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// GIVEN a commission already recorded for an invoice
	first := testCommission("cm-1", "inv-1", "6400", commission.StatusPending)
	if err := store.InsertCommission(ctx, first); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	// WHEN a second commission targets the same invoice
	second := testCommission("cm-2", "inv-1", "6400", commission.StatusPending)
	err := store.InsertCommission(ctx, second)

	// THEN the unique index rejects it with the domain error
	if !errors.Is(err, commission.ErrDuplicateCommission) {
		t.Errorf("expected ErrDuplicateCommission, got %v", err)
	}
}

func TestUpdateCommissionStatus_NotFound(t *testing.T) {
	store := newTestStore(t)

	cm := testCommission("cm-missing", "inv-x", "100", commission.StatusApproved)
	err := store.UpdateCommissionStatus(context.Background(), cm)
	if !errors.Is(err, commission.ErrCommissionNotFound) {
		t.Errorf("expected ErrCommissionNotFound, got %v", err)
	}
}

// =============================================================================
// YEAR-TO-DATE EARNINGS
// =============================================================================

func TestYearToDateEarned_CountsOnlyEarnedStatuses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// GIVEN commissions in every status across two years
	jun2025 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	jan2024 := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	fixtures := []struct {
		invoice commission.InvoiceID
		date    time.Time
		total   string
		status  commission.Status
	}{
		{"inv-approved", jun2025, "1000", commission.StatusApproved},
		{"inv-paid", jun2025, "2000", commission.StatusPaid},
		{"inv-pending", jun2025, "4000", commission.StatusPending},
		{"inv-rejected", jun2025, "8000", commission.StatusRejected},
		{"inv-last-year", jan2024, "16000", commission.StatusPaid},
	}
	for i, f := range fixtures {
		inv := testInvoice(f.invoice, "ct-1", f.date)
		if err := store.InsertInvoice(ctx, inv); err != nil {
			t.Fatalf("fixture invoice %d: %v", i, err)
		}
		cm := testCommission(commission.CommissionID("cm-"+string(f.invoice)), f.invoice, f.total, f.status)
		if err := store.InsertCommission(ctx, cm); err != nil {
			t.Fatalf("fixture commission %d: %v", i, err)
		}
	}

	// WHEN the 2025 YTD is computed
	ytd, err := store.YearToDateEarned(ctx, "ae-1", 2025)
	if err != nil {
		t.Fatalf("YearToDateEarned: %v", err)
	}

	// THEN only approved + paid from 2025 count: 1000 + 2000
	if !ytd.Equal(d("3000")) {
		t.Errorf("expected YTD 3000, got %s", ytd)
	}
}

// =============================================================================
// RATE PLANS AND ASSIGNMENTS
// =============================================================================

func TestSavePlan_RejectsInvalidConfig(t *testing.T) {
	store := newTestStore(t)

	err := store.SavePlan(context.Background(), sqlite.PlanRecord{
		ID:         "plan-bad",
		Name:       "Broken",
		ConfigJSON: `{"baseRate": 1.5}`,
	})
	if !errors.Is(err, commission.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSavePlan_VersionBumpOnUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	plan := sqlite.PlanRecord{
		ID:         "plan-std",
		Name:       "Standard",
		ConfigJSON: factory.StandardPlanJSON("plan-std", "Standard", 1000000),
	}
	if err := store.SavePlan(ctx, plan); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := store.SavePlan(ctx, plan); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := store.GetPlan(ctx, "plan-std")
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if got.Version != 2 {
		t.Errorf("expected version 2 after update, got %d", got.Version)
	}
}

func TestActiveRateConfig_ResolvesAssignedPlan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// GIVEN a plan assigned from the start of 2025
	plan := sqlite.PlanRecord{
		ID:         "plan-senior",
		Name:       "Senior",
		ConfigJSON: factory.SeniorPlanJSON("plan-senior", "Senior", 0.12, 1500000),
	}
	if err := store.SavePlan(ctx, plan); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	if err := store.SaveAssignment(ctx, sqlite.AssignmentRecord{
		ID:            "as-1",
		ExecutiveID:   "ae-1",
		PlanID:        "plan-senior",
		EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("SaveAssignment: %v", err)
	}

	// WHEN the active config is resolved mid-year
	cfg, err := store.ActiveRateConfig(ctx, "ae-1", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ActiveRateConfig: %v", err)
	}

	// THEN the plan overrides apply over the defaults
	if cfg == nil {
		t.Fatal("expected config, got nil")
	}
	if !cfg.BaseRate.Equal(d("0.12")) {
		t.Errorf("expected base rate 0.12, got %s", cfg.BaseRate)
	}
	if !cfg.OTECap.Equal(d("1500000")) {
		t.Errorf("expected cap 1500000, got %s", cfg.OTECap)
	}
	// Unspecified fields fall back to defaults
	if !cfg.PilotBonusHigh.Equal(d("5000")) {
		t.Errorf("expected default pilot high bonus 5000, got %s", cfg.PilotBonusHigh)
	}
}

func TestActiveRateConfig_NoAssignment(t *testing.T) {
	store := newTestStore(t)

	cfg, err := store.ActiveRateConfig(context.Background(), "ae-ghost", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != nil {
		t.Errorf("expected nil config for unassigned executive, got %+v", cfg)
	}
}

func TestActiveRateConfig_RespectsEffectivePeriod(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	plan := sqlite.PlanRecord{
		ID:         "plan-2024",
		Name:       "2024 Plan",
		ConfigJSON: factory.StandardPlanJSON("plan-2024", "2024 Plan", 900000),
	}
	if err := store.SavePlan(ctx, plan); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}

	// Assignment closed at the end of 2024
	to := time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)
	if err := store.SaveAssignment(ctx, sqlite.AssignmentRecord{
		ID:            "as-2024",
		ExecutiveID:   "ae-1",
		PlanID:        "plan-2024",
		EffectiveFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EffectiveTo:   &to,
	}); err != nil {
		t.Fatalf("SaveAssignment: %v", err)
	}

	// Inside the window: config resolves
	cfg, err := store.ActiveRateConfig(ctx, "ae-1", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil || cfg == nil {
		t.Fatalf("expected config inside window, got cfg=%v err=%v", cfg, err)
	}

	// After the window: no active config
	cfg, err = store.ActiveRateConfig(ctx, "ae-1", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != nil {
		t.Errorf("expected nil config after window end, got %+v", cfg)
	}
}

func TestSaveAssignment_RejectsOverlap(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	plan := sqlite.PlanRecord{
		ID:         "plan-std",
		Name:       "Standard",
		ConfigJSON: factory.StandardPlanJSON("plan-std", "Standard", 1000000),
	}
	if err := store.SavePlan(ctx, plan); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}

	// GIVEN an open-ended assignment from 2025-01-01
	if err := store.SaveAssignment(ctx, sqlite.AssignmentRecord{
		ID:            "as-1",
		ExecutiveID:   "ae-1",
		PlanID:        "plan-std",
		EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("first assignment: %v", err)
	}

	// WHEN a second assignment starts inside the open period
	err := store.SaveAssignment(ctx, sqlite.AssignmentRecord{
		ID:            "as-2",
		ExecutiveID:   "ae-1",
		PlanID:        "plan-std",
		EffectiveFrom: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	})

	// THEN it is rejected
	if !errors.Is(err, commission.ErrOverlappingAssignment) {
		t.Errorf("expected ErrOverlappingAssignment, got %v", err)
	}

	// A different executive is unaffected
	if err := store.SaveAssignment(ctx, sqlite.AssignmentRecord{
		ID:            "as-3",
		ExecutiveID:   "ae-2",
		PlanID:        "plan-std",
		EffectiveFrom: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Errorf("assignment for other executive should succeed, got %v", err)
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx workflow.Store) error {
		inv := testInvoice("inv-tx", "ct-1", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error, got %v", err)
	}

	// The invoice written inside the failed transaction must not persist
	_, err = store.GetInvoice(ctx, "inv-tx")
	if !errors.Is(err, commission.ErrInvoiceNotFound) {
		t.Errorf("expected rollback to discard invoice, got %v", err)
	}
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx workflow.Store) error {
		inv := testInvoice("inv-ok", "ct-1", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return err
		}
		return tx.InsertCommission(ctx, testCommission("cm-ok", "inv-ok", "6400", commission.StatusPending))
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	cm, err := store.GetCommission(ctx, "cm-ok")
	if err != nil {
		t.Fatalf("GetCommission after commit: %v", err)
	}
	if !cm.Breakdown.Total.Equal(d("6400")) {
		t.Errorf("expected committed total 6400, got %s", cm.Breakdown.Total)
	}
}

// =============================================================================
// STATEMENTS
// =============================================================================

func TestStatement_JoinsInvoiceAndContract(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveContract(ctx, testContract("ct-1")); err != nil {
		t.Fatalf("SaveContract: %v", err)
	}
	inv := testInvoice("inv-1", "ct-1", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	if err := store.InsertInvoice(ctx, inv); err != nil {
		t.Fatalf("InsertInvoice: %v", err)
	}
	if err := store.InsertCommission(ctx, testCommission("cm-1", "inv-1", "6400", commission.StatusPaid)); err != nil {
		t.Fatalf("InsertCommission: %v", err)
	}

	lines, err := store.Statement(ctx, "ae-1", 2025, "")
	if err != nil {
		t.Fatalf("Statement: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 statement line, got %d", len(lines))
	}
	line := lines[0]
	if line.ClientName != "Globex" {
		t.Errorf("expected client name from contract join, got %q", line.ClientName)
	}
	if !line.Amount.Equal(d("64000")) {
		t.Errorf("expected invoice amount 64000, got %s", line.Amount)
	}
	if !line.Commission.Breakdown.Total.Equal(d("6400")) {
		t.Errorf("expected commission total 6400, got %s", line.Commission.Breakdown.Total)
	}

	// Status filter excludes non-matching lines
	none, err := store.Statement(ctx, "ae-1", 2025, commission.StatusPending)
	if err != nil {
		t.Fatalf("Statement with filter: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no pending lines, got %d", len(none))
	}
}
