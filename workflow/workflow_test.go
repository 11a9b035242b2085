package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/salesdesk/commission-engine/commission"
	"github.com/salesdesk/commission-engine/store/memory"
	"github.com/salesdesk/commission-engine/workflow"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(s string) decimal.Decimal {
	return commission.MustDecimal(s)
}

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	}
}

func newFixture(t *testing.T) (*memory.Store, *workflow.Service) {
	t.Helper()
	store := memory.New()
	svc := workflow.NewServiceWithClock(store, fixedClock())

	store.PutContract(commission.Contract{
		ID:            "ct-1",
		ClientName:    "Acme Corp",
		ExecutiveID:   "ae-1",
		ContractValue: d("256000"),
		ACV:           d("64000"),
		Type:          commission.ContractNew,
		LengthYears:   4,
		PaymentTerms:  commission.TermsMonthly,
		SignedAt:      time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC),
	})
	store.AssignConfig("ae-1", commission.DefaultRateConfig(),
		time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	return store, svc
}

func invoice(id, amount string, date time.Time) commission.Invoice {
	return commission.Invoice{
		ID:          commission.InvoiceID(id),
		ContractID:  "ct-1",
		Amount:      d(amount),
		RevenueType: commission.RevenueRecurring,
		Date:        date,
	}
}

func march(day int) time.Time {
	return time.Date(2025, time.March, day, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// RECORDING TESTS
// =============================================================================

func TestRecordInvoice_CreatesPendingCommission(t *testing.T) {
	// GIVEN: A contract with an assigned rate plan
	// WHEN: Recording a 64k recurring invoice
	// THEN: A pending commission with a 6400 base is stored

	_, svc := newFixture(t)
	ctx := context.Background()

	cm, err := svc.RecordInvoice(ctx, invoice("inv-1", "64000", march(1)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cm.Status != commission.StatusPending {
		t.Errorf("expected pending, got %s", cm.Status)
	}
	if cm.ExecutiveID != "ae-1" {
		t.Errorf("commission attributed to %s, want ae-1", cm.ExecutiveID)
	}
	if !cm.Breakdown.Total.Equal(d("6400")) {
		t.Errorf("expected total 6400, got %s", cm.Breakdown.Total)
	}
}

func TestRecordInvoice_MissingConfigurationFailsLoudly(t *testing.T) {
	// GIVEN: A contract whose executive has no rate plan assigned
	// WHEN: Recording an invoice
	// THEN: ErrMissingConfiguration - never a silent default, nothing persisted

	store := memory.New()
	svc := workflow.NewServiceWithClock(store, fixedClock())
	store.PutContract(commission.Contract{
		ID:            "ct-naked",
		ExecutiveID:   "ae-unassigned",
		ContractValue: d("100000"),
		ACV:           d("100000"),
		LengthYears:   1,
		PaymentTerms:  commission.TermsMonthly,
	})
	ctx := context.Background()

	inv := commission.Invoice{
		ID:          "inv-x",
		ContractID:  "ct-naked",
		Amount:      d("1000"),
		RevenueType: commission.RevenueRecurring,
		Date:        march(1),
	}
	_, err := svc.RecordInvoice(ctx, inv)

	if !errors.Is(err, commission.ErrMissingConfiguration) {
		t.Fatalf("expected ErrMissingConfiguration, got %v", err)
	}
	if _, err := store.GetInvoice(ctx, "inv-x"); !errors.Is(err, commission.ErrInvoiceNotFound) {
		t.Error("invoice must not persist when recording fails")
	}
}

func TestRecordInvoice_UnknownContract(t *testing.T) {
	_, svc := newFixture(t)

	inv := invoice("inv-1", "1000", march(1))
	inv.ContractID = "ct-missing"
	_, err := svc.RecordInvoice(context.Background(), inv)

	if !errors.Is(err, commission.ErrContractNotFound) {
		t.Fatalf("expected ErrContractNotFound, got %v", err)
	}
}

func TestRecordInvoice_NegativeAmountRejected(t *testing.T) {
	_, svc := newFixture(t)

	_, err := svc.RecordInvoice(context.Background(), invoice("inv-1", "-5", march(1)))

	if !errors.Is(err, commission.ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
}

func TestRecordInvoice_DuplicateInvoiceRejected(t *testing.T) {
	// GIVEN: An invoice that already has a commission
	// WHEN: Recording it again under the same ID
	// THEN: ErrDuplicateCommission - exactly one commission per invoice

	_, svc := newFixture(t)
	ctx := context.Background()

	if _, err := svc.RecordInvoice(ctx, invoice("inv-1", "64000", march(1))); err != nil {
		t.Fatalf("first recording failed: %v", err)
	}
	_, err := svc.RecordInvoice(ctx, invoice("inv-1", "64000", march(1)))

	if !errors.Is(err, commission.ErrDuplicateCommission) {
		t.Fatalf("expected ErrDuplicateCommission, got %v", err)
	}
}

// =============================================================================
// CAP ACROSS A SEQUENCE OF INVOICES
// =============================================================================

func TestRecordInvoice_CapEngagesAcrossSequence(t *testing.T) {
	// GIVEN: A 1M cap and a stream of 640k invoices (64k commission each)
	// WHEN: Each commission is approved before the next invoice arrives
	// THEN: The decelerator engages exactly when the running earned total
	//       would overflow the cap

	store, svc := newFixture(t)
	ctx := context.Background()

	store.PutContract(commission.Contract{
		ID:            "ct-big",
		ClientName:    "Globex",
		ExecutiveID:   "ae-1",
		ContractValue: d("8000000"),
		ACV:           d("160000"), // below multi-year ACV threshold
		LengthYears:   5,
		PaymentTerms:  commission.TermsMonthly,
	})

	earned := decimal.Zero
	capped := 0
	for i := 1; i <= 16; i++ {
		inv := commission.Invoice{
			ContractID:  "ct-big",
			Amount:      d("640000"),
			RevenueType: commission.RevenueRecurring,
			Date:        march(i),
		}
		cm, err := svc.RecordInvoice(ctx, inv)
		if err != nil {
			t.Fatalf("invoice %d: %v", i, err)
		}

		wantCap := earned.Add(d("64000")).GreaterThan(d("1000000"))
		if cm.Breakdown.CapApplied != wantCap {
			t.Errorf("invoice %d: capApplied = %v, want %v (earned %s)",
				i, cm.Breakdown.CapApplied, wantCap, earned)
		}
		if wantCap {
			capped++
			if !cm.Breakdown.Total.Equal(d("57600")) {
				t.Errorf("invoice %d: decelerated total %s, want 57600", i, cm.Breakdown.Total)
			}
		}

		if _, err := svc.Approve(ctx, cm.ID, "admin"); err != nil {
			t.Fatalf("approve %d: %v", i, err)
		}
		earned = earned.Add(cm.Breakdown.Total)
	}

	// 14 uncapped commissions earn 896k; the 15th would reach 960k... the
	// cap is 1M so the first capped one is the 16th (960k + 64k > 1M).
	if capped != 1 {
		t.Errorf("expected exactly 1 capped commission, got %d", capped)
	}
}

func TestRecordInvoice_RejectedCommissionsDoNotCount(t *testing.T) {
	// GIVEN: A commission pushed over the cap only if a rejected one counted
	// WHEN: Recording after a rejection
	// THEN: Rejected totals are excluded from year-to-date earned

	store, svc := newFixture(t)
	ctx := context.Background()

	store.PutContract(commission.Contract{
		ID:            "ct-big",
		ExecutiveID:   "ae-1",
		ContractValue: d("8000000"),
		ACV:           d("160000"),
		LengthYears:   1,
		PaymentTerms:  commission.TermsMonthly,
	})

	big := commission.Invoice{
		ContractID: "ct-big", Amount: d("9990000"), // 999000 commission, just under the cap
		RevenueType: commission.RevenueRecurring, Date: march(1),
	}
	first, err := svc.RecordInvoice(ctx, big)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Reject(ctx, first.ID, "admin", "billing dispute"); err != nil {
		t.Fatal(err)
	}

	second, err := svc.RecordInvoice(ctx, invoice("inv-after", "64000", march(2)))
	if err != nil {
		t.Fatal(err)
	}
	if second.Breakdown.CapApplied {
		t.Error("rejected commission must not consume cap headroom")
	}
}

// =============================================================================
// APPROVAL STATE MACHINE TESTS
// =============================================================================

func TestTransitions_HappyPaths(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()

	cm, err := svc.RecordInvoice(ctx, invoice("inv-1", "64000", march(1)))
	if err != nil {
		t.Fatal(err)
	}

	approved, err := svc.Approve(ctx, cm.ID, "admin@corp")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != commission.StatusApproved || approved.DecidedBy != "admin@corp" || approved.DecidedAt == nil {
		t.Errorf("approval audit fields not set: %+v", approved)
	}

	paid, err := svc.MarkPaid(ctx, cm.ID, "payroll")
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if paid.Status != commission.StatusPaid || paid.PaidAt == nil {
		t.Errorf("paid fields not set: %+v", paid)
	}
}

func TestTransitions_RejectIsTerminal(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()

	cm, err := svc.RecordInvoice(ctx, invoice("inv-1", "64000", march(1)))
	if err != nil {
		t.Fatal(err)
	}

	rejected, err := svc.Reject(ctx, cm.ID, "admin", "wrong contract")
	if err != nil {
		t.Fatal(err)
	}
	if rejected.RejectionReason != "wrong contract" {
		t.Errorf("rejection reason not recorded: %+v", rejected)
	}

	if _, err := svc.Approve(ctx, cm.ID, "admin"); !errors.Is(err, commission.ErrInvalidTransition) {
		t.Errorf("approve after reject: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := svc.MarkPaid(ctx, cm.ID, "payroll"); !errors.Is(err, commission.ErrInvalidTransition) {
		t.Errorf("pay after reject: expected ErrInvalidTransition, got %v", err)
	}
}

func TestTransitions_IllegalMoves(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()

	cm, err := svc.RecordInvoice(ctx, invoice("inv-1", "64000", march(1)))
	if err != nil {
		t.Fatal(err)
	}

	// pending -> paid skips approval
	if _, err := svc.MarkPaid(ctx, cm.ID, "payroll"); !errors.Is(err, commission.ErrInvalidTransition) {
		t.Errorf("pending->paid: expected ErrInvalidTransition, got %v", err)
	}

	if _, err := svc.Approve(ctx, cm.ID, "admin"); err != nil {
		t.Fatal(err)
	}

	// approved -> approved and approved -> rejected are both illegal
	if _, err := svc.Approve(ctx, cm.ID, "admin"); !errors.Is(err, commission.ErrInvalidTransition) {
		t.Errorf("double approve: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := svc.Reject(ctx, cm.ID, "admin", "late"); !errors.Is(err, commission.ErrInvalidTransition) {
		t.Errorf("reject after approve: expected ErrInvalidTransition, got %v", err)
	}

	if _, err := svc.MarkPaid(ctx, cm.ID, "payroll"); err != nil {
		t.Fatal(err)
	}
	// paid is terminal
	if _, err := svc.MarkPaid(ctx, cm.ID, "payroll"); !errors.Is(err, commission.ErrInvalidTransition) {
		t.Errorf("double pay: expected ErrInvalidTransition, got %v", err)
	}
}

func TestTransitions_UnknownCommission(t *testing.T) {
	_, svc := newFixture(t)

	_, err := svc.Approve(context.Background(), "cm-ghost", "admin")

	if !errors.Is(err, commission.ErrCommissionNotFound) {
		t.Fatalf("expected ErrCommissionNotFound, got %v", err)
	}
}

// =============================================================================
// DASHBOARD TESTS
// =============================================================================

func TestDashboard_SummarizesYear(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()

	first, err := svc.RecordInvoice(ctx, invoice("inv-1", "64000", march(1)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Approve(ctx, first.ID, "admin"); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.RecordInvoice(ctx, invoice("inv-2", "32000", march(2))); err != nil {
		t.Fatal(err)
	}

	third, err := svc.RecordInvoice(ctx, invoice("inv-3", "10000", march(3)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Reject(ctx, third.ID, "admin", "duplicate billing"); err != nil {
		t.Fatal(err)
	}

	sum, err := svc.Dashboard(ctx, "ae-1", 2025)
	if err != nil {
		t.Fatal(err)
	}

	if !sum.Earned.Equal(d("6400")) {
		t.Errorf("earned: expected 6400, got %s", sum.Earned)
	}
	if !sum.Pending.Equal(d("3200")) {
		t.Errorf("pending: expected 3200, got %s", sum.Pending)
	}
	if !sum.CapAmount.Equal(d("1000000")) {
		t.Errorf("cap amount: expected 1000000, got %s", sum.CapAmount)
	}
	if !sum.CapProgress.Equal(d("0.0064")) {
		t.Errorf("cap progress: expected 0.0064, got %s", sum.CapProgress)
	}
	if sum.ByStatus[commission.StatusApproved] != 1 ||
		sum.ByStatus[commission.StatusPending] != 1 ||
		sum.ByStatus[commission.StatusRejected] != 1 {
		t.Errorf("status counts wrong: %+v", sum.ByStatus)
	}
}

func TestDashboard_RequiresConfiguration(t *testing.T) {
	store := memory.New()
	svc := workflow.NewServiceWithClock(store, fixedClock())

	_, err := svc.Dashboard(context.Background(), "ae-unknown", 2025)

	if !errors.Is(err, commission.ErrMissingConfiguration) {
		t.Fatalf("expected ErrMissingConfiguration, got %v", err)
	}
}
