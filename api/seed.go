/*
seed.go - Demo data loader

PURPOSE:
  Populates the database with a small but representative dataset so the
  API can be explored without manual setup. The data exercises every
  calculation path: plain base commission, the high-value rate split,
  pilot bonuses at each tier, the multi-year bonus, the upfront bonus,
  and non-commissionable revenue.

  Everything goes through the workflow, not raw inserts, so the seeded
  commissions carry real calculated breakdowns.

SEE ALSO:
  - workflow/workflow.go: RecordInvoice used for each invoice
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/salesdesk/commission-engine/commission"
	"github.com/salesdesk/commission-engine/factory"
	"github.com/salesdesk/commission-engine/store/sqlite"
)

// SeedDemoData wipes the database and loads the demo dataset.
// POST /api/admin/seed
func (h *Handler) SeedDemoData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	if err := h.seed(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed demo data", err)
		return
	}

	h.log.Info("demo data seeded")
	writeJSON(w, http.StatusOK, map[string]any{"status": "seeded"})
}

func (h *Handler) seed(ctx context.Context) error {
	jan1 := time.Date(time.Now().UTC().Year(), 1, 1, 0, 0, 0, 0, time.UTC)

	// Executives
	executives := []sqlite.Executive{
		{ID: "ae-rivera", Name: "Sam Rivera", Email: "sam@example.com", HiredAt: jan1.AddDate(-2, 0, 0)},
		{ID: "ae-chen", Name: "Alex Chen", Email: "alex@example.com", HiredAt: jan1.AddDate(-1, -3, 0)},
	}
	for _, e := range executives {
		if err := h.Store.SaveExecutive(ctx, e); err != nil {
			return fmt.Errorf("seed executive %s: %w", e.ID, err)
		}
	}

	// Plans: standard defaults for one, a senior override for the other
	plans := []sqlite.PlanRecord{
		{ID: "plan-standard", Name: "Standard", ConfigJSON: factory.StandardPlanJSON("plan-standard", "Standard", 1000000)},
		{ID: "plan-senior", Name: "Senior", ConfigJSON: factory.SeniorPlanJSON("plan-senior", "Senior", 0.12, 1500000)},
	}
	for _, p := range plans {
		if err := h.Store.SavePlan(ctx, p); err != nil {
			return fmt.Errorf("seed plan %s: %w", p.ID, err)
		}
	}

	assignments := []sqlite.AssignmentRecord{
		{ID: "as-rivera", ExecutiveID: "ae-rivera", PlanID: "plan-standard", EffectiveFrom: jan1},
		{ID: "as-chen", ExecutiveID: "ae-chen", PlanID: "plan-senior", EffectiveFrom: jan1},
	}
	for _, a := range assignments {
		if err := h.Store.SaveAssignment(ctx, a); err != nil {
			return fmt.Errorf("seed assignment %s: %w", a.ID, err)
		}
	}

	// Contracts covering each calculation path
	contracts := []commission.Contract{
		{
			// Plain base commission
			ID: "ct-globex", ClientName: "Globex", ExecutiveID: "ae-rivera",
			ContractValue: commission.MustDecimal("256000"), ACV: commission.MustDecimal("64000"),
			Type: commission.ContractNew, LengthYears: 4, PaymentTerms: commission.TermsMonthly,
			SignedAt: jan1.AddDate(0, 0, 9),
		},
		{
			// High-value: triggers the rate split on large invoices
			ID: "ct-initech", ClientName: "Initech", ExecutiveID: "ae-rivera",
			ContractValue: commission.MustDecimal("9000000"), ACV: commission.MustDecimal("9000000"),
			Type: commission.ContractNew, LengthYears: 1, PaymentTerms: commission.TermsAnnual,
			SignedAt: jan1.AddDate(0, 1, 0),
		},
		{
			// Pilot contract: pilot bonus tiers
			ID: "ct-hooli", ClientName: "Hooli Labs", ExecutiveID: "ae-chen",
			ContractValue: commission.MustDecimal("30000"), ACV: commission.MustDecimal("30000"),
			Type: commission.ContractNew, LengthYears: 1, PaymentTerms: commission.TermsQuarterly,
			IsPilot: true, SignedAt: jan1.AddDate(0, 0, 20),
		},
		{
			// Multi-year high-ACV with upfront payment: both bonuses
			ID: "ct-stark", ClientName: "Stark Industries", ExecutiveID: "ae-chen",
			ContractValue: commission.MustDecimal("900000"), ACV: commission.MustDecimal("300000"),
			Type: commission.ContractNew, LengthYears: 3, PaymentTerms: commission.TermsUpfront,
			SignedAt: jan1.AddDate(0, 2, 0),
		},
	}
	for _, c := range contracts {
		if err := h.Store.SaveContract(ctx, c); err != nil {
			return fmt.Errorf("seed contract %s: %w", c.ID, err)
		}
	}

	// Invoices run through the workflow so real breakdowns land
	invoices := []commission.Invoice{
		{ID: "inv-globex-1", ContractID: "ct-globex", Amount: commission.MustDecimal("64000"),
			RevenueType: commission.RevenueRecurring, Date: jan1.AddDate(0, 1, 14)},
		{ID: "inv-globex-2", ContractID: "ct-globex", Amount: commission.MustDecimal("64000"),
			RevenueType: commission.RevenueRecurring, Date: jan1.AddDate(0, 2, 14)},
		{ID: "inv-initech-1", ContractID: "ct-initech", Amount: commission.MustDecimal("9000000"),
			RevenueType: commission.RevenueRecurring, Date: jan1.AddDate(0, 1, 20)},
		{ID: "inv-hooli-1", ContractID: "ct-hooli", Amount: commission.MustDecimal("30000"),
			RevenueType: commission.RevenueRecurring, Date: jan1.AddDate(0, 1, 1)},
		{ID: "inv-stark-1", ContractID: "ct-stark", Amount: commission.MustDecimal("300000"),
			RevenueType: commission.RevenueRecurring, Date: jan1.AddDate(0, 2, 10)},
		{ID: "inv-stark-setup", ContractID: "ct-stark", Amount: commission.MustDecimal("15000"),
			RevenueType: commission.RevenueService, Date: jan1.AddDate(0, 2, 12)},
	}
	for _, inv := range invoices {
		if _, err := h.Workflow.RecordInvoice(ctx, inv); err != nil {
			return fmt.Errorf("seed invoice %s: %w", inv.ID, err)
		}
	}

	// Walk a couple of commissions through the approval flow so every
	// status appears in the demo data
	byInvoice := map[commission.InvoiceID]commission.CommissionID{}
	cms, err := h.Store.ListCommissions(ctx, "")
	if err != nil {
		return err
	}
	for _, cm := range cms {
		byInvoice[cm.InvoiceID] = cm.ID
	}

	if id, ok := byInvoice["inv-globex-1"]; ok {
		if _, err := h.Workflow.Approve(ctx, id, "seed"); err != nil {
			return err
		}
		if _, err := h.Workflow.MarkPaid(ctx, id, "seed"); err != nil {
			return err
		}
	}
	if id, ok := byInvoice["inv-globex-2"]; ok {
		if _, err := h.Workflow.Approve(ctx, id, "seed"); err != nil {
			return err
		}
	}
	if id, ok := byInvoice["inv-hooli-1"]; ok {
		if _, err := h.Workflow.Reject(ctx, id, "seed", "Pilot under review"); err != nil {
			return err
		}
	}

	return nil
}
