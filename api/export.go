/*
export.go - CSV statement export

PURPOSE:
  Streams an executive's commission statement for a year as CSV, suitable
  for payroll import or spreadsheet review. One row per commission, with
  the invoice and contract context joined in.

FORMAT:
  commission_id, invoice_id, invoice_date, client, invoice_amount,
  revenue_type, base, pilot_bonus, multi_year_bonus, upfront_bonus,
  total, cap_applied, status

  Amounts are plain decimal strings. Dates are YYYY-MM-DD.

SEE ALSO:
  - store/sqlite: Statement() does the joining
*/
package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/salesdesk/commission-engine/commission"
)

// GetStatement returns an executive's yearly statement as JSON.
// GET /api/executives/{id}/statement?year=2025&status=paid
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	id := commission.ExecutiveID(chi.URLParam(r, "id"))
	year := yearParam(r)
	status := commission.Status(r.URL.Query().Get("status"))

	lines, err := h.Store.Statement(r.Context(), id, year, status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build statement", err)
		return
	}

	dtos := make([]StatementLineDTO, len(lines))
	for i, line := range lines {
		dtos[i] = StatementLineDTO{
			Commission:  toCommissionDTO(line.Commission),
			InvoiceDate: line.InvoiceDate.Format("2006-01-02"),
			Amount:      line.Amount.String(),
			RevenueType: string(line.RevenueType),
			ClientName:  line.ClientName,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ExportStatement streams an executive's yearly statement as CSV.
// GET /api/executives/{id}/statement/export?year=2025&status=paid
func (h *Handler) ExportStatement(w http.ResponseWriter, r *http.Request) {
	id := commission.ExecutiveID(chi.URLParam(r, "id"))
	year := yearParam(r)
	status := commission.Status(r.URL.Query().Get("status"))

	lines, err := h.Store.Statement(r.Context(), id, year, status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build statement", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="statement-%s-%d.csv"`, id, year))

	cw := csv.NewWriter(w)
	cw.Write([]string{
		"commission_id", "invoice_id", "invoice_date", "client",
		"invoice_amount", "revenue_type", "base", "pilot_bonus",
		"multi_year_bonus", "upfront_bonus", "total", "cap_applied", "status",
	})

	for _, line := range lines {
		cm := line.Commission
		cw.Write([]string{
			string(cm.ID),
			string(cm.InvoiceID),
			line.InvoiceDate.Format("2006-01-02"),
			line.ClientName,
			line.Amount.String(),
			string(line.RevenueType),
			cm.Breakdown.Base.String(),
			cm.Breakdown.PilotBonus.String(),
			cm.Breakdown.MultiYear.String(),
			cm.Breakdown.Upfront.String(),
			cm.Breakdown.Total.String(),
			strconv.FormatBool(cm.Breakdown.CapApplied),
			string(cm.Status),
		})
	}
	cw.Flush()
}
