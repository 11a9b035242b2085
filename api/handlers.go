/*
handlers.go - HTTP API handlers for the commission tracking system

PURPOSE:
  Exposes the commission engine and approval workflow via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Executives:
    GET    /api/executives                   List all executives (admin)
    POST   /api/executives                   Create executive (admin)
    GET    /api/executives/{id}              Get executive details
    GET    /api/executives/{id}/dashboard    Year summary vs cap
    GET    /api/executives/{id}/commissions  Commission history for a year
    GET    /api/executives/{id}/statement    Yearly statement (JSON)
    GET    /api/executives/{id}/statement/export  CSV statement export
    GET    /api/executives/{id}/plan         Active rate configuration
    GET    /api/executives/{id}/assignments  Plan assignment history
    POST   /api/executives/{id}/assignments  Assign a plan (admin)

  Contracts:
    GET    /api/contracts                    List contracts
    POST   /api/contracts                    Record a signed contract
    GET    /api/contracts/{id}               Get contract details
    GET    /api/contracts/{id}/invoices      Invoices under a contract

  Invoices:
    POST   /api/invoices                     Record invoice, calculate commission
    GET    /api/invoices/{id}                Get invoice details

  Commissions:
    GET    /api/commissions                  List (optionally ?status=pending)
    GET    /api/commissions/{id}             Get commission with breakdown
    POST   /api/commissions/{id}/approve     Approve (admin)
    POST   /api/commissions/{id}/reject      Reject (admin)
    POST   /api/commissions/{id}/pay         Mark paid (admin)

  Plans:
    GET    /api/plans                        List rate plans
    POST   /api/plans                        Create/update plan (admin)
    GET    /api/plans/{id}                   Get plan details

ERROR HANDLING:
  Domain errors map to HTTP status through statusFor():
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (duplicate commission, illegal transition, overlap)
  - 422: Executive has no active rate configuration
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Token issuance and role middleware
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/salesdesk/commission-engine/commission"
	"github.com/salesdesk/commission-engine/store/sqlite"
	"github.com/salesdesk/commission-engine/workflow"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Workflow *workflow.Service
	Auth     *Authenticator

	validate *validator.Validate
	log      *logrus.Logger
}

// NewHandler creates a new handler wired to the store and workflow.
func NewHandler(store *sqlite.Store, wf *workflow.Service, auth *Authenticator, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{
		Store:    store,
		Workflow: wf,
		Auth:     auth,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}
}

// =============================================================================
// EXECUTIVE HANDLERS
// =============================================================================

// ListExecutives returns all account executives.
func (h *Handler) ListExecutives(w http.ResponseWriter, r *http.Request) {
	executives, err := h.Store.ListExecutives(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list executives", err)
		return
	}

	dtos := make([]ExecutiveDTO, len(executives))
	for i, e := range executives {
		dtos[i] = ExecutiveDTO{
			ID:        string(e.ID),
			Name:      e.Name,
			Email:     e.Email,
			HiredAt:   e.HiredAt.Format("2006-01-02"),
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		}
	}

	writeJSON(w, http.StatusOK, dtos)
}

// CreateExecutive creates a new account executive.
func (h *Handler) CreateExecutive(w http.ResponseWriter, r *http.Request) {
	var req CreateExecutiveRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	hiredAt, _ := time.Parse("2006-01-02", req.HiredAt)
	exec := sqlite.Executive{
		ID:      commission.ExecutiveID(req.ID),
		Name:    req.Name,
		Email:   req.Email,
		HiredAt: hiredAt,
	}

	if err := h.Store.SaveExecutive(r.Context(), exec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create executive", err)
		return
	}

	h.log.WithFields(logrus.Fields{"executive_id": req.ID}).Info("executive created")
	writeJSON(w, http.StatusCreated, ExecutiveDTO{
		ID:      req.ID,
		Name:    req.Name,
		Email:   req.Email,
		HiredAt: req.HiredAt,
	})
}

// GetExecutive returns a single executive.
func (h *Handler) GetExecutive(w http.ResponseWriter, r *http.Request) {
	id := commission.ExecutiveID(chi.URLParam(r, "id"))

	exec, err := h.Store.GetExecutive(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get executive", err)
		return
	}

	writeJSON(w, http.StatusOK, ExecutiveDTO{
		ID:        string(exec.ID),
		Name:      exec.Name,
		Email:     exec.Email,
		HiredAt:   exec.HiredAt.Format("2006-01-02"),
		CreatedAt: exec.CreatedAt.Format(time.RFC3339),
	})
}

// GetDashboard returns the executive's year summary against their cap.
// GET /api/executives/{id}/dashboard?year=2025
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	id := commission.ExecutiveID(chi.URLParam(r, "id"))
	year := yearParam(r)

	summary, err := h.Workflow.Dashboard(r.Context(), id, year)
	if err != nil {
		writeDomainError(w, "Failed to build dashboard", err)
		return
	}

	byStatus := make(map[string]int, len(summary.ByStatus))
	for status, n := range summary.ByStatus {
		byStatus[string(status)] = n
	}

	writeJSON(w, http.StatusOK, DashboardDTO{
		ExecutiveID:     string(summary.ExecutiveID),
		Year:            summary.Year,
		Earned:          summary.Earned.String(),
		Pending:         summary.Pending.String(),
		Cap:             summary.CapAmount.String(),
		CapProgress:     summary.CapProgress.String(),
		CapAppliedCount: summary.CapAppliedCount,
		ByStatus:        byStatus,
	})
}

// ListExecutiveCommissions returns an executive's commissions for a year.
// GET /api/executives/{id}/commissions?year=2025
func (h *Handler) ListExecutiveCommissions(w http.ResponseWriter, r *http.Request) {
	id := commission.ExecutiveID(chi.URLParam(r, "id"))
	year := yearParam(r)

	cms, err := h.Store.ListByExecutive(r.Context(), id, year)
	if err != nil {
		writeDomainError(w, "Failed to list commissions", err)
		return
	}

	dtos := make([]CommissionDTO, len(cms))
	for i, cm := range cms {
		dtos[i] = toCommissionDTO(cm)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListAssignments returns an executive's plan assignment history.
func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	id := commission.ExecutiveID(chi.URLParam(r, "id"))

	assignments, err := h.Store.GetAssignmentsByExecutive(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list assignments", err)
		return
	}

	dtos := make([]AssignmentDTO, len(assignments))
	for i, a := range assignments {
		dtos[i] = AssignmentDTO{
			ID:            a.ID,
			ExecutiveID:   string(a.ExecutiveID),
			PlanID:        string(a.PlanID),
			EffectiveFrom: a.EffectiveFrom.Format("2006-01-02"),
		}
		if a.EffectiveTo != nil {
			dtos[i].EffectiveTo = a.EffectiveTo.Format("2006-01-02")
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAssignment assigns a rate plan to an executive.
// POST /api/executives/{id}/assignments
func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req CreateAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	// Mounted both per-executive and under /admin; the URL owns the
	// executive when present.
	if id != "" {
		req.ExecutiveID = id
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	id = req.ExecutiveID

	if _, err := h.Store.GetPlan(r.Context(), commission.PlanID(req.PlanID)); err != nil {
		writeDomainError(w, "Failed to resolve plan", err)
		return
	}

	from, _ := time.Parse("2006-01-02", req.EffectiveFrom)
	record := sqlite.AssignmentRecord{
		ID:            "as-" + id + "-" + req.EffectiveFrom,
		ExecutiveID:   commission.ExecutiveID(id),
		PlanID:        commission.PlanID(req.PlanID),
		EffectiveFrom: from,
	}
	if req.EffectiveTo != "" {
		to, _ := time.Parse("2006-01-02", req.EffectiveTo)
		record.EffectiveTo = &to
	}

	if err := h.Store.SaveAssignment(r.Context(), record); err != nil {
		writeDomainError(w, "Failed to save assignment", err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"executive_id": id,
		"plan_id":      req.PlanID,
	}).Info("plan assigned")
	writeJSON(w, http.StatusCreated, AssignmentDTO{
		ID:            record.ID,
		ExecutiveID:   id,
		PlanID:        req.PlanID,
		EffectiveFrom: req.EffectiveFrom,
		EffectiveTo:   req.EffectiveTo,
	})
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

// ListContracts returns all contracts.
func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	contracts, err := h.Store.ListContracts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list contracts", err)
		return
	}

	dtos := make([]ContractDTO, len(contracts))
	for i, c := range contracts {
		dtos[i] = toContractDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateContract records a signed contract.
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var req CreateContractRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	value, err := parseMoney(req.ContractValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid contract_value", err)
		return
	}
	acv, err := parseMoney(req.ACV)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid acv", err)
		return
	}

	if _, err := h.Store.GetExecutive(r.Context(), commission.ExecutiveID(req.ExecutiveID)); err != nil {
		writeDomainError(w, "Failed to resolve executive", err)
		return
	}

	signedAt, _ := time.Parse("2006-01-02", req.SignedAt)
	ct := commission.Contract{
		ID:            commission.ContractID(req.ID),
		ClientName:    req.ClientName,
		ExecutiveID:   commission.ExecutiveID(req.ExecutiveID),
		ContractValue: value,
		ACV:           acv,
		Type:          commission.ContractType(req.Type),
		LengthYears:   req.LengthYears,
		PaymentTerms:  commission.PaymentTerms(req.PaymentTerms),
		IsPilot:       req.IsPilot,
		SignedAt:      signedAt,
	}
	if ct.ID == "" {
		ct.ID = commission.ContractID(newID())
	}

	if err := h.Store.SaveContract(r.Context(), ct); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save contract", err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"contract_id":  ct.ID,
		"executive_id": ct.ExecutiveID,
		"value":        ct.ContractValue.String(),
	}).Info("contract recorded")
	writeJSON(w, http.StatusCreated, toContractDTO(ct))
}

// GetContract returns a single contract.
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	id := commission.ContractID(chi.URLParam(r, "id"))

	ct, err := h.Store.GetContract(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get contract", err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(*ct))
}

// ListContractInvoices returns all invoices under a contract.
func (h *Handler) ListContractInvoices(w http.ResponseWriter, r *http.Request) {
	id := commission.ContractID(chi.URLParam(r, "id"))

	invoices, err := h.Store.ListInvoicesByContract(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}

	dtos := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		dtos[i] = toInvoiceDTO(inv)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

// RecordInvoice records an invoice and calculates its commission in one
// step. The created commission starts pending.
// POST /api/invoices
func (h *Handler) RecordInvoice(w http.ResponseWriter, r *http.Request) {
	var req RecordInvoiceRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := parseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	date, _ := time.Parse("2006-01-02", req.Date)
	inv := commission.Invoice{
		ID:          commission.InvoiceID(req.ID),
		ContractID:  commission.ContractID(req.ContractID),
		Amount:      amount,
		RevenueType: commission.RevenueType(req.RevenueType),
		Date:        date,
	}

	cm, err := h.Workflow.RecordInvoice(r.Context(), inv)
	if err != nil {
		writeDomainError(w, "Failed to record invoice", err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"invoice_id":    cm.InvoiceID,
		"commission_id": cm.ID,
		"total":         cm.Breakdown.Total.String(),
		"cap_applied":   cm.Breakdown.CapApplied,
	}).Info("invoice recorded")
	writeJSON(w, http.StatusCreated, toCommissionDTO(cm))
}

// GetInvoice returns a single invoice.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id := commission.InvoiceID(chi.URLParam(r, "id"))

	inv, err := h.Store.GetInvoice(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(*inv))
}

// =============================================================================
// COMMISSION HANDLERS
// =============================================================================

// ListCommissions returns commissions, filterable by status.
// GET /api/commissions?status=pending
func (h *Handler) ListCommissions(w http.ResponseWriter, r *http.Request) {
	status := commission.Status(r.URL.Query().Get("status"))

	cms, err := h.Store.ListCommissions(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list commissions", err)
		return
	}

	dtos := make([]CommissionDTO, len(cms))
	for i, cm := range cms {
		dtos[i] = toCommissionDTO(cm)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCommission returns a single commission with its full breakdown.
func (h *Handler) GetCommission(w http.ResponseWriter, r *http.Request) {
	id := commission.CommissionID(chi.URLParam(r, "id"))

	cm, err := h.Store.GetCommission(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get commission", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommissionDTO(*cm))
}

// ApproveCommission moves a pending commission to approved.
// POST /api/commissions/{id}/approve
func (h *Handler) ApproveCommission(w http.ResponseWriter, r *http.Request) {
	id := commission.CommissionID(chi.URLParam(r, "id"))
	actor := h.decisionActor(r)

	cm, err := h.Workflow.Approve(r.Context(), id, actor)
	if err != nil {
		writeDomainError(w, "Failed to approve commission", err)
		return
	}

	h.log.WithFields(logrus.Fields{"commission_id": id, "actor": actor}).Info("commission approved")
	writeJSON(w, http.StatusOK, toCommissionDTO(cm))
}

// RejectCommission moves a pending commission to rejected (terminal).
// POST /api/commissions/{id}/reject
func (h *Handler) RejectCommission(w http.ResponseWriter, r *http.Request) {
	id := commission.CommissionID(chi.URLParam(r, "id"))

	var req DecisionRequest
	json.NewDecoder(r.Body).Decode(&req)
	actor := req.DeciderID
	if actor == "" {
		actor = h.actorFromToken(r)
	}

	cm, err := h.Workflow.Reject(r.Context(), id, actor, req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to reject commission", err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"commission_id": id,
		"actor":         actor,
		"reason":        req.Reason,
	}).Info("commission rejected")
	writeJSON(w, http.StatusOK, toCommissionDTO(cm))
}

// PayCommission moves an approved commission to paid.
// POST /api/commissions/{id}/pay
func (h *Handler) PayCommission(w http.ResponseWriter, r *http.Request) {
	id := commission.CommissionID(chi.URLParam(r, "id"))
	actor := h.decisionActor(r)

	cm, err := h.Workflow.MarkPaid(r.Context(), id, actor)
	if err != nil {
		writeDomainError(w, "Failed to mark commission paid", err)
		return
	}

	h.log.WithFields(logrus.Fields{"commission_id": id, "actor": actor}).Info("commission paid")
	writeJSON(w, http.StatusOK, toCommissionDTO(cm))
}

func (h *Handler) decisionActor(r *http.Request) string {
	var req DecisionRequest
	json.NewDecoder(r.Body).Decode(&req)
	if req.DeciderID != "" {
		return req.DeciderID
	}
	return h.actorFromToken(r)
}

func (h *Handler) actorFromToken(r *http.Request) string {
	if identity, ok := identityFrom(r.Context()); ok && identity.ExecutiveID != "" {
		return identity.ExecutiveID
	}
	return "admin"
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// ListPlans returns all rate plans.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Store.ListPlans(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list plans", err)
		return
	}

	dtos := make([]PlanDTO, len(plans))
	for i, p := range plans {
		dtos[i] = PlanDTO{
			ID:        string(p.ID),
			Name:      p.Name,
			Config:    p.ConfigJSON,
			Version:   p.Version,
			CreatedAt: p.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SavePlan creates or updates a rate plan.
// POST /api/plans
func (h *Handler) SavePlan(w http.ResponseWriter, r *http.Request) {
	var req SavePlanRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	record := sqlite.PlanRecord{
		ID:         commission.PlanID(req.ID),
		Name:       req.Name,
		ConfigJSON: req.Config,
	}
	if err := h.Store.SavePlan(r.Context(), record); err != nil {
		writeDomainError(w, "Failed to save plan", err)
		return
	}

	h.log.WithFields(logrus.Fields{"plan_id": req.ID}).Info("plan saved")
	writeJSON(w, http.StatusCreated, PlanDTO{
		ID:     req.ID,
		Name:   req.Name,
		Config: req.Config,
	})
}

// GetActivePlan returns the executive's currently active rate
// configuration, fully resolved as the engine would see it.
// GET /api/executives/{id}/plan
func (h *Handler) GetActivePlan(w http.ResponseWriter, r *http.Request) {
	id := commission.ExecutiveID(chi.URLParam(r, "id"))

	cfg, err := h.Store.ActiveRateConfig(r.Context(), id, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve rate configuration", err)
		return
	}
	if cfg == nil {
		writeError(w, http.StatusNotFound, "No active rate configuration",
			&commission.MissingConfigurationError{ExecutiveID: id})
		return
	}
	writeJSON(w, http.StatusOK, toRateConfigDTO(*cfg))
}

// GetPlan returns a single rate plan.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id := commission.PlanID(chi.URLParam(r, "id"))

	p, err := h.Store.GetPlan(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get plan", err)
		return
	}
	writeJSON(w, http.StatusOK, PlanDTO{
		ID:        string(p.ID),
		Name:      p.Name,
		Config:    p.ConfigJSON,
		Version:   p.Version,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ResetDatabase clears all data (dev/demo only).
// POST /api/admin/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.log.Warn("database reset")
	writeJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, commission.ErrMissingConfiguration):
		return http.StatusUnprocessableEntity
	case commission.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, commission.ErrDuplicateCommission),
		errors.Is(err, commission.ErrInvalidTransition),
		errors.Is(err, commission.ErrOverlappingAssignment):
		return http.StatusConflict
	case commission.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeAndValidate decodes the JSON body into dst and runs struct
// validation.
func decodeAndValidate(r *http.Request, v *validator.Validate, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return v.Struct(dst)
}

func parseMoney(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

func yearParam(r *http.Request) int {
	if y := r.URL.Query().Get("year"); y != "" {
		if year, err := strconv.Atoi(y); err == nil {
			return year
		}
	}
	return time.Now().UTC().Year()
}

func newID() string {
	return uuid.NewString()
}
