/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  All monetary values cross the wire as strings ("64000", "6400.50"),
  never as JSON numbers. Floats silently mangle money; strings round-trip
  through shopspring/decimal exactly.

VALIDATION:
  Request types carry go-playground/validator struct tags. Handlers run
  the validator before touching domain logic, so malformed input fails
  with a 400 and a field-level message.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plan.go: PlanJSON type embedded in plan responses
*/
package api

import (
	"time"

	"github.com/salesdesk/commission-engine/commission"
)

// =============================================================================
// EXECUTIVE TYPES
// =============================================================================

// ExecutiveDTO represents an account executive in API responses.
type ExecutiveDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	HiredAt   string `json:"hired_at"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateExecutiveRequest is the request to create an account executive.
type CreateExecutiveRequest struct {
	ID      string `json:"id" validate:"required"`
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	HiredAt string `json:"hired_at" validate:"required,datetime=2006-01-02"`
}

// =============================================================================
// CONTRACT TYPES
// =============================================================================

// ContractDTO represents a contract in API responses.
type ContractDTO struct {
	ID            string `json:"id"`
	ClientName    string `json:"client_name"`
	ExecutiveID   string `json:"executive_id"`
	ContractValue string `json:"contract_value"`
	ACV           string `json:"acv"`
	Type          string `json:"type"`
	LengthYears   int    `json:"length_years"`
	PaymentTerms  string `json:"payment_terms"`
	IsPilot       bool   `json:"is_pilot"`
	SignedAt      string `json:"signed_at"`
}

// CreateContractRequest is the request to record a signed contract.
type CreateContractRequest struct {
	ID            string `json:"id"`
	ClientName    string `json:"client_name" validate:"required"`
	ExecutiveID   string `json:"executive_id" validate:"required"`
	ContractValue string `json:"contract_value" validate:"required"`
	ACV           string `json:"acv" validate:"required"`
	Type          string `json:"type" validate:"required,oneof=new renewal upsell"`
	LengthYears   int    `json:"length_years" validate:"required,min=1"`
	PaymentTerms  string `json:"payment_terms" validate:"required,oneof=annual quarterly monthly upfront full-upfront"`
	IsPilot       bool   `json:"is_pilot"`
	SignedAt      string `json:"signed_at" validate:"required,datetime=2006-01-02"`
}

// =============================================================================
// INVOICE TYPES
// =============================================================================

// InvoiceDTO represents an invoice in API responses.
type InvoiceDTO struct {
	ID          string `json:"id"`
	ContractID  string `json:"contract_id"`
	Amount      string `json:"amount"`
	RevenueType string `json:"revenue_type"`
	Date        string `json:"date"`
}

// RecordInvoiceRequest is the request that triggers commission calculation.
type RecordInvoiceRequest struct {
	ID          string `json:"id"`
	ContractID  string `json:"contract_id" validate:"required"`
	Amount      string `json:"amount" validate:"required"`
	RevenueType string `json:"revenue_type" validate:"required,oneof=recurring non-recurring service"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
}

// =============================================================================
// COMMISSION TYPES
// =============================================================================

// BreakdownDTO mirrors commission.Breakdown with string amounts.
type BreakdownDTO struct {
	Base       string `json:"base"`
	PilotBonus string `json:"pilot_bonus"`
	MultiYear  string `json:"multi_year"`
	Upfront    string `json:"upfront"`
	Total      string `json:"total"`
	CapApplied bool   `json:"cap_applied"`
}

// CommissionDTO represents a commission in API responses.
type CommissionDTO struct {
	ID              string       `json:"id"`
	InvoiceID       string       `json:"invoice_id"`
	ExecutiveID     string       `json:"executive_id"`
	Breakdown       BreakdownDTO `json:"breakdown"`
	Status          string       `json:"status"`
	DecidedBy       string       `json:"decided_by,omitempty"`
	DecidedAt       string       `json:"decided_at,omitempty"`
	RejectionReason string       `json:"rejection_reason,omitempty"`
	PaidAt          string       `json:"paid_at,omitempty"`
	CreatedAt       string       `json:"created_at,omitempty"`
}

// DecisionRequest is the body for approve/reject/pay actions.
type DecisionRequest struct {
	DeciderID string `json:"decider_id"`
	Reason    string `json:"reason"`
}

// =============================================================================
// PLAN TYPES
// =============================================================================

// PlanDTO represents a rate plan in API responses. Config is the raw plan
// JSON; clients see exactly what was stored, absent fields included.
type PlanDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Config    string `json:"config"`
	Version   int    `json:"version"`
	CreatedAt string `json:"created_at,omitempty"`
}

// SavePlanRequest is the request to create or update a rate plan.
type SavePlanRequest struct {
	ID     string `json:"id" validate:"required"`
	Name   string `json:"name" validate:"required"`
	Config string `json:"config" validate:"required"`
}

// RateConfigDTO is a fully resolved rate configuration, as the engine
// would see it. All values are strings for exact decimal round-trips.
type RateConfigDTO struct {
	BaseRate         string `json:"base_rate"`
	HighValueCap     string `json:"high_value_cap"`
	HighValueRate    string `json:"high_value_rate"`
	PilotBonusUnpaid string `json:"pilot_bonus_unpaid"`
	PilotBonusLow    string `json:"pilot_bonus_low"`
	PilotBonusHigh   string `json:"pilot_bonus_high"`
	PilotLowMin      string `json:"pilot_low_min"`
	PilotHighMin     string `json:"pilot_high_min"`
	MultiYearBonus   string `json:"multi_year_bonus"`
	MultiYearMinACV  string `json:"multi_year_min_acv"`
	UpfrontBonus     string `json:"upfront_bonus"`
	OTECap           string `json:"ote_cap"`
	OTEDecelerator   string `json:"ote_decelerator"`
}

// StatementLineDTO is one commission with its invoice context, as shown
// on an executive's statement.
type StatementLineDTO struct {
	Commission  CommissionDTO `json:"commission"`
	InvoiceDate string        `json:"invoice_date"`
	Amount      string        `json:"amount"`
	RevenueType string        `json:"revenue_type"`
	ClientName  string        `json:"client_name"`
}

// AssignmentDTO represents a plan assignment in API responses.
type AssignmentDTO struct {
	ID            string `json:"id"`
	ExecutiveID   string `json:"executive_id"`
	PlanID        string `json:"plan_id"`
	EffectiveFrom string `json:"effective_from"`
	EffectiveTo   string `json:"effective_to,omitempty"`
}

// CreateAssignmentRequest assigns a plan to an executive.
type CreateAssignmentRequest struct {
	ExecutiveID   string `json:"executive_id" validate:"required"`
	PlanID        string `json:"plan_id" validate:"required"`
	EffectiveFrom string `json:"effective_from" validate:"required,datetime=2006-01-02"`
	EffectiveTo   string `json:"effective_to" validate:"omitempty,datetime=2006-01-02"`
}

// =============================================================================
// DASHBOARD TYPES
// =============================================================================

// DashboardDTO is the executive's year summary.
type DashboardDTO struct {
	ExecutiveID     string         `json:"executive_id"`
	Year            int            `json:"year"`
	Earned          string         `json:"earned"`
	Pending         string         `json:"pending"`
	Cap             string         `json:"cap"`
	CapProgress     string         `json:"cap_progress"`
	CapAppliedCount int            `json:"cap_applied_count"`
	ByStatus        map[string]int `json:"by_status"`
}

// =============================================================================
// AUTH TYPES
// =============================================================================

// TokenRequest exchanges the bootstrap secret for a signed JWT.
type TokenRequest struct {
	Secret      string `json:"secret" validate:"required"`
	ExecutiveID string `json:"executive_id"`
	Role        string `json:"role" validate:"required,oneof=admin executive"`
}

// TokenResponse carries the issued token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toCommissionDTO(cm commission.Commission) CommissionDTO {
	dto := CommissionDTO{
		ID:          string(cm.ID),
		InvoiceID:   string(cm.InvoiceID),
		ExecutiveID: string(cm.ExecutiveID),
		Breakdown: BreakdownDTO{
			Base:       cm.Breakdown.Base.String(),
			PilotBonus: cm.Breakdown.PilotBonus.String(),
			MultiYear:  cm.Breakdown.MultiYear.String(),
			Upfront:    cm.Breakdown.Upfront.String(),
			Total:      cm.Breakdown.Total.String(),
			CapApplied: cm.Breakdown.CapApplied,
		},
		Status:          string(cm.Status),
		DecidedBy:       cm.DecidedBy,
		RejectionReason: cm.RejectionReason,
	}
	if cm.DecidedAt != nil {
		dto.DecidedAt = cm.DecidedAt.Format(time.RFC3339)
	}
	if cm.PaidAt != nil {
		dto.PaidAt = cm.PaidAt.Format(time.RFC3339)
	}
	if !cm.CreatedAt.IsZero() {
		dto.CreatedAt = cm.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toRateConfigDTO(cfg commission.RateConfig) RateConfigDTO {
	return RateConfigDTO{
		BaseRate:         cfg.BaseRate.String(),
		HighValueCap:     cfg.HighValueCap.String(),
		HighValueRate:    cfg.HighValueRate.String(),
		PilotBonusUnpaid: cfg.PilotBonusUnpaid.String(),
		PilotBonusLow:    cfg.PilotBonusLow.String(),
		PilotBonusHigh:   cfg.PilotBonusHigh.String(),
		PilotLowMin:      cfg.PilotLowMin.String(),
		PilotHighMin:     cfg.PilotHighMin.String(),
		MultiYearBonus:   cfg.MultiYearBonus.String(),
		MultiYearMinACV:  cfg.MultiYearMinACV.String(),
		UpfrontBonus:     cfg.UpfrontBonus.String(),
		OTECap:           cfg.OTECap.String(),
		OTEDecelerator:   cfg.OTEDecelerator.String(),
	}
}

func toContractDTO(c commission.Contract) ContractDTO {
	return ContractDTO{
		ID:            string(c.ID),
		ClientName:    c.ClientName,
		ExecutiveID:   string(c.ExecutiveID),
		ContractValue: c.ContractValue.String(),
		ACV:           c.ACV.String(),
		Type:          string(c.Type),
		LengthYears:   c.LengthYears,
		PaymentTerms:  string(c.PaymentTerms),
		IsPilot:       c.IsPilot,
		SignedAt:      c.SignedAt.Format("2006-01-02"),
	}
}

func toInvoiceDTO(inv commission.Invoice) InvoiceDTO {
	return InvoiceDTO{
		ID:          string(inv.ID),
		ContractID:  string(inv.ContractID),
		Amount:      inv.Amount.String(),
		RevenueType: string(inv.RevenueType),
		Date:        inv.Date.Format("2006-01-02"),
	}
}
