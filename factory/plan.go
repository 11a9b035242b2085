/*
Package factory provides JSON to Go rate-plan conversion.

PURPOSE:
  Converts JSON rate-plan definitions into a validated commission.RateConfig.
  This enables plan configuration without code changes - sales ops can define
  plans in JSON, and the factory produces the resolved parameter set the
  engine calculates with.

WHY JSON?
  - Non-developers can adjust rates and bonus tiers
  - Easy integration with the admin UI
  - Version control for plan definitions
  - Database storage of plan configs

DEFAULTS:
  Every numeric field is optional in JSON. Missing fields resolve against
  commission.DefaultRateConfig() exactly once, here, at construction time.
  The engine never sees a partially-specified configuration and never
  applies defaults of its own.

JSON SCHEMA:
  {
    "id": "enterprise-2026",
    "name": "Enterprise 2026",
    "base_rate": 0.10,
    "high_value_cap": 8250000,
    "high_value_rate": 0.025,
    "pilot_bonus_unpaid": 500,
    "pilot_bonus_low": 2500,
    "pilot_bonus_high": 5000,
    "pilot_low_min": 25000,
    "pilot_high_min": 50000,
    "multi_year_bonus": 10000,
    "multi_year_min_acv": 250000,
    "upfront_bonus": 2000,
    "ote_cap": 1000000,
    "ote_decelerator": 0.9
  }

USAGE:
  f := factory.NewPlanFactory()
  cfg, err := f.ParsePlan(jsonString)

SEE ALSO:
  - commission/config.go: RateConfig and DefaultRateConfig
  - store/sqlite: Stores plan JSON, resolves active configs through this factory
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/salesdesk/commission-engine/commission"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the JSON representation of a rate plan. All rate fields are
// pointers so that "absent" and "zero" stay distinguishable - a plan may
// legitimately set a bonus to zero.
type PlanJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	BaseRate      *float64 `json:"base_rate,omitempty"`
	HighValueCap  *float64 `json:"high_value_cap,omitempty"`
	HighValueRate *float64 `json:"high_value_rate,omitempty"`

	PilotBonusUnpaid *float64 `json:"pilot_bonus_unpaid,omitempty"`
	PilotBonusLow    *float64 `json:"pilot_bonus_low,omitempty"`
	PilotBonusHigh   *float64 `json:"pilot_bonus_high,omitempty"`
	PilotLowMin      *float64 `json:"pilot_low_min,omitempty"`
	PilotHighMin     *float64 `json:"pilot_high_min,omitempty"`

	MultiYearBonus  *float64 `json:"multi_year_bonus,omitempty"`
	MultiYearMinACV *float64 `json:"multi_year_min_acv,omitempty"`

	UpfrontBonus *float64 `json:"upfront_bonus,omitempty"`

	OTECap         *float64 `json:"ote_cap,omitempty"`
	OTEDecelerator *float64 `json:"ote_decelerator,omitempty"`
}

// =============================================================================
// PLAN FACTORY
// =============================================================================

// PlanFactory converts JSON rate plans to resolved RateConfigs.
type PlanFactory struct{}

// NewPlanFactory creates a new plan factory.
func NewPlanFactory() *PlanFactory {
	return &PlanFactory{}
}

// ParsePlan parses a JSON string into a resolved, validated RateConfig.
func (f *PlanFactory) ParsePlan(jsonStr string) (commission.RateConfig, error) {
	var pj PlanJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return commission.RateConfig{}, fmt.Errorf("failed to parse plan JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON resolves a PlanJSON against the standing defaults and validates
// the result.
func (f *PlanFactory) FromJSON(pj PlanJSON) (commission.RateConfig, error) {
	cfg := commission.DefaultRateConfig()

	apply(&cfg.BaseRate, pj.BaseRate)
	apply(&cfg.HighValueCap, pj.HighValueCap)
	apply(&cfg.HighValueRate, pj.HighValueRate)
	apply(&cfg.PilotBonusUnpaid, pj.PilotBonusUnpaid)
	apply(&cfg.PilotBonusLow, pj.PilotBonusLow)
	apply(&cfg.PilotBonusHigh, pj.PilotBonusHigh)
	apply(&cfg.PilotLowMin, pj.PilotLowMin)
	apply(&cfg.PilotHighMin, pj.PilotHighMin)
	apply(&cfg.MultiYearBonus, pj.MultiYearBonus)
	apply(&cfg.MultiYearMinACV, pj.MultiYearMinACV)
	apply(&cfg.UpfrontBonus, pj.UpfrontBonus)
	apply(&cfg.OTECap, pj.OTECap)
	apply(&cfg.OTEDecelerator, pj.OTEDecelerator)

	if err := cfg.Validate(); err != nil {
		return commission.RateConfig{}, fmt.Errorf("plan %q: %w", pj.ID, err)
	}
	return cfg, nil
}

func apply(dst *decimal.Decimal, src *float64) {
	if src != nil {
		*dst = decimal.NewFromFloat(*src)
	}
}

// =============================================================================
// PRESETS
// =============================================================================

// StandardPlanJSON returns the plan JSON for a standard quota-carrying
// executive: all defaults, custom OTE cap.
func StandardPlanJSON(id, name string, oteCap float64) string {
	pj := PlanJSON{ID: id, Name: name, OTECap: &oteCap}
	data, _ := json.Marshal(pj)
	return string(data)
}

// SeniorPlanJSON returns the plan JSON for a senior executive: elevated
// base rate and OTE cap.
func SeniorPlanJSON(id, name string, baseRate, oteCap float64) string {
	pj := PlanJSON{ID: id, Name: name, BaseRate: &baseRate, OTECap: &oteCap}
	data, _ := json.Marshal(pj)
	return string(data)
}
