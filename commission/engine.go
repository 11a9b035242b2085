/*
engine.go - The commission calculation

PURPOSE:
  Calculate maps an invoice, its contract, the executive's resolved rate
  configuration, and the executive's year-to-date earned total into a
  commission breakdown. It is a pure function: deterministic, no I/O, no
  shared state. One stateless engine serves the whole system - there is
  deliberately no engine object to construct.

ALGORITHM:
  1. Non-commissionable revenue (non-recurring, service) short-circuits to
     an all-zero breakdown.
  2. Base commission at BaseRate, with the reduced HighValueRate applied to
     the invoice portion above HighValueCap when the CONTRACT value exceeds
     the cap. The gate reads contract value, the split point reads invoice
     amount. That asymmetry matches the standing business rule; see the
     note on calcBase before changing it.
  3. Pilot bonus tiers keyed off invoice amount (pilot contracts only).
  4. Multi-year bonus when term > 1 year and ACV exceeds the threshold.
  5. Upfront bonus for "upfront" payment terms.
  6. Annual cap: if year-to-date earned plus this subtotal exceeds OTECap,
     the decelerator multiplies the TOTAL only; components keep their
     pre-decelerator values so the adjustment stays visible.

CALLER CONTRACT:
  Inputs are pre-validated: invoice amount >= 0, config resolved and
  validated, yearToDateEarned a consistent snapshot excluding the
  commission being computed. The engine raises no errors.

SEE ALSO:
  - config.go: RateConfig fields referenced here
  - workflow/: Resolves inputs and persists the result
*/
package commission

import (
	"github.com/shopspring/decimal"
)

// Calculate computes the commission breakdown for one invoice.
//
// yearToDateEarned is the sum of totals across the executive's already
// approved or paid commissions for the invoice's calendar year, excluding
// the commission being computed here.
func Calculate(inv Invoice, c Contract, cfg RateConfig, yearToDateEarned decimal.Decimal) Breakdown {
	// Non-recurring and service revenue earn nothing: no base, no bonuses,
	// and the cap never applies.
	if !inv.RevenueType.Commissionable() {
		return Breakdown{
			Base:       decimal.Zero,
			PilotBonus: decimal.Zero,
			MultiYear:  decimal.Zero,
			Upfront:    decimal.Zero,
			Total:      decimal.Zero,
		}
	}

	b := Breakdown{
		Base:       calcBase(inv, c, cfg),
		PilotBonus: calcPilotBonus(inv, c, cfg),
		MultiYear:  calcMultiYearBonus(c, cfg),
		Upfront:    calcUpfrontBonus(c, cfg),
	}

	subtotal := b.Subtotal()

	// Strictly greater: landing exactly on the cap does not decelerate.
	if yearToDateEarned.Add(subtotal).GreaterThan(cfg.OTECap) {
		b.CapApplied = true
		b.Total = subtotal.Mul(cfg.OTEDecelerator)
	} else {
		b.Total = subtotal
	}

	return b
}

// calcBase computes the base commission.
//
// NOTE: whether a deal is "high-value" is decided by the CONTRACT's total
// value, but the rate split is applied at the same threshold on the
// INVOICE amount. The mix is intentional per the existing business rules,
// pending confirmation from the business owner - preserve it.
func calcBase(inv Invoice, c Contract, cfg RateConfig) decimal.Decimal {
	if c.ContractValue.GreaterThan(cfg.HighValueCap) && inv.Amount.GreaterThan(cfg.HighValueCap) {
		below := cfg.HighValueCap.Mul(cfg.BaseRate)
		above := inv.Amount.Sub(cfg.HighValueCap).Mul(cfg.HighValueRate)
		return below.Add(above)
	}
	return inv.Amount.Mul(cfg.BaseRate)
}

// calcPilotBonus returns the pilot tier for the invoice amount.
//
// Tiers: amount == 0 pays the unpaid-pilot bonus, [low min, high min) pays
// the low tier, >= high min pays the high tier. Amounts strictly between
// zero and the low breakpoint pay nothing - the gap is intentional under
// the current rules.
func calcPilotBonus(inv Invoice, c Contract, cfg RateConfig) decimal.Decimal {
	if !c.IsPilot {
		return decimal.Zero
	}
	switch {
	case inv.Amount.IsZero():
		return cfg.PilotBonusUnpaid
	case inv.Amount.GreaterThanOrEqual(cfg.PilotHighMin):
		return cfg.PilotBonusHigh
	case inv.Amount.GreaterThanOrEqual(cfg.PilotLowMin):
		return cfg.PilotBonusLow
	default:
		return decimal.Zero
	}
}

// calcMultiYearBonus pays for multi-year deals above the ACV threshold.
// Both comparisons are strict.
func calcMultiYearBonus(c Contract, cfg RateConfig) decimal.Decimal {
	if c.LengthYears > 1 && c.ACV.GreaterThan(cfg.MultiYearMinACV) {
		return cfg.MultiYearBonus
	}
	return decimal.Zero
}

// calcUpfrontBonus pays only for the literal "upfront" payment terms.
// "full-upfront" is a distinct value and does NOT trigger the bonus under
// the current rules.
func calcUpfrontBonus(c Contract, cfg RateConfig) decimal.Decimal {
	if c.PaymentTerms == TermsUpfront {
		return cfg.UpfrontBonus
	}
	return decimal.Zero
}
