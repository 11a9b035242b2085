/*
config.go - Rate configuration for the commission engine

PURPOSE:
  RateConfig is the complete, resolved parameter set the engine calculates
  with. Every field is concrete by the time Calculate sees it: defaults are
  applied here (or in factory, for JSON-defined plans), never inline inside
  the calculation. The engine must not invent values that diverge from the
  active configuration.

DEFAULTS:
  DefaultRateConfig returns the standing business defaults. Optional fields
  in a stored plan resolve against these once, at construction time, so the
  calculation stays free of magic numbers.

SEE ALSO:
  - engine.go: Consumes RateConfig
  - factory/: JSON plan definitions -> RateConfig with defaults
*/
package commission

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RATE CONFIG - Resolved commission parameters for one account executive
// =============================================================================

// RateConfig holds the commission parameters in effect for an account
// executive. Exactly one configuration is active per executive at any
// evaluation time; resolving which one is the caller's job, the engine
// treats whatever it is given as authoritative.
type RateConfig struct {
	// Base commission
	BaseRate      decimal.Decimal // Fraction of invoice amount, e.g. 0.10
	HighValueCap  decimal.Decimal // Contract-value threshold for "high-value deal"
	HighValueRate decimal.Decimal // Reduced rate beyond the cap, e.g. 0.025

	// Pilot bonus tiers, keyed off invoice amount
	PilotBonusUnpaid  decimal.Decimal // Invoice amount == 0
	PilotBonusLow     decimal.Decimal // PilotLowMin <= amount < PilotHighMin
	PilotBonusHigh    decimal.Decimal // amount >= PilotHighMin
	PilotLowMin       decimal.Decimal
	PilotHighMin      decimal.Decimal

	// Multi-year bonus
	MultiYearBonus  decimal.Decimal
	MultiYearMinACV decimal.Decimal

	// Upfront payment bonus (payment terms == "upfront" only)
	UpfrontBonus decimal.Decimal

	// Annual earnings cap
	OTECap         decimal.Decimal // On-target earnings cap for the year
	OTEDecelerator decimal.Decimal // Multiplier (<1) applied once the cap is exceeded
}

// DefaultRateConfig returns the standing business defaults. These are
// config-level defaults: they belong to plan construction, not to the
// calculation itself.
func DefaultRateConfig() RateConfig {
	return RateConfig{
		BaseRate:         MustDecimal("0.10"),
		HighValueCap:     MustDecimal("8250000"),
		HighValueRate:    MustDecimal("0.025"),
		PilotBonusUnpaid: MustDecimal("500"),
		PilotBonusLow:    MustDecimal("2500"),
		PilotBonusHigh:   MustDecimal("5000"),
		PilotLowMin:      MustDecimal("25000"),
		PilotHighMin:     MustDecimal("50000"),
		MultiYearBonus:   MustDecimal("10000"),
		MultiYearMinACV:  MustDecimal("250000"),
		UpfrontBonus:     MustDecimal("2000"),
		OTECap:           MustDecimal("1000000"),
		OTEDecelerator:   MustDecimal("0.9"),
	}
}

// Validate checks that the configuration is internally coherent. A config
// that fails validation must be rejected before it is ever assigned to an
// executive; the engine itself performs no validation.
func (c RateConfig) Validate() error {
	one := decimal.NewFromInt(1)

	if c.BaseRate.IsNegative() || c.BaseRate.GreaterThan(one) {
		return fmt.Errorf("%w: base rate %s outside [0,1]", ErrInvalidConfig, c.BaseRate)
	}
	if c.HighValueRate.IsNegative() || c.HighValueRate.GreaterThan(one) {
		return fmt.Errorf("%w: high-value rate %s outside [0,1]", ErrInvalidConfig, c.HighValueRate)
	}
	if c.HighValueCap.IsNegative() {
		return fmt.Errorf("%w: negative high-value cap", ErrInvalidConfig)
	}
	if c.OTECap.IsNegative() {
		return fmt.Errorf("%w: negative OTE cap", ErrInvalidConfig)
	}
	// A decelerator of 1 would make the cap a no-op; above 1 it would be an
	// accelerator. Both indicate a misconfigured plan.
	if !c.OTEDecelerator.IsPositive() || c.OTEDecelerator.GreaterThanOrEqual(one) {
		return fmt.Errorf("%w: decelerator %s outside (0,1)", ErrInvalidConfig, c.OTEDecelerator)
	}
	if c.PilotLowMin.IsNegative() || c.PilotHighMin.IsNegative() {
		return fmt.Errorf("%w: negative pilot breakpoint", ErrInvalidConfig)
	}
	if c.PilotLowMin.GreaterThanOrEqual(c.PilotHighMin) {
		return fmt.Errorf("%w: pilot low breakpoint %s >= high breakpoint %s",
			ErrInvalidConfig, c.PilotLowMin, c.PilotHighMin)
	}
	for _, b := range []decimal.Decimal{c.PilotBonusUnpaid, c.PilotBonusLow, c.PilotBonusHigh, c.MultiYearBonus, c.UpfrontBonus} {
		if b.IsNegative() {
			return fmt.Errorf("%w: negative bonus amount", ErrInvalidConfig)
		}
	}
	if c.MultiYearMinACV.IsNegative() {
		return fmt.Errorf("%w: negative multi-year ACV threshold", ErrInvalidConfig)
	}
	return nil
}
