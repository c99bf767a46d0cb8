// Package estimate computes price ranges deterministically so that model
// output is never trusted for arithmetic.
package estimate

import (
	"errors"
	"fmt"
	"math"

	"leadpilot_backend/internal/conversation/domain"
)

// ComplexityBuffer is the fixed markup applied to the high end of a range
// to absorb unknown site conditions.
const ComplexityBuffer = 0.15

// UnitFlatRate is the rate card unit for per-job pricing.
const UnitFlatRate = "flat_rate"

// defaultUnitValue sizes the generic range quoted when the visitor never
// stated a measurement.
const defaultUnitValue = 100

// NominalUnitValue returns the unit figure for a generic range: flat-rate
// rules price one job, measured units assume a typical 100-unit job.
func NominalUnitValue(rule PricingRule) float64 {
	if rule.Unit == UnitFlatRate {
		return 1
	}
	return defaultUnitValue
}

var (
	ErrNoPricingRule    = errors.New("no pricing rule for service")
	ErrInvalidUnitValue = errors.New("unit value must be positive")
)

// PricingRule is a tenant's per-service rate card entry.
type PricingRule struct {
	Unit           string  `json:"unit"`
	MinRate        float64 `json:"min_rate"`
	MaxRate        float64 `json:"max_rate"`
	BaseFee        float64 `json:"base_fee"`
	ServiceCallFee float64 `json:"service_call_fee"`
}

// Compute derives a buffered estimate range from a pricing rule and a
// measured unit value.
//
// low  = round5(unit_value*min_rate + fees)
// high = round5((unit_value*max_rate + fees) * (1 + ComplexityBuffer))
func Compute(rule PricingRule, unitValue float64) (domain.Quote, error) {
	if unitValue <= 0 {
		return domain.Quote{}, ErrInvalidUnitValue
	}

	fees := rule.BaseFee + rule.ServiceCallFee
	laborLow := unitValue * rule.MinRate
	laborHigh := unitValue * rule.MaxRate

	low := roundToFive(laborLow + fees)
	high := roundToFive((laborHigh + fees) * (1 + ComplexityBuffer))

	return domain.Quote{
		EstimatedRange: fmt.Sprintf("%s - %s", formatUSD(low), formatUSD(high)),
		Low:            low,
		High:           high,
		Breakdown: &domain.QuoteBreakdown{
			Unit:           rule.Unit,
			UnitValue:      unitValue,
			BaseFee:        rule.BaseFee,
			ServiceCallFee: rule.ServiceCallFee,
			LaborLow:       laborLow,
			LaborHigh:      laborHigh,
		},
		Disclaimers: []string{
			"This is a rough estimate. A site visit is required for a final quote.",
		},
	}, nil
}

func roundToFive(v float64) float64 {
	return math.Round(v/5) * 5
}

// formatUSD renders a dollar amount with thousands separators, e.g. $1,265.
func formatUSD(v float64) string {
	n := int64(math.Round(v))
	neg := n < 0
	if neg {
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		return "-$" + s
	}
	return "$" + s
}
