// Package stats has the conversion statistics used to evaluate experiments.
// Every function is pure and safe for concurrent use. Degenerate inputs
// return neutral values instead of errors.
package stats

import (
	"math"

	"github.com/huangsam/exprora/schema"
)

// SignificanceThreshold is the two-tailed p-value below which a result is significant.
const SignificanceThreshold = 0.05

// Critical values for the 95% confidence / 80% power case.
const (
	zAlpha = 1.96
	zBeta  = 0.84
)

// Abramowitz-Stegun 7.1.26 coefficients.
const (
	erfA1 = 0.254829592
	erfA2 = -0.284496736
	erfA3 = 1.421413741
	erfA4 = -1.453152027
	erfA5 = 1.061405429
	erfP  = 0.3275911
)

// ConversionRate returns conversions as a percentage of visitors, or 0 without visitors.
func ConversionRate(conversions, visitors int64) float64 {
	if visitors <= 0 {
		return 0
	}
	return float64(conversions) / float64(visitors) * 100
}

// Significance runs a pooled two-proportion z-test of the variant against the control.
func Significance(controlConversions, controlVisitors, variantConversions, variantVisitors int64) schema.SignificanceResult {
	if controlVisitors <= 0 || variantVisitors <= 0 {
		return schema.NeutralSignificance
	}

	nc := float64(controlVisitors)
	nv := float64(variantVisitors)
	rc := float64(controlConversions) / nc
	rv := float64(variantConversions) / nv

	pooled := float64(controlConversions+variantConversions) / (nc + nv)
	se := math.Sqrt(pooled * (1 - pooled) * (1/nc + 1/nv))
	if !(se > 0) || math.IsInf(se, 0) { // also rejects NaN from out-of-range counts
		return schema.NeutralSignificance
	}

	z := (rv - rc) / se
	p := 2 * (1 - NormalCDF(math.Abs(z)))

	return schema.SignificanceResult{
		ZScore:          z,
		PValue:          p,
		IsSignificant:   p < SignificanceThreshold,
		ConfidenceLevel: (1 - p) * 100,
	}
}

// Lift compares two conversion rates expressed in the same unit.
func Lift(controlRate, variantRate float64) schema.LiftResult {
	if controlRate == 0 {
		return schema.LiftResult{}
	}
	lift := variantRate - controlRate
	return schema.LiftResult{
		Lift:           lift,
		LiftPercentage: lift / controlRate * 100,
	}
}

// RequiredSampleSize returns the visitors needed per variant to detect an absolute
// change of mde from the baseline rate (both as proportions).
//
// power and alpha are accepted for interface compatibility only: the critical
// values are fixed at 1.96 and 0.84.
func RequiredSampleSize(baselineRate, mde, power, alpha float64) int {
	_, _ = power, alpha
	if mde == 0 {
		return 0
	}

	p1 := baselineRate
	p2 := baselineRate + mde
	p := (p1 + p2) / 2

	numerator := zAlpha*math.Sqrt(2*p*(1-p)) + zBeta*math.Sqrt(p1*(1-p1)+p2*(1-p2))
	n := numerator * numerator / ((p2 - p1) * (p2 - p1))
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	// Tiny effects need more visitors than an int can count.
	if n >= math.MaxInt64 {
		return math.MaxInt
	}
	return int(math.Ceil(n))
}

// UsesDefaultCriticalValues reports whether power and alpha match the fixed constants.
func UsesDefaultCriticalValues(power, alpha float64) bool {
	return power == 0.8 && alpha == 0.05
}

// NormalCDF is the standard normal cumulative distribution function.
func NormalCDF(x float64) float64 {
	return 0.5 * (1 + Erf(x/math.Sqrt2))
}

// Erf approximates the error function with a maximum absolute error of 1.5e-7.
func Erf(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1
	}
	x = math.Abs(x)

	t := 1 / (1 + erfP*x)
	y := 1 - ((((erfA5*t+erfA4)*t+erfA3)*t+erfA2)*t+erfA1)*t*math.Exp(-x*x)
	return sign * y
}

// Round rounds x to the given number of decimal places.
func Round(x float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(x*scale) / scale
}
