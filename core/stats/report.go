package stats

import (
	"fmt"

	"github.com/huangsam/exprora/schema"
)

// Default power and alpha the fixed critical values correspond to.
const (
	DefaultPower = 0.8
	DefaultAlpha = 0.05
)

// Compare runs the significance test and lift for two arms given raw counts.
func Compare(controlConversions, controlVisitors, variantConversions, variantVisitors int64) schema.SignificanceReport {
	controlRate := ConversionRate(controlConversions, controlVisitors)
	variantRate := ConversionRate(variantConversions, variantVisitors)
	return schema.SignificanceReport{
		ControlConversions: controlConversions,
		ControlVisitors:    controlVisitors,
		VariantConversions: variantConversions,
		VariantVisitors:    variantVisitors,
		ControlRate:        controlRate,
		VariantRate:        variantRate,
		SignificanceResult: Significance(controlConversions, controlVisitors, variantConversions, variantVisitors),
		Lift:               Lift(controlRate, variantRate),
	}
}

// EstimateSampleSize wraps RequiredSampleSize and notes when the requested
// power or alpha differ from the values the estimate actually uses.
func EstimateSampleSize(baselineRate, mde, power, alpha float64) schema.SampleSizeEstimate {
	est := schema.SampleSizeEstimate{
		BaselineRate:            baselineRate,
		MinimumDetectableEffect: mde,
		Power:                   power,
		Alpha:                   alpha,
		PerVariant:              RequiredSampleSize(baselineRate, mde, power, alpha),
	}
	if !UsesDefaultCriticalValues(power, alpha) {
		est.Note = fmt.Sprintf("estimate uses z=%.2f and z=%.2f (power %.2f, alpha %.2f) regardless of the requested values",
			zAlpha, zBeta, DefaultPower, DefaultAlpha)
	}
	return est
}
