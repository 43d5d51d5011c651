package schema

import "encoding/json"

// SignificanceResult is the outcome of a two-proportion z-test.
type SignificanceResult struct {
	ZScore          float64 `json:"zScore"`
	PValue          float64 `json:"pValue"`
	IsSignificant   bool    `json:"isSignificant"`
	ConfidenceLevel float64 `json:"confidenceLevel"`
}

// NeutralSignificance is returned for degenerate inputs.
var NeutralSignificance = SignificanceResult{ZScore: 0, PValue: 1, IsSignificant: false, ConfidenceLevel: 0}

// LiftResult is the absolute and relative difference between two conversion rates.
type LiftResult struct {
	Lift           float64 `json:"lift"`
	LiftPercentage float64 `json:"liftPercentage"`
}

// VariantStatistics is attached to every non-control variant row when a control exists.
type VariantStatistics struct {
	SignificanceResult
	Lift        float64 `json:"lift"` // relative lift in percent
	ControlRate float64 `json:"controlRate"`
}

// VariantResult is one row of an experiment results report.
type VariantResult struct {
	VariantStats
	ConversionRate float64            `json:"conversion_rate"` // percent, rounded to 2 places
	Statistics     *VariantStatistics `json:"statistics"`
}

// ExperimentSummary is the experiment header of a results report.
type ExperimentSummary struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Status      ExperimentStatus `json:"status"`
	PrimaryGoal string           `json:"primary_goal,omitempty"`
}

// ExperimentResults is the full results report for one experiment.
type ExperimentResults struct {
	Experiment ExperimentSummary `json:"experiment"`
	Variants   []VariantResult   `json:"variants"`
}

// Control returns the control row, if any.
func (r ExperimentResults) Control() (VariantResult, bool) {
	for _, v := range r.Variants {
		if v.IsControl {
			return v, true
		}
	}
	return VariantResult{}, false
}

// ResolvedExperiment is what the allocator hands back to the SDK for one experiment.
type ResolvedExperiment struct {
	ExperimentID   int64           `json:"experiment_id"`
	ExperimentName string          `json:"experiment_name"`
	VariantID      int64           `json:"variant_id"`
	VariantName    string          `json:"variant_name"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	IsControl      bool            `json:"is_control"`
}

// ResolveFailure records an experiment that could not be resolved on this call.
type ResolveFailure struct {
	ExperimentID int64
	Err          error
}

// ResolveResult is the outcome of resolving a visitor against a batch of experiments.
type ResolveResult struct {
	Experiments []ResolvedExperiment
	Failures    []ResolveFailure
}

// SampleSizeEstimate describes a required sample size calculation.
type SampleSizeEstimate struct {
	BaselineRate            float64 `json:"baseline_rate"`
	MinimumDetectableEffect float64 `json:"minimum_detectable_effect"`
	Power                   float64 `json:"power"`
	Alpha                   float64 `json:"alpha"`
	PerVariant              int     `json:"per_variant"`
	Note                    string  `json:"note,omitempty"`
}

// SignificanceReport is a standalone comparison of two arms from raw counts.
type SignificanceReport struct {
	ControlConversions int64   `json:"control_conversions"`
	ControlVisitors    int64   `json:"control_visitors"`
	VariantConversions int64   `json:"variant_conversions"`
	VariantVisitors    int64   `json:"variant_visitors"`
	ControlRate        float64 `json:"control_rate"`
	VariantRate        float64 `json:"variant_rate"`
	SignificanceResult
	Lift LiftResult `json:"lift"`
}
