// Package outwriter has output and writer logic.
package outwriter

import (
	"time"

	"github.com/huangsam/exprora/internal/contract"
	"github.com/huangsam/exprora/schema"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the commands.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteResults prints an experiment results report.
func (ow *OutWriter) WriteResults(results schema.ExperimentResults, cfg *contract.Config, duration time.Duration) error {
	return PrintExperimentResults(results, cfg, duration)
}

// WriteExperiments prints an experiment listing.
func (ow *OutWriter) WriteExperiments(experiments []schema.Experiment, cfg *contract.Config) error {
	return PrintExperiments(experiments, cfg)
}

// WriteSignificance prints a two-arm significance report.
func (ow *OutWriter) WriteSignificance(report schema.SignificanceReport, cfg *contract.Config) error {
	return PrintSignificance(report, cfg)
}

// WriteLift prints the lift between two rates.
func (ow *OutWriter) WriteLift(controlRate, variantRate float64, lift schema.LiftResult, cfg *contract.Config) error {
	return PrintLift(controlRate, variantRate, lift, cfg)
}

// WriteSampleSize prints a sample size estimate.
func (ow *OutWriter) WriteSampleSize(est schema.SampleSizeEstimate, cfg *contract.Config) error {
	return PrintSampleSize(est, cfg)
}
