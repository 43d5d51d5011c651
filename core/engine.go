// Package core wires the store, the allocator and the statistics engine into
// the two read paths every surface uses: resolving a visitor's active
// experiments and building an experiment's results report.
package core

import (
	"context"
	"time"

	"github.com/huangsam/exprora/core/alloc"
	"github.com/huangsam/exprora/core/stats"
	"github.com/huangsam/exprora/internal/contract"
	"github.com/huangsam/exprora/internal/errs"
	"github.com/huangsam/exprora/schema"
	"go.uber.org/zap"
)

// Engine runs the active-experiments and results flows against one store.
type Engine struct {
	store     contract.Store
	allocator *alloc.Allocator
	logger    *zap.Logger
	now       func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the logger.
func WithEngineLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithEngineClock overrides the clock used to select running experiments.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine. The allocator must share the engine's store.
func NewEngine(store contract.Store, allocator *alloc.Allocator, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     store,
		allocator: allocator,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewEngineFromConfig builds the allocator from the configured allocation
// mode and returns an engine over the store.
func NewEngineFromConfig(cfg *contract.Config, store contract.Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	allocator := alloc.NewAllocator(store,
		alloc.WithMatcher(NewRuleMatcher()),
		alloc.WithSourceProvider(alloc.NewSourceProvider(cfg.AllocationMode, cfg.HashSalt)),
		alloc.WithLogger(logger),
	)
	return NewEngine(store, allocator, WithEngineLogger(logger))
}

// Store returns the engine's store.
func (e *Engine) Store() contract.Store {
	return e.store
}

// ResolveActive returns the variants the visitor sees across every running
// experiment of the account. Per-experiment failures are logged and left
// out of the returned list.
func (e *Engine) ResolveActive(ctx context.Context, accountID int64, visitor schema.VisitorContext) (schema.ResolveResult, error) {
	running, err := e.store.ListRunningExperiments(ctx, accountID, e.now())
	if err != nil {
		if errs.CodeOf(err) != errs.CodeInternal {
			return schema.ResolveResult{}, err
		}
		return schema.ResolveResult{}, errs.Wrap(errs.CodeDatabase, "failed to list running experiments", err)
	}
	result := e.allocator.Resolve(ctx, accountID, visitor, running)
	if len(result.Failures) > 0 {
		e.logger.Info("resolved with failures",
			zap.Int64("account_id", accountID),
			zap.Int("resolved", len(result.Experiments)),
			zap.Int("failed", len(result.Failures)))
	}
	return result, nil
}

// GetResults loads an experiment owned by the account and builds its results
// report for events inside the date range.
func (e *Engine) GetResults(ctx context.Context, accountID, experimentID int64, r schema.DateRange) (schema.ExperimentResults, error) {
	exp, err := e.store.GetExperiment(ctx, accountID, experimentID)
	if err != nil {
		return schema.ExperimentResults{}, err
	}
	rows, err := e.store.AggregateVariantStats(ctx, accountID, experimentID, r)
	if err != nil {
		return schema.ExperimentResults{}, err
	}
	return BuildResults(exp, rows), nil
}

// ListRunning returns the account's experiments that are running right now.
func (e *Engine) ListRunning(ctx context.Context, accountID int64) ([]schema.RunningExperiment, error) {
	return e.store.ListRunningExperiments(ctx, accountID, e.now())
}

// BuildResults turns aggregated variant rows into a results report. Every
// non-control row is compared against the control when one exists. Lift is
// computed on unrounded rates; only the reported conversion rate is rounded.
func BuildResults(exp schema.Experiment, rows []schema.VariantStats) schema.ExperimentResults {
	results := schema.ExperimentResults{
		Experiment: schema.ExperimentSummary{
			ID:          exp.ID,
			Name:        exp.Name,
			Status:      exp.Status,
			PrimaryGoal: exp.PrimaryGoal,
		},
		Variants: make([]schema.VariantResult, 0, len(rows)),
	}

	var control *schema.VariantStats
	for i := range rows {
		if rows[i].IsControl {
			control = &rows[i]
			break
		}
	}

	for _, row := range rows {
		rate := stats.ConversionRate(row.Conversions, row.Visitors)
		vr := schema.VariantResult{
			VariantStats:   row,
			ConversionRate: stats.Round(rate, 2),
		}
		if !row.IsControl && control != nil {
			controlRate := stats.ConversionRate(control.Conversions, control.Visitors)
			vr.Statistics = &schema.VariantStatistics{
				SignificanceResult: stats.Significance(control.Conversions, control.Visitors, row.Conversions, row.Visitors),
				Lift:               stats.Lift(controlRate, rate).LiftPercentage,
				ControlRate:        controlRate,
			}
		}
		results.Variants = append(results.Variants, vr)
	}
	return results
}
