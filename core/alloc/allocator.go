// Package alloc decides which running experiments a visitor participates in
// and which variant they see, persisting each decision exactly once.
package alloc

import (
	"context"
	"fmt"
	"time"

	"github.com/huangsam/exprora/internal/contract"
	"github.com/huangsam/exprora/internal/errs"
	"github.com/huangsam/exprora/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("github.com/huangsam/exprora/core/alloc")

// DefaultCommitTimeout bounds a shared assignment commit.
const DefaultCommitTimeout = 5 * time.Second

// Allocator resolves visitors against running experiments.
type Allocator struct {
	store   contract.AssignmentStore
	matcher contract.TargetingMatcher
	sources SourceProvider
	logger  *zap.Logger
	now     func() time.Time
	group   singleflight.Group

	commitTimeout time.Duration
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithMatcher sets the targeting matcher. Without one, targeting rules are ignored.
func WithMatcher(m contract.TargetingMatcher) Option {
	return func(a *Allocator) { a.matcher = m }
}

// WithSourceProvider overrides the random source used for gate and pick draws.
func WithSourceProvider(p SourceProvider) Option {
	return func(a *Allocator) { a.sources = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Allocator) { a.logger = l }
}

// WithClock overrides the clock stamped on new assignments.
func WithClock(now func() time.Time) Option {
	return func(a *Allocator) { a.now = now }
}

// WithCommitTimeout bounds how long a shared commit may run once detached
// from the requests waiting on it.
func WithCommitTimeout(d time.Duration) Option {
	return func(a *Allocator) { a.commitTimeout = d }
}

// NewAllocator creates an allocator over the given store.
func NewAllocator(store contract.AssignmentStore, opts ...Option) *Allocator {
	a := &Allocator{
		store:   store,
		sources: SharedProvider{Source: NewCryptoSeededSource()},
		logger:  zap.NewNop(),
		now:     time.Now,

		commitTimeout: DefaultCommitTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewSourceProvider picks the provider for an allocation mode.
func NewSourceProvider(mode schema.AllocationMode, salt string) SourceProvider {
	if mode == schema.HashAllocation {
		return HashProvider{Salt: salt}
	}
	return SharedProvider{Source: NewCryptoSeededSource()}
}

// Resolve returns the variants a visitor sees across the given experiments, in
// input order. A failure on one experiment is reported in Failures and does not
// stop the others.
func (a *Allocator) Resolve(ctx context.Context, accountID int64, visitor schema.VisitorContext, experiments []schema.RunningExperiment) schema.ResolveResult {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "alloc.Resolve", trace.WithAttributes(
		attribute.Int64("account.id", accountID),
		attribute.Int("experiments.count", len(experiments)),
	))
	defer span.End()
	defer func() {
		resolveDuration.WithLabelValues(experimentsBucket(len(experiments))).Observe(time.Since(start).Seconds())
	}()

	result := schema.ResolveResult{Experiments: []schema.ResolvedExperiment{}}
	for _, exp := range experiments {
		resolved, outcome, err := a.resolveOne(ctx, accountID, visitor, exp)
		assignmentsTotal.WithLabelValues(outcome).Inc()

		if err != nil {
			a.logger.Warn("failed to resolve experiment",
				zap.Int64("account_id", accountID),
				zap.Int64("experiment_id", exp.ID),
				zap.String("visitor_id", visitor.VisitorID),
				zap.Error(err))
			result.Failures = append(result.Failures, schema.ResolveFailure{ExperimentID: exp.ID, Err: err})
			continue
		}
		if resolved != nil {
			result.Experiments = append(result.Experiments, *resolved)
		}
	}

	span.SetAttributes(
		attribute.Int("experiments.resolved", len(result.Experiments)),
		attribute.Int("experiments.failed", len(result.Failures)),
	)
	return result
}

// resolveOne runs sticky lookup, targeting, the traffic gate, the weighted
// pick and the commit for a single experiment. A nil result with a nil error
// means the experiment is omitted for this call.
func (a *Allocator) resolveOne(ctx context.Context, accountID int64, visitor schema.VisitorContext, exp schema.RunningExperiment) (*schema.ResolvedExperiment, string, error) {
	ctx, span := tracer.Start(ctx, "alloc.resolveExperiment", trace.WithAttributes(
		attribute.Int64("experiment.id", exp.ID),
	))
	defer span.End()

	fail := func(err error) (*schema.ResolvedExperiment, string, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, OutcomeFailed, err
	}

	if err := ctx.Err(); err != nil {
		return fail(errs.Wrap(errs.CodeAssignmentFailed, "resolution cancelled", err))
	}

	if len(exp.Variants) == 0 {
		span.SetAttributes(attribute.String("outcome", OutcomeEmpty))
		return nil, OutcomeEmpty, nil
	}

	variantID, found, err := a.store.GetAssignment(ctx, accountID, exp.ID, visitor.VisitorID)
	if err != nil {
		return fail(errs.Wrap(errs.CodeAssignmentFailed, "failed to look up assignment", err))
	}
	if found {
		v, ok := exp.VariantByID(variantID)
		if !ok {
			a.logger.Warn("assigned variant is no longer part of the experiment",
				zap.Int64("experiment_id", exp.ID),
				zap.Int64("variant_id", variantID),
				zap.String("visitor_id", visitor.VisitorID))
			span.SetAttributes(attribute.String("outcome", OutcomeOrphaned))
			return nil, OutcomeOrphaned, nil
		}
		span.SetAttributes(attribute.String("outcome", OutcomeSticky))
		return toResolved(exp, v), OutcomeSticky, nil
	}

	if a.matcher != nil && len(exp.TargetingRules) > 0 && !a.matcher.Matches(exp.TargetingRules, visitor) {
		span.SetAttributes(attribute.String("outcome", OutcomeUntargeted))
		return nil, OutcomeUntargeted, nil
	}

	src := a.sources.For(accountID, exp.ID, visitor.VisitorID)
	if !Admit(exp.TrafficAllocation, src) {
		span.SetAttributes(attribute.String("outcome", OutcomeExcluded))
		return nil, OutcomeExcluded, nil
	}

	picked := exp.Variants[WeightedPick(exp.Weights(), src)]

	res, err := a.commit(ctx, schema.Assignment{
		AccountID:    accountID,
		ExperimentID: exp.ID,
		VariantID:    picked.ID,
		VisitorID:    visitor.VisitorID,
		AssignedAt:   a.now().UTC(),
	})
	if err != nil {
		return fail(errs.Wrap(errs.CodeAssignmentFailed, "failed to persist assignment", err))
	}

	outcome := OutcomeAssigned
	if !res.Inserted || res.VariantID != picked.ID {
		outcome = OutcomeAdopted
	}
	span.SetAttributes(attribute.String("outcome", outcome))

	v, ok := exp.VariantByID(res.VariantID)
	if !ok {
		a.logger.Warn("persisted variant is no longer part of the experiment",
			zap.Int64("experiment_id", exp.ID),
			zap.Int64("variant_id", res.VariantID))
		return nil, OutcomeOrphaned, nil
	}

	a.logger.Debug("visitor allocated",
		zap.Int64("experiment_id", exp.ID),
		zap.Int64("variant_id", v.ID),
		zap.String("visitor_id", visitor.VisitorID),
		zap.String("outcome", outcome))

	return toResolved(exp, v), outcome, nil
}

// commit coalesces concurrent in-process commits for the same visitor and
// experiment. The store's unique constraint covers other processes.
//
// The shared insert runs detached from any single caller's cancellation and
// is bounded by the commit timeout instead. Each caller stops waiting when its
// own context ends, so a cancelled request never fails the others.
func (a *Allocator) commit(ctx context.Context, asg schema.Assignment) (schema.InsertResult, error) {
	key := fmt.Sprintf("%d:%d:%s", asg.AccountID, asg.ExperimentID, asg.VisitorID)
	ch := a.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.commitTimeout)
		defer cancel()
		return a.store.InsertAssignmentIfAbsent(shared, asg)
	})

	select {
	case <-ctx.Done():
		return schema.InsertResult{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return schema.InsertResult{}, r.Err
		}
		return r.Val.(schema.InsertResult), nil
	}
}

func toResolved(exp schema.RunningExperiment, v schema.Variant) *schema.ResolvedExperiment {
	return &schema.ResolvedExperiment{
		ExperimentID:   exp.ID,
		ExperimentName: exp.Name,
		VariantID:      v.ID,
		VariantName:    v.Name,
		Payload:        v.Payload,
		IsControl:      v.IsControl,
	}
}
