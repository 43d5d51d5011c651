// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/exprora/schema"
)

// AssignmentStore defines the persistence operations the allocator depends on.
// This allows the allocation logic to be tested without a real database.
type AssignmentStore interface {
	// GetAssignment returns the persisted variant for a visitor, if any.
	GetAssignment(ctx context.Context, accountID, experimentID int64, visitorID string) (variantID int64, found bool, err error)

	// InsertAssignmentIfAbsent inserts the assignment unless one already exists for
	// (experiment, visitor). It always reports the persisted variant.
	InsertAssignmentIfAbsent(ctx context.Context, a schema.Assignment) (schema.InsertResult, error)
}

// ExperimentReader loads experiments and their variants.
type ExperimentReader interface {
	// ListRunningExperiments returns experiments with status running whose date window
	// contains now, newest first, each with its variants ordered by id.
	ListRunningExperiments(ctx context.Context, accountID int64, now time.Time) ([]schema.RunningExperiment, error)

	// GetExperiment returns one experiment scoped to an account.
	GetExperiment(ctx context.Context, accountID, experimentID int64) (schema.Experiment, error)

	// ListVariants returns the variants of an experiment, control first.
	ListVariants(ctx context.Context, experimentID int64) ([]schema.Variant, error)
}

// ExperimentWriter backs the admin surfaces.
type ExperimentWriter interface {
	// ListExperiments returns every experiment for an account, optionally filtered by status.
	ListExperiments(ctx context.Context, accountID int64, status schema.ExperimentStatus) ([]schema.Experiment, error)
	CreateExperiment(ctx context.Context, e schema.Experiment) (schema.Experiment, error)
	UpdateExperiment(ctx context.Context, e schema.Experiment) (schema.Experiment, error)
	UpdateExperimentStatus(ctx context.Context, accountID, experimentID int64, status schema.ExperimentStatus) (schema.Experiment, error)
	AddVariant(ctx context.Context, accountID int64, v schema.Variant) (schema.Variant, error)
}

// EventRecorder persists tracking events and visitor sightings.
type EventRecorder interface {
	RecordEvent(ctx context.Context, e schema.Event) (schema.Event, error)
	UpsertVisitor(ctx context.Context, v schema.Visitor) (schema.Visitor, error)
}

// EventAggregator aggregates events into per-variant statistics.
type EventAggregator interface {
	// AggregateVariantStats returns one row per variant, control first, for events
	// inside the date range.
	AggregateVariantStats(ctx context.Context, accountID, experimentID int64, r schema.DateRange) ([]schema.VariantStats, error)
}

// AccountStore resolves tenants.
type AccountStore interface {
	CreateAccount(ctx context.Context, name, apiKey string) (schema.Account, error)
	GetAccountByAPIKey(ctx context.Context, apiKey string) (schema.Account, error)
}

// Exporter lists raw rows for file exports.
type Exporter interface {
	ListAssignments(ctx context.Context, accountID, experimentID int64) ([]schema.Assignment, error)
	ListEvents(ctx context.Context, accountID, experimentID int64, r schema.DateRange) ([]schema.Event, error)
}

// Store is the full persistence surface of a backend.
type Store interface {
	AssignmentStore
	ExperimentReader
	ExperimentWriter
	EventRecorder
	EventAggregator
	AccountStore
	Exporter

	// GetStatus returns status information about the store.
	GetStatus(ctx context.Context) (schema.StoreStatus, error)

	// Close closes the underlying connection.
	Close() error
}

// TargetingMatcher decides whether a visitor passes an experiment's targeting rules.
type TargetingMatcher interface {
	Matches(rules []schema.TargetingRule, visitor schema.VisitorContext) bool
}
