package datastore

import (
	"context"
	"time"

	"github.com/huangsam/exprora/internal/contract"
	"github.com/huangsam/exprora/schema"
	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of Store for testing.
type MockStore struct {
	mock.Mock
}

var _ contract.Store = &MockStore{} // Compile-time check

// GetAssignment implements the Store interface.
func (m *MockStore) GetAssignment(ctx context.Context, accountID, experimentID int64, visitorID string) (int64, bool, error) {
	args := m.Called(ctx, accountID, experimentID, visitorID)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

// InsertAssignmentIfAbsent implements the Store interface.
func (m *MockStore) InsertAssignmentIfAbsent(ctx context.Context, a schema.Assignment) (schema.InsertResult, error) {
	args := m.Called(ctx, a)
	return args.Get(0).(schema.InsertResult), args.Error(1)
}

// ListRunningExperiments implements the Store interface.
func (m *MockStore) ListRunningExperiments(ctx context.Context, accountID int64, now time.Time) ([]schema.RunningExperiment, error) {
	args := m.Called(ctx, accountID, now)
	running, _ := args.Get(0).([]schema.RunningExperiment)
	return running, args.Error(1)
}

// GetExperiment implements the Store interface.
func (m *MockStore) GetExperiment(ctx context.Context, accountID, experimentID int64) (schema.Experiment, error) {
	args := m.Called(ctx, accountID, experimentID)
	return args.Get(0).(schema.Experiment), args.Error(1)
}

// ListVariants implements the Store interface.
func (m *MockStore) ListVariants(ctx context.Context, experimentID int64) ([]schema.Variant, error) {
	args := m.Called(ctx, experimentID)
	variants, _ := args.Get(0).([]schema.Variant)
	return variants, args.Error(1)
}

// ListExperiments implements the Store interface.
func (m *MockStore) ListExperiments(ctx context.Context, accountID int64, status schema.ExperimentStatus) ([]schema.Experiment, error) {
	args := m.Called(ctx, accountID, status)
	experiments, _ := args.Get(0).([]schema.Experiment)
	return experiments, args.Error(1)
}

// CreateExperiment implements the Store interface.
func (m *MockStore) CreateExperiment(ctx context.Context, e schema.Experiment) (schema.Experiment, error) {
	args := m.Called(ctx, e)
	return args.Get(0).(schema.Experiment), args.Error(1)
}

// UpdateExperiment implements the Store interface.
func (m *MockStore) UpdateExperiment(ctx context.Context, e schema.Experiment) (schema.Experiment, error) {
	args := m.Called(ctx, e)
	return args.Get(0).(schema.Experiment), args.Error(1)
}

// UpdateExperimentStatus implements the Store interface.
func (m *MockStore) UpdateExperimentStatus(ctx context.Context, accountID, experimentID int64, status schema.ExperimentStatus) (schema.Experiment, error) {
	args := m.Called(ctx, accountID, experimentID, status)
	return args.Get(0).(schema.Experiment), args.Error(1)
}

// AddVariant implements the Store interface.
func (m *MockStore) AddVariant(ctx context.Context, accountID int64, v schema.Variant) (schema.Variant, error) {
	args := m.Called(ctx, accountID, v)
	return args.Get(0).(schema.Variant), args.Error(1)
}

// RecordEvent implements the Store interface.
func (m *MockStore) RecordEvent(ctx context.Context, e schema.Event) (schema.Event, error) {
	args := m.Called(ctx, e)
	return args.Get(0).(schema.Event), args.Error(1)
}

// UpsertVisitor implements the Store interface.
func (m *MockStore) UpsertVisitor(ctx context.Context, v schema.Visitor) (schema.Visitor, error) {
	args := m.Called(ctx, v)
	return args.Get(0).(schema.Visitor), args.Error(1)
}

// AggregateVariantStats implements the Store interface.
func (m *MockStore) AggregateVariantStats(ctx context.Context, accountID, experimentID int64, r schema.DateRange) ([]schema.VariantStats, error) {
	args := m.Called(ctx, accountID, experimentID, r)
	stats, _ := args.Get(0).([]schema.VariantStats)
	return stats, args.Error(1)
}

// CreateAccount implements the Store interface.
func (m *MockStore) CreateAccount(ctx context.Context, name, apiKey string) (schema.Account, error) {
	args := m.Called(ctx, name, apiKey)
	return args.Get(0).(schema.Account), args.Error(1)
}

// GetAccountByAPIKey implements the Store interface.
func (m *MockStore) GetAccountByAPIKey(ctx context.Context, apiKey string) (schema.Account, error) {
	args := m.Called(ctx, apiKey)
	return args.Get(0).(schema.Account), args.Error(1)
}

// ListAssignments implements the Store interface.
func (m *MockStore) ListAssignments(ctx context.Context, accountID, experimentID int64) ([]schema.Assignment, error) {
	args := m.Called(ctx, accountID, experimentID)
	assignments, _ := args.Get(0).([]schema.Assignment)
	return assignments, args.Error(1)
}

// ListEvents implements the Store interface.
func (m *MockStore) ListEvents(ctx context.Context, accountID, experimentID int64, r schema.DateRange) ([]schema.Event, error) {
	args := m.Called(ctx, accountID, experimentID, r)
	events, _ := args.Get(0).([]schema.Event)
	return events, args.Error(1)
}

// GetStatus implements the Store interface.
func (m *MockStore) GetStatus(ctx context.Context) (schema.StoreStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(schema.StoreStatus), args.Error(1)
}

// Close implements the Store interface.
func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
