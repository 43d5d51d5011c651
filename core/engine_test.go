package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/huangsam/exprora/core/alloc"
	"github.com/huangsam/exprora/internal/contract"
	"github.com/huangsam/exprora/internal/datastore"
	"github.com/huangsam/exprora/internal/errs"
	"github.com/huangsam/exprora/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type seeded struct {
	store     *datastore.MemoryStore
	accountID int64
	exp       schema.Experiment
	control   schema.Variant
	treatment schema.Variant
}

// seedRunning creates an account with one running two-arm experiment.
func seedRunning(t *testing.T, rules ...schema.TargetingRule) seeded {
	t.Helper()
	ctx := context.Background()
	store := datastore.NewMemoryStore()

	acct, err := store.CreateAccount(ctx, "acme", "expr_test")
	require.NoError(t, err)
	exp, err := store.CreateExperiment(ctx, schema.Experiment{
		AccountID: acct.ID, Name: "checkout", TrafficAllocation: 100, TargetingRules: rules, PrimaryGoal: "purchase",
	})
	require.NoError(t, err)
	control, err := store.AddVariant(ctx, acct.ID, schema.Variant{ExperimentID: exp.ID, Name: "control", TrafficPercentage: 50, IsControl: true})
	require.NoError(t, err)
	treatment, err := store.AddVariant(ctx, acct.ID, schema.Variant{ExperimentID: exp.ID, Name: "treatment", TrafficPercentage: 50})
	require.NoError(t, err)
	exp, err = store.UpdateExperimentStatus(ctx, acct.ID, exp.ID, schema.RunningStatus)
	require.NoError(t, err)

	return seeded{store: store, accountID: acct.ID, exp: exp, control: control, treatment: treatment}
}

func newTestEngine(store contract.Store, seed uint64) *Engine {
	allocator := alloc.NewAllocator(store,
		alloc.WithMatcher(NewRuleMatcher()),
		alloc.WithSourceProvider(alloc.SharedProvider{Source: alloc.NewRandomSource(seed)}),
	)
	return NewEngine(store, allocator)
}

func TestBuildResults(t *testing.T) {
	exp := schema.Experiment{ID: 7, Name: "checkout", Status: schema.RunningStatus, PrimaryGoal: "purchase"}

	t.Run("control and treatment", func(t *testing.T) {
		rows := []schema.VariantStats{
			{VariantID: 1, VariantName: "control", IsControl: true, Visitors: 1000, Conversions: 50},
			{VariantID: 2, VariantName: "treatment", Visitors: 1000, Conversions: 70, Revenue: 12.5},
		}
		res := BuildResults(exp, rows)

		assert.Equal(t, int64(7), res.Experiment.ID)
		assert.Equal(t, "purchase", res.Experiment.PrimaryGoal)
		require.Len(t, res.Variants, 2)

		control := res.Variants[0]
		assert.True(t, control.IsControl)
		assert.Equal(t, 5.0, control.ConversionRate)
		assert.Nil(t, control.Statistics)

		treatment := res.Variants[1]
		assert.Equal(t, 7.0, treatment.ConversionRate)
		assert.Equal(t, 12.5, treatment.Revenue)
		require.NotNil(t, treatment.Statistics)
		assert.InDelta(t, 1.883, treatment.Statistics.ZScore, 0.01)
		assert.InDelta(t, 0.06, treatment.Statistics.PValue, 0.005)
		assert.False(t, treatment.Statistics.IsSignificant)
		assert.InDelta(t, 40.0, treatment.Statistics.Lift, 1e-9)
		assert.InDelta(t, 5.0, treatment.Statistics.ControlRate, 1e-9)
	})

	t.Run("lift uses unrounded rates", func(t *testing.T) {
		rows := []schema.VariantStats{
			{VariantID: 1, IsControl: true, Visitors: 3, Conversions: 1},
			{VariantID: 2, Visitors: 3, Conversions: 2},
		}
		res := BuildResults(exp, rows)
		assert.Equal(t, 33.33, res.Variants[0].ConversionRate)
		assert.Equal(t, 66.67, res.Variants[1].ConversionRate)
		assert.InDelta(t, 100.0, res.Variants[1].Statistics.Lift, 1e-9)
	})

	t.Run("no control", func(t *testing.T) {
		rows := []schema.VariantStats{
			{VariantID: 1, Visitors: 10, Conversions: 1},
			{VariantID: 2, Visitors: 10, Conversions: 2},
		}
		res := BuildResults(exp, rows)
		for _, v := range res.Variants {
			assert.Nil(t, v.Statistics)
		}
	})

	t.Run("empty control", func(t *testing.T) {
		rows := []schema.VariantStats{
			{VariantID: 1, IsControl: true},
			{VariantID: 2, Visitors: 10, Conversions: 2},
		}
		res := BuildResults(exp, rows)
		stats := res.Variants[1].Statistics
		require.NotNil(t, stats)
		assert.Equal(t, schema.NeutralSignificance, stats.SignificanceResult)
		assert.Zero(t, stats.Lift)
		assert.Zero(t, stats.ControlRate)
	})

	t.Run("no rows", func(t *testing.T) {
		res := BuildResults(exp, nil)
		assert.NotNil(t, res.Variants)
		assert.Empty(t, res.Variants)
	})
}

func TestEngine_ResolveActive(t *testing.T) {
	s := seedRunning(t)
	engine := newTestEngine(s.store, 3)
	visitor := schema.VisitorContext{VisitorID: "visitor-1"}

	first, err := engine.ResolveActive(context.Background(), s.accountID, visitor)
	require.NoError(t, err)
	require.Len(t, first.Experiments, 1)
	assert.Equal(t, s.exp.ID, first.Experiments[0].ExperimentID)
	assert.Equal(t, "checkout", first.Experiments[0].ExperimentName)

	again, err := engine.ResolveActive(context.Background(), s.accountID, visitor)
	require.NoError(t, err)
	require.Len(t, again.Experiments, 1)
	assert.Equal(t, first.Experiments[0].VariantID, again.Experiments[0].VariantID)
}

func TestEngine_ResolveActive_Targeting(t *testing.T) {
	s := seedRunning(t, schema.TargetingRule{Type: schema.DeviceTarget, Condition: schema.EqualsCondition, Value: DeviceMobile})
	engine := newTestEngine(s.store, 3)
	ctx := context.Background()

	desktop := schema.VisitorContext{VisitorID: "d-1", UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0 Safari/537.36"}
	res, err := engine.ResolveActive(ctx, s.accountID, desktop)
	require.NoError(t, err)
	assert.Empty(t, res.Experiments)

	mobile := schema.VisitorContext{VisitorID: "m-1", UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148 Safari/604.1"}
	res, err = engine.ResolveActive(ctx, s.accountID, mobile)
	require.NoError(t, err)
	assert.Len(t, res.Experiments, 1)

	rows, err := s.store.ListAssignments(ctx, s.accountID, s.exp.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "m-1", rows[0].VisitorID)
}

func TestEngine_ResolveActive_Clock(t *testing.T) {
	ctx := context.Background()
	store := datastore.NewMemoryStore()
	acct, err := store.CreateAccount(ctx, "acme", "expr_clock")
	require.NoError(t, err)

	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	exp, err := store.CreateExperiment(ctx, schema.Experiment{AccountID: acct.ID, Name: "future", TrafficAllocation: 100, StartDate: &start})
	require.NoError(t, err)
	_, err = store.AddVariant(ctx, acct.ID, schema.Variant{ExperimentID: exp.ID, Name: "a", TrafficPercentage: 50, IsControl: true})
	require.NoError(t, err)
	_, err = store.UpdateExperimentStatus(ctx, acct.ID, exp.ID, schema.RunningStatus)
	require.NoError(t, err)

	allocator := alloc.NewAllocator(store, alloc.WithSourceProvider(alloc.SharedProvider{Source: alloc.NewRandomSource(1)}))
	visitor := schema.VisitorContext{VisitorID: "v"}

	before := NewEngine(store, allocator, WithEngineClock(func() time.Time { return start.Add(-time.Hour) }))
	res, err := before.ResolveActive(ctx, acct.ID, visitor)
	require.NoError(t, err)
	assert.Empty(t, res.Experiments)

	after := NewEngine(store, allocator, WithEngineClock(func() time.Time { return start.Add(time.Hour) }))
	res, err = after.ResolveActive(ctx, acct.ID, visitor)
	require.NoError(t, err)
	assert.Len(t, res.Experiments, 1)

	running, err := after.ListRunning(ctx, acct.ID)
	require.NoError(t, err)
	assert.Len(t, running, 1)
}

func TestEngine_ResolveActive_StoreError(t *testing.T) {
	store := &datastore.MockStore{}
	store.On("ListRunningExperiments", mock.Anything, int64(1), mock.Anything).Return(nil, errors.New("connection refused"))

	engine := newTestEngine(store, 1)
	_, err := engine.ResolveActive(context.Background(), 1, schema.VisitorContext{VisitorID: "v"})
	require.Error(t, err)
	assert.Equal(t, errs.CodeDatabase, errs.CodeOf(err))
	assert.True(t, errs.IsRetryable(err))
	store.AssertExpectations(t)
}

func TestEngine_GetResults(t *testing.T) {
	s := seedRunning(t)
	ctx := context.Background()
	engine := newTestEngine(s.store, 1)

	assign := func(visitor string, v schema.Variant) {
		_, err := s.store.InsertAssignmentIfAbsent(ctx, schema.Assignment{
			AccountID: s.accountID, ExperimentID: s.exp.ID, VariantID: v.ID, VisitorID: visitor, AssignedAt: time.Now(),
		})
		require.NoError(t, err)
	}
	convert := func(visitor string, v schema.Variant) {
		expID, varID := s.exp.ID, v.ID
		_, err := s.store.RecordEvent(ctx, schema.Event{
			AccountID: s.accountID, ExperimentID: &expID, VariantID: &varID, VisitorID: visitor, EventType: schema.ConversionEvent,
		})
		require.NoError(t, err)
	}

	for _, id := range []string{"c1", "c2", "c3", "c4"} {
		assign(id, s.control)
	}
	for _, id := range []string{"t1", "t2", "t3", "t4"} {
		assign(id, s.treatment)
	}
	convert("c1", s.control)
	convert("t1", s.treatment)
	convert("t2", s.treatment)

	res, err := engine.GetResults(ctx, s.accountID, s.exp.ID, schema.DateRange{})
	require.NoError(t, err)
	require.Len(t, res.Variants, 2)
	assert.Equal(t, 25.0, res.Variants[0].ConversionRate)
	assert.Equal(t, 50.0, res.Variants[1].ConversionRate)
	require.NotNil(t, res.Variants[1].Statistics)
	assert.InDelta(t, 100.0, res.Variants[1].Statistics.Lift, 1e-9)

	_, err = engine.GetResults(ctx, s.accountID, s.exp.ID+100, schema.DateRange{})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = engine.GetResults(ctx, s.accountID+100, s.exp.ID, schema.DateRange{})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestNewEngineFromConfig_HashMode(t *testing.T) {
	cfg := &contract.Config{AllocationMode: schema.HashAllocation, HashSalt: "pepper"}
	a := seedRunning(t)
	b := seedRunning(t)

	for _, visitor := range []string{"x", "y", "z", "w"} {
		ra, err := NewEngineFromConfig(cfg, a.store, nil).ResolveActive(context.Background(), a.accountID, schema.VisitorContext{VisitorID: visitor})
		require.NoError(t, err)
		rb, err := NewEngineFromConfig(cfg, b.store, nil).ResolveActive(context.Background(), b.accountID, schema.VisitorContext{VisitorID: visitor})
		require.NoError(t, err)
		require.Len(t, ra.Experiments, 1)
		require.Len(t, rb.Experiments, 1)
		assert.Equal(t, ra.Experiments[0].VariantName, rb.Experiments[0].VariantName)
	}
}
