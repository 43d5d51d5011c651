package datastore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/huangsam/exprora/internal/contract"
	"github.com/huangsam/exprora/internal/errs"
	"github.com/huangsam/exprora/schema"
)

type assignmentKey struct {
	experimentID int64
	visitorID    string
}

type visitorKey struct {
	accountID int64
	visitorID string
}

// MemoryStore implements contract.Store in process memory. Nothing survives a
// restart; it backs tests and the memory backend.
type MemoryStore struct {
	mu          sync.RWMutex
	lastID      int64
	accounts    map[int64]schema.Account
	apiKeys     map[string]int64
	experiments map[int64]schema.Experiment
	variants    map[int64]schema.Variant
	assignments map[assignmentKey]schema.Assignment
	events      []schema.Event
	visitors    map[visitorKey]schema.Visitor
	closed      bool
}

var _ contract.Store = &MemoryStore{} // Compile-time check

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:    make(map[int64]schema.Account),
		apiKeys:     make(map[string]int64),
		experiments: make(map[int64]schema.Experiment),
		variants:    make(map[int64]schema.Variant),
		assignments: make(map[assignmentKey]schema.Assignment),
		visitors:    make(map[visitorKey]schema.Visitor),
	}
}

// nextID must be called with mu held for writing.
func (m *MemoryStore) nextID() int64 {
	m.lastID++
	return m.lastID
}

// nowMillis matches the millisecond precision of the SQL backends.
func nowMillis() time.Time {
	return schema.FromMillis(schema.ToMillis(time.Now()))
}

func cloneExperiment(e schema.Experiment) schema.Experiment {
	e.TargetingRules = slices.Clone(e.TargetingRules)
	return e
}

// variantsOf returns an experiment's variants ordered by id. Callers hold mu.
func (m *MemoryStore) variantsOf(experimentID int64) []schema.Variant {
	out := []schema.Variant{}
	for _, v := range m.variants {
		if v.ExperimentID == experimentID {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b schema.Variant) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// controlFirst orders control variants before the rest, then by id.
func controlFirst(a, b schema.Variant) int {
	if a.IsControl != b.IsControl {
		if a.IsControl {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.ID, b.ID)
}

// newestFirst orders experiments by created_at DESC, id DESC.
func newestFirst(a, b schema.Experiment) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

// GetAssignment implements the AssignmentStore interface.
func (m *MemoryStore) GetAssignment(ctx context.Context, accountID, experimentID int64, visitorID string) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, errs.Wrap(errs.CodeDatabase, "failed to get assignment", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assignments[assignmentKey{experimentID, visitorID}]
	if !ok || a.AccountID != accountID {
		return 0, false, nil
	}
	return a.VariantID, true, nil
}

// InsertAssignmentIfAbsent implements the AssignmentStore interface.
func (m *MemoryStore) InsertAssignmentIfAbsent(ctx context.Context, a schema.Assignment) (schema.InsertResult, error) {
	if err := ctx.Err(); err != nil {
		return schema.InsertResult{}, errs.Wrap(errs.CodeDatabase, "failed to insert assignment", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := assignmentKey{a.ExperimentID, a.VisitorID}
	if existing, ok := m.assignments[key]; ok {
		return schema.InsertResult{Inserted: false, VariantID: existing.VariantID}, nil
	}
	a.ID = m.nextID()
	a.AssignedAt = schema.FromMillis(schema.ToMillis(a.AssignedAt))
	m.assignments[key] = a
	return schema.InsertResult{Inserted: true, VariantID: a.VariantID}, nil
}

// ListAssignments implements the Exporter interface.
func (m *MemoryStore) ListAssignments(_ context.Context, accountID, experimentID int64) ([]schema.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []schema.Assignment{}
	for _, a := range m.assignments {
		if a.AccountID != accountID || (experimentID > 0 && a.ExperimentID != experimentID) {
			continue
		}
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b schema.Assignment) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// ListRunningExperiments implements the ExperimentReader interface.
func (m *MemoryStore) ListRunningExperiments(_ context.Context, accountID int64, now time.Time) ([]schema.RunningExperiment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	active := []schema.Experiment{}
	for _, e := range m.experiments {
		if e.AccountID == accountID && e.IsActiveAt(now) {
			active = append(active, e)
		}
	}
	slices.SortFunc(active, newestFirst)

	running := make([]schema.RunningExperiment, 0, len(active))
	for _, e := range active {
		running = append(running, schema.RunningExperiment{Experiment: cloneExperiment(e), Variants: m.variantsOf(e.ID)})
	}
	return running, nil
}

// GetExperiment implements the ExperimentReader interface.
func (m *MemoryStore) GetExperiment(_ context.Context, accountID, experimentID int64) (schema.Experiment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getExperiment(accountID, experimentID)
}

func (m *MemoryStore) getExperiment(accountID, experimentID int64) (schema.Experiment, error) {
	e, ok := m.experiments[experimentID]
	if !ok || e.AccountID != accountID {
		return schema.Experiment{}, errs.NotFound("experiment")
	}
	return cloneExperiment(e), nil
}

// ListVariants implements the ExperimentReader interface.
func (m *MemoryStore) ListVariants(_ context.Context, experimentID int64) ([]schema.Variant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.variantsOf(experimentID)
	slices.SortFunc(out, controlFirst)
	return out, nil
}

// ListExperiments implements the ExperimentWriter interface.
func (m *MemoryStore) ListExperiments(_ context.Context, accountID int64, status schema.ExperimentStatus) ([]schema.Experiment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []schema.Experiment{}
	for _, e := range m.experiments {
		if e.AccountID != accountID || (status != "" && e.Status != status) {
			continue
		}
		out = append(out, cloneExperiment(e))
	}
	slices.SortFunc(out, newestFirst)
	return out, nil
}

// CreateExperiment implements the ExperimentWriter interface.
func (m *MemoryStore) CreateExperiment(_ context.Context, e schema.Experiment) (schema.Experiment, error) {
	if e.Type == "" {
		e.Type = schema.ABTest
	}
	if e.Status == "" {
		e.Status = schema.DraftStatus
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[e.AccountID]; !ok {
		return schema.Experiment{}, errs.NotFound("account")
	}
	e.ID = m.nextID()
	e.CreatedAt = nowMillis()
	e.UpdatedAt = e.CreatedAt
	e = cloneExperiment(e)
	m.experiments[e.ID] = e
	return cloneExperiment(e), nil
}

// UpdateExperiment implements the ExperimentWriter interface.
func (m *MemoryStore) UpdateExperiment(_ context.Context, e schema.Experiment) (schema.Experiment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, err := m.getExperiment(e.AccountID, e.ID)
	if err != nil {
		return schema.Experiment{}, err
	}
	if e.Type == "" {
		e.Type = schema.ABTest
	}
	cur.Name = e.Name
	cur.Description = e.Description
	cur.Type = e.Type
	cur.TrafficAllocation = e.TrafficAllocation
	cur.StartDate = e.StartDate
	cur.EndDate = e.EndDate
	cur.TargetingRules = slices.Clone(e.TargetingRules)
	cur.PrimaryGoal = e.PrimaryGoal
	cur.UpdatedAt = nowMillis()
	m.experiments[cur.ID] = cur
	return cloneExperiment(cur), nil
}

// UpdateExperimentStatus implements the ExperimentWriter interface.
func (m *MemoryStore) UpdateExperimentStatus(_ context.Context, accountID, experimentID int64, status schema.ExperimentStatus) (schema.Experiment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, err := m.getExperiment(accountID, experimentID)
	if err != nil {
		return schema.Experiment{}, err
	}
	if cur.Status == status {
		return cur, nil
	}
	if !schema.CanTransition(cur.Status, status) {
		return schema.Experiment{}, errs.Conflict(fmt.Sprintf("cannot change status from %s to %s", cur.Status, status))
	}
	cur.Status = status
	cur.UpdatedAt = nowMillis()
	m.experiments[cur.ID] = cur
	return cloneExperiment(cur), nil
}

// AddVariant implements the ExperimentWriter interface.
func (m *MemoryStore) AddVariant(_ context.Context, accountID int64, v schema.Variant) (schema.Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.getExperiment(accountID, v.ExperimentID); err != nil {
		return schema.Variant{}, err
	}
	v.ID = m.nextID()
	v.CreatedAt = nowMillis()
	v.Payload = slices.Clone(v.Payload)
	m.variants[v.ID] = v
	return v, nil
}

// RecordEvent implements the EventRecorder interface.
func (m *MemoryStore) RecordEvent(_ context.Context, e schema.Event) (schema.Event, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = schema.FromMillis(schema.ToMillis(e.CreatedAt))
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.nextID()
	m.events = append(m.events, e)
	return e, nil
}

// UpsertVisitor implements the EventRecorder interface.
func (m *MemoryStore) UpsertVisitor(_ context.Context, v schema.Visitor) (schema.Visitor, error) {
	now := nowMillis()
	m.mu.Lock()
	defer m.mu.Unlock()
	key := visitorKey{v.AccountID, v.VisitorID}
	if cur, ok := m.visitors[key]; ok {
		if v.SessionID != "" {
			cur.SessionID = v.SessionID
		}
		cur.LastSeenAt = now
		m.visitors[key] = cur
		return cur, nil
	}
	v.FirstSeenAt, v.LastSeenAt = now, now
	m.visitors[key] = v
	return v, nil
}

// AggregateVariantStats implements the EventAggregator interface.
func (m *MemoryStore) AggregateVariantStats(_ context.Context, accountID, experimentID int64, r schema.DateRange) ([]schema.VariantStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := []schema.VariantStats{}
	if e, ok := m.experiments[experimentID]; !ok || e.AccountID != accountID {
		return stats, nil
	}

	variants := m.variantsOf(experimentID)
	slices.SortFunc(variants, controlFirst)

	for _, v := range variants {
		vs := schema.VariantStats{VariantID: v.ID, VariantName: v.Name, IsControl: v.IsControl}

		for _, a := range m.assignments {
			if a.VariantID == v.ID {
				vs.Visitors++
			}
		}

		viewers := make(map[string]struct{})
		converters := make(map[string]struct{})
		for _, e := range m.events {
			if e.AccountID != accountID || e.VariantID == nil || *e.VariantID != v.ID ||
				e.ExperimentID == nil || *e.ExperimentID != experimentID || !r.Contains(e.CreatedAt) {
				continue
			}
			switch e.EventType {
			case schema.PageviewEvent:
				viewers[e.VisitorID] = struct{}{}
			case schema.ConversionEvent:
				converters[e.VisitorID] = struct{}{}
				vs.TotalConversions++
				if e.EventValue != nil {
					vs.Revenue += *e.EventValue
				}
			}
		}
		vs.Pageviews = int64(len(viewers))
		vs.Conversions = int64(len(converters))
		stats = append(stats, vs)
	}
	return stats, nil
}

// ListEvents implements the Exporter interface.
func (m *MemoryStore) ListEvents(_ context.Context, accountID, experimentID int64, r schema.DateRange) ([]schema.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []schema.Event{}
	for _, e := range m.events {
		if e.AccountID != accountID || !r.Contains(e.CreatedAt) {
			continue
		}
		if experimentID > 0 && (e.ExperimentID == nil || *e.ExperimentID != experimentID) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// CreateAccount implements the AccountStore interface.
func (m *MemoryStore) CreateAccount(_ context.Context, name, apiKey string) (schema.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.apiKeys[apiKey]; ok {
		return schema.Account{}, errs.Conflict("api key already exists")
	}
	acct := schema.Account{ID: m.nextID(), Name: name, APIKey: apiKey, CreatedAt: nowMillis()}
	m.accounts[acct.ID] = acct
	m.apiKeys[apiKey] = acct.ID
	return acct, nil
}

// GetAccountByAPIKey implements the AccountStore interface.
func (m *MemoryStore) GetAccountByAPIKey(_ context.Context, apiKey string) (schema.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.apiKeys[apiKey]
	if !ok {
		return schema.Account{}, errs.NotFound("account")
	}
	return m.accounts[id], nil
}

// GetStatus implements the Store interface.
func (m *MemoryStore) GetStatus(_ context.Context) (schema.StoreStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status := schema.StoreStatus{
		Backend:          string(schema.MemoryBackend),
		Connected:        !m.closed,
		TotalAccounts:    int64(len(m.accounts)),
		TotalExperiments: int64(len(m.experiments)),
		TotalAssignments: int64(len(m.assignments)),
		TotalEvents:      int64(len(m.events)),
		TableSizes: map[string]int64{
			accountsTable:    int64(len(m.accounts)),
			experimentsTable: int64(len(m.experiments)),
			variantsTable:    int64(len(m.variants)),
			assignmentsTable: int64(len(m.assignments)),
			eventsTable:      int64(len(m.events)),
			visitorsTable:    int64(len(m.visitors)),
		},
	}
	for i, e := range m.events {
		if i == 0 || e.CreatedAt.Before(status.OldestEventTime) {
			status.OldestEventTime = e.CreatedAt
		}
		if i == 0 || e.CreatedAt.After(status.LastEventTime) {
			status.LastEventTime = e.CreatedAt
		}
	}
	return status, nil
}

// Close implements the Store interface.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
