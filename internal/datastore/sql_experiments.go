package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huangsam/exprora/internal/errs"
	"github.com/huangsam/exprora/schema"
)

const experimentColumns = "id, account_id, name, description, type, status, traffic_allocation, start_date, end_date, targeting_rules, primary_goal, created_at, updated_at"

const variantColumns = "id, experiment_id, name, traffic_percentage, is_control, payload, created_at"

// scanExperiment reads one row selected with experimentColumns.
func scanExperiment(sc scanner) (schema.Experiment, error) {
	var (
		e                  schema.Experiment
		typ, status, rules string
		start, end         sql.NullInt64
		created, updated   int64
	)
	if err := sc.Scan(&e.ID, &e.AccountID, &e.Name, &e.Description, &typ, &status, &e.TrafficAllocation,
		&start, &end, &rules, &e.PrimaryGoal, &created, &updated); err != nil {
		return e, err
	}
	e.Type = schema.ExperimentType(typ)
	e.Status = schema.ExperimentStatus(status)
	e.StartDate = schema.OptionalTime(ptrInt64(start))
	e.EndDate = schema.OptionalTime(ptrInt64(end))
	e.CreatedAt = schema.FromMillis(created)
	e.UpdatedAt = schema.FromMillis(updated)
	if rules != "" {
		if err := json.Unmarshal([]byte(rules), &e.TargetingRules); err != nil {
			return e, fmt.Errorf("failed to decode targeting rules of experiment %d: %w", e.ID, err)
		}
	}
	return e, nil
}

// scanVariant reads one row selected with variantColumns.
func scanVariant(sc scanner) (schema.Variant, error) {
	var (
		v       schema.Variant
		payload sql.NullString
		created int64
	)
	if err := sc.Scan(&v.ID, &v.ExperimentID, &v.Name, &v.TrafficPercentage, &v.IsControl, &payload, &created); err != nil {
		return v, err
	}
	if payload.Valid && payload.String != "" {
		v.Payload = json.RawMessage(payload.String)
	}
	v.CreatedAt = schema.FromMillis(created)
	return v, nil
}

// encodeRules stores absent rules as an empty JSON array.
func encodeRules(rules []schema.TargetingRule) (string, error) {
	if len(rules) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(rules)
	if err != nil {
		return "", errs.Wrap(errs.CodeValidation, "invalid targeting rules", err)
	}
	return string(b), nil
}

// GetExperiment implements the ExperimentReader interface.
func (s *SQLStore) GetExperiment(ctx context.Context, accountID, experimentID int64) (schema.Experiment, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? AND account_id = ?", experimentColumns, experimentsTable)
	e, err := scanExperiment(s.db.QueryRowContext(ctx, s.q(query), experimentID, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return schema.Experiment{}, errs.NotFound("experiment")
	}
	if err != nil {
		return schema.Experiment{}, errs.Wrap(errs.CodeDatabase, "failed to get experiment", err)
	}
	return e, nil
}

// ListExperiments implements the ExperimentWriter interface.
func (s *SQLStore) ListExperiments(ctx context.Context, accountID int64, status schema.ExperimentStatus) ([]schema.Experiment, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE account_id = ?", experimentColumns, experimentsTable)
	args := []any{accountID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, errs.Wrap(errs.CodeDatabase, "failed to list experiments", err)
	}
	defer func() { _ = rows.Close() }()

	experiments := []schema.Experiment{}
	for rows.Next() {
		e, err := scanExperiment(rows)
		if err != nil {
			return nil, errs.Wrap(errs.CodeDatabase, "failed to scan experiment", err)
		}
		experiments = append(experiments, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.CodeDatabase, "failed to list experiments", err)
	}
	return experiments, nil
}

// ListRunningExperiments implements the ExperimentReader interface.
func (s *SQLStore) ListRunningExperiments(ctx context.Context, accountID int64, now time.Time) ([]schema.RunningExperiment, error) {
	nowMs := schema.ToMillis(now)
	query := fmt.Sprintf(`SELECT %s FROM %s
		WHERE account_id = ? AND status = ?
		AND (start_date IS NULL OR start_date <= ?)
		AND (end_date IS NULL OR end_date >= ?)
		ORDER BY created_at DESC, id DESC`, experimentColumns, experimentsTable)

	rows, err := s.db.QueryContext(ctx, s.q(query), accountID, string(schema.RunningStatus), nowMs, nowMs)
	if err != nil {
		return nil, errs.Wrap(errs.CodeDatabase, "failed to list running experiments", err)
	}
	defer func() { _ = rows.Close() }()

	running := []schema.RunningExperiment{}
	for rows.Next() {
		e, err := scanExperiment(rows)
		if err != nil {
			return nil, errs.Wrap(errs.CodeDatabase, "failed to scan experiment", err)
		}
		running = append(running, schema.RunningExperiment{Experiment: e, Variants: []schema.Variant{}})
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.CodeDatabase, "failed to list running experiments", err)
	}
	if len(running) == 0 {
		return running, nil
	}

	// One query for every variant, grouped afterwards.
	ids := make([]any, len(running))
	index := make(map[int64]int, len(running))
	for i, r := range running {
		ids[i] = r.ID
		index[r.ID] = i
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	vquery := fmt.Sprintf("SELECT %s FROM %s WHERE experiment_id IN (%s) ORDER BY id ASC", variantColumns, variantsTable, placeholders)

	vrows, err := s.db.QueryContext(ctx, s.q(vquery), ids...)
	if err != nil {
		return nil, errs.Wrap(errs.CodeDatabase, "failed to list variants", err)
	}
	defer func() { _ = vrows.Close() }()

	for vrows.Next() {
		v, err := scanVariant(vrows)
		if err != nil {
			return nil, errs.Wrap(errs.CodeDatabase, "failed to scan variant", err)
		}
		if i, ok := index[v.ExperimentID]; ok {
			running[i].Variants = append(running[i].Variants, v)
		}
	}
	if err := vrows.Err(); err != nil {
		return nil, errs.Wrap(errs.CodeDatabase, "failed to list variants", err)
	}
	return running, nil
}

// ListVariants implements the ExperimentReader interface.
func (s *SQLStore) ListVariants(ctx context.Context, experimentID int64) ([]schema.Variant, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE experiment_id = ? ORDER BY is_control DESC, id ASC", variantColumns, variantsTable)
	rows, err := s.db.QueryContext(ctx, s.q(query), experimentID)
	if err != nil {
		return nil, errs.Wrap(errs.CodeDatabase, "failed to list variants", err)
	}
	defer func() { _ = rows.Close() }()

	variants := []schema.Variant{}
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, errs.Wrap(errs.CodeDatabase, "failed to scan variant", err)
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.CodeDatabase, "failed to list variants", err)
	}
	return variants, nil
}

// CreateExperiment implements the ExperimentWriter interface.
func (s *SQLStore) CreateExperiment(ctx context.Context, e schema.Experiment) (schema.Experiment, error) {
	if e.Type == "" {
		e.Type = schema.ABTest
	}
	if e.Status == "" {
		e.Status = schema.DraftStatus
	}
	rules, err := encodeRules(e.TargetingRules)
	if err != nil {
		return schema.Experiment{}, err
	}
	now := schema.FromMillis(schema.ToMillis(time.Now()))
	e.CreatedAt, e.UpdatedAt = now, now

	query := fmt.Sprintf(`INSERT INTO %s
		(account_id, name, description, type, status, traffic_allocation, start_date, end_date, targeting_rules, primary_goal, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, experimentsTable)
	id, err := s.insertID(ctx, s.db, query,
		e.AccountID, e.Name, e.Description, string(e.Type), string(e.Status), e.TrafficAllocation,
		nullInt64(schema.OptionalMillis(e.StartDate)), nullInt64(schema.OptionalMillis(e.EndDate)),
		rules, e.PrimaryGoal, schema.ToMillis(now), schema.ToMillis(now))
	if err != nil {
		return schema.Experiment{}, errs.Wrap(errs.CodeDatabase, "failed to create experiment", err)
	}
	e.ID = id
	return e, nil
}

// UpdateExperiment implements the ExperimentWriter interface. Status is left
// alone; it only changes through UpdateExperimentStatus.
func (s *SQLStore) UpdateExperiment(ctx context.Context, e schema.Experiment) (schema.Experiment, error) {
	if _, err := s.GetExperiment(ctx, e.AccountID, e.ID); err != nil {
		return schema.Experiment{}, err
	}
	if e.Type == "" {
		e.Type = schema.ABTest
	}
	rules, err := encodeRules(e.TargetingRules)
	if err != nil {
		return schema.Experiment{}, err
	}

	query := fmt.Sprintf(`UPDATE %s SET name = ?, description = ?, type = ?, traffic_allocation = ?,
		start_date = ?, end_date = ?, targeting_rules = ?, primary_goal = ?, updated_at = ?
		WHERE id = ? AND account_id = ?`, experimentsTable)
	if _, err := s.db.ExecContext(ctx, s.q(query),
		e.Name, e.Description, string(e.Type), e.TrafficAllocation,
		nullInt64(schema.OptionalMillis(e.StartDate)), nullInt64(schema.OptionalMillis(e.EndDate)),
		rules, e.PrimaryGoal, schema.ToMillis(time.Now()), e.ID, e.AccountID); err != nil {
		return schema.Experiment{}, errs.Wrap(errs.CodeDatabase, "failed to update experiment", err)
	}
	return s.GetExperiment(ctx, e.AccountID, e.ID)
}

// UpdateExperimentStatus implements the ExperimentWriter interface. The update
// is conditional on the status read, so a concurrent transition yields CONFLICT.
func (s *SQLStore) UpdateExperimentStatus(ctx context.Context, accountID, experimentID int64, status schema.ExperimentStatus) (schema.Experiment, error) {
	cur, err := s.GetExperiment(ctx, accountID, experimentID)
	if err != nil {
		return schema.Experiment{}, err
	}
	if cur.Status == status {
		return cur, nil
	}
	if !schema.CanTransition(cur.Status, status) {
		return schema.Experiment{}, errs.Conflict(fmt.Sprintf("cannot change status from %s to %s", cur.Status, status))
	}

	query := fmt.Sprintf("UPDATE %s SET status = ?, updated_at = ? WHERE id = ? AND account_id = ? AND status = ?", experimentsTable)
	res, err := s.db.ExecContext(ctx, s.q(query), string(status), schema.ToMillis(time.Now()), experimentID, accountID, string(cur.Status))
	if err != nil {
		return schema.Experiment{}, errs.Wrap(errs.CodeDatabase, "failed to update experiment status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return schema.Experiment{}, errs.Wrap(errs.CodeDatabase, "failed to update experiment status", err)
	}
	if n == 0 {
		return schema.Experiment{}, errs.Conflict("experiment status changed concurrently")
	}
	return s.GetExperiment(ctx, accountID, experimentID)
}

// AddVariant implements the ExperimentWriter interface.
func (s *SQLStore) AddVariant(ctx context.Context, accountID int64, v schema.Variant) (schema.Variant, error) {
	if _, err := s.GetExperiment(ctx, accountID, v.ExperimentID); err != nil {
		return schema.Variant{}, err
	}
	v.CreatedAt = schema.FromMillis(schema.ToMillis(time.Now()))

	query := fmt.Sprintf("INSERT INTO %s (experiment_id, name, traffic_percentage, is_control, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)", variantsTable)
	id, err := s.insertID(ctx, s.db, query,
		v.ExperimentID, v.Name, v.TrafficPercentage, v.IsControl, nullBytes(v.Payload), schema.ToMillis(v.CreatedAt))
	if err != nil {
		return schema.Variant{}, errs.Wrap(errs.CodeDatabase, "failed to create variant", err)
	}
	v.ID = id
	return v, nil
}
