package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/huangsam/exprora/internal/errs"
	"github.com/huangsam/exprora/schema"
)

// GetAssignment implements the AssignmentStore interface.
func (s *SQLStore) GetAssignment(ctx context.Context, accountID, experimentID int64, visitorID string) (int64, bool, error) {
	query := fmt.Sprintf("SELECT variant_id FROM %s WHERE experiment_id = ? AND visitor_id = ? AND account_id = ?", assignmentsTable)
	var variantID int64
	err := s.db.QueryRowContext(ctx, s.q(query), experimentID, visitorID, accountID).Scan(&variantID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errs.Wrap(errs.CodeDatabase, "failed to get assignment", err)
	}
	return variantID, true, nil
}

// InsertAssignmentIfAbsent implements the AssignmentStore interface. The insert
// leaves an existing row untouched; when nothing was inserted the winning row is
// read back inside the same transaction.
func (s *SQLStore) InsertAssignmentIfAbsent(ctx context.Context, a schema.Assignment) (schema.InsertResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return schema.InsertResult{}, errs.Wrap(errs.CodeDatabase, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, insertIgnoreAssignment(s.backend),
		a.AccountID, a.ExperimentID, a.VariantID, a.VisitorID, schema.ToMillis(a.AssignedAt))
	if err != nil {
		return schema.InsertResult{}, errs.Wrap(errs.CodeDatabase, "failed to insert assignment", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return schema.InsertResult{}, errs.Wrap(errs.CodeDatabase, "failed to insert assignment", err)
	}

	result := schema.InsertResult{Inserted: n == 1, VariantID: a.VariantID}
	if !result.Inserted {
		query := fmt.Sprintf("SELECT variant_id FROM %s WHERE experiment_id = ? AND visitor_id = ?", assignmentsTable)
		if err := tx.QueryRowContext(ctx, s.q(query), a.ExperimentID, a.VisitorID).Scan(&result.VariantID); err != nil {
			// A missing row here means the insert was dropped for another reason.
			return schema.InsertResult{}, errs.Wrap(errs.CodeDatabase, "failed to read existing assignment", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return schema.InsertResult{}, errs.Wrap(errs.CodeDatabase, "failed to commit assignment", err)
	}
	return result, nil
}

// ListAssignments implements the Exporter interface.
func (s *SQLStore) ListAssignments(ctx context.Context, accountID, experimentID int64) ([]schema.Assignment, error) {
	query := fmt.Sprintf(`SELECT id, account_id, experiment_id, variant_id, visitor_id, assigned_at FROM %s
		WHERE account_id = ?`, assignmentsTable)
	args := []any{accountID}
	if experimentID > 0 {
		query += " AND experiment_id = ?"
		args = append(args, experimentID)
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, errs.Wrap(errs.CodeDatabase, "failed to list assignments", err)
	}
	defer func() { _ = rows.Close() }()

	assignments := []schema.Assignment{}
	for rows.Next() {
		var a schema.Assignment
		var assignedAt int64
		if err := rows.Scan(&a.ID, &a.AccountID, &a.ExperimentID, &a.VariantID, &a.VisitorID, &assignedAt); err != nil {
			return nil, errs.Wrap(errs.CodeDatabase, "failed to scan assignment", err)
		}
		a.AssignedAt = schema.FromMillis(assignedAt)
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.CodeDatabase, "failed to list assignments", err)
	}
	return assignments, nil
}
