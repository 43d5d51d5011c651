package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/huangsam/exprora/internal/errs"
	"github.com/huangsam/exprora/schema"
)

// millisBounds turns a date range into inclusive created_at bounds.
func millisBounds(r schema.DateRange) (int64, int64) {
	lo, hi := int64(0), int64(math.MaxInt64)
	if !r.Start.IsZero() {
		lo = schema.ToMillis(r.Start)
	}
	if !r.End.IsZero() {
		hi = schema.ToMillis(r.End)
	}
	return lo, hi
}

// RecordEvent implements the EventRecorder interface.
func (s *SQLStore) RecordEvent(ctx context.Context, e schema.Event) (schema.Event, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = schema.FromMillis(schema.ToMillis(e.CreatedAt))

	query := fmt.Sprintf(`INSERT INTO %s
		(account_id, experiment_id, variant_id, visitor_id, event_type, event_name, event_value, url, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, eventsTable)
	id, err := s.insertID(ctx, s.db, query,
		e.AccountID, nullInt64(e.ExperimentID), nullInt64(e.VariantID), e.VisitorID, string(e.EventType),
		nullString(e.EventName), nullFloat64(e.EventValue), nullString(e.URL), nullBytes(e.Metadata),
		schema.ToMillis(e.CreatedAt))
	if err != nil {
		return schema.Event{}, errs.Wrap(errs.CodeDatabase, "failed to record event", err)
	}
	e.ID = id
	return e, nil
}

// UpsertVisitor implements the EventRecorder interface. A returning visitor
// keeps first_seen_at; last_seen_at and a supplied session id are refreshed.
func (s *SQLStore) UpsertVisitor(ctx context.Context, v schema.Visitor) (schema.Visitor, error) {
	now := schema.ToMillis(time.Now())
	if _, err := s.db.ExecContext(ctx, upsertVisitor(s.backend),
		v.AccountID, v.VisitorID, nullString(v.SessionID), nullString(v.UserAgent), nullString(v.IPAddress), now, now); err != nil {
		return schema.Visitor{}, errs.Wrap(errs.CodeDatabase, "failed to upsert visitor", err)
	}

	query := fmt.Sprintf(`SELECT account_id, visitor_id, session_id, user_agent, ip_address, first_seen_at, last_seen_at
		FROM %s WHERE account_id = ? AND visitor_id = ?`, visitorsTable)
	var (
		out                 schema.Visitor
		session, agent, ip  sql.NullString
		firstSeen, lastSeen int64
	)
	if err := s.db.QueryRowContext(ctx, s.q(query), v.AccountID, v.VisitorID).Scan(
		&out.AccountID, &out.VisitorID, &session, &agent, &ip, &firstSeen, &lastSeen); err != nil {
		return schema.Visitor{}, errs.Wrap(errs.CodeDatabase, "failed to read visitor", err)
	}
	out.SessionID = session.String
	out.UserAgent = agent.String
	out.IPAddress = ip.String
	out.FirstSeenAt = schema.FromMillis(firstSeen)
	out.LastSeenAt = schema.FromMillis(lastSeen)
	return out, nil
}

// AggregateVariantStats implements the EventAggregator interface. Visitors
// count every assignment regardless of the range; event counts are bounded by it.
func (s *SQLStore) AggregateVariantStats(ctx context.Context, accountID, experimentID int64, r schema.DateRange) ([]schema.VariantStats, error) {
	lo, hi := millisBounds(r)

	eventFilter := fmt.Sprintf(`FROM %s e WHERE e.variant_id = v.id AND e.experiment_id = ? AND e.account_id = ?
			AND e.event_type = ? AND e.created_at BETWEEN ? AND ?`, eventsTable)
	filterArgs := func(t schema.EventType) []any {
		return []any{experimentID, accountID, string(t), lo, hi}
	}

	query := fmt.Sprintf(`SELECT v.id, v.name, v.is_control,
		(SELECT COUNT(DISTINCT a.visitor_id) FROM %s a WHERE a.variant_id = v.id) AS visitors,
		(SELECT COUNT(DISTINCT e.visitor_id) %s) AS pageviews,
		(SELECT COUNT(DISTINCT e.visitor_id) %s) AS conversions,
		(SELECT COUNT(*) %s) AS total_conversions,
		(SELECT COALESCE(SUM(e.event_value), 0) %s) AS revenue
		FROM %s v JOIN %s x ON x.id = v.experiment_id
		WHERE v.experiment_id = ? AND x.account_id = ?
		ORDER BY v.is_control DESC, v.id ASC`,
		assignmentsTable, eventFilter, eventFilter, eventFilter, eventFilter, variantsTable, experimentsTable)

	var args []any
	args = append(args, filterArgs(schema.PageviewEvent)...)
	args = append(args, filterArgs(schema.ConversionEvent)...)
	args = append(args, filterArgs(schema.ConversionEvent)...)
	args = append(args, filterArgs(schema.ConversionEvent)...)
	args = append(args, experimentID, accountID)

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, errs.Wrap(errs.CodeDatabase, "failed to aggregate variant stats", err)
	}
	defer func() { _ = rows.Close() }()

	stats := []schema.VariantStats{}
	for rows.Next() {
		var vs schema.VariantStats
		if err := rows.Scan(&vs.VariantID, &vs.VariantName, &vs.IsControl,
			&vs.Visitors, &vs.Pageviews, &vs.Conversions, &vs.TotalConversions, &vs.Revenue); err != nil {
			return nil, errs.Wrap(errs.CodeDatabase, "failed to scan variant stats", err)
		}
		stats = append(stats, vs)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.CodeDatabase, "failed to aggregate variant stats", err)
	}
	return stats, nil
}

// ListEvents implements the Exporter interface. An experimentID of 0 lists
// every event of the account.
func (s *SQLStore) ListEvents(ctx context.Context, accountID, experimentID int64, r schema.DateRange) ([]schema.Event, error) {
	lo, hi := millisBounds(r)
	query := fmt.Sprintf(`SELECT id, account_id, experiment_id, variant_id, visitor_id, event_type, event_name, event_value, url, metadata, created_at
		FROM %s WHERE account_id = ? AND created_at BETWEEN ? AND ?`, eventsTable)
	args := []any{accountID, lo, hi}
	if experimentID > 0 {
		query += " AND experiment_id = ?"
		args = append(args, experimentID)
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, errs.Wrap(errs.CodeDatabase, "failed to list events", err)
	}
	defer func() { _ = rows.Close() }()

	events := []schema.Event{}
	for rows.Next() {
		var (
			e                   schema.Event
			expID, varID        sql.NullInt64
			typ                 string
			name, url, metadata sql.NullString
			value               sql.NullFloat64
			created             int64
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &expID, &varID, &e.VisitorID, &typ, &name, &value, &url, &metadata, &created); err != nil {
			return nil, errs.Wrap(errs.CodeDatabase, "failed to scan event", err)
		}
		e.ExperimentID = ptrInt64(expID)
		e.VariantID = ptrInt64(varID)
		e.EventType = schema.EventType(typ)
		e.EventName = name.String
		e.EventValue = ptrFloat64(value)
		e.URL = url.String
		if metadata.Valid && metadata.String != "" {
			e.Metadata = json.RawMessage(metadata.String)
		}
		e.CreatedAt = schema.FromMillis(created)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.CodeDatabase, "failed to list events", err)
	}
	return events, nil
}
