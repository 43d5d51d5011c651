package datastore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/huangsam/exprora/internal/contract"
	"github.com/huangsam/exprora/schema"
)

// SQLStore implements contract.Store on SQLite, MySQL or PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	backend schema.DatabaseBackend
	connStr string
}

var _ contract.Store = &SQLStore{} // Compile-time check

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// NewSQLStore opens the database and migrates it to the latest schema.
func NewSQLStore(ctx context.Context, backend schema.DatabaseBackend, connStr string) (*SQLStore, error) {
	db, err := openDB(ctx, backend, connStr)
	if err != nil {
		return nil, err
	}

	if _, err := applyMigrations(ctx, db, backend, connStr, -1); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate %s schema: %w", backend, err)
	}

	return &SQLStore{db: db, backend: backend, connStr: connStr}, nil
}

// Close implements the Store interface.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// q rewrites placeholders for the backend.
func (s *SQLStore) q(query string) string {
	return rebind(s.backend, query)
}

// insertID runs an insert and returns the generated id. PostgreSQL has no
// LastInsertId, so the query gets a RETURNING clause there.
func (s *SQLStore) insertID(ctx context.Context, db queryer, query string, args ...any) (int64, error) {
	if s.backend == schema.PostgreSQLBackend {
		var id int64
		if err := db.QueryRowContext(ctx, s.q(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetStatus implements the Store interface.
func (s *SQLStore) GetStatus(ctx context.Context) (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:    string(s.backend),
		Connected:  s.db != nil,
		TableSizes: make(map[string]int64),
	}
	if s.backend == schema.MySQLBackend {
		status.Database = mysqlDatabaseName(s.connStr)
	}
	if s.db == nil {
		return status, nil
	}
	if err := s.db.PingContext(ctx); err != nil {
		status.Connected = false
		return status, nil
	}

	status.SchemaVersion = schemaVersion(ctx, s.db)

	for _, table := range allTables {
		quotedTable := quoteTableName(table, s.backend)
		var count int64
		if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", quotedTable)).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	status.TotalAccounts = status.TableSizes[accountsTable]
	status.TotalExperiments = status.TableSizes[experimentsTable]
	status.TotalAssignments = status.TableSizes[assignmentsTable]
	status.TotalEvents = status.TableSizes[eventsTable]

	if status.TotalEvents > 0 {
		var oldest, last int64
		query := fmt.Sprintf("SELECT MIN(created_at), MAX(created_at) FROM %s", quoteTableName(eventsTable, s.backend))
		if err := s.db.QueryRowContext(ctx, query).Scan(&oldest, &last); err != nil {
			return status, fmt.Errorf("failed to get event time range: %w", err)
		}
		status.OldestEventTime = schema.FromMillis(oldest)
		status.LastEventTime = schema.FromMillis(last)
	}

	return status, nil
}
