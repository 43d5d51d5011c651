package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/huangsam/exprora/internal/contract"
	"github.com/huangsam/exprora/schema"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// Table names, listed parents first.
const (
	accountsTable    = "exprora_accounts"
	experimentsTable = "exprora_experiments"
	variantsTable    = "exprora_variants"
	assignmentsTable = "exprora_assignments"
	eventsTable      = "exprora_events"
	visitorsTable    = "exprora_visitors"
)

// allTables is the drop order for ClearStore: children before parents.
var allTables = []string{visitorsTable, eventsTable, assignmentsTable, variantsTable, experimentsTable, accountsTable}

var tableNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// validateTableName validates that the table name is a safe SQL identifier.
func validateTableName(name string) error {
	if name == "" {
		return fmt.Errorf("table name cannot be empty")
	}
	if !tableNameRe.MatchString(name) {
		return fmt.Errorf("invalid table name: %s (must match pattern ^[a-zA-Z_][a-zA-Z0-9_]*$)", name)
	}
	return nil
}

// quoteTableName returns the properly quoted table name for the given backend.
func quoteTableName(name string, backend schema.DatabaseBackend) string {
	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf("`%s`", name)
	default: // SQLite and PostgreSQL
		return fmt.Sprintf("\"%s\"", name)
	}
}

// driverName maps a backend to its database/sql driver.
func driverName(backend schema.DatabaseBackend) (string, error) {
	switch backend {
	case schema.SQLiteBackend:
		return "sqlite", nil
	case schema.MySQLBackend:
		return "mysql", nil
	case schema.PostgreSQLBackend:
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported backend: %s. Must be sqlite, mysql, postgresql, or memory", backend)
	}
}

// openDB opens and pings a database for the backend.
func openDB(ctx context.Context, backend schema.DatabaseBackend, connStr string) (*sql.DB, error) {
	name, err := driverName(backend)
	if err != nil {
		return nil, err
	}

	dsn := connStr
	switch backend {
	case schema.SQLiteBackend:
		if dsn == "" {
			dsn = contract.GetDBFilePath()
		}
	case schema.MySQLBackend:
		// connStr should be:
		// user:password@tcp(host:port)/dbname
		dsn, err = mysqlDSN(connStr)
		if err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", backend, err)
	}
	if backend == schema.SQLiteBackend {
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		var connDetail string
		switch backend {
		case schema.MySQLBackend:
			connDetail = "Check that MySQL is running and the connection string is correct. Ensure user/password are valid."
		case schema.PostgreSQLBackend:
			connDetail = "Check that PostgreSQL is running and the connection string is correct. Ensure user/password are valid."
		default:
			connDetail = fmt.Sprintf("Ensure the directory of %q is writable.", dsn)
		}
		return nil, fmt.Errorf("failed to connect to %s database: %w. %s", backend, err, connDetail)
	}
	return db, nil
}

// mysqlDSN enables multi statements, which migration files rely on.
func mysqlDSN(connStr string) (string, error) {
	cfg, err := mysql.ParseDSN(connStr)
	if err != nil {
		return "", fmt.Errorf("invalid MySQL connection string: %w. Check connection format: user:password@tcp(host:port)/dbname", err)
	}
	cfg.MultiStatements = true
	return cfg.FormatDSN(), nil
}

// mysqlDatabaseName returns the schema name from a MySQL DSN, or "".
func mysqlDatabaseName(connStr string) string {
	cfg, err := mysql.ParseDSN(connStr)
	if err != nil {
		return ""
	}
	return cfg.DBName
}

// rebind rewrites "?" placeholders to "$n" for PostgreSQL.
func rebind(backend schema.DatabaseBackend, query string) string {
	if backend != schema.PostgreSQLBackend {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// insertIgnoreAssignment returns the insert that leaves an existing
// (experiment_id, visitor_id) row untouched.
func insertIgnoreAssignment(backend schema.DatabaseBackend) string {
	cols := "(account_id, experiment_id, variant_id, visitor_id, assigned_at) VALUES (?, ?, ?, ?, ?)"
	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf("INSERT IGNORE INTO %s %s", assignmentsTable, cols)
	default: // SQLite and PostgreSQL
		return rebind(backend, fmt.Sprintf("INSERT INTO %s %s ON CONFLICT (experiment_id, visitor_id) DO NOTHING", assignmentsTable, cols))
	}
}

// upsertVisitor returns the visitor upsert that keeps first_seen_at.
func upsertVisitor(backend schema.DatabaseBackend) string {
	cols := "(account_id, visitor_id, session_id, user_agent, ip_address, first_seen_at, last_seen_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`INSERT INTO %s %s AS new
			ON DUPLICATE KEY UPDATE session_id = COALESCE(new.session_id, %s.session_id), last_seen_at = new.last_seen_at`, visitorsTable, cols, visitorsTable)
	default: // SQLite and PostgreSQL
		return rebind(backend, fmt.Sprintf(`INSERT INTO %s %s
			ON CONFLICT (account_id, visitor_id) DO UPDATE SET session_id = COALESCE(EXCLUDED.session_id, %s.session_id), last_seen_at = EXCLUDED.last_seen_at`, visitorsTable, cols, visitorsTable))
	}
}

// nullString maps "" to NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullBytes maps empty JSON to NULL.
func nullBytes(b []byte) sql.NullString {
	return sql.NullString{String: string(b), Valid: len(b) > 0}
}

// nullInt64 maps an optional value.
func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// nullFloat64 maps an optional value.
func nullFloat64(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// ptrInt64 reverses nullInt64.
func ptrInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

// ptrFloat64 reverses nullFloat64.
func ptrFloat64(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
