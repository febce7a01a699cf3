package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

const schema = `CREATE TABLE IF NOT EXISTS jit_events (
	seq      BIGINT       NOT NULL,
	at       VARCHAR(40)  NOT NULL,
	kind     VARCHAR(32)  NOT NULL,
	portal   VARCHAR(255) NOT NULL,
	location VARCHAR(255) NOT NULL,
	unit     VARCHAR(64)  NOT NULL,
	detail   TEXT         NOT NULL
)`

// SQLSink appends events to a SQL database so a run can be inspected
// afterwards with plain SQL.
type SQLSink struct {
	db     *sql.DB
	driver string
	insert *sql.Stmt
}

// Open connects to dsn with one of the supported drivers and creates the
// event table when it is missing.
func Open(ctx context.Context, driver, dsn string) (*SQLSink, error) {
	switch driver {
	case DriverSQLite, DriverMySQL, DriverPostgres:
	default:
		return nil, fmt.Errorf("journal: unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// one connection keeps ":memory:" alive and writes ordered
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	insert, err := db.PrepareContext(ctx, rebind(driver,
		"INSERT INTO jit_events (seq, at, kind, portal, location, unit, detail) VALUES (?, ?, ?, ?, ?, ?, ?)"))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLSink{db: db, driver: driver, insert: insert}, nil
}

// OpenSQLite opens (or creates) the SQLite database at path. ":memory:"
// works.
func OpenSQLite(ctx context.Context, path string) (*SQLSink, error) {
	return Open(ctx, DriverSQLite, path)
}

// rebind turns ? placeholders into $n for postgres.
func rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (s *SQLSink) Driver() string { return s.driver }

func (s *SQLSink) Record(e Event) error {
	_, err := s.insert.Exec(e.Seq, e.Time.UTC().Format(time.RFC3339Nano), e.Kind, e.Portal, e.Location, e.Unit, e.Detail)
	return err
}

func (s *SQLSink) Close() error {
	if err := s.insert.Close(); err != nil {
		_ = s.db.Close()
		return err
	}
	return s.db.Close()
}

// Events reads events back in sequence order. An empty kind matches all.
func (s *SQLSink) Events(ctx context.Context, kind string) ([]Event, error) {
	query := "SELECT seq, at, kind, portal, location, unit, detail FROM jit_events"
	var args []interface{}
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY seq"

	rows, err := s.db.QueryContext(ctx, rebind(s.driver, query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var ts string
		if err := rows.Scan(&e.Seq, &ts, &e.Kind, &e.Portal, &e.Location, &e.Unit, &e.Detail); err != nil {
			return nil, err
		}
		if e.Time, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountByKind summarises the journal.
func (s *SQLSink) CountByKind(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT kind, COUNT(*) FROM jit_events GROUP BY kind")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, rows.Err()
}
