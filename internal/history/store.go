// Package history persists a record of every executed transform in SQLite,
// or in PostgreSQL when opened with a postgres:// URL.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/RowanDark/cipherlab/internal/redact"
)

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New("history entry not found")

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// Entry is one executed transform. Params are stored with key material masked.
type Entry struct {
	ID         string         `json:"id"`
	Operation  string         `json:"operation"`
	Type       string         `json:"type"`
	Params     map[string]any `json:"params,omitempty"`
	Input      string         `json:"input"`
	Output     string         `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorKind  string         `json:"error_kind,omitempty"`
	DurationMS float64        `json:"duration_ms"`
	RequestID  string         `json:"request_id,omitempty"`
	Subject    string         `json:"subject,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter narrows List results. A zero Limit means the default page size.
type Filter struct {
	Operation  string
	ErrorsOnly bool
	Limit      int
}

// Store is a SQL-backed history log.
type Store struct {
	db         *sql.DB
	postgres   bool
	insertStmt *sql.Stmt
}

// IsPostgresDSN reports whether dsn selects the PostgreSQL backend.
func IsPostgresDSN(dsn string) bool {
	dsn = strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open creates or opens the history database. A postgres:// URL connects to
// PostgreSQL; anything else is a SQLite file path, and ":memory:" keeps
// everything in process.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history path is required")
	}
	if IsPostgresDSN(path) {
		return openPostgres(path)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return newStore(db, false)
}

func openPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return newStore(db, true)
}

func newStore(db *sql.DB, postgres bool) (*Store, error) {
	s := &Store{db: db, postgres: postgres}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	stmt, err := db.Prepare(s.bind(`
		INSERT INTO transforms (
			id, operation, op_type, params, input, output,
			error, error_kind, duration_ms, request_id, subject, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare statement: %w", err)
	}
	s.insertStmt = stmt
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transforms (
		id TEXT PRIMARY KEY,
		operation TEXT NOT NULL,
		op_type TEXT NOT NULL,
		params TEXT, -- JSON, redacted
		input TEXT NOT NULL,
		output TEXT,
		error TEXT,
		error_kind TEXT,
		duration_ms DOUBLE PRECISION NOT NULL,
		request_id TEXT,
		subject TEXT,
		created_at BIGINT NOT NULL -- unix nanoseconds
	);

	CREATE INDEX IF NOT EXISTS idx_transforms_operation ON transforms(operation);
	CREATE INDEX IF NOT EXISTS idx_transforms_created ON transforms(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Record stores entry and returns it with ID and CreatedAt filled in.
func (s *Store) Record(ctx context.Context, entry Entry) (Entry, error) {
	if strings.TrimSpace(entry.Operation) == "" {
		return Entry{}, errors.New("history entry requires an operation")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	if entry.ID == "" {
		entry.ID = ulid.MustNew(ulid.Timestamp(entry.CreatedAt), ulid.DefaultEntropy()).String()
	}
	entry.Params = redact.Map(entry.Params)

	var params sql.NullString
	if len(entry.Params) > 0 {
		data, err := json.Marshal(entry.Params)
		if err != nil {
			return Entry{}, fmt.Errorf("marshal params: %w", err)
		}
		params = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.insertStmt.ExecContext(ctx,
		entry.ID, entry.Operation, entry.Type, params, entry.Input, entry.Output,
		entry.Error, entry.ErrorKind, entry.DurationMS, entry.RequestID, entry.Subject,
		entry.CreatedAt.UnixNano(),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert history entry: %w", err)
	}
	return entry, nil
}

const selectColumns = `id, operation, op_type, params, input, output, error, error_kind, duration_ms, request_id, subject, created_at`

// List returns entries newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Entry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var (
		clauses []string
		args    []any
	)
	if op := strings.TrimSpace(filter.Operation); op != "" {
		clauses = append(clauses, "operation = ?")
		args = append(args, op)
	}
	if filter.ErrorsOnly {
		clauses = append(clauses, "error <> ''")
	}
	query := "SELECT " + selectColumns + " FROM transforms"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// Get returns the entry with id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, s.bind("SELECT "+selectColumns+" FROM transforms WHERE id = ?"), id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return entry, err
}

// Purge deletes entries created before the cutoff and reports how many went.
func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.bind("DELETE FROM transforms WHERE created_at < ?"), before.UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purge history: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if s.insertStmt != nil {
		_ = s.insertStmt.Close()
	}
	return s.db.Close()
}

// bind rewrites ? placeholders to $1, $2, ... for PostgreSQL. Queries here
// never contain a literal question mark.
func (s *Store) bind(query string) string {
	if !s.postgres {
		return query
	}
	return rebind(query)
}

func rebind(query string) string {
	var (
		sb strings.Builder
		n  int
	)
	sb.Grow(len(query) + 8)
	for _, r := range query {
		if r != '?' {
			sb.WriteRune(r)
			continue
		}
		n++
		fmt.Fprintf(&sb, "$%d", n)
	}
	return sb.String()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		entry     Entry
		params    sql.NullString
		output    sql.NullString
		errText   sql.NullString
		errKind   sql.NullString
		requestID sql.NullString
		subject   sql.NullString
		created   int64
	)
	err := row.Scan(&entry.ID, &entry.Operation, &entry.Type, &params, &entry.Input, &output,
		&errText, &errKind, &entry.DurationMS, &requestID, &subject, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scan history entry: %w", err)
	}
	if params.Valid && params.String != "" {
		if err := json.Unmarshal([]byte(params.String), &entry.Params); err != nil {
			return Entry{}, fmt.Errorf("unmarshal params: %w", err)
		}
	}
	entry.Output = output.String
	entry.Error = errText.String
	entry.ErrorKind = errKind.String
	entry.RequestID = requestID.String
	entry.Subject = subject.String
	entry.CreatedAt = time.Unix(0, created).UTC()
	return entry, nil
}
