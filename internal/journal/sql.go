package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/wodesk/internal/config"
	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
)

type dialect struct {
	driver   string
	schema   string
	numbered bool // $1, $2, ... placeholders instead of ?
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS journal (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	work_order_id TEXT NOT NULL,
	entry_type TEXT NOT NULL,
	recorded_at INTEGER NOT NULL,
	payload BLOB NOT NULL,
	metadata TEXT
);
CREATE INDEX IF NOT EXISTS idx_journal_work_order ON journal(work_order_id);
CREATE INDEX IF NOT EXISTS idx_journal_recorded_at ON journal(recorded_at);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS journal (
	id BIGSERIAL PRIMARY KEY,
	work_order_id TEXT NOT NULL,
	entry_type TEXT NOT NULL,
	recorded_at BIGINT NOT NULL,
	payload BYTEA NOT NULL,
	metadata TEXT
);
CREATE INDEX IF NOT EXISTS idx_journal_work_order ON journal(work_order_id);
CREATE INDEX IF NOT EXISTS idx_journal_recorded_at ON journal(recorded_at);
`

var (
	sqliteDialect   = dialect{driver: "sqlite", schema: sqliteSchema}
	postgresDialect = dialect{driver: "pgx", schema: postgresSchema, numbered: true}
)

// bind rewrites ? placeholders for dialects that number them.
func (d dialect) bind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
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

// SQLStore implements Store on database/sql, backed by SQLite or Postgres.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	mu      sync.RWMutex
	now     func() time.Time
}

// Open returns the Store selected by cfg. The "none" driver yields a NopStore.
func Open(ctx context.Context, cfg config.JournalConfig) (Store, error) {
	switch cfg.Driver {
	case config.JournalDriverSQLite:
		return NewSQLiteStore(ctx, cfg.DSN)
	case config.JournalDriverPostgres:
		return NewPostgresStore(ctx, cfg.DSN)
	case config.JournalDriverNone:
		return NopStore{}, nil
	default:
		return nil, errors.ConfigError("unsupported journal driver").
			WithContext("driver", cfg.Driver).Build()
	}
}

// NewSQLiteStore opens a SQLite journal.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sql.Open(sqliteDialect.driver, path)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryJournal, "open sqlite journal").
			WithContext("path", path).Build()
	}
	// Every pooled connection to ":memory:" would see its own empty database.
	db.SetMaxOpenConns(1)
	return newSQLStore(ctx, db, sqliteDialect)
}

// NewPostgresStore opens a Postgres journal through the pgx database/sql driver.
func NewPostgresStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryJournal, "open postgres journal").Build()
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.WrapError(err, errors.CategoryJournal, "ping postgres journal").
			WithRetry(errors.RetryBackoff).Build()
	}
	return newSQLStore(ctx, db, postgresDialect)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: d, now: time.Now}
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, errors.WrapError(err, errors.CategoryJournal, "initialize journal schema").
			WithContext("driver", d.driver).Build()
	}
	return s, nil
}

// Append adds a new entry to the journal.
func (s *SQLStore) Append(ctx context.Context, workOrderID string, typ EntryType, payload []byte, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var metadataJSON []byte
	if len(metadata) > 0 {
		var err error
		metadataJSON, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}
	if payload == nil {
		payload = []byte{}
	}

	_, err := s.db.ExecContext(ctx,
		s.dialect.bind("INSERT INTO journal (work_order_id, entry_type, recorded_at, payload, metadata) VALUES (?, ?, ?, ?, ?)"),
		workOrderID, string(typ), s.now().UnixMilli(), payload, string(metadataJSON),
	)
	if err != nil {
		return errors.WrapError(err, errors.CategoryJournal, "append journal entry").
			WithContext("work_order_id", workOrderID).
			WithContext("entry_type", string(typ)).Build()
	}
	return nil
}

// ByWorkOrder returns all entries recorded for one work order.
func (s *SQLStore) ByWorkOrder(ctx context.Context, workOrderID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		s.dialect.bind("SELECT id, work_order_id, entry_type, recorded_at, payload, metadata FROM journal WHERE work_order_id = ? ORDER BY id"),
		workOrderID,
	)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryJournal, "query journal").Build()
	}
	defer func() { _ = rows.Close() }()

	return scanEntries(rows)
}

// Range returns entries recorded within a time range.
func (s *SQLStore) Range(ctx context.Context, start, end time.Time) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		s.dialect.bind("SELECT id, work_order_id, entry_type, recorded_at, payload, metadata FROM journal WHERE recorded_at >= ? AND recorded_at <= ? ORDER BY id"),
		start.UnixMilli(), end.UnixMilli(),
	)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryJournal, "query journal").Build()
	}
	defer func() { _ = rows.Close() }()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			e            Entry
			typ          string
			recordedAt   int64
			metadataJSON sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.WorkOrderID, &typ, &recordedAt, &e.Payload, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Type = EntryType(typ)
		e.Timestamp = time.UnixMilli(recordedAt).UTC()
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal journal metadata: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal rows: %w", err)
	}
	return entries, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
