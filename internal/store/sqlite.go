package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/leavend/refgen/internal/domain"
)

// SQLite stores each collection as a table of JSON text documents. It suits
// single-node and local deployments.
type SQLite struct {
	path   string
	logger zerolog.Logger

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLite returns an unopened SQLite store backed by the file at path.
func NewSQLite(path string, logger zerolog.Logger) *SQLite {
	return &SQLite{path: path, logger: logger.With().Str("component", "store").Str("driver", "sqlite").Logger()}
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (s *SQLite) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", sqliteDSN(s.path))
	if err != nil {
		return domain.StoreFailure("open", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return domain.StoreFailure("open", err)
	}
	for _, c := range Collections {
		if err := ensureSQLiteTable(ctx, db, c); err != nil {
			_ = db.Close()
			return domain.StoreFailure("open", err)
		}
	}
	s.db = db
	s.logger.Info().Str("path", s.path).Msg("store connected")
	return nil
}

func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLite) conn() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrNotConnected
	}
	return s.db, nil
}

func ensureSQLiteTable(ctx context.Context, db *sql.DB, c Collection) error {
	if err := validateCollection(c); err != nil {
		return err
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL,
  doc TEXT NOT NULL,
  created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, string(c)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q (id)`, string(c)+"_id_idx", string(c)),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure table %s: %w", c, err)
		}
	}
	return nil
}

// sqliteWhere compiles f into a WHERE clause over json_extract. JSON paths are
// bound as parameters, never spliced into the statement.
func sqliteWhere(f Filter) (string, []any) {
	if len(f) == 0 {
		return "1 = 1", nil
	}
	var (
		clauses []string
		args    []any
	)
	for _, key := range sortedKeys(f) {
		path := "$." + key
		value := f[key]
		if value == nil {
			clauses = append(clauses, "json_type(doc, ?) = 'null'")
			args = append(args, path)
			continue
		}
		clauses = append(clauses, "json_extract(doc, ?) = ?")
		args = append(args, path, value)
	}
	return strings.Join(clauses, " AND "), args
}

func (s *SQLite) Insert(ctx context.Context, c Collection, doc Document) (string, error) {
	db, err := s.conn()
	if err != nil {
		return "", domain.StoreFailure("insert", err)
	}
	if err := validateCollection(c); err != nil {
		return "", domain.StoreFailure("insert", err)
	}
	id, err := documentID(doc)
	if err != nil {
		return "", domain.StoreFailure("insert", err)
	}
	data, err := encodeJSON(doc)
	if err != nil {
		return "", domain.StoreFailure("insert", err)
	}
	query := fmt.Sprintf(`INSERT INTO %q (id, doc) VALUES (?, ?)`, string(c))
	if _, err := db.ExecContext(ctx, query, id, string(data)); err != nil {
		return "", domain.StoreFailure("insert", err)
	}
	return id, nil
}

func (s *SQLite) Find(ctx context.Context, c Collection, f Filter) ([]Document, error) {
	db, err := s.conn()
	if err != nil {
		return nil, domain.StoreFailure("find", err)
	}
	if err := checkQuery(c, f); err != nil {
		return nil, domain.StoreFailure("find", err)
	}
	where, args := sqliteWhere(f)
	query := fmt.Sprintf(`SELECT doc FROM %q WHERE %s ORDER BY seq ASC`, string(c), where)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.StoreFailure("find", err)
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, domain.StoreFailure("find", err)
		}
		doc, err := decodeDocument([]byte(raw))
		if err != nil {
			return nil, domain.StoreFailure("find", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreFailure("find", err)
	}
	return out, nil
}

func (s *SQLite) FindOne(ctx context.Context, c Collection, f Filter) (Document, error) {
	db, err := s.conn()
	if err != nil {
		return nil, domain.StoreFailure("find", err)
	}
	if err := checkQuery(c, f); err != nil {
		return nil, domain.StoreFailure("find", err)
	}
	where, args := sqliteWhere(f)
	query := fmt.Sprintf(`SELECT doc FROM %q WHERE %s ORDER BY seq ASC LIMIT 1`, string(c), where)
	var raw string
	if err := db.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.StoreFailure("find", err)
	}
	doc, err := decodeDocument([]byte(raw))
	if err != nil {
		return nil, domain.StoreFailure("find", err)
	}
	return doc, nil
}

func (s *SQLite) Update(ctx context.Context, c Collection, f Filter, patch Document) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, domain.StoreFailure("update", err)
	}
	if err := checkQuery(c, f); err != nil {
		return 0, domain.StoreFailure("update", err)
	}
	if err := validatePatch(patch); err != nil {
		return 0, domain.StoreFailure("update", err)
	}
	data, err := encodeJSON(patch)
	if err != nil {
		return 0, domain.StoreFailure("update", err)
	}
	where, args := sqliteWhere(f)
	query := fmt.Sprintf(`UPDATE %q SET doc = json_patch(doc, ?) WHERE %s`, string(c), where)
	res, err := db.ExecContext(ctx, query, append([]any{string(data)}, args...)...)
	if err != nil {
		return 0, domain.StoreFailure("update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, domain.StoreFailure("update", err)
	}
	return n, nil
}

func (s *SQLite) Remove(ctx context.Context, c Collection, f Filter) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, domain.StoreFailure("remove", err)
	}
	if err := checkQuery(c, f); err != nil {
		return 0, domain.StoreFailure("remove", err)
	}
	where, args := sqliteWhere(f)
	res, err := db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q WHERE %s`, string(c), where), args...)
	if err != nil {
		return 0, domain.StoreFailure("remove", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, domain.StoreFailure("remove", err)
	}
	return n, nil
}

func (s *SQLite) Count(ctx context.Context, c Collection) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, domain.StoreFailure("count", err)
	}
	if err := validateCollection(c); err != nil {
		return 0, domain.StoreFailure("count", err)
	}
	var n int64
	if err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %q`, string(c))).Scan(&n); err != nil {
		return 0, domain.StoreFailure("count", err)
	}
	return n, nil
}

var _ Store = (*SQLite)(nil)
