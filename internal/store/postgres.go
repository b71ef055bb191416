package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/leavend/refgen/internal/domain"
	"github.com/leavend/refgen/internal/infra"
)

// Postgres stores each collection as a JSONB table and filters with the
// containment operator.
type Postgres struct {
	cfg    infra.DBPoolConfig
	logger zerolog.Logger

	mu   sync.RWMutex
	pool *pgxpool.Pool
	db   infra.SQLExecutor
}

// NewPostgres returns an unopened Postgres store.
func NewPostgres(cfg infra.DBPoolConfig, logger zerolog.Logger) *Postgres {
	return &Postgres{cfg: cfg, logger: logger.With().Str("component", "store").Str("driver", "postgres").Logger()}
}

// Open connects the pool and creates the collection tables if missing.
// Calling Open on an open store is a no-op.
func (p *Postgres) Open(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		return nil
	}

	pool, err := infra.NewDBPool(ctx, p.cfg)
	if err != nil {
		return domain.StoreFailure("open", err)
	}
	runner := infra.NewSQLRunner(pool, p.logger)
	for _, c := range Collections {
		if err := ensurePostgresTable(ctx, runner, c); err != nil {
			pool.Close()
			return domain.StoreFailure("open", err)
		}
	}
	p.pool = pool
	p.db = runner
	p.logger.Info().Msg("store connected")
	return nil
}

func (p *Postgres) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool != nil {
		p.pool.Close()
	}
	p.pool = nil
	p.db = nil
	return nil
}

func (p *Postgres) conn() (infra.SQLExecutor, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.db == nil {
		return nil, ErrNotConnected
	}
	return p.db, nil
}

func ensurePostgresTable(ctx context.Context, db infra.SQLExecutor, c Collection) error {
	if err := validateCollection(c); err != nil {
		return err
	}
	table := pgx.Identifier{string(c)}.Sanitize()
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  seq BIGSERIAL PRIMARY KEY,
  id TEXT NOT NULL,
  doc JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (id)`, pgx.Identifier{string(c) + "_id_idx"}.Sanitize(), table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING GIN (doc jsonb_path_ops)`, pgx.Identifier{string(c) + "_doc_idx"}.Sanitize(), table),
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure table %s: %w", c, err)
		}
	}
	return nil
}

func (p *Postgres) Insert(ctx context.Context, c Collection, doc Document) (string, error) {
	db, err := p.conn()
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
	query := fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2::jsonb)`, pgx.Identifier{string(c)}.Sanitize())
	if _, err := db.Exec(ctx, query, id, string(data)); err != nil {
		return "", domain.StoreFailure("insert", err)
	}
	return id, nil
}

func (p *Postgres) Find(ctx context.Context, c Collection, f Filter) ([]Document, error) {
	db, err := p.conn()
	if err != nil {
		return nil, domain.StoreFailure("find", err)
	}
	filter, err := postgresFilter(c, f)
	if err != nil {
		return nil, domain.StoreFailure("find", err)
	}
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE doc @> $1::jsonb ORDER BY seq ASC`, pgx.Identifier{string(c)}.Sanitize())
	rows, err := db.Query(ctx, query, filter)
	if err != nil {
		return nil, domain.StoreFailure("find", err)
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, domain.StoreFailure("find", err)
		}
		doc, err := decodeDocument(raw)
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

func (p *Postgres) FindOne(ctx context.Context, c Collection, f Filter) (Document, error) {
	db, err := p.conn()
	if err != nil {
		return nil, domain.StoreFailure("find", err)
	}
	filter, err := postgresFilter(c, f)
	if err != nil {
		return nil, domain.StoreFailure("find", err)
	}
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE doc @> $1::jsonb ORDER BY seq ASC LIMIT 1`, pgx.Identifier{string(c)}.Sanitize())
	var raw []byte
	if err := db.QueryRow(ctx, query, filter).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.StoreFailure("find", err)
	}
	doc, err := decodeDocument(raw)
	if err != nil {
		return nil, domain.StoreFailure("find", err)
	}
	return doc, nil
}

func (p *Postgres) Update(ctx context.Context, c Collection, f Filter, patch Document) (int64, error) {
	db, err := p.conn()
	if err != nil {
		return 0, domain.StoreFailure("update", err)
	}
	filter, err := postgresFilter(c, f)
	if err != nil {
		return 0, domain.StoreFailure("update", err)
	}
	if err := validatePatch(patch); err != nil {
		return 0, domain.StoreFailure("update", err)
	}
	data, err := encodeJSON(patch)
	if err != nil {
		return 0, domain.StoreFailure("update", err)
	}
	query := fmt.Sprintf(`UPDATE %s SET doc = doc || $2::jsonb WHERE doc @> $1::jsonb`, pgx.Identifier{string(c)}.Sanitize())
	tag, err := db.Exec(ctx, query, filter, string(data))
	if err != nil {
		return 0, domain.StoreFailure("update", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) Remove(ctx context.Context, c Collection, f Filter) (int64, error) {
	db, err := p.conn()
	if err != nil {
		return 0, domain.StoreFailure("remove", err)
	}
	filter, err := postgresFilter(c, f)
	if err != nil {
		return 0, domain.StoreFailure("remove", err)
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE doc @> $1::jsonb`, pgx.Identifier{string(c)}.Sanitize())
	tag, err := db.Exec(ctx, query, filter)
	if err != nil {
		return 0, domain.StoreFailure("remove", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) Count(ctx context.Context, c Collection) (int64, error) {
	db, err := p.conn()
	if err != nil {
		return 0, domain.StoreFailure("count", err)
	}
	if err := validateCollection(c); err != nil {
		return 0, domain.StoreFailure("count", err)
	}
	var n int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, pgx.Identifier{string(c)}.Sanitize())
	if err := db.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, domain.StoreFailure("count", err)
	}
	return n, nil
}

// postgresFilter encodes f as the JSONB containment argument.
func postgresFilter(c Collection, f Filter) (string, error) {
	if err := checkQuery(c, f); err != nil {
		return "", err
	}
	if len(f) == 0 {
		return "{}", nil
	}
	data, err := encodeJSON(f)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

var _ Store = (*Postgres)(nil)
