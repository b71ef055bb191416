package infra

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// SQLExecutor defines the contract the document store needs for executing SQL.
// *pgxpool.Pool satisfies it, as does SQLRunner.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

// SQLRunner logs every statement executed through the wrapped executor.
type SQLRunner struct {
	exec   SQLExecutor
	logger zerolog.Logger
}

func NewSQLRunner(exec SQLExecutor, logger zerolog.Logger) *SQLRunner {
	return &SQLRunner{exec: exec, logger: logger}
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	stmt := statementName(query)
	tag, err := r.exec.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Str("sql", stmt).Msg("sql exec failed")
		return tag, err
	}
	r.logger.Debug().Str("sql", stmt).Int64("rows", tag.RowsAffected()).Msg("sql exec")
	return tag, nil
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	stmt := statementName(query)
	r.logger.Debug().Str("sql", stmt).Msg("sql query_row")
	return loggingRow{row: r.exec.QueryRow(ctx, query, args...), logger: r.logger, stmt: stmt}
}

func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	stmt := statementName(query)
	rows, err := r.exec.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Str("sql", stmt).Msg("sql query failed")
		return nil, err
	}
	r.logger.Debug().Str("sql", stmt).Msg("sql query")
	return rows, nil
}

type loggingRow struct {
	row    pgx.Row
	logger zerolog.Logger
	stmt   string
}

func (l loggingRow) Scan(dest ...any) error {
	err := l.row.Scan(dest...)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		l.logger.Error().Err(err).Str("sql", l.stmt).Msg("sql scan failed")
	}
	return err
}

// statementName returns the first line of a statement, collapsed, for log fields.
func statementName(query string) string {
	trimmed := strings.TrimSpace(query)
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	trimmed = strings.Join(strings.Fields(trimmed), " ")
	if len(trimmed) > 80 {
		trimmed = trimmed[:80]
	}
	return trimmed
}

var _ SQLExecutor = (*SQLRunner)(nil)
