// Package sql is the SQL backend of the Datasource Gateway: it executes
// rendered sqlgen.Query statements against a configured database/sql
// connection, wrapped in circuit-breaking and retry, and normalizes driver
// errors into the engine's recoverable-error taxonomy (spec §7).
package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/corintai/corint/internal/corinterr"
	"github.com/corintai/corint/internal/corintlog"
	"github.com/corintai/corint/internal/datasource/resilience"
	"github.com/corintai/corint/internal/feature/sqlgen"
)

// Open establishes a PostgreSQL connection using dsn and verifies
// connectivity with a ping. The returned *sql.DB must be closed by the
// caller.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sql: dsn is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sql: ping: %w", err)
	}
	return db, nil
}

// Backend executes sqlgen.Query statements for aggregation features and
// sql-backed lists, one per datasource_id, each guarded by its own circuit
// breaker.
type Backend struct {
	db     *sql.DB
	cb     *resilience.CircuitBreaker
	retry  resilience.RetryConfig
	logger *corintlog.Logger
}

// New wraps db with the standard datasource resilience policy.
func New(datasourceID string, db *sql.DB, logger *corintlog.Logger) *Backend {
	return &Backend{
		db:     db,
		cb:     resilience.New(resilience.DatasourceCBConfig(datasourceID, logger)),
		retry:  resilience.DefaultRetryConfig(),
		logger: logger,
	}
}

// QueryScalar executes q and scans a single column from the first row into
// an any value — the shape every aggregation feature query needs (spec
// §4.9). Sql-backed lists go through QueryRows instead.
func (b *Backend) QueryScalar(ctx context.Context, q sqlgen.Query) (any, error) {
	var result any
	var queryErr error

	cbErr := b.cb.Execute(ctx, func() error {
		return resilience.Retry(ctx, b.retry, func() error {
			row := b.db.QueryRowContext(ctx, q.Text, q.Args...)
			var v any
			if err := row.Scan(&v); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					result, queryErr = nil, nil
					return nil
				}
				return err
			}
			result = v
			return nil
		})
	})

	if cbErr != nil {
		return nil, mapSQLError(cbErr)
	}
	return result, queryErr
}

// QueryRows executes q and returns every row as a map of column name to
// value — used by sql-backed lists whose entries are multi-column.
func (b *Backend) QueryRows(ctx context.Context, q sqlgen.Query) ([]map[string]any, error) {
	var rows []map[string]any

	cbErr := b.cb.Execute(ctx, func() error {
		return resilience.Retry(ctx, b.retry, func() error {
			r, err := b.db.QueryContext(ctx, q.Text, q.Args...)
			if err != nil {
				return err
			}
			defer r.Close()

			cols, err := r.Columns()
			if err != nil {
				return err
			}

			var collected []map[string]any
			for r.Next() {
				vals := make([]any, len(cols))
				ptrs := make([]any, len(cols))
				for i := range vals {
					ptrs[i] = &vals[i]
				}
				if err := r.Scan(ptrs...); err != nil {
					return err
				}
				row := make(map[string]any, len(cols))
				for i, c := range cols {
					row[c] = vals[i]
				}
				collected = append(collected, row)
			}
			if err := r.Err(); err != nil {
				return err
			}
			rows = collected
			return nil
		})
	})

	if cbErr != nil {
		return nil, mapSQLError(cbErr)
	}
	return rows, nil
}

func mapSQLError(err error) error {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return corinterr.Recoverable(corinterr.KindDatasourceUnavailable, "sql datasource circuit open", err)
	case errors.Is(err, context.DeadlineExceeded):
		return corinterr.Recoverable(corinterr.KindTimeout, "sql query deadline exceeded", err)
	default:
		return corinterr.Recoverable(corinterr.KindDatasourceUnavailable, "sql query failed", err)
	}
}
