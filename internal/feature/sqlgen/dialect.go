// Package sqlgen renders Feature Engine aggregation queries (spec §4.9,
// §6.3) across the four supported SQL dialects. It renders text only — it
// never opens a connection or executes anything; the Datasource Gateway
// does that against the rendered Query.
package sqlgen

import "fmt"

// Dialect identifies a target SQL rendering.
type Dialect string

const (
	Postgres   Dialect = "postgres"
	MySQL      Dialect = "mysql"
	SQLite     Dialect = "sqlite"
	ClickHouse Dialect = "clickhouse"
)

// ParseDialect validates a datasource-declared dialect string.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(s) {
	case Postgres, MySQL, SQLite, ClickHouse:
		return Dialect(s), nil
	default:
		return "", fmt.Errorf("sqlgen: unknown dialect %q", s)
	}
}

// quoteIdent quotes a bare identifier (entity/dimension/field/timestamp
// column name) per dialect, defending against embedding a column name that
// happens to be a reserved word.
func quoteIdent(dialect Dialect, name string) string {
	switch dialect {
	case MySQL:
		return "`" + name + "`"
	default:
		return `"` + name + `"`
	}
}

// placeholder renders the next bound-parameter marker and advances n.
func placeholder(dialect Dialect, n *int) string {
	switch dialect {
	case Postgres, ClickHouse:
		*n++
		return fmt.Sprintf("$%d", *n)
	default: // mysql, sqlite
		*n++
		return "?"
	}
}
