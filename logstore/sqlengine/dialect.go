package sqlengine

import (
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/xef5000/UltimateLogger/logstore"
)

// Dialect selects the SQL flavor of the storage backend.
type Dialect string

const (
	// DialectSQLite is the embedded, file-backed backend.
	DialectSQLite Dialect = "sqlite3"

	// DialectPostgres is the networked backend.
	DialectPostgres Dialect = "postgres"
)

// ParseDialect maps a configured database type to a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch s {
	case "sqlite", "sqlite3", "SQLITE":
		return DialectSQLite, nil
	case "postgres", "postgresql", "POSTGRES", "POSTGRESQL":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("%w: %q", logstore.ErrUnsupportedDialect, s)
	}
}

// dialect holds everything that differs between the backends: DDL, payload field
// extraction, substring search and how generated ids come back from an insert.
type dialect struct {
	name            Dialect
	returningID     bool
	containsFunc    string
	createTableStmt string
}

var dialects = map[Dialect]dialect{
	DialectSQLite: {
		name:         DialectSQLite,
		returningID:  false,
		containsFunc: "instr",
		createTableStmt: `CREATE TABLE IF NOT EXISTS %[1]s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	log_type VARCHAR(255) NOT NULL,
	timestamp BIGINT NOT NULL,
	is_archived BOOLEAN NOT NULL DEFAULT 0,
	expires_at BIGINT NULL,
	data TEXT NOT NULL
)`,
	},
	DialectPostgres: {
		name:         DialectPostgres,
		returningID:  true,
		containsFunc: "strpos",
		createTableStmt: `CREATE TABLE IF NOT EXISTS %[1]s (
	id BIGSERIAL PRIMARY KEY,
	log_type VARCHAR(255) NOT NULL,
	timestamp BIGINT NOT NULL,
	is_archived BOOLEAN NOT NULL DEFAULT FALSE,
	expires_at BIGINT NULL,
	data JSONB NOT NULL
)`,
	},
}

func lookupDialect(d Dialect) (dialect, error) {
	resolved, ok := dialects[d]
	if !ok {
		return dialect{}, fmt.Errorf("%w: %q", logstore.ErrUnsupportedDialect, d)
	}

	return resolved, nil
}

func (d dialect) builder() goqu.DialectWrapper {
	return goqu.Dialect(string(d.name))
}

// schemaStatements returns the idempotent DDL for the logs table and its indexes.
func (d dialect) schemaStatements(table string) []string {
	return []string{
		fmt.Sprintf(d.createTableStmt, table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%[1]s_log_type ON %[1]s (log_type)", table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%[1]s_expires_at ON %[1]s (expires_at)", table),
	}
}

// textField extracts a payload field as the text a Value renders to.
// Missing keys yield NULL, so every comparison on them is false.
func (d dialect) textField(table, key string) exp.LiteralExpression {
	if d.name == DialectPostgres {
		return goqu.L(colData+" ->> ?", key)
	}

	return goqu.L(
		"(SELECT CASE je.type WHEN 'true' THEN 'true' WHEN 'false' THEN 'false' ELSE CAST(je.value AS TEXT) END"+
			" FROM json_each(?) AS je WHERE je.key = ?)",
		goqu.I(table+"."+colData), key,
	)
}

// Text payload values count as numbers when they hold decimal notation, the same rule
// logstore.ParseNumber applies in memory.
const (
	postgresDecimalPattern = `^[+-]?([0-9]+[.]?[0-9]*|[.][0-9]+)([eE][+-]?[0-9]+)?$`
	trimmedWhitespace      = " \t\n\r"
)

// sqliteDecimalGuard approximates postgresDecimalPattern with GLOB, which has no optional parts.
// {t} stands for the trimmed text value.
const sqliteDecimalGuard = `{t} GLOB '*[0-9]*'
	AND {t} NOT GLOB '*[^0-9.eE+-]*'
	AND {t} NOT GLOB '*[^eE][+-]*'
	AND {t} NOT GLOB '*.*.*'
	AND lower({t}) NOT GLOB '*e*e*'
	AND lower({t}) NOT GLOB '*e*.*'
	AND lower({t}) NOT GLOB 'e*'
	AND lower({t}) NOT GLOB '[+-]e*'
	AND lower({t}) NOT GLOB '.e*'
	AND lower({t}) NOT GLOB '[+-].e*'
	AND lower({t}) NOT GLOB '*e'
	AND lower({t}) NOT GLOB '*e[+-]'`

// numberField extracts a payload field as a number: JSON numbers as they are, strings when
// they hold a decimal number. Everything else is NULL, so ordering comparisons on it are false.
func (d dialect) numberField(table, key string) exp.LiteralExpression {
	if d.name == DialectPostgres {
		return goqu.L(
			"CASE jsonb_typeof("+colData+" -> ?)"+
				" WHEN 'number' THEN ("+colData+" ->> ?)::numeric"+
				" WHEN 'string' THEN CASE WHEN btrim("+colData+" ->> ?, ?) ~ ?"+
				" THEN btrim("+colData+" ->> ?, ?)::numeric END END",
			key, key, key, trimmedWhitespace, postgresDecimalPattern, key, trimmedWhitespace,
		)
	}

	trimmed := "trim(je.value, ' ' || char(9) || char(10) || char(13))"
	guard := strings.ReplaceAll(sqliteDecimalGuard, "{t}", trimmed)

	return goqu.L(
		"(SELECT CASE WHEN je.type IN ('integer', 'real') THEN je.value"+
			" WHEN je.type = 'text' AND "+guard+" THEN CAST("+trimmed+" AS REAL) END"+
			" FROM json_each(?) AS je WHERE je.key = ?)",
		goqu.I(table+"."+colData), key,
	)
}

func (d dialect) contains(field exp.Expression, value string) exp.Expression {
	return goqu.L(d.containsFunc+"(?, ?) > 0", field, value)
}
