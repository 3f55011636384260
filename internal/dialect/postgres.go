package dialect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

type PostgresDialect struct{}

func (d *PostgresDialect) DriverName() string { return "postgres" }

func (d *PostgresDialect) DefaultPort() int { return 5432 }

func (d *PostgresDialect) DSN(c ConnConfig) string {
	sslmode := "disable"
	switch {
	case c.Encrypt && c.TrustServerCertificate:
		sslmode = "require"
	case c.Encrypt:
		sslmode = "verify-full"
	}
	q := url.Values{}
	q.Set("sslmode", sslmode)
	q.Set("connect_timeout", strconv.Itoa(c.Timeout()))

	u := &url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.portOr(d.DefaultPort()))),
		Path:     "/" + c.Database,
		RawQuery: q.Encode(),
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	return u.String()
}

func (d *PostgresDialect) GetTablesQuery(schema string) string {
	// use $1 placeholder
	return `SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = $1 AND TABLE_TYPE = 'BASE TABLE'`
}

func (d *PostgresDialect) GetColumnsQuery(schema string) string {
	// COLUMN_DEFAULT is selected in the EXTRA position; serial columns show up as nextval(...).
	return `SELECT
    c.table_name,
    c.column_name,
    c.data_type,
    c.udt_name,
    c.character_maximum_length,
    c.is_nullable,
    (SELECT 'PRI' FROM information_schema.table_constraints tc
     JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name
     WHERE tc.constraint_type = 'PRIMARY KEY'
     AND kcu.table_schema = c.table_schema AND kcu.table_name = c.table_name AND kcu.column_name = c.column_name LIMIT 1) AS COLUMN_KEY,
    CASE WHEN c.is_identity = 'YES' THEN 'identity' ELSE c.column_default END,
    (SELECT 'UNIQUE' FROM information_schema.table_constraints tc
     JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name
     WHERE tc.constraint_type = 'UNIQUE'
     AND kcu.table_schema = c.table_schema AND kcu.table_name = c.table_name AND kcu.column_name = c.column_name LIMIT 1) AS IS_UNIQUE,
    NULL AS COMMENT
FROM information_schema.columns c
WHERE c.table_schema = $1
ORDER BY c.table_name, c.ordinal_position`
}

func (d *PostgresDialect) GetForeignKeysQuery(schema string) string {
	return `SELECT kcu.table_name, kcu.constraint_name, kcu.column_name, ccu.table_name AS referenced_table_name, ccu.column_name AS referenced_column_name FROM information_schema.key_column_usage kcu JOIN information_schema.constraint_column_usage ccu ON kcu.constraint_name = ccu.constraint_name JOIN information_schema.table_constraints tc ON kcu.constraint_name = tc.constraint_name WHERE kcu.table_schema = $1 AND tc.constraint_type = 'FOREIGN KEY'`
}

func (d *PostgresDialect) GetSchemaName(input string) string {
	if input == "" {
		return "public"
	}
	return input
}

// SupportsExplicitKeyInsert is false: serial and BY DEFAULT identity columns take explicit values.
func (d *PostgresDialect) SupportsExplicitKeyInsert() bool { return false }

func (d *PostgresDialect) BeforeTable(ctx context.Context, tx *sql.Tx, tableName string) error {
	return nil
}

func (d *PostgresDialect) AfterTable(ctx context.Context, tx *sql.Tx, tableName string) error {
	return nil
}

// A failed statement aborts the whole Postgres transaction (SQLSTATE 25P02),
// so every row runs under its own savepoint.
const pgRowSavepoint = "records_row"

func (d *PostgresDialect) BeginRow(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, "SAVEPOINT "+pgRowSavepoint)
	return err
}

func (d *PostgresDialect) EndRow(ctx context.Context, tx *sql.Tx, failed bool) error {
	stmt := "RELEASE SAVEPOINT " + pgRowSavepoint
	if failed {
		stmt = "ROLLBACK TO SAVEPOINT " + pgRowSavepoint
	}
	_, err := tx.ExecContext(ctx, stmt)
	return err
}

func (d *PostgresDialect) PlaceholderFormat() sq.PlaceholderFormat { return sq.Dollar }

// InsertQuery appends ON CONFLICT DO NOTHING. A failed statement aborts a
// Postgres transaction, so duplicates are reported as zero affected rows
// instead of error 23505.
func (d *PostgresDialect) InsertQuery(table string, cols []string) string {
	return mustSQL(BuildInsert(table, cols, d.PlaceholderFormat()).Suffix("ON CONFLICT DO NOTHING"))
}

func (d *PostgresDialect) CountQuery(table string) string { return DefaultCountQuery(table) }

func (d *PostgresDialect) ProbeColumnsQuery(table string) string {
	return DefaultProbeColumnsQuery(table)
}

func (d *PostgresDialect) DeleteQuery(table string) string { return DefaultDeleteQuery(table) }

func (d *PostgresDialect) ResetIdentityQuery(table string) string { return "" }

func (d *PostgresDialect) DropTableQuery(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table)
}

func (d *PostgresDialect) DropViewQuery(view string) string {
	return fmt.Sprintf("DROP VIEW IF EXISTS %s", view)
}

func (d *PostgresDialect) IsDuplicateKey(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

func (d *PostgresDialect) NormalizeType(sqlType string) string {
	t := strings.ToLower(sqlType)
	switch t {
	case "int4", "int2":
		return "int"
	case "int8":
		return "bigint"
	case "float4":
		return "float"
	case "float8":
		return "double"
	case "bpchar":
		return "char"
	case "varchar":
		return "varchar"
	default:
		return t
	}
}
