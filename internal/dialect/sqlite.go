package dialect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"
)

// SQLiteDialect serves file-backed stores. Database is the file path.
type SQLiteDialect struct{}

func (d *SQLiteDialect) DriverName() string { return "sqlite3" }

func (d *SQLiteDialect) DefaultPort() int { return 0 }

func (d *SQLiteDialect) DSN(c ConnConfig) string {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", strconv.Itoa(c.Timeout()*1000))
	return "file:" + c.Database + "?" + q.Encode()
}

// The schema argument is consumed by a dummy clause like the Oracle queries do.

func (d *SQLiteDialect) GetTablesQuery(schema string) string {
	return `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND ? IS NOT NULL ORDER BY name`
}

func (d *SQLiteDialect) GetColumnsQuery(schema string) string {
	return `
SELECT
    m.name,
    p.name,
    p.type,
    p.type,
    NULL,
    CASE WHEN p."notnull" = 0 THEN 'YES' ELSE 'NO' END,
    CASE WHEN p.pk > 0 THEN 'PRI' ELSE '' END,
    '',
    CASE WHEN EXISTS (
        SELECT 1 FROM pragma_index_list(m.name) il
        WHERE il."unique" = 1 AND il.origin <> 'pk'
        AND (SELECT COUNT(*) FROM pragma_index_info(il.name)) = 1
        AND (SELECT ii.name FROM pragma_index_info(il.name) ii) = p.name
    ) THEN 'UNIQUE' ELSE '' END,
    NULL
FROM sqlite_master m
JOIN pragma_table_info(m.name) p
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' AND ? IS NOT NULL
ORDER BY m.name, p.cid`
}

func (d *SQLiteDialect) GetForeignKeysQuery(schema string) string {
	return `
SELECT
    m.name,
    'fk_' || m.name || '_' || f.id,
    f."from",
    f."table",
    f."to"
FROM sqlite_master m
JOIN pragma_foreign_key_list(m.name) f
WHERE m.type = 'table' AND ? IS NOT NULL`
}

func (d *SQLiteDialect) GetSchemaName(input string) string {
	if input == "" {
		return "main"
	}
	return input
}

// SupportsExplicitKeyInsert is false: INTEGER PRIMARY KEY takes explicit values.
func (d *SQLiteDialect) SupportsExplicitKeyInsert() bool { return false }

func (d *SQLiteDialect) BeforeTable(ctx context.Context, tx *sql.Tx, tableName string) error {
	return nil
}

func (d *SQLiteDialect) AfterTable(ctx context.Context, tx *sql.Tx, tableName string) error {
	return nil
}

func (d *SQLiteDialect) BeginRow(ctx context.Context, tx *sql.Tx) error { return nil }

func (d *SQLiteDialect) EndRow(ctx context.Context, tx *sql.Tx, failed bool) error { return nil }


func (d *SQLiteDialect) PlaceholderFormat() sq.PlaceholderFormat { return sq.Question }

func (d *SQLiteDialect) InsertQuery(table string, cols []string) string {
	return mustSQL(BuildInsert(table, cols, d.PlaceholderFormat()))
}

func (d *SQLiteDialect) CountQuery(table string) string { return DefaultCountQuery(table) }

func (d *SQLiteDialect) ProbeColumnsQuery(table string) string {
	return DefaultProbeColumnsQuery(table)
}

func (d *SQLiteDialect) DeleteQuery(table string) string { return DefaultDeleteQuery(table) }

func (d *SQLiteDialect) ResetIdentityQuery(table string) string { return "" }

func (d *SQLiteDialect) DropTableQuery(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", table)
}

func (d *SQLiteDialect) DropViewQuery(view string) string {
	return fmt.Sprintf("DROP VIEW IF EXISTS %s", view)
}

func (d *SQLiteDialect) IsDuplicateKey(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func (d *SQLiteDialect) NormalizeType(sqlType string) string {
	t := strings.ToLower(sqlType)
	switch {
	case strings.Contains(t, "int"):
		return "int"
	case strings.Contains(t, "char"), strings.Contains(t, "text"), strings.Contains(t, "clob"):
		return "varchar"
	case strings.Contains(t, "real"), strings.Contains(t, "floa"), strings.Contains(t, "doub"):
		return "float"
	default:
		return t
	}
}
