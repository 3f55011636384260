package dialect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	go_ora "github.com/sijms/go-ora/v2"
	"github.com/sijms/go-ora/v2/network"
)

const oraUniqueConstraint = 1 // ORA-00001

type OracleDialect struct{}

func (d *OracleDialect) DriverName() string { return "oracle" }

func (d *OracleDialect) DefaultPort() int { return 1521 }

// DSN builds an oracle:// URL; Database is the service name.
func (d *OracleDialect) DSN(c ConnConfig) string {
	opts := map[string]string{
		"CONNECTION TIMEOUT": strconv.Itoa(c.Timeout()),
	}
	if c.Encrypt {
		opts["SSL"] = "true"
		if c.TrustServerCertificate {
			opts["SSL VERIFY"] = "false"
		}
	}
	return go_ora.BuildUrl(c.Host, c.portOr(d.DefaultPort()), c.Database, c.User, c.Password, opts)
}

func (d *OracleDialect) GetTablesQuery(schema string) string {
	// USER_TABLES lists tables owned by the current user.
	// We include a dummy clause to consume the schema argument if passed by standard callers.
	return `SELECT TABLE_NAME FROM USER_TABLES WHERE :1 IS NOT NULL`
}

func (d *OracleDialect) GetColumnsQuery(schema string) string {
	// We join with USER_CONS_COLUMNS to identify Primary Keys (P) and Unique (U) constraints.
	return `
SELECT
    t.TABLE_NAME,
    t.COLUMN_NAME,
    CASE
        WHEN t.DATA_TYPE = 'NUMBER' AND COALESCE(t.DATA_SCALE, 0) > 0 THEN 'DECIMAL'
        WHEN t.DATA_TYPE = 'NUMBER' THEN 'INTEGER'
        ELSE t.DATA_TYPE
    END,
    t.DATA_TYPE || CASE WHEN t.DATA_LENGTH IS NOT NULL THEN '(' || t.DATA_LENGTH || ')' ELSE '' END,
    COALESCE(t.DATA_PRECISION, t.DATA_LENGTH),
    t.NULLABLE,
    CASE WHEN p.CONSTRAINT_NAME IS NOT NULL THEN 'PRI' ELSE '' END,
    CASE WHEN t.IDENTITY_COLUMN = 'YES' THEN 'auto_increment' ELSE '' END,
    CASE WHEN u.CONSTRAINT_NAME IS NOT NULL THEN 'UNIQUE' ELSE '' END,
    c.COMMENTS
FROM USER_TAB_COLUMNS t
LEFT JOIN (
    SELECT cc.TABLE_NAME, cc.COLUMN_NAME, cc.CONSTRAINT_NAME
    FROM USER_CONS_COLUMNS cc
    JOIN USER_CONSTRAINTS uc ON cc.CONSTRAINT_NAME = uc.CONSTRAINT_NAME
    WHERE uc.CONSTRAINT_TYPE = 'P'
) p ON t.TABLE_NAME = p.TABLE_NAME AND t.COLUMN_NAME = p.COLUMN_NAME
LEFT JOIN (
    SELECT cc.TABLE_NAME, cc.COLUMN_NAME, cc.CONSTRAINT_NAME
    FROM USER_CONS_COLUMNS cc
    JOIN USER_CONSTRAINTS uc ON cc.CONSTRAINT_NAME = uc.CONSTRAINT_NAME
    WHERE uc.CONSTRAINT_TYPE = 'U'
) u ON t.TABLE_NAME = u.TABLE_NAME AND t.COLUMN_NAME = u.COLUMN_NAME
LEFT JOIN USER_COL_COMMENTS c ON t.TABLE_NAME = c.TABLE_NAME AND t.COLUMN_NAME = c.COLUMN_NAME
WHERE :1 IS NOT NULL
ORDER BY t.TABLE_NAME, t.COLUMN_ID`
}

func (d *OracleDialect) GetForeignKeysQuery(schema string) string {
	return `
SELECT
    c.TABLE_NAME,
    c.CONSTRAINT_NAME,
    cc.COLUMN_NAME,
    r.TABLE_NAME AS REF_TABLE,
    rcc.COLUMN_NAME AS REF_COLUMN
FROM USER_CONSTRAINTS c
JOIN USER_CONS_COLUMNS cc
    ON c.CONSTRAINT_NAME = cc.CONSTRAINT_NAME
    AND c.OWNER = cc.OWNER
JOIN USER_CONSTRAINTS r
    ON c.R_CONSTRAINT_NAME = r.CONSTRAINT_NAME
    AND c.R_OWNER = r.OWNER
JOIN USER_CONS_COLUMNS rcc
    ON r.CONSTRAINT_NAME = rcc.CONSTRAINT_NAME
    AND r.OWNER = rcc.OWNER
    AND cc.POSITION = rcc.POSITION
WHERE c.CONSTRAINT_TYPE = 'R'
AND :1 IS NOT NULL`
}

// GetSchemaName never returns "": the metadata queries read the USER_ views
// and Oracle treats '' as NULL, which would hide every table.
func (d *OracleDialect) GetSchemaName(input string) string {
	if input == "" {
		return "USER"
	}
	return strings.ToUpper(input)
}

// SupportsExplicitKeyInsert is false: Oracle has no session toggle. GENERATED
// BY DEFAULT identity columns accept explicit values; GENERATED ALWAYS ones
// reject them and those rows fail.
func (d *OracleDialect) SupportsExplicitKeyInsert() bool { return false }

func (d *OracleDialect) BeforeTable(ctx context.Context, tx *sql.Tx, tableName string) error {
	return nil
}

func (d *OracleDialect) AfterTable(ctx context.Context, tx *sql.Tx, tableName string) error {
	return nil
}

func (d *OracleDialect) BeginRow(ctx context.Context, tx *sql.Tx) error { return nil }

func (d *OracleDialect) EndRow(ctx context.Context, tx *sql.Tx, failed bool) error { return nil }


// PlaceholderFormat uses :1, :2, etc. (1-based index)
func (d *OracleDialect) PlaceholderFormat() sq.PlaceholderFormat { return sq.Colon }

func (d *OracleDialect) InsertQuery(table string, cols []string) string {
	return mustSQL(BuildInsert(table, cols, d.PlaceholderFormat()))
}

func (d *OracleDialect) CountQuery(table string) string { return DefaultCountQuery(table) }

func (d *OracleDialect) ProbeColumnsQuery(table string) string {
	return DefaultProbeColumnsQuery(table)
}

func (d *OracleDialect) DeleteQuery(table string) string { return DefaultDeleteQuery(table) }

func (d *OracleDialect) ResetIdentityQuery(table string) string { return "" }

// DropTableQuery has no IF EXISTS before 23c; a missing table fails and the
// cleaner treats it as a warning.
func (d *OracleDialect) DropTableQuery(table string) string {
	return fmt.Sprintf("DROP TABLE %s CASCADE CONSTRAINTS", table)
}

func (d *OracleDialect) DropViewQuery(view string) string {
	return fmt.Sprintf("DROP VIEW %s", view)
}

func (d *OracleDialect) IsDuplicateKey(err error) bool {
	var oraErr *network.OracleError
	if errors.As(err, &oraErr) {
		return oraErr.ErrCode == oraUniqueConstraint
	}
	return err != nil && strings.Contains(err.Error(), "ORA-00001")
}

func (d *OracleDialect) NormalizeType(sqlType string) string {
	s := strings.ToLower(sqlType)
	if strings.Contains(s, "char") || strings.Contains(s, "clob") {
		return "string"
	}
	if strings.Contains(s, "int") || strings.Contains(s, "number") || strings.Contains(s, "float") {
		return "integer"
	}
	if strings.Contains(s, "date") || strings.Contains(s, "time") || strings.Contains(s, "year") {
		return "datetime"
	}
	return s
}
