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
	mssql "github.com/microsoft/go-mssqldb" // SQL Server Driver
)

// SQL Server error numbers for PRIMARY KEY/UNIQUE constraint and unique index violations.
const (
	mssqlErrUniqueConstraint = 2627
	mssqlErrUniqueIndex      = 2601
)

type MSSQLDialect struct{}

func (d *MSSQLDialect) DriverName() string { return "sqlserver" }

func (d *MSSQLDialect) DefaultPort() int { return 1433 }

// DSN builds a sqlserver:// URL understood by go-mssqldb.
func (d *MSSQLDialect) DSN(c ConnConfig) string {
	q := url.Values{}
	q.Set("database", c.Database)
	q.Set("encrypt", strconv.FormatBool(c.Encrypt))
	q.Set("TrustServerCertificate", strconv.FormatBool(c.TrustServerCertificate))
	q.Set("connection timeout", strconv.Itoa(c.Timeout()))
	q.Set("app name", "records-migrate")

	u := &url.URL{
		Scheme:   "sqlserver",
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.portOr(d.DefaultPort()))),
		RawQuery: q.Encode(),
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	return u.String()
}

// Helper: MSSQL Driver (go-mssqldb) prefers @p1, @p2 named parameters over ?

func (d *MSSQLDialect) GetTablesQuery(schema string) string {
	return `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE'`
}

func (d *MSSQLDialect) GetColumnsQuery(schema string) string {
	// Include PK, UNIQUE constraints, UNIQUE indexes, Identity info, and MS_Description (Comment)
	return `
		SELECT
			c.TABLE_NAME,
			c.COLUMN_NAME,
			c.DATA_TYPE,
			c.DATA_TYPE,
			c.CHARACTER_MAXIMUM_LENGTH,
			c.IS_NULLABLE,
			CASE WHEN pk.COLUMN_NAME IS NOT NULL THEN 'PRIMARY' ELSE '' END AS COLUMN_KEY,
			CASE
				WHEN idxc.column_id IS NOT NULL THEN 'identity'
				WHEN COLUMNPROPERTY(OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME), c.COLUMN_NAME, 'IsIdentity') = 1 THEN 'identity'
				ELSE c.COLUMN_DEFAULT
			END AS COLUMN_DEFAULT,
			CASE WHEN uq.COLUMN_NAME IS NOT NULL OR ui.COLUMN_NAME IS NOT NULL THEN 'UNIQUE' ELSE '' END AS IS_UNIQUE,
			CAST(ep.value AS NVARCHAR(MAX)) AS COMMENT
		FROM INFORMATION_SCHEMA.COLUMNS c
		LEFT JOIN (
			SELECT kcu.TABLE_NAME, kcu.COLUMN_NAME
			FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
				ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY' AND tc.TABLE_SCHEMA = @p1
		) pk ON c.TABLE_NAME = pk.TABLE_NAME AND c.COLUMN_NAME = pk.COLUMN_NAME
		LEFT JOIN (
			SELECT kcu.TABLE_NAME, kcu.COLUMN_NAME
			FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
				ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			WHERE tc.CONSTRAINT_TYPE = 'UNIQUE' AND tc.TABLE_SCHEMA = @p1
		) uq ON c.TABLE_NAME = uq.TABLE_NAME AND c.COLUMN_NAME = uq.COLUMN_NAME
		LEFT JOIN (
			SELECT
				t.name AS TABLE_NAME,
				col.name AS COLUMN_NAME
			FROM sys.indexes idx
			JOIN sys.index_columns ic ON idx.object_id = ic.object_id AND idx.index_id = ic.index_id
			JOIN sys.columns col ON ic.object_id = col.object_id AND ic.column_id = col.column_id
			JOIN sys.tables t ON idx.object_id = t.object_id
			JOIN sys.schemas s ON t.schema_id = s.schema_id
			WHERE idx.is_unique = 1
				AND idx.is_primary_key = 0
				AND s.name = @p1
		) ui ON c.TABLE_NAME = ui.TABLE_NAME AND c.COLUMN_NAME = ui.COLUMN_NAME
		LEFT JOIN sys.identity_columns idxc
			ON idxc.object_id = OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME)
			AND idxc.name = c.COLUMN_NAME
		LEFT JOIN sys.extended_properties ep
			ON ep.major_id = OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME)
			AND ep.minor_id = c.ORDINAL_POSITION
			AND ep.name = 'MS_Description'
		WHERE c.TABLE_SCHEMA = @p1
		ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION
	`
}

func (d *MSSQLDialect) GetForeignKeysQuery(schema string) string {
	return `SELECT KCU1.TABLE_NAME, KCU1.CONSTRAINT_NAME, KCU1.COLUMN_NAME, KCU2.TABLE_NAME AS REF_TABLE, KCU2.COLUMN_NAME AS REF_COLUMN FROM INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS RC JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KCU1 ON RC.CONSTRAINT_NAME = KCU1.CONSTRAINT_NAME JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KCU2 ON RC.UNIQUE_CONSTRAINT_NAME = KCU2.CONSTRAINT_NAME WHERE KCU1.TABLE_SCHEMA = @p1`
}

func (d *MSSQLDialect) GetSchemaName(input string) string {
	if input == "" {
		return "dbo"
	}
	return input
}

func (d *MSSQLDialect) SupportsExplicitKeyInsert() bool { return true }

// BeforeTable turns IDENTITY_INSERT on so rows keep their source identity values.
// The setting is per session, which is why it runs on the table transaction.
func (d *MSSQLDialect) BeforeTable(ctx context.Context, tx *sql.Tx, tableName string) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf("SET IDENTITY_INSERT %s ON", tableName))
	return err
}

func (d *MSSQLDialect) AfterTable(ctx context.Context, tx *sql.Tx, tableName string) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf("SET IDENTITY_INSERT %s OFF", tableName))
	return err
}

func (d *MSSQLDialect) BeginRow(ctx context.Context, tx *sql.Tx) error { return nil }

func (d *MSSQLDialect) EndRow(ctx context.Context, tx *sql.Tx, failed bool) error { return nil }


func (d *MSSQLDialect) PlaceholderFormat() sq.PlaceholderFormat { return sq.AtP }

func (d *MSSQLDialect) InsertQuery(table string, cols []string) string {
	return mustSQL(BuildInsert(table, cols, d.PlaceholderFormat()))
}

func (d *MSSQLDialect) CountQuery(table string) string { return DefaultCountQuery(table) }

func (d *MSSQLDialect) ProbeColumnsQuery(table string) string {
	return DefaultProbeColumnsQuery(table)
}

// DeleteQuery uses DELETE instead of TRUNCATE to avoid FK issues.
func (d *MSSQLDialect) DeleteQuery(table string) string { return DefaultDeleteQuery(table) }

// ResetIdentityQuery reseeds the IDENTITY counter after DELETE.
func (d *MSSQLDialect) ResetIdentityQuery(table string) string {
	return fmt.Sprintf("DBCC CHECKIDENT ('%s', RESEED, 0)", table)
}

func (d *MSSQLDialect) DropTableQuery(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", table)
}

func (d *MSSQLDialect) DropViewQuery(view string) string {
	return fmt.Sprintf("DROP VIEW IF EXISTS %s", view)
}

func (d *MSSQLDialect) IsDuplicateKey(err error) bool {
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return msErr.Number == mssqlErrUniqueConstraint || msErr.Number == mssqlErrUniqueIndex
	}
	var msErrPtr *mssql.Error
	if errors.As(err, &msErrPtr) {
		return msErrPtr.Number == mssqlErrUniqueConstraint || msErrPtr.Number == mssqlErrUniqueIndex
	}
	return false
}

func (d *MSSQLDialect) NormalizeType(sqlType string) string {
	t := strings.ToLower(sqlType)
	switch t {
	case "nvarchar", "nchar", "text", "ntext":
		return "varchar"
	case "bit":
		return "boolean"
	case "tinyint":
		return "tinyint" // 0-255
	case "smallint":
		return "smallint"
	case "int":
		return "int"
	case "bigint":
		return "bigint"
	case "decimal", "numeric", "money", "smallmoney":
		return "decimal"
	case "float", "real":
		return "float"
	case "datetime", "datetime2", "smalldatetime", "date":
		return "datetime"
	case "image", "binary", "varbinary":
		return "blob"
	default:
		return t
	}
}
