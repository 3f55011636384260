package dialect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
)

const mysqlErrDupEntry = 1062

type MysqlDialect struct{}

func (d *MysqlDialect) DriverName() string { return "mysql" }

func (d *MysqlDialect) DefaultPort() int { return 3306 }

func (d *MysqlDialect) DSN(c ConnConfig) string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.portOr(d.DefaultPort())))
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Timeout = time.Duration(c.Timeout()) * time.Second
	switch {
	case c.Encrypt && c.TrustServerCertificate:
		cfg.TLSConfig = "skip-verify"
	case c.Encrypt:
		cfg.TLSConfig = "true"
	}
	return cfg.FormatDSN()
}

// The metadata queries fall back to the connection's database when no schema is given.

func (d *MysqlDialect) GetTablesQuery(schema string) string {
	return `SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_TYPE = 'BASE TABLE'`
}

func (d *MysqlDialect) GetColumnsQuery(schema string) string {
	return `SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, COLUMN_TYPE, CHARACTER_MAXIMUM_LENGTH, IS_NULLABLE, COLUMN_KEY, EXTRA, IF(COLUMN_KEY='UNI', 'UNIQUE', NULL) AS IS_UNIQUE, COLUMN_COMMENT FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) ORDER BY TABLE_NAME, ORDINAL_POSITION`
}

func (d *MysqlDialect) GetForeignKeysQuery(schema string) string {
	return `SELECT TABLE_NAME, CONSTRAINT_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME FROM information_schema.KEY_COLUMN_USAGE WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND REFERENCED_TABLE_NAME IS NOT NULL`
}

func (d *MysqlDialect) GetSchemaName(input string) string {
	return DefaultGetSchemaName(input)
}

// SupportsExplicitKeyInsert is false: AUTO_INCREMENT columns accept explicit values as is.
func (d *MysqlDialect) SupportsExplicitKeyInsert() bool { return false }

func (d *MysqlDialect) BeforeTable(ctx context.Context, tx *sql.Tx, tableName string) error {
	return nil
}

func (d *MysqlDialect) AfterTable(ctx context.Context, tx *sql.Tx, tableName string) error {
	return nil
}

func (d *MysqlDialect) BeginRow(ctx context.Context, tx *sql.Tx) error { return nil }

func (d *MysqlDialect) EndRow(ctx context.Context, tx *sql.Tx, failed bool) error { return nil }


func (d *MysqlDialect) PlaceholderFormat() sq.PlaceholderFormat { return sq.Question }

// InsertQuery is a plain INSERT: duplicate rows must surface as error 1062
// rather than being swallowed by INSERT IGNORE, which also hides other errors.
func (d *MysqlDialect) InsertQuery(table string, cols []string) string {
	return mustSQL(BuildInsert(table, cols, d.PlaceholderFormat()))
}

func (d *MysqlDialect) CountQuery(table string) string { return DefaultCountQuery(table) }

func (d *MysqlDialect) ProbeColumnsQuery(table string) string {
	return DefaultProbeColumnsQuery(table)
}

func (d *MysqlDialect) DeleteQuery(table string) string { return DefaultDeleteQuery(table) }

func (d *MysqlDialect) ResetIdentityQuery(table string) string {
	return fmt.Sprintf("ALTER TABLE %s AUTO_INCREMENT = 1", table)
}

func (d *MysqlDialect) DropTableQuery(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", table)
}

func (d *MysqlDialect) DropViewQuery(view string) string {
	return fmt.Sprintf("DROP VIEW IF EXISTS %s", view)
}

func (d *MysqlDialect) IsDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrDupEntry
}

func (d *MysqlDialect) NormalizeType(sqlType string) string {
	return DefaultNormalizeType(sqlType)
}
