package dialect

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
)

// Dialect abstracts database-specific operations.
type Dialect interface {
	// Connection
	DriverName() string
	DefaultPort() int
	DSN(c ConnConfig) string

	// Metadata Queries (Schema Introspection)
	GetTablesQuery(schema string) string
	GetColumnsQuery(schema string) string
	GetForeignKeysQuery(schema string) string
	GetSchemaName(input string) string

	// Explicit key insertion (IDENTITY_INSERT etc.)
	SupportsExplicitKeyInsert() bool
	BeforeTable(ctx context.Context, tx *sql.Tx, tableName string) error
	AfterTable(ctx context.Context, tx *sql.Tx, tableName string) error

	// Per-row isolation inside a table transaction. EndRow undoes the row
	// when failed is set, so the transaction stays usable.
	BeginRow(ctx context.Context, tx *sql.Tx) error
	EndRow(ctx context.Context, tx *sql.Tx, failed bool) error

	// Query Generation
	PlaceholderFormat() sq.PlaceholderFormat
	InsertQuery(table string, cols []string) string
	CountQuery(table string) string
	ProbeColumnsQuery(table string) string
	DeleteQuery(table string) string
	ResetIdentityQuery(table string) string // "" when not applicable
	DropTableQuery(table string) string
	DropViewQuery(view string) string

	// Errors
	IsDuplicateKey(err error) bool

	// Helpers
	NormalizeType(sqlType string) string
}
