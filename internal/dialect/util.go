package dialect

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// BuildInsert renders an INSERT statement template for the given columns using
// the placeholder format f. The same template is executed once per row.
func BuildInsert(table string, cols []string, f sq.PlaceholderFormat) sq.InsertBuilder {
	return sq.Insert(table).
		Columns(cols...).
		Values(make([]interface{}, len(cols))...).
		PlaceholderFormat(f)
}

// mustSQL returns the SQL text of a builder. Builders here carry no invalid
// state, so an error means a programming mistake.
func mustSQL(b sq.Sqlizer) string {
	query, _, err := b.ToSql()
	if err != nil {
		panic(fmt.Sprintf("dialect: building query: %v", err))
	}
	return query
}

// DefaultCountQuery returns SELECT COUNT(*) FROM table.
func DefaultCountQuery(table string) string {
	return mustSQL(sq.Select("COUNT(*)").From(table))
}

// DefaultProbeColumnsQuery returns a query yielding no rows but full column metadata.
func DefaultProbeColumnsQuery(table string) string {
	return mustSQL(sq.Select("*").From(table).Where("1 = 0"))
}

// DefaultDeleteQuery returns DELETE FROM table.
func DefaultDeleteQuery(table string) string {
	return mustSQL(sq.Delete(table))
}

// DefaultNormalizeType is a default implementation for type normalization (lowercase).
func DefaultNormalizeType(sqlType string) string {
	return strings.ToLower(sqlType)
}

// DefaultGetSchemaName is a default implementation for Getting Schema Name (identity).
func DefaultGetSchemaName(input string) string {
	return input
}
