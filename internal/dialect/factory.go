package dialect

import "fmt"

// GetDialect returns the Dialect implementation for a driver name.
func GetDialect(driver string) (Dialect, error) {
	switch driver {
	case "postgres":
		return &PostgresDialect{}, nil
	case "sqlserver", "mssql":
		return &MSSQLDialect{}, nil
	case "oracle":
		return &OracleDialect{}, nil
	case "mysql":
		return &MysqlDialect{}, nil
	case "sqlite3", "sqlite":
		return &SQLiteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// Ensure interface implementation
var _ Dialect = (*MysqlDialect)(nil)
var _ Dialect = (*PostgresDialect)(nil)
var _ Dialect = (*MSSQLDialect)(nil)
var _ Dialect = (*OracleDialect)(nil)
var _ Dialect = (*SQLiteDialect)(nil)
