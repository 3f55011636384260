package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"records-migrate/internal/engine"
	"records-migrate/internal/script"
	"records-migrate/internal/store"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetViper gives each test a fresh configuration with defaults and env bindings.
func resetViper(t *testing.T) {
	t.Helper()
	reset := func() {
		viper.Reset()
		setDefaults()
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.AutomaticEnv()
		bindLegacyEnv()
	}
	reset()
	t.Cleanup(reset)
}

func TestEndpointConfigDefaults(t *testing.T) {
	resetViper(t)
	viper.Set("source.database", "school")
	viper.Set("destination.database", "school_cloud")

	src, err := endpointConfig(store.Source)
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", src.Driver)
	assert.Equal(t, "localhost", src.Host)
	assert.False(t, src.Encrypt)

	dst, err := endpointConfig(store.Destination)
	require.NoError(t, err)
	assert.True(t, dst.Encrypt)
	assert.Equal(t, 30, dst.ConnectTimeout)
}

func TestEndpointConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]any
		want string
	}{
		{"unknown driver", map[string]any{"source.driver": "db2", "source.database": "x"}, "db2"},
		{"missing database", map[string]any{"source.driver": "postgres"}, "database"},
		{"bad port", map[string]any{"source.database": "x", "source.port": 70000}, "invalid port"},
		{"empty driver", map[string]any{"source.driver": "", "source.database": "x"}, "driver is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper(t)
			for k, v := range tt.set {
				viper.Set(k, v)
			}
			_, err := endpointConfig(store.Source)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEndpointConfigDSNOnly(t *testing.T) {
	resetViper(t)
	viper.Set("destination.driver", "SQLite3")
	viper.Set("destination.dsn", "file:records.db")

	cfg, err := endpointConfig(store.Destination)
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.Driver)
	assert.Equal(t, "file:records.db", cfg.DSN)
}

func TestLegacyEnvFillsDestination(t *testing.T) {
	t.Setenv("DB_HOST", "records.database.windows.net")
	t.Setenv("DB_PORT", "1433")
	t.Setenv("DB_NAME", "StudentRecords")
	t.Setenv("DB_USER", "loader")
	t.Setenv("DB_PASS", "s3cret")
	resetViper(t)

	cfg, err := endpointConfig(store.Destination)
	require.NoError(t, err)
	assert.Equal(t, "records.database.windows.net", cfg.Host)
	assert.Equal(t, 1433, cfg.Port)
	assert.Equal(t, "StudentRecords", cfg.Database)
	assert.Equal(t, "loader", cfg.User)
	assert.Equal(t, "s3cret", cfg.Password)
}

func TestPrefixedEnvWinsOverLegacy(t *testing.T) {
	t.Setenv("DB_HOST", "legacy")
	t.Setenv("DESTINATION_HOST", "current")
	t.Setenv("DESTINATION_DATABASE", "db")
	resetViper(t)

	cfg, err := endpointConfig(store.Destination)
	require.NoError(t, err)
	assert.Equal(t, "current", cfg.Host)
}

func TestMigrationConfig(t *testing.T) {
	resetViper(t)

	m, err := migrationConfig()
	require.NoError(t, err)
	assert.Equal(t, engine.CleanupNone, m.Cleanup)
	assert.Equal(t, engine.FailFast, m.Policy)
	assert.Equal(t, script.DefaultMarker, m.Marker)
	assert.True(t, m.StrictVerify)
	assert.Equal(t, []string{"students", "courses", "enrollments", "grades", "attendance"}, m.Tables)

	viper.Set("migration.cleanup", "Drop")
	viper.Set("migration.row_failure_policy", "continue")
	viper.Set("migration.marker", "  ")
	m, err = migrationConfig()
	require.NoError(t, err)
	assert.Equal(t, engine.CleanupDrop, m.Cleanup)
	assert.Equal(t, engine.Continue, m.Policy)
	assert.Equal(t, script.DefaultMarker, m.Marker)

	viper.Set("migration.cleanup", "truncate")
	_, err = migrationConfig()
	assert.Error(t, err)
}

func TestPlanReadsScripts(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "create_tables.sql")
	require.NoError(t, os.WriteFile(schemaPath, []byte("CREATE TABLE students (id INT)\nGO\n"), 0o644))

	m := MigrationConfig{SchemaScript: schemaPath, Marker: "GO", Tables: []string{"students"}}
	p, err := m.Plan()
	require.NoError(t, err)
	assert.Contains(t, p.SchemaScript, "CREATE TABLE students")
	assert.Empty(t, p.ViewScript)
	assert.Equal(t, []string{"students"}, p.Tables)

	m.ViewScript = filepath.Join(dir, "missing.sql")
	_, err = m.Plan()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFatal, ExitCode(errors.New("connect")))
	assert.Equal(t, ExitVerificationFailed, ExitCode(fmt.Errorf("%w: [grades]", engine.ErrVerificationFailed)))
	assert.Equal(t, ExitVerificationFailed, ExitCode(fmt.Errorf("%w: No null emails", engine.ErrCheckFailed)))
}
