package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"records-migrate/internal/dialect"
	"records-migrate/internal/engine"
	"records-migrate/internal/report"
	"records-migrate/internal/store"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T, ddl ...string) *store.Store {
	t.Helper()
	cfg := dialect.ConnConfig{Driver: "sqlite3", Database: filepath.Join(t.TempDir(), "records.db")}
	s, err := store.Open(context.Background(), store.Destination, cfg, Log)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	for _, q := range ddl {
		_, err := s.DB.ExecContext(context.Background(), q)
		require.NoError(t, err)
	}
	return s
}

func TestConfiguredChecks(t *testing.T) {
	resetViper(t)
	checks, err := configuredChecks()
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultChecks, checks)

	viper.SetConfigType("yaml")
	require.NoError(t, viper.ReadConfig(bytes.NewBufferString(`
checks:
  - name: Grades present
    query: SELECT COUNT(*) FROM grades
  - query: SELECT 1
`)))
	checks, err = configuredChecks()
	require.NoError(t, err)
	assert.Equal(t, []engine.Check{
		{Name: "Grades present", Query: "SELECT COUNT(*) FROM grades"},
		{Name: "SELECT 1", Query: "SELECT 1"},
	}, checks)

	require.NoError(t, viper.ReadConfig(bytes.NewBufferString(`
checks:
  - name: Empty
`)))
	_, err = configuredChecks()
	assert.ErrorContains(t, err, "query is required")
}

func TestRunCheckSuite(t *testing.T) {
	s := openSQLite(t,
		`CREATE TABLE students (student_id INTEGER PRIMARY KEY, email TEXT)`,
		`CREATE TABLE courses (course_id INTEGER PRIMARY KEY)`,
		`INSERT INTO students VALUES (1, 'ada@example.edu'), (2, NULL)`,
		`INSERT INTO courses VALUES (1)`,
	)

	var buf bytes.Buffer
	err := runCheckSuite(context.Background(), &buf, s, engine.DefaultChecks, report.Text)
	assert.ErrorIs(t, err, engine.ErrCheckFailed)
	assert.Equal(t, ExitVerificationFailed, ExitCode(err))
	assert.Contains(t, buf.String(), "[PASS] Students loaded")
	assert.Contains(t, buf.String(), "[PASS] Courses loaded")
	assert.Contains(t, buf.String(), "[FAIL] No null emails")

	_, err = s.DB.ExecContext(context.Background(), `UPDATE students SET email = 'alan@example.edu' WHERE student_id = 2`)
	require.NoError(t, err)
	buf.Reset()
	assert.NoError(t, runCheckSuite(context.Background(), &buf, s, engine.DefaultChecks, report.Text))
	assert.Contains(t, buf.String(), "Overall: OK")
}
