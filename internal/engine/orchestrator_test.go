package engine_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"records-migrate/internal/dialect"
	"records-migrate/internal/engine"
	"records-migrate/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func states(res *engine.RunResult) []engine.State {
	out := []engine.State{engine.StateInit}
	for _, tr := range res.History {
		out = append(out, tr.To)
	}
	return out
}

func seededSource(t *testing.T) dialect.ConnConfig {
	t.Helper()
	cfg := sqliteConfig(t, "src")
	src := openStore(t, store.Source, cfg)
	exec(t, src,
		`CREATE TABLE students (student_id INTEGER PRIMARY KEY, first_name TEXT NOT NULL, last_name TEXT NOT NULL, email TEXT UNIQUE)`,
		`CREATE TABLE courses (course_id INTEGER PRIMARY KEY, course_name TEXT NOT NULL, course_code TEXT NOT NULL UNIQUE, credits INTEGER)`,
		`CREATE TABLE enrollments (enrollment_id INTEGER PRIMARY KEY, student_id INTEGER NOT NULL REFERENCES students(student_id), course_id INTEGER NOT NULL REFERENCES courses(course_id))`,
	)
	seedRecords(t, src)
	exec(t, src, `INSERT INTO enrollments VALUES (1, 1, 1), (2, 2, 1), (3, 3, 2)`)
	src.Close()
	return cfg
}

func TestRunFullMigration(t *testing.T) {
	o := &engine.Orchestrator{
		Source:      seededSource(t),
		Destination: sqliteConfig(t, "dst"),
		Plan: engine.Plan{
			Tables:       []string{"enrollments", "students", "courses"},
			SchemaScript: recordsDDL,
			ViewScript:   recordsViews,
			Marker:       "GO",
		},
		Log: zaptest.NewLogger(t),
	}

	res, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []engine.State{
		engine.StateInit, engine.StateConnecting, engine.StateCleaning, engine.StateSchema,
		engine.StateData, engine.StateViews, engine.StateVerifying, engine.StateDone,
	}, states(res))
	assert.Equal(t, engine.StateDone, res.State())
	assert.True(t, res.Succeeded())

	// enrollments was configured first and had to move after its parents
	require.Len(t, res.OrderWarnings, 1)
	assert.Equal(t, []string{"students", "courses", "enrollments"}, namesOf(res))

	assert.Equal(t, 3, res.Schema.Applied)
	assert.Equal(t, 1, res.Views.Applied)
	require.Len(t, res.Data, 3)
	for _, d := range res.Data {
		assert.NoError(t, d.Err, d.Table)
	}

	dst := openStore(t, store.Destination, o.Destination)
	var roster int
	require.NoError(t, dst.DB.QueryRow(`SELECT COUNT(*) FROM vw_course_roster WHERE course_code = 'DB101'`).Scan(&roster))
	assert.Equal(t, 2, roster)
}

func namesOf(res *engine.RunResult) []string {
	out := make([]string, len(res.Order))
	for i, s := range res.Order {
		out[i] = s.Name
	}
	return out
}

func TestRunDiscoversTablesAndRerunsCleanly(t *testing.T) {
	o := &engine.Orchestrator{
		Source:      seededSource(t),
		Destination: sqliteConfig(t, "dst"),
		Plan:        engine.Plan{SchemaScript: recordsDDL},
	}

	first, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, first.Succeeded())
	assert.Empty(t, first.OrderWarnings)
	assert.Equal(t, []string{"courses", "students", "enrollments"}, namesOf(first))

	second, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Succeeded())
	assert.Len(t, second.Schema.Warnings, 3, "tables already exist")
	for _, d := range second.Data {
		assert.Equal(t, 0, d.Inserted, d.Table)
		assert.Equal(t, d.SourceRows, d.SkippedDuplicate, d.Table)
	}
}

func TestRunWithDropCleanup(t *testing.T) {
	dstCfg := sqliteConfig(t, "dst")
	dst := openStore(t, store.Destination, dstCfg)
	exec(t, dst,
		`CREATE TABLE students (student_id INTEGER PRIMARY KEY, legacy TEXT)`,
		`INSERT INTO students VALUES (7, 'old')`,
		`CREATE VIEW vw_course_roster AS SELECT legacy FROM students`,
	)

	o := &engine.Orchestrator{
		Source:      seededSource(t),
		Destination: dstCfg,
		Plan: engine.Plan{
			Tables:       []string{"students", "courses", "enrollments"},
			Views:        []string{"vw_course_roster"},
			SchemaScript: recordsDDL,
			ViewScript:   recordsViews,
			Cleanup:      engine.CleanupDrop,
		},
	}
	res, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
	assert.Equal(t, []string{"vw_course_roster", "enrollments", "courses", "students"}, res.Cleanup.Cleaned)
	assert.EqualValues(t, 3, count(t, dst, "students"))
}

func TestRunDestinationUnreachable(t *testing.T) {
	srcCfg := seededSource(t)
	o := &engine.Orchestrator{
		Source: srcCfg,
		Destination: dialect.ConnConfig{
			Driver: "sqlite3",
			DSN:    "file:" + filepath.Join(t.TempDir(), "missing", "dst.db") + "?mode=ro",
		},
		Plan: engine.Plan{SchemaScript: recordsDDL, Cleanup: engine.CleanupDelete},
		Log:  zaptest.NewLogger(t),
	}

	res, err := o.Run(context.Background())
	require.Error(t, err)

	var connErr *store.ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, store.Destination, connErr.Endpoint)
	assert.Equal(t, []engine.State{engine.StateInit, engine.StateConnecting, engine.StateFailed}, states(res))
	assert.False(t, res.Succeeded())
	assert.Nil(t, res.Report)

	src := openStore(t, store.Source, srcCfg)
	assert.EqualValues(t, 3, count(t, src, "students"))
	assert.EqualValues(t, 3, count(t, src, "enrollments"))
}

func TestRunSourceFailureSkipsDestination(t *testing.T) {
	var opened []string
	o := &engine.Orchestrator{
		Source:      dialect.ConnConfig{Driver: "db2"},
		Destination: sqliteConfig(t, "dst"),
		Open: func(ctx context.Context, name string, cfg dialect.ConnConfig, log *zap.Logger) (*store.Store, error) {
			opened = append(opened, name)
			return store.Open(ctx, name, cfg, log)
		},
	}

	res, err := o.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{store.Source}, opened)
	assert.Equal(t, engine.StateFailed, res.State())
}

func TestRunReportsMismatch(t *testing.T) {
	o := &engine.Orchestrator{
		Source:      seededSource(t),
		Destination: sqliteConfig(t, "dst"),
		Plan: engine.Plan{
			Tables: []string{"students", "courses"},
			// courses is never created at the destination
			SchemaScript: `CREATE TABLE students (student_id INTEGER PRIMARY KEY, first_name TEXT NOT NULL, last_name TEXT NOT NULL, email TEXT UNIQUE)`,
		},
	}
	res, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.StateDone, res.State())
	assert.False(t, res.Succeeded())
	assert.Equal(t, []string{"courses"}, res.Report.Mismatched())
	assert.Error(t, res.Data[1].Err)
}

func TestResolveOrderDoesNotWrite(t *testing.T) {
	o := &engine.Orchestrator{
		Source:      seededSource(t),
		Destination: sqliteConfig(t, "dst"),
		Plan:        engine.Plan{Tables: []string{"students", "enrollments"}},
	}
	specs, warnings, err := o.ResolveOrder(context.Background())
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, specs, 2)
	assert.Equal(t, "enrollments", specs[1].Name)

	dst := openStore(t, store.Destination, o.Destination)
	_, err = dst.Count(context.Background(), nil, "students")
	assert.Error(t, err)
}

func TestTransitions(t *testing.T) {
	to, err := engine.Next(engine.StateInit, engine.EventStart)
	require.NoError(t, err)
	assert.Equal(t, engine.StateConnecting, to)

	to, err = engine.Next(engine.StateConnecting, engine.EventConnectFailed)
	require.NoError(t, err)
	assert.Equal(t, engine.StateFailed, to)

	_, err = engine.Next(engine.StateData, engine.EventConnectFailed)
	assert.Error(t, err, "only connecting may fail")

	_, err = engine.Next(engine.StateInit, engine.EventVerified)
	assert.Error(t, err)

	assert.True(t, engine.StateDone.Terminal())
	assert.True(t, engine.StateFailed.Terminal())
	assert.False(t, engine.StateVerifying.Terminal())
}

func TestOrchestratorVerifyOnly(t *testing.T) {
	o := &engine.Orchestrator{
		Source:      seededSource(t),
		Destination: sqliteConfig(t, "dst"),
		Plan:        engine.Plan{Tables: []string{"students", "courses"}},
	}
	report, err := o.Verify(context.Background())
	require.NoError(t, err)
	assert.False(t, report.OverallSuccess)
	assert.Equal(t, []string{"students", "courses"}, report.Mismatched())

	_, err = o.Run(context.Background())
	require.NoError(t, err)
}

// blindDialect reads table metadata through a schema filter that an empty
// schema name never satisfies.
type blindDialect struct {
	dialect.SQLiteDialect
}

func (blindDialect) GetTablesQuery(string) string {
	return `SELECT name FROM sqlite_master WHERE type = 'table' AND ? = 'school'`
}

func TestRunWithNothingToMigrateFails(t *testing.T) {
	o := &engine.Orchestrator{
		Source:      seededSource(t),
		Destination: sqliteConfig(t, "dst"),
		Plan:        engine.Plan{SchemaScript: recordsDDL},
		Open: func(ctx context.Context, name string, cfg dialect.ConnConfig, log *zap.Logger) (*store.Store, error) {
			s, err := store.Open(ctx, name, cfg, log)
			if err == nil && name == store.Source {
				s.Dialect = &blindDialect{}
			}
			return s, err
		},
	}

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Order)
	assert.Empty(t, res.Data)
	require.NotEmpty(t, res.OrderWarnings)
	assert.Contains(t, res.OrderWarnings[len(res.OrderWarnings)-1], "no tables to migrate")

	assert.Equal(t, engine.StateDone, res.State())
	assert.False(t, res.Succeeded())
	assert.ErrorIs(t, res.Report.Err(), engine.ErrVerificationFailed)
}
