package engine_test

import (
	"context"
	"errors"
	"testing"

	"records-migrate/internal/engine"
	"records-migrate/internal/schema"
	"records-migrate/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func migrate(t *testing.T, src, dst *store.Store, tables ...string) []engine.MigrationResult {
	t.Helper()
	m := &engine.DataMigrator{Log: zaptest.NewLogger(t)}
	return m.Migrate(context.Background(), src, dst, schema.SpecsFromNames(tables))
}

func TestMigrateFreshDestination(t *testing.T) {
	src := newRecordsStore(t, store.Source)
	seedRecords(t, src)
	dst := newRecordsStore(t, store.Destination)

	results := migrate(t, src, dst, "students", "courses")
	require.Len(t, results, 2)

	students, courses := results[0], results[1]
	assert.NoError(t, students.Err)
	assert.Equal(t, "students", students.Table)
	assert.Equal(t, 3, students.SourceRows)
	assert.EqualValues(t, 0, students.DestinationRowsBefore)
	assert.Equal(t, 3, students.Inserted)
	assert.NoError(t, courses.Err)
	assert.Equal(t, 2, courses.Inserted)

	report := engine.Verify(context.Background(), src, dst, schema.SpecsFromNames([]string{"students", "courses"}), nil)
	assert.True(t, report.OverallSuccess)
	check, ok := report.Entry("students")
	require.True(t, ok)
	assert.EqualValues(t, 3, check.SourceCount)
	assert.EqualValues(t, 3, check.DestinationCount)
	assert.True(t, check.Matched)

	var email string
	require.NoError(t, dst.DB.QueryRow(`SELECT email FROM students WHERE student_id = 2`).Scan(&email))
	assert.Equal(t, "alan@example.edu", email)
}

func TestMigratePartiallyPopulatedDestination(t *testing.T) {
	src := newRecordsStore(t, store.Source)
	seedRecords(t, src)
	dst := newRecordsStore(t, store.Destination)
	exec(t, dst, `INSERT INTO students VALUES (2, 'Alan', 'Turing', 'alan@example.edu')`)

	results := migrate(t, src, dst, "students")
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.EqualValues(t, 1, results[0].DestinationRowsBefore)
	assert.Equal(t, 2, results[0].Inserted)
	assert.Equal(t, 1, results[0].SkippedDuplicate)

	report := engine.Verify(context.Background(), src, dst, schema.SpecsFromNames([]string{"students"}), nil)
	assert.True(t, report.OverallSuccess)
}

func TestMigrateRerunIsIdempotent(t *testing.T) {
	src := newRecordsStore(t, store.Source)
	seedRecords(t, src)
	dst := newRecordsStore(t, store.Destination)

	migrate(t, src, dst, "students", "courses")
	again := migrate(t, src, dst, "students", "courses")

	for _, r := range again {
		assert.NoError(t, r.Err, r.Table)
		assert.Equal(t, 0, r.Inserted, r.Table)
		assert.Equal(t, r.SourceRows, r.SkippedDuplicate, r.Table)
	}
	assert.EqualValues(t, 3, count(t, dst, "students"))
	assert.EqualValues(t, 2, count(t, dst, "courses"))
}

func TestMigrateEmptyTableIsNoOp(t *testing.T) {
	src := newRecordsStore(t, store.Source)
	dst := newRecordsStore(t, store.Destination)

	results := migrate(t, src, dst, "enrollments")
	require.Len(t, results, 1)
	assert.True(t, results[0].NoOp)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 0, results[0].Attempted)
}

func TestMigrateTableFailureDoesNotStopRun(t *testing.T) {
	src := newRecordsStore(t, store.Source)
	seedRecords(t, src)
	exec(t, src,
		`CREATE TABLE attendance (attendance_id INTEGER PRIMARY KEY, status TEXT)`,
		`INSERT INTO attendance VALUES (1, 'Present')`,
	)

	dst := openStore(t, store.Destination, sqliteConfig(t, "dst"))
	exec(t, dst,
		`CREATE TABLE students (student_id INTEGER PRIMARY KEY, first_name TEXT, last_name TEXT, phone TEXT)`,
		`CREATE TABLE courses (course_id INTEGER PRIMARY KEY, course_name TEXT NOT NULL, course_code TEXT NOT NULL UNIQUE, credits INTEGER)`,
	)

	results := migrate(t, src, dst, "students", "attendance", "courses")
	require.Len(t, results, 3)

	assert.True(t, errors.Is(results[0].Err, engine.ErrColumnMismatch))
	assert.Contains(t, results[0].Err.Error(), "email")
	assert.Equal(t, 0, results[0].Attempted)

	assert.Error(t, results[1].Err, "attendance does not exist at the destination")

	assert.NoError(t, results[2].Err)
	assert.Equal(t, 2, results[2].Inserted)

	report := engine.Verify(context.Background(), src, dst, schema.SpecsFromNames([]string{"students", "attendance", "courses"}), nil)
	assert.False(t, report.OverallSuccess)
	assert.Equal(t, []string{"students", "attendance"}, report.Mismatched())
}

func TestMigrateRowFailurePolicy(t *testing.T) {
	src := newRecordsStore(t, store.Source)
	seedRecords(t, src)

	newDst := func() *store.Store {
		dst := openStore(t, store.Destination, sqliteConfig(t, "dst"))
		exec(t, dst, `CREATE TABLE students (student_id INTEGER PRIMARY KEY, first_name TEXT, last_name TEXT, email TEXT CHECK (email <> 'alan@example.edu'))`)
		return dst
	}

	t.Run("fail-fast", func(t *testing.T) {
		dst := newDst()
		m := &engine.DataMigrator{Policy: engine.FailFast}
		results := m.Migrate(context.Background(), src, dst, schema.SpecsFromNames([]string{"students"}))

		var rowErr *engine.RowTransferError
		require.ErrorAs(t, results[0].Err, &rowErr)
		assert.Equal(t, 2, rowErr.Row)
		assert.Equal(t, 1, results[0].Inserted)
		assert.Equal(t, 1, results[0].Failed)
		assert.EqualValues(t, 1, count(t, dst, "students"))
	})

	t.Run("continue", func(t *testing.T) {
		dst := newDst()
		progress := newRecordingProgress()
		m := &engine.DataMigrator{Policy: engine.Continue, Progress: progress}
		results := m.Migrate(context.Background(), src, dst, schema.SpecsFromNames([]string{"students"}))

		assert.NoError(t, results[0].Err)
		assert.Equal(t, 2, results[0].Inserted)
		assert.Equal(t, 1, results[0].Failed)
		assert.EqualValues(t, 2, count(t, dst, "students"))
		assert.Equal(t, 3, progress.started["students"])
		assert.Len(t, progress.outcomes["students"], 3)
	})
}
