package engine_test

import (
	"context"
	"path/filepath"
	"testing"

	"records-migrate/internal/dialect"
	"records-migrate/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const recordsDDL = `
CREATE TABLE students (
    student_id INTEGER PRIMARY KEY,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL,
    email TEXT UNIQUE
)
GO
CREATE TABLE courses (
    course_id INTEGER PRIMARY KEY,
    course_name TEXT NOT NULL,
    course_code TEXT NOT NULL UNIQUE,
    credits INTEGER
)
GO
CREATE TABLE enrollments (
    enrollment_id INTEGER PRIMARY KEY,
    student_id INTEGER NOT NULL REFERENCES students(student_id),
    course_id INTEGER NOT NULL REFERENCES courses(course_id)
)
`

const recordsViews = `
-- roster per course
CREATE VIEW vw_course_roster AS
SELECT c.course_code, s.first_name, s.last_name
FROM enrollments e
JOIN students s ON s.student_id = e.student_id
JOIN courses c ON c.course_id = e.course_id
GO
`

func sqliteConfig(t *testing.T, name string) dialect.ConnConfig {
	t.Helper()
	return dialect.ConnConfig{Driver: "sqlite3", Database: filepath.Join(t.TempDir(), name+".db")}
}

func openStore(t *testing.T, endpoint string, cfg dialect.ConnConfig) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), endpoint, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func exec(t *testing.T, s *store.Store, queries ...string) {
	t.Helper()
	for _, q := range queries {
		_, err := s.DB.ExecContext(context.Background(), q)
		require.NoError(t, err, q)
	}
}

func count(t *testing.T, s *store.Store, table string) int64 {
	t.Helper()
	n, err := s.Count(context.Background(), nil, table)
	require.NoError(t, err)
	return n
}

// newRecordsStore returns a store with the records schema created.
func newRecordsStore(t *testing.T, endpoint string) *store.Store {
	t.Helper()
	s := openStore(t, endpoint, sqliteConfig(t, endpoint))
	exec(t, s,
		`CREATE TABLE students (student_id INTEGER PRIMARY KEY, first_name TEXT NOT NULL, last_name TEXT NOT NULL, email TEXT UNIQUE)`,
		`CREATE TABLE courses (course_id INTEGER PRIMARY KEY, course_name TEXT NOT NULL, course_code TEXT NOT NULL UNIQUE, credits INTEGER)`,
		`CREATE TABLE enrollments (enrollment_id INTEGER PRIMARY KEY, student_id INTEGER NOT NULL REFERENCES students(student_id), course_id INTEGER NOT NULL REFERENCES courses(course_id))`,
	)
	return s
}

func seedRecords(t *testing.T, s *store.Store) {
	t.Helper()
	exec(t, s,
		`INSERT INTO students VALUES (1, 'Ada', 'Lovelace', 'ada@example.edu'), (2, 'Alan', 'Turing', 'alan@example.edu'), (3, 'Grace', 'Hopper', 'grace@example.edu')`,
		`INSERT INTO courses VALUES (1, 'Database Systems', 'DB101', 4), (2, 'Python Programming', 'PY201', 5)`,
	)
}
