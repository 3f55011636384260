package sample_test

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"records-migrate/internal/sample"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestStudentsAreDeterministic(t *testing.T) {
	g := sample.Generator{Seed: 42, Now: now}
	a := g.Students(50)
	b := g.Students(50)
	assert.Equal(t, a, b)

	other := sample.Generator{Seed: 43, Now: now}.Students(50)
	assert.NotEqual(t, a, other)
}

func TestStudentsHaveDistinctEmailsAndAges(t *testing.T) {
	students := sample.Generator{Seed: 7, Now: now}.Students(300)
	require.Len(t, students, 300)

	seen := map[string]bool{}
	for _, s := range students {
		assert.False(t, seen[s.Email], s.Email)
		seen[s.Email] = true
		assert.Contains(t, s.Email, "@")
		assert.NotEmpty(t, s.FirstName)
		assert.NotEmpty(t, s.LastName)

		assert.False(t, s.DOB.After(now.AddDate(-18, 0, 0)), "younger than 18: %s", s.DOB)
		assert.True(t, s.DOB.After(now.AddDate(-31, 0, 0)), "older than 30: %s", s.DOB)
	}
}

func TestWriteCourses(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sample.WriteCourses(&buf, sample.Courses))
	assert.Equal(t, "course_name,course_code,credits\n"+
		"Database Systems,DB101,4\n"+
		"Python Programming,PY201,5\n"+
		"Data Structures,CS301,4\n", buf.String())
}

func TestWriteDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	paths, err := sample.Generator{Seed: 1, Now: now}.WriteDir(dir, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, sample.StudentsFile), filepath.Join(dir, sample.CoursesFile)}, paths)

	raw, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	records, err := csv.NewReader(strings.NewReader(string(raw))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 11)
	assert.Equal(t, sample.StudentColumns, records[0])
	_, err = time.Parse("2006-01-02", records[1][3])
	assert.NoError(t, err)
}
