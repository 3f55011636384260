package engine_test

import (
	"bufio"
	"context"
	"strings"
	"testing"

	"records-migrate/internal/engine"
	"records-migrate/internal/script"
	"records-migrate/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestApplyScriptToleratesFailingStatement(t *testing.T) {
	dst := openStore(t, store.Destination, sqliteConfig(t, "dst"))

	src := `CREATE TABLE students (student_id INTEGER PRIMARY KEY, email TEXT)
GO
CREATE TABLEE courses (
GO
CREATE TABLE grades (grade_id INTEGER PRIMARY KEY, grade TEXT)
GO`

	res := engine.ApplyScript(context.Background(), dst.DB, src, "GO", zaptest.NewLogger(t))
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Applied)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, 1, res.Warnings[0].Index)
	assert.Equal(t, 3, res.Warnings[0].Line)
	assert.Contains(t, res.Warnings[0].Error(), "statement 2 (line 3)")
	require.Error(t, res.Err())

	assert.EqualValues(t, 0, count(t, dst, "students"))
	assert.EqualValues(t, 0, count(t, dst, "grades"))
}

func TestApplyScriptExistingObjectsAreWarnings(t *testing.T) {
	dst := openStore(t, store.Destination, sqliteConfig(t, "dst"))
	ctx := context.Background()

	first := engine.ApplyScript(ctx, dst.DB, recordsDDL, "GO", nil)
	assert.Equal(t, 3, first.Applied)
	assert.NoError(t, first.Err())

	again := engine.ApplyScript(ctx, dst.DB, recordsDDL, "GO", nil)
	assert.Equal(t, 0, again.Applied)
	assert.Len(t, again.Warnings, 3)
}

func TestApplyScriptEmpty(t *testing.T) {
	dst := openStore(t, store.Destination, sqliteConfig(t, "dst"))
	res := engine.ApplyScript(context.Background(), dst.DB, "-- nothing here\nGO\n", "GO", nil)
	assert.Equal(t, engine.ApplyResult{}, res)
	assert.NoError(t, res.Err())
}

func TestApplyScriptRecordsUnreadableTail(t *testing.T) {
	dst := openStore(t, store.Destination, sqliteConfig(t, "dst"))
	src := "CREATE TABLE students (student_id INTEGER PRIMARY KEY)\nGO\n" +
		strings.Repeat("x", script.MaxLineSize+1) + "\nGO\nCREATE TABLE courses (course_id INTEGER PRIMARY KEY)"

	res := engine.ApplyScript(context.Background(), dst.DB, src, "GO", zaptest.NewLogger(t))
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Applied)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, 3, res.Warnings[0].Line)
	assert.ErrorIs(t, res.Err(), bufio.ErrTooLong)

	assert.EqualValues(t, 0, count(t, dst, "students"))
}
