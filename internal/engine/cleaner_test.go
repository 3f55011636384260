package engine_test

import (
	"context"
	"testing"

	"records-migrate/internal/engine"
	"records-migrate/internal/schema"
	"records-migrate/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCleanDeleteInReverseOrder(t *testing.T) {
	dst := newRecordsStore(t, store.Destination)
	seedRecords(t, dst)
	exec(t, dst, `INSERT INTO enrollments VALUES (1, 1, 1)`)

	specs := schema.SpecsFromNames([]string{"students", "courses", "enrollments"})
	res := engine.Clean(context.Background(), dst, engine.CleanupDelete, specs, nil, zaptest.NewLogger(t))

	assert.NoError(t, res.Err())
	assert.Equal(t, []string{"enrollments", "courses", "students"}, res.Cleaned)
	for _, table := range []string{"students", "courses", "enrollments"} {
		assert.EqualValues(t, 0, count(t, dst, table), table)
	}
}

func TestCleanDeleteWrongOrderLeavesWarnings(t *testing.T) {
	dst := newRecordsStore(t, store.Destination)
	seedRecords(t, dst)
	exec(t, dst, `INSERT INTO enrollments VALUES (1, 1, 1)`)

	// reversed, so students and courses go first and hit the foreign key
	specs := schema.SpecsFromNames([]string{"enrollments", "students", "courses"})
	res := engine.Clean(context.Background(), dst, engine.CleanupDelete, specs, nil, nil)

	assert.Len(t, res.Warnings, 2)
	assert.Error(t, res.Err())
	assert.Equal(t, []string{"enrollments"}, res.Cleaned)
	assert.EqualValues(t, 3, count(t, dst, "students"))
}

func TestCleanNone(t *testing.T) {
	dst := newRecordsStore(t, store.Destination)
	seedRecords(t, dst)

	res := engine.Clean(context.Background(), dst, engine.CleanupNone, schema.SpecsFromNames([]string{"students"}), nil, nil)
	assert.Empty(t, res.Cleaned)
	assert.EqualValues(t, 3, count(t, dst, "students"))
}

func TestParseCleanupMode(t *testing.T) {
	for in, want := range map[string]engine.CleanupMode{
		"":       engine.CleanupNone,
		"none":   engine.CleanupNone,
		"DELETE": engine.CleanupDelete,
		"drop":   engine.CleanupDrop,
	} {
		got, err := engine.ParseCleanupMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := engine.ParseCleanupMode("truncate")
	assert.Error(t, err)
}
