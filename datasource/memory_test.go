package datasource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelbind/relate/logger"
	"github.com/modelbind/relate/query"
)

func newMemoryDS() *DataSource {
	return New(NewMemory(), WithLogger(logger.Discard))
}

func seedTasks(t *testing.T, ds *DataSource) {
	t.Helper()
	ctx := context.Background()
	rows := []map[string]interface{}{
		{"id": "t1", "state": "open", "weight": 1},
		{"id": "t2", "state": "open", "weight": 5},
		{"id": "t3", "state": "done", "weight": 3},
	}
	for _, row := range rows {
		_, err := ds.Create(ctx, "Task", row, "id")
		require.NoError(t, err)
	}
}

func TestMemoryCreateAssignsID(t *testing.T) {
	ctx := context.Background()
	ds := newMemoryDS()

	id, err := ds.Create(ctx, "Task", map[string]interface{}{"state": "open"}, "id")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	given, err := ds.Create(ctx, "Task", map[string]interface{}{"id": "t9"}, "id")
	require.NoError(t, err)
	assert.Equal(t, "t9", given)
}

func TestMemoryFindEquality(t *testing.T) {
	ctx := context.Background()
	ds := newMemoryDS()
	seedTasks(t, ds)

	rows, err := ds.Find(ctx, "Task", &query.Filter{Where: query.Where{"state": "open"}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = ds.Find(ctx, "Task", nil)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestMemoryFindOperators(t *testing.T) {
	ctx := context.Background()
	ds := newMemoryDS()
	seedTasks(t, ds)

	cases := []struct {
		name  string
		where query.Where
		want  int
	}{
		{"inq", query.Where{"id": query.Where{query.OpInq: []interface{}{"t1", "t3"}}}, 2},
		{"neq", query.Where{"state": query.Where{query.OpNeq: "open"}}, 1},
		{"gt", query.Where{"weight": query.Where{query.OpGt: 1}}, 2},
		{"gte", query.Where{"weight": query.Where{query.OpGte: 3}}, 2},
		{"lt", query.Where{"weight": query.Where{query.OpLt: 3}}, 1},
		{"lte", query.Where{"weight": query.Where{query.OpLte: 3}}, 2},
		{"between", query.Where{"weight": query.Where{query.OpBetween: []interface{}{2, 4}}}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows, err := ds.Find(ctx, "Task", &query.Filter{Where: tc.where})
			require.NoError(t, err)
			assert.Len(t, rows, tc.want)
		})
	}
}

func TestMemoryOrderSkipLimitFields(t *testing.T) {
	ctx := context.Background()
	ds := newMemoryDS()
	seedTasks(t, ds)

	rows, err := ds.Find(ctx, "Task", &query.Filter{Order: []string{"weight DESC"}})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "t2", rows[0]["id"])

	rows, err = ds.Find(ctx, "Task", &query.Filter{Order: []string{"weight ASC"}, Skip: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "t3", rows[0]["id"])

	rows, err = ds.Find(ctx, "Task", &query.Filter{
		Where:  query.Where{"id": "t1"},
		Fields: []string{"id"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]interface{}{"id": "t1"}, rows[0])
}

func TestMemoryRowsAreIsolated(t *testing.T) {
	ctx := context.Background()
	ds := newMemoryDS()
	seedTasks(t, ds)

	rows, err := ds.Find(ctx, "Task", &query.Filter{Where: query.Where{"id": "t1"}})
	require.NoError(t, err)
	rows[0]["state"] = "mutated"

	again, err := ds.Find(ctx, "Task", &query.Filter{Where: query.Where{"id": "t1"}})
	require.NoError(t, err)
	assert.Equal(t, "open", again[0]["state"], "returned rows are copies")
}

func TestMemorySaveAndUpdateAttributes(t *testing.T) {
	ctx := context.Background()
	ds := newMemoryDS()
	seedTasks(t, ds)

	err := ds.Save(ctx, "Task", "t1", map[string]interface{}{"id": "t1", "state": "closed"})
	require.NoError(t, err)

	rows, err := ds.Find(ctx, "Task", &query.Filter{Where: query.Where{"id": "t1"}})
	require.NoError(t, err)
	assert.Equal(t, "closed", rows[0]["state"])
	assert.NotContains(t, rows[0], "weight", "save replaces the whole row")

	err = ds.UpdateAttributes(ctx, "Task", "t2", map[string]interface{}{"state": "closed"})
	require.NoError(t, err)
	rows, err = ds.Find(ctx, "Task", &query.Filter{Where: query.Where{"id": "t2"}})
	require.NoError(t, err)
	assert.Equal(t, "closed", rows[0]["state"])
	assert.Equal(t, 5, rows[0]["weight"], "update merges into the row")

	err = ds.UpdateAttributes(ctx, "Task", "ghost", map[string]interface{}{"state": "x"})
	require.Error(t, err)
}

func TestMemoryCountDeleteDestroy(t *testing.T) {
	ctx := context.Background()
	ds := newMemoryDS()
	seedTasks(t, ds)

	n, err := ds.Count(ctx, "Task", query.Where{"state": "open"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	existed, err := ds.DestroyByID(ctx, "Task", "t3")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = ds.DestroyByID(ctx, "Task", "t3")
	require.NoError(t, err)
	assert.False(t, existed)

	removed, err := ds.DeleteAll(ctx, "Task", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	n, err = ds.Count(ctx, "Task", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestMemoryIDStringEquivalence(t *testing.T) {
	ctx := context.Background()
	ds := newMemoryDS()

	_, err := ds.Create(ctx, "Task", map[string]interface{}{"id": 7, "state": "open"}, "id")
	require.NoError(t, err)

	// numeric and string forms address the same row
	rows, err := ds.Find(ctx, "Task", &query.Filter{Where: query.Where{"id": "7"}})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	existed, err := ds.DestroyByID(ctx, "Task", "7")
	require.NoError(t, err)
	assert.True(t, existed)
}

func TestDataSourceIDNames(t *testing.T) {
	ds := newMemoryDS()
	assert.Equal(t, "id", ds.IDName("Anything"))

	ds.SetIDName("Legacy", "uid")
	assert.Equal(t, "uid", ds.IDName("Legacy"))
}

func TestDataSourceGenerateID(t *testing.T) {
	ds := newMemoryDS()
	id, err := ds.GenerateID("Task", nil, "id")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	other, err := ds.GenerateID("Task", nil, "id")
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}
