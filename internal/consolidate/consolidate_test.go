package consolidate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexai/cortexbi/internal/consolidate"
	"github.com/cortexai/cortexbi/internal/models"
)

func salesResults() []models.QueryResult {
	return []models.QueryResult{
		{
			QueryName: "Sales 2023",
			Data: []models.Row{
				{"id": "A", "region": "north", "revenue": 100.0},
				{"id": "B", "region": "south", "revenue": 80.0},
			},
		},
		{
			QueryName: "Sales 2024",
			Data: []models.Row{
				{"id": "B", "region": "south-east", "revenue": 90.0},
				{"id": "C", "region": "west", "revenue": 70.0},
				{"revenue": 5.0},
			},
		},
	}
}

// ─── merge ────────────────────────────────────────────────────────────────────

func TestMergeOneRowPerDistinctKey(t *testing.T) {
	res := consolidate.Consolidate(salesResults(), models.Consolidation{
		Method:   models.ConsolidateMerge,
		KeyField: "id",
	})

	require.Len(t, res.Rows, 3)
	ids := []interface{}{res.Rows[0]["id"], res.Rows[1]["id"], res.Rows[2]["id"]}
	assert.Equal(t, []interface{}{"A", "B", "C"}, ids)

	b := res.Rows[1]
	assert.Equal(t, 80.0, b["revenue"], "bare field keeps the first writer")
	assert.Equal(t, "south", b["region"])
	assert.Equal(t, 80.0, b["Sales_2023_revenue"])
	assert.Equal(t, 90.0, b["Sales_2024_revenue"])
	assert.Equal(t, "south-east", b["Sales_2024_region"])
	assert.Equal(t, []string{"Sales 2023", "Sales 2024"}, b[consolidate.SourcesField])

	assert.Equal(t, []string{"Sales 2023"}, res.Rows[0][consolidate.SourcesField])
}

func TestMergeWithoutKeyFieldConcatenates(t *testing.T) {
	res := consolidate.Consolidate(salesResults(), models.Consolidation{Method: models.ConsolidateMerge})
	assert.Len(t, res.Rows, 5)
}

func TestMergeNumericKeysGroupByStringValue(t *testing.T) {
	results := []models.QueryResult{
		{QueryName: "a", Data: []models.Row{{"id": int64(1), "x": 1.0}}},
		{QueryName: "b", Data: []models.Row{{"id": 1.0, "y": 2.0}, {"id": "", "y": 3.0}}},
	}
	res := consolidate.Consolidate(results, models.Consolidation{Method: models.ConsolidateMerge, KeyField: "id"})
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(1), res.Rows[0]["id"])
	assert.Equal(t, 1.0, res.Rows[0]["x"])
	assert.Equal(t, 2.0, res.Rows[0]["y"])
}

// ─── stack ────────────────────────────────────────────────────────────────────

func TestStackTagsEveryRow(t *testing.T) {
	results := salesResults()
	res := consolidate.Consolidate(results, models.Consolidation{Method: models.ConsolidateStack})

	total := 0
	for _, r := range results {
		total += len(r.Data)
	}
	require.Len(t, res.Rows, total)
	assert.Equal(t, "Sales 2023", res.Rows[0][consolidate.SourceField])
	assert.Equal(t, "Sales 2024", res.Rows[4][consolidate.SourceField])
	assert.Equal(t, "north", res.Rows[0]["region"])
}

func TestStackRestrictsToValueFields(t *testing.T) {
	res := consolidate.Consolidate(salesResults(), models.Consolidation{
		Method:      models.ConsolidateStack,
		ValueFields: []string{"id", "revenue"},
	})
	require.Len(t, res.Rows, 5)
	assert.Equal(t, models.Row{"id": "A", "revenue": 100.0, consolidate.SourceField: "Sales 2023"}, res.Rows[0])

	last := res.Rows[4]
	_, hasID := last["id"]
	assert.False(t, hasID, "absent fields are omitted, not null-filled")
	assert.Len(t, last, 2)
}

// ─── join ─────────────────────────────────────────────────────────────────────

func TestJoinKeepsBaseRowCount(t *testing.T) {
	results := []models.QueryResult{
		{QueryName: "base", Data: []models.Row{{"id": "A", "v": 1.0}, {"id": "B", "v": 2.0}, {"v": 3.0}}},
		{QueryName: "extra one", Data: []models.Row{
			{"id": "A", "w": 10.0}, {"id": "A", "w": 11.0}, {"id": "Z", "w": 99.0}, {"id": "B", "w": 20.0},
		}},
		{QueryName: "extra two", Data: []models.Row{{"id": "A", "w": 100.0, "v": 7.0}}},
	}
	res := consolidate.Consolidate(results, models.Consolidation{
		Method:      models.ConsolidateJoin,
		KeyField:    "id",
		ValueFields: []string{"w", "v"},
	})

	require.Len(t, res.Rows, 3)
	a := res.Rows[0]
	assert.Equal(t, 10.0, a["extra_one_w"], "first secondary row per key is used")
	assert.Equal(t, "A", a["extra_one_id"])
	assert.Equal(t, 100.0, a["extra_two_w"])
	assert.Equal(t, 10.0, a["w"], "value field copied from the first secondary that has it")
	assert.Equal(t, 1.0, a["v"], "base value is never overwritten")

	assert.Equal(t, 20.0, res.Rows[1]["w"])
	_, has := res.Rows[1]["extra_two_w"]
	assert.False(t, has)

	assert.Equal(t, models.Row{"v": 3.0}, res.Rows[2])
}

func TestJoinDoesNotMutateInput(t *testing.T) {
	results := salesResults()
	consolidate.Consolidate(results, models.Consolidation{Method: models.ConsolidateJoin, KeyField: "id"})
	assert.Len(t, results[0].Data[1], 3)
}

// ─── selection, fallback, colors ──────────────────────────────────────────────

func TestSourceQueriesFilterParticipants(t *testing.T) {
	res := consolidate.Consolidate(salesResults(), models.Consolidation{
		Method:        models.ConsolidateStack,
		SourceQueries: []string{"Sales 2024"},
	})
	assert.Len(t, res.Rows, 3)
	assert.Equal(t, []string{"Sales 2024"}, res.Sources)
}

func TestEmptyParticipantsYieldEmptyRows(t *testing.T) {
	res := consolidate.Consolidate(salesResults(), models.Consolidation{
		Method:        models.ConsolidateMerge,
		KeyField:      "id",
		SourceQueries: []string{"missing"},
	})
	require.NotNil(t, res.Rows)
	assert.Empty(t, res.Rows)
}

func TestUnknownMethodConcatenates(t *testing.T) {
	res := consolidate.Consolidate(salesResults(), models.Consolidation{Method: "mrege", KeyField: "id"})
	assert.Len(t, res.Rows, 5)
	_, tagged := res.Rows[0][consolidate.SourceField]
	assert.False(t, tagged)
}

func TestColorsFollowSourceQueryOrder(t *testing.T) {
	res := consolidate.Consolidate(salesResults(), models.Consolidation{
		Method:        models.ConsolidateStack,
		SourceQueries: []string{"Sales 2024", "Sales 2023"},
	})
	assert.Equal(t, consolidate.Palette[0], res.Colors["Sales 2024"])
	assert.Equal(t, consolidate.Palette[1], res.Colors["Sales 2023"])
	assert.Equal(t, consolidate.Palette[0], res.Colors["Sales_2024"])
}

func TestAssignColorsWrapsPalette(t *testing.T) {
	names := make([]string, len(consolidate.Palette)+1)
	for i := range names {
		names[i] = string(rune('a' + i))
	}
	colors := consolidate.AssignColors(names)
	assert.Equal(t, colors[names[0]], colors[names[len(names)-1]])
}
