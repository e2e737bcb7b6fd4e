package chart_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexai/cortexbi/internal/chart"
	"github.com/cortexai/cortexbi/internal/consolidate"
	"github.com/cortexai/cortexbi/internal/models"
)

// ─── chronology ───────────────────────────────────────────────────────────────

func TestIsTemporalKey(t *testing.T) {
	for _, k := range []string{"order_date", "Month", "created_time", "fiscal_year", "weekday"} {
		assert.True(t, chart.IsTemporalKey(k), k)
	}
	for _, k := range []string{"region", "revenue", "category"} {
		assert.False(t, chart.IsTemporalKey(k), k)
	}
}

func TestAdaptSortsDateAxis(t *testing.T) {
	rows := []models.Row{
		{"order_date": "2024-03-01", "total": 3.0},
		{"order_date": "2024-01-01", "total": 1.0},
		{"order_date": "2024-02-01", "total": 2.0},
	}
	m := chart.Adapt(rows, models.ChartDescription{
		Type: models.ChartLine, XKey: "order_date", YKeys: []string{"total"},
	}, nil)

	require.Len(t, m.Data, 3)
	assert.Equal(t, "2024-01-01", m.Data[0]["order_date"])
	assert.Equal(t, "2024-02-01", m.Data[1]["order_date"])
	assert.Equal(t, "2024-03-01", m.Data[2]["order_date"])
	assert.Equal(t, "2024-03-01", rows[0]["order_date"], "input rows are not reordered")
}

func TestAdaptUnparsableDatesFallBackToStrings(t *testing.T) {
	rows := []models.Row{{"month": "b"}, {"month": "a"}, {"month": "c"}}
	m := chart.Adapt(rows, models.ChartDescription{Type: models.ChartLine, XKey: "month", YKeys: []string{"v"}}, nil)
	assert.Equal(t, "a", m.Data[0]["month"])
	assert.Equal(t, "c", m.Data[2]["month"])
}

func TestAdaptPutsUnparsableDatesAfterParsedOnes(t *testing.T) {
	rows := []models.Row{
		{"order_date": "2024-3-1"},
		{"order_date": "2024-10-01"},
		{"order_date": "2024-02-15"},
	}
	m := chart.Adapt(rows, models.ChartDescription{Type: models.ChartLine, XKey: "order_date", YKeys: []string{"v"}}, nil)

	got := make([]interface{}, len(m.Data))
	for i, r := range m.Data {
		got[i] = r["order_date"]
	}
	assert.Equal(t, []interface{}{"2024-02-15", "2024-10-01", "2024-3-1"}, got)
}

func TestAdaptKeepsOrderForNonTemporalAxis(t *testing.T) {
	rows := []models.Row{{"region": "west"}, {"region": "east"}}
	m := chart.Adapt(rows, models.ChartDescription{Type: models.ChartBar, XKey: "region", YKeys: []string{"v"}}, nil)
	assert.Equal(t, "west", m.Data[0]["region"])
}

// ─── caps ─────────────────────────────────────────────────────────────────────

func manyRows(n int) []models.Row {
	rows := make([]models.Row, n)
	for i := range rows {
		rows[i] = models.Row{"category": fmt.Sprintf("c%02d", i), "value": float64(i)}
	}
	return rows
}

func TestBarChartIsCapped(t *testing.T) {
	m := chart.Adapt(manyRows(35), models.ChartDescription{
		Type: models.ChartBar, XKey: "category", YKeys: []string{"value"},
	}, nil)
	assert.Len(t, m.Data, chart.MaxCategoricalPoints)
	assert.True(t, m.Truncated)
	assert.Equal(t, 35, m.TotalPoints)
}

func TestLineChartIsNotCapped(t *testing.T) {
	m := chart.Adapt(manyRows(35), models.ChartDescription{
		Type: models.ChartLine, XKey: "category", YKeys: []string{"value"},
	}, nil)
	assert.Len(t, m.Data, 35)
	assert.False(t, m.Truncated)
}

// ─── colors ───────────────────────────────────────────────────────────────────

func TestSeriesColorPrecedence(t *testing.T) {
	derived := consolidate.AssignColors([]string{"Sales 2023", "Sales 2024"})
	m := chart.Adapt(nil, models.ChartDescription{
		Type:   models.ChartBar,
		XKey:   "id",
		YKeys:  []string{"Sales_2023_revenue", "Sales_2024_revenue", "other", "Sales 2023"},
		Colors: map[string]string{"Sales 2023": "#000000"},
	}, derived)

	require.Len(t, m.Series, 4)
	assert.Equal(t, consolidate.Palette[0], m.Series[0].Color)
	assert.Equal(t, consolidate.Palette[1], m.Series[1].Color)
	assert.Equal(t, consolidate.PaletteColor(2), m.Series[2].Color)
	assert.Equal(t, "#000000", m.Series[3].Color)
	assert.Equal(t, "Sales 2023 revenue", m.Series[0].Name)
}

// ─── pivot ────────────────────────────────────────────────────────────────────

func TestMultipleLinesPivot(t *testing.T) {
	rows := []models.Row{
		{"month": "2024-02", "region": "north", "sales": 20.0},
		{"month": "2024-01", "region": "north", "sales": 10.0},
		{"month": "2024-01", "region": "south", "sales": 5.0},
		{"month": "2024-02", "region": "south", "sales": 7.0},
	}
	m := chart.Adapt(rows, models.ChartDescription{
		Type:          models.ChartLine,
		XKey:          "month",
		YKeys:         []string{"sales"},
		MultipleLines: true,
	}, nil)

	require.Len(t, m.Data, 2)
	assert.Equal(t, models.Row{"month": "2024-01", "north": 10.0, "south": 5.0}, m.Data[0])
	assert.Equal(t, models.Row{"month": "2024-02", "north": 20.0, "south": 7.0}, m.Data[1])
	require.Len(t, m.Series, 2)
	assert.Equal(t, "north", m.Series[0].Key)
	assert.Equal(t, "south", m.Series[1].Key)
}

func TestPivotRestrictsToLineCategories(t *testing.T) {
	rows := []models.Row{
		{"day": "2024-01-01", "kind": "a", "n": 1.0},
		{"day": "2024-01-01", "kind": "b", "n": 2.0},
	}
	m := chart.Adapt(rows, models.ChartDescription{
		Type:              models.ChartLine,
		XKey:              "day",
		YKeys:             []string{"n"},
		MultipleLines:     true,
		CategoryKey:       "kind",
		MeasurementColumn: "n",
		LineCategories:    []string{"b"},
	}, nil)
	require.Len(t, m.Series, 1)
	assert.Equal(t, models.Row{"day": "2024-01-01", "b": 2.0}, m.Data[0])
}

// ─── Build ────────────────────────────────────────────────────────────────────

func TestBuildUsesSelectedResult(t *testing.T) {
	results := []models.QueryResult{
		{QueryName: "first", Data: []models.Row{{"x": "a", "y": 1.0}}},
		{QueryName: "second", Data: []models.Row{{"x": "b", "y": 2.0}}},
	}
	m, err := chart.Build(results, 1, &models.ChartDescription{Type: models.ChartBar, XKey: "x", YKeys: []string{"y"}})
	require.NoError(t, err)
	assert.Equal(t, "second", m.QueryName)
	assert.Equal(t, "b", m.Data[0]["x"])
}

func TestBuildConsolidates(t *testing.T) {
	results := []models.QueryResult{
		{QueryName: "Q1", Data: []models.Row{{"id": "A", "v": 1.0}}},
		{QueryName: "Q2", Data: []models.Row{{"id": "A", "v": 2.0}}},
	}
	m, err := chart.Build(results, 0, &models.ChartDescription{
		Type:          models.ChartBar,
		XKey:          "id",
		YKeys:         []string{"Q1_v", "Q2_v"},
		Consolidation: &models.Consolidation{Method: models.ConsolidateMerge, KeyField: "id"},
	})
	require.NoError(t, err)
	require.Len(t, m.Data, 1)
	assert.Equal(t, 2.0, m.Data[0]["Q2_v"])
	assert.Equal(t, consolidate.Palette[1], m.Series[1].Color)
}

func TestBuildRelatedCharts(t *testing.T) {
	results := []models.QueryResult{
		{QueryName: "main", Data: []models.Row{{"x": "a", "y": 1.0}}},
		{QueryName: "detail", Data: []models.Row{{"x": "b", "z": 2.0}}},
	}
	m, err := chart.Build(results, 0, &models.ChartDescription{
		Type: models.ChartBar, XKey: "x", YKeys: []string{"y"},
		RelatedCharts: []models.ChartDescription{
			{Type: models.ChartPie, XKey: "x", YKeys: []string{"z"}, QueryName: "detail"},
			{Type: models.ChartPie, XKey: "x", YKeys: []string{"z"}, QueryName: "missing"},
		},
	})
	require.NoError(t, err)
	require.Len(t, m.Related, 1)
	assert.Equal(t, "detail", m.Related[0].QueryName)
}

func TestBuildErrors(t *testing.T) {
	_, err := chart.Build(nil, 0, nil)
	assert.Error(t, err)

	_, err = chart.Build([]models.QueryResult{{QueryName: "a"}}, 3, &models.ChartDescription{Type: models.ChartBar, XKey: "x", YKeys: []string{"y"}})
	assert.Error(t, err)
}
