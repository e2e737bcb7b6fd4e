package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cortexai/cortexbi/internal/models"
)

func TestRenderTable(t *testing.T) {
	out := renderTable(models.QueryResult{
		Columns: []string{"employee", "hours"},
		Data: []models.Row{
			{"employee": "A", "hours": int64(10)},
			{"employee": "Bartholomew", "hours": nil},
		},
	})
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "employee     hours"))
	assert.Contains(t, lines[2], "NULL")
}

func TestRenderTableTruncates(t *testing.T) {
	rows := make([]models.Row, maxPrintedRows+5)
	for i := range rows {
		rows[i] = models.Row{"n": i}
	}
	out := renderTable(models.QueryResult{Data: rows})
	assert.Contains(t, out, "5 more rows")
}

func TestRenderChartSummary(t *testing.T) {
	out := renderChartSummary(&models.SeriesModel{
		Type:        models.ChartBar,
		XKey:        "category",
		Series:      []models.Series{{Key: "v", Name: "v", Color: "#000000"}},
		Data:        make([]models.Row, 20),
		TotalPoints: 35,
		Truncated:   true,
	})
	assert.Contains(t, out, "showing 20 of 35")
}
