package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cortexai/cortexbi/internal/chart"
	"github.com/cortexai/cortexbi/internal/models"
	"github.com/cortexai/cortexbi/internal/session"
)

// maxPrintedRows keeps terminal tables short.
const maxPrintedRows = 15

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Background(lipgloss.Color("#1F2937")).
			Padding(0, 1).
			MarginBottom(1)

	tableStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)

	sqlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Italic(true)

	insightStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#10B981")).
			Padding(0, 1).
			Width(80)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)
)

func submit(ctx context.Context, conv *session.Conversation, question, sql string) (*session.Handle, error) {
	if sql != "" {
		return conv.SubmitPredefined(ctx, question, sql)
	}
	return conv.Submit(ctx, question)
}

func printSession(s *models.QuerySession) {
	for i, res := range s.QueryResults {
		fmt.Println(lipgloss.NewStyle().Bold(true).Render(res.QueryName))
		if i < len(s.SQLQueries) {
			fmt.Println(sqlStyle.Render(s.SQLQueries[i].SQL))
		}
		fmt.Println(tableStyle.Render(renderTable(res)))
	}

	if s.ChartConfig != nil {
		if m, err := chart.Build(s.QueryResults, s.SelectedQueryIndex, s.ChartConfig); err == nil {
			fmt.Println(renderChartSummary(m))
		} else {
			fmt.Println(warnStyle.Render("chart: " + err.Error()))
		}
	}

	if s.Insights != nil {
		var b strings.Builder
		b.WriteString(s.Insights.Summary)
		for _, f := range s.Insights.KeyFindings {
			fmt.Fprintf(&b, "\n• %s (%s): %s", f.Title, f.Importance, f.Description)
		}
		for _, a := range s.Insights.RecommendedActions {
			fmt.Fprintf(&b, "\n→ %s", a)
		}
		fmt.Println(insightStyle.Render(b.String()))
	}
}

func printNotices(n models.Notices) {
	if n.Fatal != nil {
		fmt.Println(errorStyle.Render(n.Fatal.Error()))
	}
	if n.Chart != nil {
		fmt.Println(warnStyle.Render(n.Chart.Error()))
	}
	if n.Insight != nil {
		fmt.Println(warnStyle.Render(n.Insight.Error()))
	}
}

func renderTable(res models.QueryResult) string {
	cols := res.Columns
	if len(cols) == 0 && len(res.Data) > 0 {
		cols = slices.Sorted(maps.Keys(res.Data[0]))
	}
	rows := res.Data
	if len(rows) > maxPrintedRows {
		rows = rows[:maxPrintedRows]
	}

	widths := make([]int, len(cols))
	cells := make([][]string, len(rows))
	for i, c := range cols {
		widths[i] = len(c)
	}
	for r, row := range rows {
		cells[r] = make([]string, len(cols))
		for i, c := range cols {
			v := fmt.Sprint(row[c])
			if row[c] == nil {
				v = "NULL"
			}
			cells[r][i] = v
			widths[i] = max(widths[i], len(v))
		}
	}

	var b strings.Builder
	for i, c := range cols {
		fmt.Fprintf(&b, "%-*s  ", widths[i], c)
	}
	for _, row := range cells {
		b.WriteString("\n")
		for i, v := range row {
			fmt.Fprintf(&b, "%-*s  ", widths[i], v)
		}
	}
	if len(res.Data) > len(rows) {
		fmt.Fprintf(&b, "\n… %d more rows", len(res.Data)-len(rows))
	}
	return b.String()
}

func renderChartSummary(m *models.SeriesModel) string {
	names := make([]string, 0, len(m.Series))
	for _, s := range m.Series {
		names = append(names, lipgloss.NewStyle().Foreground(lipgloss.Color(s.Color)).Render(s.Name))
	}
	line := fmt.Sprintf("%s chart over %s: %s (%d points)", m.Type, m.XKey, strings.Join(names, ", "), len(m.Data))
	if m.Truncated {
		line += fmt.Sprintf(", showing %d of %d", len(m.Data), m.TotalPoints)
	}
	return line
}
