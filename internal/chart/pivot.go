package chart

import (
	"fmt"
	"maps"
	"slices"

	"github.com/cortexai/cortexbi/internal/models"
)

// pivot reshapes long-format rows (one row per x value and category) into
// one row per x value with a column per category. It returns the wide rows
// and the category columns, which become the chart's series keys.
func pivot(rows []models.Row, desc models.ChartDescription) ([]models.Row, []string) {
	measure := desc.MeasurementColumn
	if measure == "" && len(desc.YKeys) > 0 {
		measure = desc.YKeys[0]
	}
	category := desc.CategoryKey
	if category == "" {
		category = inferCategory(rows, desc.XKey, measure)
	}
	if category == "" || measure == "" {
		return rows, desc.YKeys
	}

	categories := append([]string(nil), desc.LineCategories...)
	known := make(map[string]bool, len(categories))
	for _, c := range categories {
		known[c] = true
	}
	restrict := len(categories) > 0

	var order []string
	byX := make(map[string]models.Row)
	for _, row := range rows {
		cv, ok := row[category]
		if !ok || cv == nil {
			continue
		}
		cat := fmt.Sprint(cv)
		if restrict && !known[cat] {
			continue
		}
		if !known[cat] {
			known[cat] = true
			categories = append(categories, cat)
		}

		x := fmt.Sprint(row[desc.XKey])
		wide, seen := byX[x]
		if !seen {
			wide = models.Row{desc.XKey: row[desc.XKey]}
			byX[x] = wide
			order = append(order, x)
		}
		wide[cat] = row[measure]
	}

	out := make([]models.Row, 0, len(order))
	for _, x := range order {
		out = append(out, byX[x])
	}
	return out, categories
}

// inferCategory picks the first string-valued column of the first row that
// is neither the x axis nor the measurement, in sorted column order.
func inferCategory(rows []models.Row, xKey, measure string) string {
	if len(rows) == 0 {
		return ""
	}
	for _, col := range slices.Sorted(maps.Keys(rows[0])) {
		if col == xKey || col == measure {
			continue
		}
		if _, ok := rows[0][col].(string); ok {
			return col
		}
	}
	return ""
}
