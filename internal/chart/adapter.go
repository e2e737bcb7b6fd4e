// Package chart turns result rows plus a ChartDescription into a
// renderer-neutral series model.
package chart

import (
	"fmt"
	"strings"

	"github.com/cortexai/cortexbi/internal/consolidate"
	"github.com/cortexai/cortexbi/internal/models"
)

// MaxCategoricalPoints caps bar and pie charts so categories stay legible.
// Line and area charts are never capped.
const MaxCategoricalPoints = 20

// Build renders the chart of a session: the consolidated dataset when the
// description carries a consolidation block, otherwise the selected result.
// Related charts are rendered from the result their QueryName points at.
func Build(results []models.QueryResult, selected int, desc *models.ChartDescription) (*models.SeriesModel, error) {
	if desc == nil {
		return nil, fmt.Errorf("session has no chart description")
	}

	var rows []models.Row
	var derived map[string]string
	queryName := ""

	switch {
	case desc.Consolidation != nil:
		res := consolidate.Consolidate(results, *desc.Consolidation)
		rows = res.Rows
		derived = res.Colors
	case desc.QueryName != "":
		r, ok := findResult(results, desc.QueryName)
		if !ok {
			return nil, fmt.Errorf("chart references unknown query %q", desc.QueryName)
		}
		rows = r.Data
		queryName = r.QueryName
	default:
		if selected < 0 || selected >= len(results) {
			return nil, fmt.Errorf("selected query index %d out of range", selected)
		}
		rows = results[selected].Data
		queryName = results[selected].QueryName
	}

	model := Adapt(rows, *desc, derived)
	model.QueryName = queryName

	for _, rc := range desc.RelatedCharts {
		r, ok := findResult(results, rc.QueryName)
		if !ok {
			continue
		}
		related := rc
		related.RelatedCharts = nil
		sub := Adapt(r.Data, related, nil)
		sub.QueryName = r.QueryName
		model.Related = append(model.Related, sub)
	}
	return &model, nil
}

func findResult(results []models.QueryResult, name string) (models.QueryResult, bool) {
	for _, r := range results {
		if r.QueryName == name {
			return r, true
		}
	}
	return models.QueryResult{}, false
}

// Adapt maps rows onto the series of desc. derived holds colors assigned by
// consolidation; explicit desc.Colors entries take precedence over them and
// both over the palette.
func Adapt(rows []models.Row, desc models.ChartDescription, derived map[string]string) models.SeriesModel {
	data := make([]models.Row, len(rows))
	for i, r := range rows {
		data[i] = r.Clone()
	}
	keys := desc.YKeys

	if desc.MultipleLines && desc.Type == models.ChartLine {
		data, keys = pivot(data, desc)
	}

	if desc.XKey != "" && IsTemporalKey(desc.XKey) {
		SortChronologically(data, desc.XKey)
	}

	model := models.SeriesModel{
		Type:        desc.Type,
		Title:       desc.Title,
		XKey:        desc.XKey,
		Legend:      desc.Legend,
		TotalPoints: len(data),
	}

	if (desc.Type == models.ChartBar || desc.Type == models.ChartPie) && len(data) > MaxCategoricalPoints {
		data = data[:MaxCategoricalPoints]
		model.Truncated = true
	}
	model.Data = data

	for i, key := range keys {
		model.Series = append(model.Series, models.Series{
			Key:   key,
			Name:  displayName(key),
			Color: resolveColor(key, i, desc.Colors, derived),
		})
	}
	return model
}

func resolveColor(key string, idx int, explicit, derived map[string]string) string {
	if c, ok := explicit[key]; ok && c != "" {
		return c
	}
	if c, ok := derived[key]; ok {
		return c
	}
	// Prefixed consolidation fields carry the sanitized source name.
	best := ""
	for name := range derived {
		if strings.HasPrefix(key, name+"_") && len(name) > len(best) {
			best = name
		}
	}
	if best != "" {
		return derived[best]
	}
	return consolidate.PaletteColor(idx)
}

func displayName(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}
