// Package consolidate merges independently generated query results into one
// dataset for a single comparison chart.
//
// Field collisions follow a fixed policy: a bare field name keeps the value
// of the first source that wrote it (sources in participant order, rows in
// result order), while the source-prefixed copy always reflects that
// source's own value.
package consolidate

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/cortexai/cortexbi/internal/models"
)

const (
	// SourceField tags a stacked row with its source query name.
	SourceField = "_source"
	// SourcesField lists the source query names that contributed to a merged row.
	SourcesField = "_sources"
)

// Result is a consolidated dataset plus the color of each source query.
type Result struct {
	Rows    []models.Row
	Colors  map[string]string
	Sources []string
}

// Consolidate combines results as described by cons. It never fails: a
// missing keyField for merge/join, or an unknown method, degrades to plain
// concatenation of the participants' rows.
func Consolidate(results []models.QueryResult, cons models.Consolidation) Result {
	participants := selectParticipants(results, cons.SourceQueries)

	names := cons.SourceQueries
	if len(names) == 0 {
		names = make([]string, len(participants))
		for i, p := range participants {
			names[i] = p.QueryName
		}
	}

	res := Result{Colors: AssignColors(names)}
	for _, p := range participants {
		res.Sources = append(res.Sources, p.QueryName)
	}
	if len(participants) == 0 {
		res.Rows = []models.Row{}
		return res
	}

	switch cons.Method {
	case models.ConsolidateMerge:
		if cons.KeyField == "" {
			res.Rows = concat(participants)
		} else {
			res.Rows = merge(participants, cons.KeyField)
		}
	case models.ConsolidateStack:
		res.Rows = stack(participants, cons.ValueFields)
	case models.ConsolidateJoin:
		if cons.KeyField == "" {
			res.Rows = concat(participants)
		} else {
			res.Rows = join(participants, cons.KeyField, cons.ValueFields)
		}
	default:
		log.Warn().Str("method", string(cons.Method)).Msg("unknown consolidation method, concatenating rows")
		res.Rows = concat(participants)
	}
	return res
}

func selectParticipants(results []models.QueryResult, sourceQueries []string) []models.QueryResult {
	if len(sourceQueries) == 0 {
		return results
	}
	wanted := make(map[string]bool, len(sourceQueries))
	for _, name := range sourceQueries {
		wanted[name] = true
	}
	var out []models.QueryResult
	for _, r := range results {
		if wanted[r.QueryName] {
			out = append(out, r)
		}
	}
	return out
}

// keyOf returns the grouping key of row, or false when the field is absent
// or empty.
func keyOf(row models.Row, field string) (string, bool) {
	v, ok := row[field]
	if !ok || v == nil {
		return "", false
	}
	k := fmt.Sprint(v)
	if k == "" {
		return "", false
	}
	return k, true
}

func concat(participants []models.QueryResult) []models.Row {
	out := []models.Row{}
	for _, p := range participants {
		for _, row := range p.Data {
			out = append(out, row.Clone())
		}
	}
	return out
}

func merge(participants []models.QueryResult, keyField string) []models.Row {
	var order []string
	byKey := make(map[string]models.Row)

	for _, p := range participants {
		for _, row := range p.Data {
			key, ok := keyOf(row, keyField)
			if !ok {
				continue
			}
			merged, seen := byKey[key]
			if !seen {
				merged = models.Row{keyField: row[keyField], SourcesField: []string{}}
				byKey[key] = merged
				order = append(order, key)
			}
			for field, v := range row {
				if field == keyField {
					continue
				}
				if _, exists := merged[field]; !exists {
					merged[field] = v
				}
				merged[PrefixedField(p.QueryName, field)] = v
			}
			sources := merged[SourcesField].([]string)
			if !slices.Contains(sources, p.QueryName) {
				merged[SourcesField] = append(sources, p.QueryName)
			}
		}
	}

	out := make([]models.Row, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key])
	}
	return out
}

func stack(participants []models.QueryResult, valueFields []string) []models.Row {
	out := []models.Row{}
	for _, p := range participants {
		for _, row := range p.Data {
			var tagged models.Row
			if len(valueFields) > 0 {
				tagged = make(models.Row, len(valueFields)+1)
				for _, f := range valueFields {
					if v, ok := row[f]; ok {
						tagged[f] = v
					}
				}
			} else {
				tagged = row.Clone()
			}
			tagged[SourceField] = p.QueryName
			out = append(out, tagged)
		}
	}
	return out
}

func join(participants []models.QueryResult, keyField string, valueFields []string) []models.Row {
	base := participants[0]
	out := make([]models.Row, len(base.Data))
	for i, row := range base.Data {
		out[i] = row.Clone()
	}

	for _, secondary := range participants[1:] {
		lookup := make(map[string]models.Row, len(secondary.Data))
		for _, row := range secondary.Data {
			key, ok := keyOf(row, keyField)
			if !ok {
				continue
			}
			if _, dup := lookup[key]; !dup {
				lookup[key] = row
			}
		}

		for _, row := range out {
			key, ok := keyOf(row, keyField)
			if !ok {
				continue
			}
			match, found := lookup[key]
			if !found {
				continue
			}
			for field, v := range match {
				row[PrefixedField(secondary.QueryName, field)] = v
			}
			for _, f := range valueFields {
				v, ok := match[f]
				if !ok {
					continue
				}
				if _, exists := row[f]; !exists {
					row[f] = v
				}
			}
		}
	}
	return out
}
