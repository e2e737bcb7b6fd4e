package models

import "fmt"

// ChartType is the closed set of renderable chart kinds.
type ChartType string

const (
	ChartBar     ChartType = "bar"
	ChartLine    ChartType = "line"
	ChartArea    ChartType = "area"
	ChartPie     ChartType = "pie"
	ChartScatter ChartType = "scatter"
	ChartRadar   ChartType = "radar"
	ChartPolar   ChartType = "polar"
	ChartGauge   ChartType = "gauge"
	ChartHeatmap ChartType = "heatmap"
	ChartTreemap ChartType = "treemap"
	ChartTable   ChartType = "table"
)

var chartTypes = map[ChartType]bool{
	ChartBar: true, ChartLine: true, ChartArea: true, ChartPie: true,
	ChartScatter: true, ChartRadar: true, ChartPolar: true, ChartGauge: true,
	ChartHeatmap: true, ChartTreemap: true, ChartTable: true,
}

// Valid reports whether t is one of the known chart types.
func (t ChartType) Valid() bool {
	return chartTypes[t]
}

// ConsolidationMethod selects how multiple results are combined.
type ConsolidationMethod string

const (
	ConsolidateMerge ConsolidationMethod = "merge"
	ConsolidateStack ConsolidationMethod = "stack"
	ConsolidateJoin  ConsolidationMethod = "join"
)

// Consolidation describes how several query results feed a single chart.
type Consolidation struct {
	Method        ConsolidationMethod `json:"method"`
	KeyField      string              `json:"keyField,omitempty"`
	ValueFields   []string            `json:"valueFields,omitempty"`
	SourceQueries []string            `json:"sourceQueries,omitempty"`
}

// ChartDescription is the declarative chart returned by the chart stage.
type ChartDescription struct {
	Type          ChartType          `json:"type"`
	Title         string             `json:"title,omitempty"`
	XKey          string             `json:"xKey"`
	YKeys         []string           `json:"yKeys"`
	Colors        map[string]string  `json:"colors,omitempty"`
	Legend        bool               `json:"legend"`
	RelatedCharts []ChartDescription `json:"relatedCharts,omitempty"`
	Consolidation *Consolidation     `json:"consolidation,omitempty"`

	// QueryName binds a related chart to one result.
	QueryName string `json:"queryName,omitempty"`

	// Long-to-wide pivot for line charts.
	MultipleLines     bool     `json:"multipleLines,omitempty"`
	MeasurementColumn string   `json:"measurementColumn,omitempty"`
	CategoryKey       string   `json:"categoryKey,omitempty"`
	LineCategories    []string `json:"lineCategories,omitempty"`
}

// Validate checks the structural requirements of a chart description.
func (d *ChartDescription) Validate() error {
	if !d.Type.Valid() {
		return fmt.Errorf("unknown chart type %q", d.Type)
	}
	if d.Type != ChartTable && d.XKey == "" {
		return fmt.Errorf("xKey is required for %s charts", d.Type)
	}
	if len(d.YKeys) == 0 {
		return fmt.Errorf("yKeys must not be empty")
	}
	for i := range d.RelatedCharts {
		if err := d.RelatedCharts[i].Validate(); err != nil {
			return fmt.Errorf("related chart %d: %w", i, err)
		}
	}
	return nil
}

// Series is one rendered measure.
type Series struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// SeriesModel is the renderer-neutral output of the chart adapter.
type SeriesModel struct {
	Type        ChartType     `json:"type"`
	Title       string        `json:"title,omitempty"`
	QueryName   string        `json:"queryName,omitempty"`
	XKey        string        `json:"xKey"`
	Series      []Series      `json:"series"`
	Data        []Row         `json:"data"`
	Legend      bool          `json:"legend"`
	TotalPoints int           `json:"totalPoints"`
	Truncated   bool          `json:"truncated,omitempty"`
	Related     []SeriesModel `json:"related,omitempty"`
}
