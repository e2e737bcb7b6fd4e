package models

// Row is one result row keyed by column name. Values are scalars: string,
// float64, int64, bool, nil or time.Time.
type Row map[string]interface{}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// SQLQuery is one generated statement. QueryName is unique within a session.
type SQLQuery struct {
	QueryName        string `json:"queryName"`
	QueryDescription string `json:"queryDescription"`
	SQL              string `json:"sql"`
}

// QueryResult holds the rows produced by one SQLQuery. QueryName matches the
// originating query and is the key used by consolidation.
type QueryResult struct {
	QueryName        string   `json:"queryName"`
	QueryDescription string   `json:"queryDescription"`
	Data             []Row    `json:"data"`
	Columns          []string `json:"columns,omitempty"`
}
