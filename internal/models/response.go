package models

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// QueryMetadata describes one direct execution
type QueryMetadata struct {
	Backend         string `json:"backend"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
}

// QueryResponse is returned by POST /api/v1/query
type QueryResponse struct {
	Status   string        `json:"status"`
	Data     []Row         `json:"data"`
	Metadata QueryMetadata `json:"metadata"`
	RowCount int           `json:"row_count"`
	Columns  []string      `json:"columns"`
}

// Notices groups the latest failure of each kind so one never hides another.
type Notices struct {
	Fatal   *PipelineError `json:"fatal,omitempty"`
	Chart   *PipelineError `json:"chart,omitempty"`
	Insight *PipelineError `json:"insight,omitempty"`
}

// ConversationResponse is returned by GET /api/v1/conversations/{id}
type ConversationResponse struct {
	ID               string              `json:"id"`
	CurrentSessionID string              `json:"current_session_id,omitempty"`
	Sessions         []*QuerySession     `json:"sessions"`
	History          []ConversationEntry `json:"history"`
	Notices          Notices             `json:"notices"`
}

// SessionResponse is returned by question submission and session lookups
type SessionResponse struct {
	Status         string         `json:"status"`
	ConversationID string         `json:"conversation_id"`
	Session        *QuerySession  `json:"session,omitempty"`
	Error          *PipelineError `json:"error,omitempty"`
}

// SchemaResponse is returned by GET /api/v1/schema
type SchemaResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Schema  string `json:"schema"`
}
