package models

import "time"

// Importance ranks a key finding.
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// Finding is one key finding of the insight stage.
type Finding struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Importance  Importance `json:"importance"`
}

// Insights is the narrative produced by the insight stage.
type Insights struct {
	Summary            string    `json:"summary"`
	KeyFindings        []Finding `json:"keyFindings"`
	RecommendedActions []string  `json:"recommendedActions"`
	Anomalies          []string  `json:"anomalies,omitempty"`
	Correlations       []string  `json:"correlations,omitempty"`
	Trends             []string  `json:"trends,omitempty"`
}

// SessionStatus is the furthest pipeline stage a session has reached.
type SessionStatus string

const (
	StatusCreated   SessionStatus = "created"
	StatusGenerated SessionStatus = "generated"
	StatusExecuted  SessionStatus = "executed"
	StatusCharted   SessionStatus = "charted"
	StatusInsighted SessionStatus = "insighted"
	StatusErrored   SessionStatus = "errored"
)

// QuerySession is one question-to-answer cycle. Published snapshots are
// never mutated; every stage produces a new copy.
type QuerySession struct {
	ID                 string            `json:"id"`
	UserQuery          string            `json:"userQuery"`
	CreatedAt          time.Time         `json:"createdAt"`
	Status             SessionStatus     `json:"status"`
	SQLQueries         []SQLQuery        `json:"sqlQueries"`
	QueryResults       []QueryResult     `json:"queryResults"`
	ChartConfig        *ChartDescription `json:"chartConfig"`
	Insights           *Insights         `json:"insights"`
	SelectedQueryIndex int               `json:"selectedQueryIndex"`
	Predefined         bool              `json:"predefined,omitempty"`

	// Non-fatal stage notices, surfaced independently.
	ChartError   string `json:"chartError,omitempty"`
	InsightError string `json:"insightError,omitempty"`

	// Done is set once the insight stage has finished, successfully or not.
	Done bool `json:"done"`
}

// Clone copies the session header and its slices. Rows are shared; they are
// never written after execution.
func (s *QuerySession) Clone() *QuerySession {
	if s == nil {
		return nil
	}
	out := *s
	out.SQLQueries = append([]SQLQuery(nil), s.SQLQueries...)
	out.QueryResults = append([]QueryResult(nil), s.QueryResults...)
	return &out
}

// SelectedResult returns the result at SelectedQueryIndex, if any.
func (s *QuerySession) SelectedResult() (QueryResult, bool) {
	if s.SelectedQueryIndex < 0 || s.SelectedQueryIndex >= len(s.QueryResults) {
		return QueryResult{}, false
	}
	return s.QueryResults[s.SelectedQueryIndex], true
}

// EntryKind tags a conversation entry.
type EntryKind string

const (
	EntryUser   EntryKind = "user"
	EntrySystem EntryKind = "system"
)

// ConversationEntry is one append-only history item. System entries point at
// their session by id; the session itself lives in the conversation's map.
type ConversationEntry struct {
	Kind      EntryKind `json:"kind"`
	Text      string    `json:"text"`
	SessionID string    `json:"sessionId,omitempty"`
	Error     bool      `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// GenerationContext is passed to SQL generation for follow-up questions.
type GenerationContext struct {
	PreviousQueries []ConversationEntry      `json:"previousQueries"`
	Sessions        map[string]*QuerySession `json:"-"`
}
