package models

// QueryRequest for POST /api/v1/query (direct SQL)
type QueryRequest struct {
	SQL       string `json:"sql"`
	Name      string `json:"name"`
	TimeoutMs int    `json:"timeout_ms"`
}

func (r *QueryRequest) SetDefaults() {
	if r.Name == "" {
		r.Name = "query"
	}
	if r.TimeoutMs == 0 {
		r.TimeoutMs = 60000
	}
	if r.TimeoutMs < 1000 {
		r.TimeoutMs = 1000
	}
	if r.TimeoutMs > 300000 {
		r.TimeoutMs = 300000
	}
}

// QuestionRequest for POST /api/v1/conversations/{id}/questions
type QuestionRequest struct {
	Text string `json:"text"`
	// Wait blocks the response until the insight stage has finished.
	Wait    bool `json:"wait"`
	Timeout int  `json:"timeout"`
}

func (r *QuestionRequest) SetDefaults() {
	if r.Timeout == 0 {
		r.Timeout = 300
	}
	if r.Timeout < 10 {
		r.Timeout = 10
	}
	if r.Timeout > 600 {
		r.Timeout = 600
	}
}

// PredefinedRequest for POST /api/v1/conversations/{id}/predefined
type PredefinedRequest struct {
	QuestionRequest
	SQL string `json:"sql"`
}

// SelectRequest for PUT /api/v1/conversations/{id}/sessions/{sid}/selected
type SelectRequest struct {
	Index int `json:"index"`
}
