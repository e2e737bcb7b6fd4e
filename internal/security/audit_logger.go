package security

import (
	"github.com/rs/zerolog/log"
)

// AuditLogger logs security-relevant events with hashed identifiers
type AuditLogger struct {
	enabled bool
}

func NewAuditLogger(enabled bool) *AuditLogger {
	return &AuditLogger{enabled: enabled}
}

// LogQuery records one warehouse execution
func (a *AuditLogger) LogQuery(
	queryName, sql, backend string,
	executionTimeMs int64,
	rowCount int,
	success bool,
	errMsg string,
) {
	if a == nil || !a.enabled {
		return
	}
	evt := log.Info().
		Str("event", "query_audit").
		Str("query_name", queryName).
		Str("sql_hash", hashStr(sql)[:16]).
		Str("backend", backend).
		Int64("execution_time_ms", executionTimeMs).
		Int("row_count", rowCount).
		Bool("success", success)

	if errMsg != "" {
		evt = evt.Str("error", errMsg)
	}
	evt.Msg("audit")
}

// LogStage records a pipeline transition for a question. The question text
// is only logged as a hash.
func (a *AuditLogger) LogStage(conversationID, sessionID, stage, question, errKind string) {
	if a == nil || !a.enabled {
		return
	}
	evt := log.Info().
		Str("event", "pipeline_audit").
		Str("conversation_id", conversationID).
		Str("session_id", sessionID).
		Str("stage", stage).
		Str("question_hash", hashStr(question)[:16])
	if errKind != "" {
		evt = evt.Str("error_kind", errKind)
	}
	evt.Msg("pipeline audit")
}

// LogRejectedPrompt records a question blocked at the boundary.
func (a *AuditLogger) LogRejectedPrompt(prompt, apiKey, reason string) {
	if a == nil || !a.enabled {
		return
	}
	log.Warn().
		Str("event", "prompt_rejected").
		Str("prompt_hash", hashStr(prompt)[:16]).
		Str("api_key_hash", hashStr(apiKey)[:16]).
		Str("reason", reason).
		Msg("prompt audit")
}
