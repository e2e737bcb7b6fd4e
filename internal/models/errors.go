package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrGeneration        = errors.New("sql generation failed")
	ErrExecution         = errors.New("query execution failed")
	ErrChartGeneration   = errors.New("chart generation failed")
	ErrInsightGeneration = errors.New("insight generation failed")

	ErrEmptyQuestion        = errors.New("question is empty")
	ErrSessionNotFound      = errors.New("session not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrStale                = errors.New("conversation was cleared while the question was in flight")
)

// ErrorKind names the pipeline stage a failure came from.
type ErrorKind string

const (
	KindGeneration ErrorKind = "generation"
	KindExecution  ErrorKind = "execution"
	KindChart      ErrorKind = "chart"
	KindInsight    ErrorKind = "insight"
)

var kindSentinels = map[ErrorKind]error{
	KindGeneration: ErrGeneration,
	KindExecution:  ErrExecution,
	KindChart:      ErrChartGeneration,
	KindInsight:    ErrInsightGeneration,
}

// Fatal reports whether a failure of this kind ends the question.
func (k ErrorKind) Fatal() bool {
	return k == KindGeneration || k == KindExecution
}

// PipelineError is a stage failure. Question always carries the original
// user text so the caller can resubmit it unchanged.
type PipelineError struct {
	Kind      ErrorKind `json:"kind"`
	Question  string    `json:"question"`
	SessionID string    `json:"sessionId,omitempty"`
	Err       error     `json:"-"`
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *PipelineError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// MarshalJSON includes the message of the wrapped error.
func (e *PipelineError) MarshalJSON() ([]byte, error) {
	type notice struct {
		Kind      ErrorKind `json:"kind"`
		Question  string    `json:"question"`
		SessionID string    `json:"sessionId,omitempty"`
		Message   string    `json:"message"`
	}
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(notice{Kind: e.Kind, Question: e.Question, SessionID: e.SessionID, Message: msg})
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

func WriteError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Status:  "error",
		Message: message,
		Code:    code,
	})
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
