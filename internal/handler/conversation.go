package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cortexai/cortexbi/internal/chart"
	"github.com/cortexai/cortexbi/internal/middleware"
	"github.com/cortexai/cortexbi/internal/models"
	"github.com/cortexai/cortexbi/internal/security"
	"github.com/cortexai/cortexbi/internal/session"
)

// ConversationHandler exposes conversations and their question sessions
type ConversationHandler struct {
	convs       *session.Manager
	piiDetector *security.PIIDetector
	promptVal   *security.PromptValidator
	auditLogger *security.AuditLogger
}

func NewConversationHandler(
	convs *session.Manager,
	piiDetector *security.PIIDetector,
	promptVal *security.PromptValidator,
	auditLogger *security.AuditLogger,
) *ConversationHandler {
	return &ConversationHandler{
		convs:       convs,
		piiDetector: piiDetector,
		promptVal:   promptVal,
		auditLogger: auditLogger,
	}
}

// Routes mounts the conversation endpoints on r.
func (h *ConversationHandler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Route("/{conversationID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Post("/questions", h.Ask)
		r.Post("/predefined", h.AskPredefined)
		r.Post("/retry", h.Retry)
		r.Get("/sessions/{sessionID}", h.GetSession)
		r.Put("/sessions/{sessionID}/selected", h.SelectQuery)
		r.Get("/sessions/{sessionID}/chart", h.Chart)
	})
}

// Create handles POST /api/v1/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	conv := h.convs.Create()
	models.WriteJSON(w, http.StatusCreated, conv.Snapshot())
}

// Get handles GET /api/v1/conversations/{conversationID}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	models.WriteJSON(w, http.StatusOK, conv.Snapshot())
}

// Delete handles DELETE /api/v1/conversations/{conversationID}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.convs.Delete(chi.URLParam(r, "conversationID")); err != nil {
		models.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Ask handles POST /api/v1/conversations/{conversationID}/questions
func (h *ConversationHandler) Ask(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	var req models.QuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.SetDefaults()
	if !h.screen(w, r, req.Text) {
		return
	}

	handle, err := conv.Submit(r.Context(), req.Text)
	h.respond(w, r, conv, handle, err, req)
}

// AskPredefined handles POST /api/v1/conversations/{conversationID}/predefined
func (h *ConversationHandler) AskPredefined(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	var req models.PredefinedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.SetDefaults()
	if strings.TrimSpace(req.SQL) == "" {
		models.WriteError(w, http.StatusBadRequest, "sql is required")
		return
	}

	handle, err := conv.SubmitPredefined(r.Context(), req.Text, req.SQL)
	h.respond(w, r, conv, handle, err, req.QuestionRequest)
}

// Retry handles POST /api/v1/conversations/{conversationID}/retry
func (h *ConversationHandler) Retry(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	var req models.QuestionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	req.SetDefaults()

	handle, err := conv.Retry(r.Context())
	h.respond(w, r, conv, handle, err, req)
}

// GetSession handles GET /api/v1/conversations/{conversationID}/sessions/{sessionID}
func (h *ConversationHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	conv, sess, ok := h.session(w, r)
	if !ok {
		return
	}
	models.WriteJSON(w, http.StatusOK, models.SessionResponse{
		Status:         sessionStatus(sess),
		ConversationID: conv.ID(),
		Session:        sess,
	})
}

// SelectQuery handles PUT /api/v1/conversations/{conversationID}/sessions/{sessionID}/selected
func (h *ConversationHandler) SelectQuery(w http.ResponseWriter, r *http.Request) {
	conv, sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req models.SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !conv.SelectQuery(sess.ID, req.Index) {
		models.WriteError(w, http.StatusBadRequest, "query index out of range")
		return
	}
	updated, _ := conv.Session(sess.ID)
	models.WriteJSON(w, http.StatusOK, models.SessionResponse{
		Status:         sessionStatus(updated),
		ConversationID: conv.ID(),
		Session:        updated,
	})
}

// Chart handles GET /api/v1/conversations/{conversationID}/sessions/{sessionID}/chart
func (h *ConversationHandler) Chart(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if sess.ChartConfig == nil {
		if sess.ChartError != "" {
			models.WriteError(w, http.StatusUnprocessableEntity, sess.ChartError)
			return
		}
		models.WriteError(w, http.StatusNotFound, "chart not ready")
		return
	}
	m, err := chart.Build(sess.QueryResults, sess.SelectedQueryIndex, sess.ChartConfig)
	if err != nil {
		models.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	models.WriteJSON(w, http.StatusOK, m)
}

func (h *ConversationHandler) conversation(w http.ResponseWriter, r *http.Request) (*session.Conversation, bool) {
	conv, err := h.convs.Get(chi.URLParam(r, "conversationID"))
	if err != nil {
		models.WriteError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return conv, true
}

func (h *ConversationHandler) session(w http.ResponseWriter, r *http.Request) (*session.Conversation, *models.QuerySession, bool) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return nil, nil, false
	}
	sess, ok := conv.Session(chi.URLParam(r, "sessionID"))
	if !ok {
		models.WriteError(w, http.StatusNotFound, models.ErrSessionNotFound.Error())
		return nil, nil, false
	}
	return conv, sess, true
}

// screen rejects questions that must not reach the model. Empty text is
// left to the conversation, which treats it as a no-op.
func (h *ConversationHandler) screen(w http.ResponseWriter, r *http.Request, text string) bool {
	if strings.TrimSpace(text) == "" {
		return true
	}
	apiKey := r.Header.Get("X-API-Key")
	if h.promptVal != nil {
		if err := h.promptVal.Validate(text); err != nil {
			h.auditLogger.LogRejectedPrompt(text, apiKey, err.Error())
			models.WriteError(w, http.StatusBadRequest, err.Error())
			return false
		}
	}
	if h.piiDetector != nil {
		if found, kw := h.piiDetector.Detect(text); found {
			h.auditLogger.LogRejectedPrompt(text, apiKey, "pii keyword: "+kw)
			models.WriteError(w, http.StatusBadRequest, "question references sensitive data: "+kw)
			return false
		}
	}
	return true
}

// respond writes the outcome of a submission. With wait set it blocks until
// the insight stage finishes or the timeout elapses; an unfinished session
// is returned with 202.
func (h *ConversationHandler) respond(w http.ResponseWriter, r *http.Request, conv *session.Conversation, handle *session.Handle, err error, req models.QuestionRequest) {
	if err != nil {
		writeSubmitError(w, r, conv.ID(), err)
		return
	}

	if req.Wait {
		ctx, cancel := context.WithTimeout(r.Context(), time.Duration(req.Timeout)*time.Second)
		defer cancel()
		if _, err := handle.Wait(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			writeSubmitError(w, r, conv.ID(), err)
			return
		}
	}

	sess, ok := handle.Snapshot()
	if !ok {
		writeSubmitError(w, r, conv.ID(), models.ErrStale)
		return
	}
	code := http.StatusOK
	if !sess.Done {
		code = http.StatusAccepted
	}
	models.WriteJSON(w, code, models.SessionResponse{
		Status:         sessionStatus(sess),
		ConversationID: conv.ID(),
		Session:        sess,
	})
}

func writeSubmitError(w http.ResponseWriter, r *http.Request, convID string, err error) {
	var perr *models.PipelineError
	switch {
	case errors.Is(err, models.ErrEmptyQuestion):
		models.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrStale), errors.Is(err, session.ErrNothingToRetry):
		models.WriteError(w, http.StatusConflict, err.Error())
	case errors.As(err, &perr):
		models.WriteJSON(w, pipelineStatus(perr), models.SessionResponse{
			Status:         "error",
			ConversationID: convID,
			Error:          perr,
		})
	default:
		middleware.Logger(r).Error().Err(err).Str("conversation_id", convID).Msg("question failed")
		models.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

func pipelineStatus(perr *models.PipelineError) int {
	switch {
	case errors.Is(perr.Err, security.ErrForbiddenSQL):
		return http.StatusBadRequest
	case errors.Is(perr.Err, security.ErrCostLimit):
		return http.StatusTooManyRequests
	case perr.Kind == models.KindGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusUnprocessableEntity
	}
}

func sessionStatus(s *models.QuerySession) string {
	if s.Done {
		return "success"
	}
	return "running"
}
