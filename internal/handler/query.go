package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cortexai/cortexbi/internal/models"
	"github.com/cortexai/cortexbi/internal/security"
	"github.com/cortexai/cortexbi/internal/service"
)

// QueryHandler handles direct SQL query execution
type QueryHandler struct {
	exec *service.Executor
}

func NewQueryHandler(exec *service.Executor) *QueryHandler {
	return &QueryHandler{exec: exec}
}

// Execute handles POST /api/v1/query
func (h *QueryHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.SetDefaults()

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(req.TimeoutMs)*time.Millisecond)
	defer cancel()

	start := time.Now()
	result, err := h.exec.Execute(ctx, req.Name, req.SQL)
	execMs := time.Since(start).Milliseconds()
	if err != nil {
		switch {
		case errors.Is(err, security.ErrForbiddenSQL):
			models.WriteError(w, http.StatusBadRequest, "SQL validation failed: "+err.Error())
		case errors.Is(err, security.ErrCostLimit):
			models.WriteError(w, http.StatusTooManyRequests, err.Error())
		case errors.Is(err, context.DeadlineExceeded):
			models.WriteError(w, http.StatusGatewayTimeout, "query timed out")
		default:
			models.WriteError(w, http.StatusInternalServerError, "query execution failed: "+err.Error())
		}
		return
	}

	models.WriteJSON(w, http.StatusOK, models.QueryResponse{
		Status:   "success",
		Data:     result.Data,
		Columns:  result.Columns,
		RowCount: len(result.Data),
		Metadata: models.QueryMetadata{
			Backend:         h.exec.Backend().Name(),
			ExecutionTimeMs: execMs,
		},
	})
}
