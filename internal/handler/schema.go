package handler

import (
	"context"
	"net/http"

	"github.com/cortexai/cortexbi/internal/models"
)

// SchemaSource exposes the cached schema description given to the model.
type SchemaSource interface {
	Schema(ctx context.Context) string
	InvalidateSchema()
}

// SchemaHandler serves the schema description of the active backend
type SchemaHandler struct {
	src     SchemaSource
	backend string
}

func NewSchemaHandler(src SchemaSource, backend string) *SchemaHandler {
	return &SchemaHandler{src: src, backend: backend}
}

// Get handles GET /api/v1/schema
func (h *SchemaHandler) Get(w http.ResponseWriter, r *http.Request) {
	schema := h.src.Schema(r.Context())
	if schema == "" {
		models.WriteError(w, http.StatusServiceUnavailable, "schema unavailable")
		return
	}
	models.WriteJSON(w, http.StatusOK, models.SchemaResponse{Status: "success", Backend: h.backend, Schema: schema})
}

// Refresh handles POST /api/v1/schema/refresh
func (h *SchemaHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.src.InvalidateSchema()
	h.Get(w, r)
}
