package audit

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	sharedauth "github.com/hospital-urgencias/clinops/internal/shared/auth"
	apperrors "github.com/hospital-urgencias/clinops/internal/shared/errors"
	"github.com/hospital-urgencias/clinops/internal/shared/httpx"
)

// Handler serves the per-task audit endpoints. The care-task router has
// already resolved and verified the task before delegating here.
type Handler struct {
	service *Service
}

// NewHandler creates the audit handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Record handles POST /<domain>/audit for a verified care task.
func (h *Handler) Record(w http.ResponseWriter, r *http.Request, taskID uuid.UUID, domain string) {
	kind, ok := KindBySlug(domain)
	if !ok {
		httpx.WriteError(w, apperrors.BadRequest("domain does not support audits: "+domain))
		return
	}

	var req RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgentRunID == uuid.Nil {
		httpx.WriteError(w, apperrors.BadRequest("agent_run_id is required"))
		return
	}

	reviewedBy := ""
	if user := sharedauth.GetUser(r.Context()); user != nil {
		reviewedBy = user.Username
	}

	a, err := h.service.Record(r.Context(), taskID, kind, req, reviewedBy)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, a)
}

// Summary handles GET /<domain>/audit/summary for a verified care task.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request, taskID uuid.UUID, domain string) {
	kind, ok := KindBySlug(domain)
	if !ok {
		httpx.WriteError(w, apperrors.BadRequest("domain does not support audits: "+domain))
		return
	}

	summary, err := h.service.Summarize(r.Context(), taskID, kind)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, summary)
}
