package agentrun

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apperrors "github.com/hospital-urgencias/clinops/internal/shared/errors"
	"github.com/hospital-urgencias/clinops/internal/shared/httpx"
)

// Handler exposes the run listings and the direct run endpoint.
type Handler struct {
	engine   *Engine
	registry *Registry
	repo     *Repository
}

// NewHandler creates the agent-run handler.
func NewHandler(engine *Engine, registry *Registry, repo *Repository) *Handler {
	return &Handler{engine: engine, registry: registry, repo: repo}
}

// Routes registers the agent routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/run", h.RunWorkflow)
	r.Get("/runs", h.ListRuns)
	r.Get("/runs/{runID}", h.GetRun)
	r.Get("/ops/summary", h.OpsSummary)

	return r
}

// RunWorkflow executes a registered workflow directly, without a care task.
// The body carries workflow_name plus the workflow's input fields.
func (h *Handler) RunWorkflow(w http.ResponseWriter, r *http.Request) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.WriteError(w, apperrors.BadRequest("invalid request body: "+err.Error()))
		return
	}

	var workflowName string
	if raw, ok := body["workflow_name"]; ok {
		if err := json.Unmarshal(raw, &workflowName); err != nil {
			httpx.WriteError(w, apperrors.BadRequest("workflow_name must be a string"))
			return
		}
	}
	desc, ok := h.registry.ByWorkflow(workflowName)
	if !ok {
		httpx.WriteError(w, apperrors.BadRequest("unknown workflow: "+workflowName))
		return
	}

	delete(body, "workflow_name")
	rawInput, err := json.Marshal(body)
	if err != nil {
		httpx.WriteError(w, apperrors.BadRequest("invalid input payload"))
		return
	}
	input, err := desc.ParseInput(rawInput)
	if err != nil {
		httpx.WriteError(w, apperrors.BadRequest(err.Error()))
		return
	}

	run, err := h.engine.Execute(r.Context(), desc, nil, input)
	if err != nil {
		httpx.WriteError(w, apperrors.Wrap(err, "workflow execution failed"))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, run)
}

// ListRuns returns recent runs with optional filters.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Limit: 20}
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			httpx.WriteError(w, apperrors.BadRequest("limit must be an integer"))
			return
		}
		filter.Limit = limit
	}
	if v := q.Get("status"); v != "" {
		status := RunStatus(v)
		if status != StatusRunning && status != StatusCompleted && status != StatusFailed {
			httpx.WriteError(w, apperrors.BadRequest("invalid status filter"))
			return
		}
		filter.Status = &status
	}
	if v := q.Get("workflow_name"); v != "" {
		filter.WorkflowName = &v
	}
	if v := q.Get("created_from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.WriteError(w, apperrors.BadRequest("created_from must be RFC3339"))
			return
		}
		filter.CreatedFrom = &t
	}
	if v := q.Get("created_to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.WriteError(w, apperrors.BadRequest("created_to must be RFC3339"))
			return
		}
		filter.CreatedTo = &t
	}

	runs, err := h.repo.ListRecent(r.Context(), filter)
	if err != nil {
		httpx.WriteError(w, apperrors.Wrap(err, "failed to list runs"))
		return
	}
	if runs == nil {
		runs = []AgentRun{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

// GetRun returns one run with its ordered steps.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		httpx.WriteError(w, apperrors.BadRequest("invalid run id"))
		return
	}

	run, err := h.repo.GetRunWithSteps(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, run)
}

// OpsSummary returns run totals and fallback counts.
func (h *Handler) OpsSummary(w http.ResponseWriter, r *http.Request) {
	var workflow *string
	if v := r.URL.Query().Get("workflow_name"); v != "" {
		workflow = &v
	}

	summary, err := h.repo.OpsSummary(r.Context(), workflow)
	if err != nil {
		httpx.WriteError(w, apperrors.Wrap(err, "failed to compute summary"))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, summary)
}
