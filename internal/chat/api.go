package chat

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/hospital-urgencias/clinops/internal/caretask"
	sharedauth "github.com/hospital-urgencias/clinops/internal/shared/auth"
	apperrors "github.com/hospital-urgencias/clinops/internal/shared/errors"
	"github.com/hospital-urgencias/clinops/internal/shared/httpx"
)

// Handler serves the per-task chat surface mounted by the care-task router.
type Handler struct {
	orch *Orchestrator
	repo *Repository
}

func NewHandler(orch *Orchestrator, repo *Repository) *Handler {
	return &Handler{orch: orch, repo: repo}
}

// PostMessage runs one chat turn for the verified care task.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request, task *caretask.CareTask) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, apperrors.BadRequest("invalid JSON body"))
		return
	}

	resp, err := h.orch.HandleMessage(r.Context(), task, sharedauth.GetUser(r.Context()), req)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

// ListMessages returns chat turns for the task, optionally scoped to one
// session, in chronological order.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	sessionID := r.URL.Query().Get("session_id")
	limit := queryInt(r, "limit", 50)
	if limit < 1 || limit > 200 {
		httpx.WriteError(w, apperrors.Validation("limit must be between 1 and 200", nil))
		return
	}

	messages, err := h.repo.ListTask(r.Context(), taskID, sessionID, limit)
	if err != nil {
		httpx.WriteError(w, apperrors.Wrap(err, "list chat messages"))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"messages": messages,
		"count":    len(messages),
	})
}

// Memory summarizes the distilled facts a session would reuse, plus the
// longitudinal facts for the task's patient when one is referenced.
func (h *Handler) Memory(w http.ResponseWriter, r *http.Request, task *caretask.CareTask) {
	sessionID := r.URL.Query().Get("session_id")

	messages, err := h.repo.ListTask(r.Context(), task.ID, sessionID, h.orch.cfg.HistoryWindow)
	if err != nil {
		httpx.WriteError(w, apperrors.Wrap(err, "load chat memory"))
		return
	}

	var patientMsgs []Message
	if task.PatientReference != nil && *task.PatientReference != "" {
		patientMsgs, err = h.repo.ListPatient(r.Context(), *task.PatientReference, h.orch.cfg.HistoryWindow*4)
		if err != nil {
			httpx.WriteError(w, apperrors.Wrap(err, "load patient chat history"))
			return
		}
	}

	httpx.WriteJSON(w, http.StatusOK, MemorySummary(sessionID, messages, patientMsgs, h.orch.cfg.MaxMemoryFacts))
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
