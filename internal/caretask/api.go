package caretask

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hospital-urgencias/clinops/internal/agentrun"
	"github.com/hospital-urgencias/clinops/internal/rules"
	sharedauth "github.com/hospital-urgencias/clinops/internal/shared/auth"
	apperrors "github.com/hospital-urgencias/clinops/internal/shared/errors"
	"github.com/hospital-urgencias/clinops/internal/shared/httpx"
)

// AuditPort records and summarizes human audits for a verified care task.
// Implemented by the audit package; wired in main.
type AuditPort interface {
	Record(w http.ResponseWriter, r *http.Request, taskID uuid.UUID, domain string)
	Summary(w http.ResponseWriter, r *http.Request, taskID uuid.UUID, domain string)
}

// ChatPort serves the per-task chat surface.
type ChatPort interface {
	PostMessage(w http.ResponseWriter, r *http.Request, task *CareTask)
	ListMessages(w http.ResponseWriter, r *http.Request, taskID uuid.UUID)
	Memory(w http.ResponseWriter, r *http.Request, task *CareTask)
}

// Handler exposes care-task CRUD and the per-task workflow endpoints.
type Handler struct {
	repo      *Repository
	runs      *agentrun.Repository
	engine    *agentrun.Engine
	registry  *agentrun.Registry
	audits    AuditPort
	chat      ChatPort
	scorecard http.HandlerFunc
}

// NewHandler creates the care-task handler.
func NewHandler(repo *Repository, runs *agentrun.Repository, engine *agentrun.Engine, registry *agentrun.Registry, audits AuditPort, chat ChatPort, scorecard http.HandlerFunc) *Handler {
	return &Handler{
		repo:      repo,
		runs:      runs,
		engine:    engine,
		registry:  registry,
		audits:    audits,
		chat:      chat,
		scorecard: scorecard,
	}
}

// Routes registers the care-task routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/quality/scorecard", h.scorecard)

	r.Route("/{taskID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)

		r.Post("/triage", h.RunTriage)
		r.Post("/triage/approve", h.ApproveTriage)

		r.Post("/{domain}/recommendation", h.RunRecommendation)
		r.Post("/{domain}/audit", h.RecordAudit)
		r.Get("/{domain}/audit/summary", h.AuditSummary)

		r.Post("/chat/messages", h.PostChatMessage)
		r.Get("/chat/messages", h.ListChatMessages)
		r.Get("/chat/memory", h.ChatMemory)
	})

	return r
}

// Create inserts a care task.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, apperrors.BadRequest("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		httpx.WriteError(w, apperrors.BadRequest("title is required"))
		return
	}
	if err := validatePriority(req.ClinicalPriority); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if req.SLATargetMinutes <= 0 {
		httpx.WriteError(w, apperrors.BadRequest("sla_target_minutes must be positive"))
		return
	}

	specialty := strings.TrimSpace(strings.ToLower(req.Specialty))
	if specialty == "" {
		specialty = "general"
	}
	humanReview := true
	if req.HumanReviewRequired != nil {
		humanReview = *req.HumanReviewRequired
	}

	now := time.Now().UTC()
	task := &CareTask{
		ID:                  uuid.New(),
		Title:               req.Title,
		Description:         req.Description,
		ClinicalPriority:    req.ClinicalPriority,
		Specialty:           specialty,
		PatientReference:    req.PatientReference,
		SLATargetMinutes:    req.SLATargetMinutes,
		HumanReviewRequired: humanReview,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if user := sharedauth.GetUser(r.Context()); user != nil {
		task.CreatedBy = &user.ID
	}

	if err := h.repo.Create(r.Context(), task); err != nil {
		httpx.WriteError(w, apperrors.Wrap(err, "failed to create care task"))
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, task)
}

// List returns care tasks, optionally filtered by completion.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var completed *bool
	switch r.URL.Query().Get("completed") {
	case "true":
		v := true
		completed = &v
	case "false":
		v := false
		completed = &v
	}

	tasks, err := h.repo.List(r.Context(), completed, 50)
	if err != nil {
		httpx.WriteError(w, apperrors.Wrap(err, "failed to list care tasks"))
		return
	}
	if tasks == nil {
		tasks = []CareTask{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"care_tasks": tasks, "count": len(tasks)})
}

// Get returns one care task.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, task)
}

// Update applies a partial update.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadTask(w, r)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, apperrors.BadRequest("invalid request body"))
		return
	}

	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			httpx.WriteError(w, apperrors.BadRequest("title cannot be empty"))
			return
		}
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.ClinicalPriority != nil {
		if err := validatePriority(*req.ClinicalPriority); err != nil {
			httpx.WriteError(w, err)
			return
		}
		task.ClinicalPriority = *req.ClinicalPriority
	}
	if req.Specialty != nil {
		task.Specialty = strings.TrimSpace(strings.ToLower(*req.Specialty))
	}
	if req.PatientReference != nil {
		task.PatientReference = req.PatientReference
	}
	if req.SLATargetMinutes != nil {
		if *req.SLATargetMinutes <= 0 {
			httpx.WriteError(w, apperrors.BadRequest("sla_target_minutes must be positive"))
			return
		}
		task.SLATargetMinutes = *req.SLATargetMinutes
	}
	if req.HumanReviewRequired != nil {
		task.HumanReviewRequired = *req.HumanReviewRequired
	}
	if req.Completed != nil {
		task.Completed = *req.Completed
	}

	if err := h.repo.Update(r.Context(), task); err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, task)
}

// Delete removes a care task.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		httpx.WriteError(w, apperrors.BadRequest("invalid care task id"))
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RunTriage executes the triage workflow over the task's own title and
// description.
func (h *Handler) RunTriage(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadTask(w, r)
	if !ok {
		return
	}

	desc, _ := h.registry.ByWorkflow(agentrun.WorkflowTriage)
	input := rules.TriageInput{Title: task.Title, Description: task.Description}

	run, err := h.engine.Execute(r.Context(), desc, task.RunProjection(), input)
	if err != nil {
		httpx.WriteError(w, apperrors.Wrap(err, "triage run failed"))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"agent_run_id": run.ID,
		"status":       run.Status,
		"triage":       run.RunOutput[desc.OutputKey],
	})
}

type approveRequest struct {
	AgentRunID   uuid.UUID `json:"agent_run_id"`
	Approved     *bool     `json:"approved"`
	ReviewerNote *string   `json:"reviewer_note"`
}

// ApproveTriage records the human approve/reject decision for a triage run.
func (h *Handler) ApproveTriage(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadTask(w, r)
	if !ok {
		return
	}

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgentRunID == uuid.Nil {
		httpx.WriteError(w, apperrors.BadRequest("agent_run_id is required"))
		return
	}
	if req.Approved == nil {
		httpx.WriteError(w, apperrors.BadRequest("approved is required"))
		return
	}

	run, err := h.runs.GetRun(r.Context(), req.AgentRunID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if run.WorkflowName != agentrun.WorkflowTriage {
		httpx.WriteError(w, apperrors.BadRequest("run is not a triage run"))
		return
	}
	if taskRef, _ := run.RunInput["care_task_id"].(string); taskRef != task.ID.String() {
		httpx.WriteError(w, apperrors.BadRequest("run does not belong to this care task"))
		return
	}

	review := &TriageReview{
		ID:           uuid.New(),
		CareTaskID:   task.ID,
		AgentRunID:   run.ID,
		Approved:     *req.Approved,
		ReviewerNote: req.ReviewerNote,
		CreatedAt:    time.Now().UTC(),
	}
	if user := sharedauth.GetUser(r.Context()); user != nil {
		review.ReviewedBy = user.Username
	}

	if err := h.repo.CreateTriageReview(r.Context(), review); err != nil {
		httpx.WriteError(w, apperrors.Wrap(err, "failed to record triage review"))
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, review)
}

// RunRecommendation executes a domain workflow with the request body as
// the typed evaluator input.
func (h *Handler) RunRecommendation(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadTask(w, r)
	if !ok {
		return
	}

	domain := chi.URLParam(r, "domain")
	desc, found := h.registry.ByDomain(domain)
	if !found {
		httpx.WriteError(w, apperrors.NotFound("workflow domain", domain))
		return
	}

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		httpx.WriteError(w, apperrors.BadRequest("invalid request body"))
		return
	}
	input, err := desc.ParseInput(raw)
	if err != nil {
		httpx.WriteError(w, apperrors.BadRequest(err.Error()))
		return
	}

	run, err := h.engine.Execute(r.Context(), desc, task.RunProjection(), input)
	if err != nil {
		httpx.WriteError(w, apperrors.Wrap(err, "workflow run failed"))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"agent_run_id": run.ID,
		"status":       run.Status,
		desc.OutputKey: run.RunOutput[desc.OutputKey],
	})
}

// RecordAudit forwards a human audit submission to the audit engine.
func (h *Handler) RecordAudit(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	h.audits.Record(w, r, task.ID, chi.URLParam(r, "domain"))
}

// AuditSummary returns the per-domain audit summary for a task.
func (h *Handler) AuditSummary(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	h.audits.Summary(w, r, task.ID, chi.URLParam(r, "domain"))
}

// PostChatMessage runs the chat pipeline for this task.
func (h *Handler) PostChatMessage(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	h.chat.PostMessage(w, r, task)
}

// ListChatMessages returns the stored chat turns for a task.
func (h *Handler) ListChatMessages(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	h.chat.ListMessages(w, r, task.ID)
}

// ChatMemory returns the distilled session memory for a task.
func (h *Handler) ChatMemory(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	h.chat.Memory(w, r, task)
}

func (h *Handler) loadTask(w http.ResponseWriter, r *http.Request) (*CareTask, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		httpx.WriteError(w, apperrors.BadRequest("invalid care task id"))
		return nil, false
	}
	task, err := h.repo.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, err)
		return nil, false
	}
	return task, true
}
