package knowledge

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	sharedauth "github.com/hospital-urgencias/clinops/internal/shared/auth"
	apperrors "github.com/hospital-urgencias/clinops/internal/shared/errors"
	"github.com/hospital-urgencias/clinops/internal/shared/httpx"
)

// Handler exposes the knowledge-source endpoints.
type Handler struct {
	service *Service
	repo    *Repository
}

// NewHandler creates the knowledge handler.
func NewHandler(service *Service, repo *Repository) *Handler {
	return &Handler{service: service, repo: repo}
}

// Routes registers the knowledge-source routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/allowed-domains", h.AllowedDomains)
	r.Get("/{sourceID}", h.Get)
	r.Get("/{sourceID}/validations", h.ListValidations)
	r.With(sharedauth.RequireSuperuser).Post("/{sourceID}/seal", h.Seal)

	return r
}

// Create submits a new pending source.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, apperrors.BadRequest("invalid request body"))
		return
	}

	var createdBy *uuid.UUID
	if user := sharedauth.GetUser(r.Context()); user != nil {
		createdBy = &user.ID
	}

	source, err := h.service.Create(r.Context(), req, createdBy)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, source)
}

// List returns catalog entries filtered by specialty, status,
// validated_only and limit.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	validatedOnly, _ := strconv.ParseBool(q.Get("validated_only"))
	filter := ListFilter{
		Specialty:     q.Get("specialty"),
		Status:        q.Get("status"),
		ValidatedOnly: validatedOnly,
		Limit:         queryInt(q.Get("limit")),
	}

	sources, err := h.repo.List(r.Context(), filter)
	if err != nil {
		httpx.WriteError(w, apperrors.Wrap(err, "failed to list sources"))
		return
	}
	if sources == nil {
		sources = []Source{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"sources": sources, "count": len(sources)})
}

// AllowedDomains returns the external hosts sources may point at.
func (h *Handler) AllowedDomains(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"allowed_domains": h.service.Whitelist().AllowedDomains(),
	})
}

// Get returns one source.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "sourceID"))
	if err != nil {
		httpx.WriteError(w, apperrors.BadRequest("invalid source id"))
		return
	}
	source, err := h.repo.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, source)
}

// Seal applies a superuser decision to a source.
func (h *Handler) Seal(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "sourceID"))
	if err != nil {
		httpx.WriteError(w, apperrors.BadRequest("invalid source id"))
		return
	}
	var req SealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, apperrors.BadRequest("invalid request body"))
		return
	}

	var reviewedBy *uuid.UUID
	if user := sharedauth.GetUser(r.Context()); user != nil {
		reviewedBy = &user.ID
	}

	v, err := h.service.Seal(r.Context(), id, req, reviewedBy)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, v)
}

// ListValidations returns the seal history of a source.
func (h *Handler) ListValidations(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "sourceID"))
	if err != nil {
		httpx.WriteError(w, apperrors.BadRequest("invalid source id"))
		return
	}
	validations, err := h.repo.ListValidations(r.Context(), id, queryInt(r.URL.Query().Get("limit")))
	if err != nil {
		httpx.WriteError(w, apperrors.Wrap(err, "failed to list validations"))
		return
	}
	if validations == nil {
		validations = []Validation{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"validations": validations, "count": len(validations)})
}

// queryInt parses an optional numeric query parameter; 0 means unset.
func queryInt(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
