package auth

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	sharedauth "github.com/hospital-urgencias/clinops/internal/shared/auth"
	apperrors "github.com/hospital-urgencias/clinops/internal/shared/errors"
	"github.com/hospital-urgencias/clinops/internal/shared/httpx"
	sharedmw "github.com/hospital-urgencias/clinops/internal/shared/middleware"
)

// Handler exposes the auth endpoints.
type Handler struct {
	service *Service
	secret  string
}

// NewHandler creates the auth handler.
func NewHandler(service *Service, secret string) *Handler {
	return &Handler{service: service, secret: secret}
}

// Routes serves the auth surface. Register, login, refresh and logout are
// public; the rest sits behind the bearer middleware.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)
	r.Post("/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(sharedauth.Middleware(h.secret, h.service.LookupUser))
		r.Get("/me", h.Me)
		r.With(sharedauth.RequireSuperuser).Get("/admin/users", h.AdminListUsers)
	})
	return r
}

// Register creates a regular account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, apperrors.BadRequest("invalid request body"))
		return
	}
	user, err := h.service.Register(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, user)
}

// Login accepts OAuth2-style form credentials and returns a token pair.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.WriteError(w, apperrors.BadRequest("invalid form body"))
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		httpx.WriteError(w, apperrors.BadRequest("username and password are required"))
		return
	}

	pair, err := h.service.Login(r.Context(), username, password, sharedmw.ClientIP(r))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh rotates a refresh token.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		httpx.WriteError(w, apperrors.BadRequest("refresh_token is required"))
		return
	}
	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pair)
}

// Logout revokes the presented refresh token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		httpx.WriteError(w, apperrors.BadRequest("refresh_token is required"))
		return
	}
	if err := h.service.Revoke(r.Context(), req.RefreshToken); err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "session revoked"})
}

// Me returns the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := sharedauth.GetUser(r.Context())
	if user == nil {
		httpx.WriteError(w, apperrors.Unauthorized("authentication required"))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user)
}

// AdminListUsers returns every account. Superuser only.
func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"users": users, "count": len(users)})
}
