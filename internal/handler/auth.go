package handler

import (
	"net/http"

	"github.com/protown/backend/internal/contextkeys"
	"github.com/protown/backend/internal/domain"
	"github.com/protown/backend/internal/service"
)

// AuthHandler handles authentication HTTP endpoints.
type AuthHandler struct {
	auth *service.AuthService
	pros *service.ProfessionalService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService, pros *service.ProfessionalService) *AuthHandler {
	return &AuthHandler{auth: auth, pros: pros}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	resp, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, resp)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := r.Context().Value(contextkeys.UserID).(string)
	role, _ := r.Context().Value(contextkeys.UserRole).(string)
	email, _ := r.Context().Value(contextkeys.UserEmail).(string)

	if role == domain.RoleProfessional {
		p, err := h.pros.Get(r.Context(), id)
		if err != nil {
			Error(w, err)
			return
		}
		JSON(w, http.StatusOK, p)
		return
	}

	JSON(w, http.StatusOK, domain.LoginUser{ID: id, Email: email, Role: role})
}
