package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/protown/backend/internal/domain"
	"github.com/protown/backend/internal/service"
)

// AdminHandler handles back-office HTTP endpoints.
type AdminHandler struct {
	pros        *service.ProfessionalService
	activations *service.ActivationService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(pros *service.ProfessionalService, activations *service.ActivationService) *AdminHandler {
	return &AdminHandler{pros: pros, activations: activations}
}

// ListProfessionals handles GET /api/admin/professionals.
func (h *AdminHandler) ListProfessionals(w http.ResponseWriter, r *http.Request) {
	pros, err := h.pros.List(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, pros)
}

// SetVerified handles PATCH /api/admin/professionals/{id}/verified. Setting
// verified to true on a professional with a pending plan creates the
// subscription and starts billing.
func (h *AdminHandler) SetVerified(w http.ResponseWriter, r *http.Request) {
	var req domain.SetVerifiedRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	if req.Verified == nil {
		Error(w, domain.ErrValidation("verified is required"))
		return
	}

	result, err := h.activations.SetVerified(r.Context(), chi.URLParam(r, "id"), *req.Verified)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, result)
}

// Abandon handles POST /api/admin/professionals/{id}/abandon.
func (h *AdminHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	p, err := h.activations.AbandonActivation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, p)
}

// Retry handles POST /api/admin/professionals/{id}/retry.
func (h *AdminHandler) Retry(w http.ResponseWriter, r *http.Request) {
	p, err := h.activations.RetryActivation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, p)
}
