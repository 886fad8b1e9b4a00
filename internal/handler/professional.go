package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/protown/backend/internal/contextkeys"
	"github.com/protown/backend/internal/domain"
	"github.com/protown/backend/internal/service"
)

// ProfessionalHandler handles professional account HTTP endpoints.
type ProfessionalHandler struct {
	pros *service.ProfessionalService
}

// NewProfessionalHandler creates a new ProfessionalHandler.
func NewProfessionalHandler(pros *service.ProfessionalService) *ProfessionalHandler {
	return &ProfessionalHandler{pros: pros}
}

// Signup handles POST /api/professionals/signup.
func (h *ProfessionalHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	resp, err := h.pros.Signup(r.Context(), &req)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusCreated, resp)
}

// Get handles GET /api/professionals/{id}.
func (h *ProfessionalHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !canAccess(r, id) {
		Error(w, domain.ErrUnauthorized("cannot access another professional's account"))
		return
	}

	p, err := h.pros.Get(r.Context(), id)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, p)
}

// UpdatePlan handles PUT /api/professionals/{id}/plan.
func (h *ProfessionalHandler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !canAccess(r, id) {
		Error(w, domain.ErrUnauthorized("cannot access another professional's account"))
		return
	}

	var req domain.UpdatePlanRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	if req.PlanVariationID == "" {
		Error(w, domain.ErrValidation("planVariationId is required"))
		return
	}

	p, err := h.pros.UpdatePlan(r.Context(), id, req.PlanVariationID)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, p)
}

// canAccess reports whether the caller may act on the given professional's
// records: the professional themselves, or any admin.
func canAccess(r *http.Request, professionalID string) bool {
	role, _ := r.Context().Value(contextkeys.UserRole).(string)
	if role == domain.RoleAdmin {
		return true
	}
	callerID, _ := r.Context().Value(contextkeys.UserID).(string)
	return callerID != "" && callerID == professionalID
}
