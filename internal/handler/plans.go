package handler

import (
	"net/http"

	"github.com/protown/backend/internal/service"
)

// PlanHandler serves the subscription plan catalog.
type PlanHandler struct {
	plans *service.PlanCatalogService
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(plans *service.PlanCatalogService) *PlanHandler {
	return &PlanHandler{plans: plans}
}

// List handles GET /api/plans.
func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.List(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"plans": plans})
}
