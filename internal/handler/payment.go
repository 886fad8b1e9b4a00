package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/protown/backend/internal/domain"
	"github.com/protown/backend/internal/service"
)

// PaymentHandler handles stored payment instrument HTTP endpoints.
type PaymentHandler struct {
	instruments *service.InstrumentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(instruments *service.InstrumentService) *PaymentHandler {
	return &PaymentHandler{instruments: instruments}
}

// Save handles POST /api/professionals/{id}/payment/instruments. It validates
// a single-use payment token into a stored card; no charge is made.
func (h *PaymentHandler) Save(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !canAccess(r, id) {
		Error(w, domain.ErrUnauthorized("cannot access another professional's account"))
		return
	}

	var req domain.SaveInstrumentRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	result, err := h.instruments.SaveInstrument(r.Context(), id, &req)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusCreated, result)
}

// List handles GET /api/professionals/{id}/payment/instruments.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !canAccess(r, id) {
		Error(w, domain.ErrUnauthorized("cannot access another professional's account"))
		return
	}

	instruments, err := h.instruments.List(r.Context(), id)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, instruments)
}

// SetDefault handles PUT /api/professionals/{id}/payment/instruments/{instrumentID}/default.
func (h *PaymentHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !canAccess(r, id) {
		Error(w, domain.ErrUnauthorized("cannot access another professional's account"))
		return
	}

	if err := h.instruments.SetDefault(r.Context(), id, chi.URLParam(r, "instrumentID")); err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]string{"status": "default updated"})
}

// Delete handles DELETE /api/professionals/{id}/payment/instruments/{instrumentID}.
func (h *PaymentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !canAccess(r, id) {
		Error(w, domain.ErrUnauthorized("cannot access another professional's account"))
		return
	}

	if err := h.instruments.Delete(r.Context(), id, chi.URLParam(r, "instrumentID")); err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
