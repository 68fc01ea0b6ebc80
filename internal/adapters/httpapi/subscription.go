package httpapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"nova-xfinity/internal/domain"
	httpinfra "nova-xfinity/internal/infra/http"
)

func (h *Handler) subscriptionStatus(w http.ResponseWriter, r *http.Request) {
	sub, err := h.usage.Subscription(r.Context(), httpinfra.UserID(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, sub)
}

func (h *Handler) usageReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.usage.Report(r.Context(), httpinfra.UserID(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, report)
}

type consumeRequest struct {
	Amount int `json:"amount"`
}

func (h *Handler) consumeUsage(w http.ResponseWriter, r *http.Request) {
	f, err := domain.ParseFeature(chi.URLParam(r, "feature"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req consumeRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	if req.Amount < 0 {
		httpinfra.WriteError(w, http.StatusBadRequest, httpinfra.CodeValidation, "amount must be positive", nil)
		return
	}
	report, err := h.usage.Consume(r.Context(), httpinfra.UserID(r.Context()), f, req.Amount)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, report)
}
