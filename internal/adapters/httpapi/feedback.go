package httpapi

import (
	"net/http"
	"strings"

	"nova-xfinity/internal/domain"
	httpinfra "nova-xfinity/internal/infra/http"
	"nova-xfinity/internal/usecase/feedback"
)

func (h *Handler) submitFeedback(w http.ResponseWriter, r *http.Request) {
	var in domain.FeedbackInput
	if !decodeBody(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.ContentType) == "" || strings.TrimSpace(in.Provider) == "" || in.Rating == 0 {
		httpinfra.WriteError(w, http.StatusBadRequest, httpinfra.CodeValidation,
			"Missing required fields: contentType, provider, and rating are required", nil)
		return
	}
	fb, err := h.feedback.Submit(r.Context(), httpinfra.UserID(r.Context()), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, fb)
}

func (h *Handler) feedbackStats(w http.ResponseWriter, r *http.Request) {
	q := feedback.StatsQuery{
		UserID: httpinfra.UserID(r.Context()),
		Days:   queryInt(r, "days", h.windowDays),
	}
	if raw := r.URL.Query().Get("contentType"); raw != "" {
		ct, err := domain.ParseContentType(raw)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		q.ContentType = ct
	}
	stats, err := h.feedback.Stats(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) recommend(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("contentType")
	if strings.TrimSpace(raw) == "" {
		httpinfra.WriteError(w, http.StatusBadRequest, httpinfra.CodeValidation, "contentType query parameter is required", nil)
		return
	}
	ct, err := domain.ParseContentType(raw)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	minRating := queryFloat(r, "minRating", h.minRating)
	rec, err := h.feedback.Recommend(r.Context(), ct, httpinfra.UserID(r.Context()), minRating)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) feedbackHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", feedback.DefaultHistoryLimit)
	offset := queryInt(r, "offset", 0)
	page, err := h.feedback.History(r.Context(), httpinfra.UserID(r.Context()), limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, page)
}
