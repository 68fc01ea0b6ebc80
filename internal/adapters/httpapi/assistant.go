package httpapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"nova-xfinity/internal/domain"
	httpinfra "nova-xfinity/internal/infra/http"
)

type turnRequest struct {
	Messages []domain.ChatMessage `json:"messages"`
}

func (h *Handler) addTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.assistant.AddTurn(r.Context(), httpinfra.UserID(r.Context()), chi.URLParam(r, "sessionID"), req.Messages)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) sessionTokens(w http.ResponseWriter, r *http.Request) {
	usage, err := h.assistant.Usage(r.Context(), httpinfra.UserID(r.Context()), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, usage)
}

func (h *Handler) conversation(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.assistant.Conversation(r.Context(), httpinfra.UserID(r.Context()), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (h *Handler) clearSession(w http.ResponseWriter, r *http.Request) {
	if err := h.assistant.Clear(r.Context(), httpinfra.UserID(r.Context()), chi.URLParam(r, "sessionID")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
