package httpapi

import (
	"net/http"

	httpinfra "nova-xfinity/internal/infra/http"
	"nova-xfinity/internal/usecase/settings"
)

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	httpinfra.WriteJSON(w, http.StatusOK, h.settings.Get())
}

func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var u settings.Update
	if !decodeBody(w, r, &u) {
		return
	}
	view, err := h.settings.Apply(r.Context(), u)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, view)
}
