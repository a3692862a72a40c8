package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phab-relay/internal/application/recipient"
)

// DisabledHandler exposes the disable list to operators over the
// JWT-guarded admin API.
type DisabledHandler struct {
	svc recipient.Service
}

func NewDisabledHandler(svc recipient.Service) *DisabledHandler {
	return &DisabledHandler{svc: svc}
}

func (h *DisabledHandler) List(w http.ResponseWriter, _ *http.Request) {
	handles, err := h.svc.Disabled()
	if err != nil {
		httpError(w, err)
		return
	}
	if handles == nil {
		handles = []string{}
	}
	writeJSON(w, http.StatusOK, DisabledEnvelope{Disabled: handles})
}

func (h *DisabledHandler) Disable(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	if handle == "" {
		writeError(w, http.StatusBadRequest, "missing handle")
		return
	}
	if err := h.svc.Disable(handle); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "disabled " + handle})
}

func (h *DisabledHandler) Enable(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	if handle == "" {
		writeError(w, http.StatusBadRequest, "missing handle")
		return
	}
	if err := h.svc.Enable(handle); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "enabled " + handle})
}
