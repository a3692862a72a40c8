package handler

import (
	"net/http"

	"github.com/phab-relay/internal/application/dispatch"
	"github.com/phab-relay/internal/domain"
)

// WebhookHandler receives Phabricator feed events on POST /handle.
type WebhookHandler struct {
	svc dispatch.Service
}

func NewWebhookHandler(svc dispatch.Service) *WebhookHandler {
	return &WebhookHandler{svc: svc}
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	story := domain.Story{
		ID:         r.PostFormValue("storyID"),
		AuthorPHID: r.PostFormValue("storyAuthorPHID"),
		ObjectPHID: r.PostFormValue("storyData[objectPHID]"),
		Text:       r.PostFormValue("storyText"),
	}

	res, err := h.svc.Handle(r.Context(), story)
	if err != nil {
		httpError(w, err)
		return
	}

	// Unsupported stories still answer 200: Phabricator should not retry them.
	switch res.Status {
	case dispatch.StatusSent:
		writeJSON(w, http.StatusOK, DeliveryEnvelope{Status: string(res.Status), SentTo: res.SentTo})
	default:
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: string(res.Status)})
	}
}
