package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/phab-relay/internal/application/recipient"
	"github.com/phab-relay/internal/pkg/validate"
)

// SwitchHandler lets users opt in and out of notifications via the Slack
// slash command posting to /switch.
type SwitchHandler struct {
	svc          recipient.Service
	commandToken string
}

func NewSwitchHandler(svc recipient.Service, commandToken string) *SwitchHandler {
	return &SwitchHandler{svc: svc, commandToken: commandToken}
}

type switchRequest struct {
	UserName string `validate:"required"`
	Token    string `validate:"required"`
	Action   string `validate:"required"`
}

func (h *SwitchHandler) Switch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	req := switchRequest{
		UserName: r.PostFormValue("user_name"),
		Token:    r.PostFormValue("token"),
		Action:   strings.TrimSpace(r.PostFormValue("text")),
	}
	// A bare slash command means "turn my notifications back on".
	if req.Action == "" {
		req.Action = "enable"
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Fail closed: the shared secret is checked before anything mutates.
	if subtle.ConstantTimeCompare([]byte(req.Token), []byte(h.commandToken)) != 1 {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var err error
	switch req.Action {
	case "enable":
		err = h.svc.Enable(req.UserName)
	case "disable":
		err = h.svc.Disable(req.UserName)
	default:
		writeError(w, http.StatusUnauthorized, "unknown action")
		return
	}
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: req.Action + " success"})
}
