package rest

import (
	"net/http"
	"strings"

	"github.com/ewilliams-labs/crossfade/internal/core/domain"
)

type chatRequest struct {
	SessionID string              `json:"sessionId"`
	UserID    string              `json:"userId"`
	Message   string              `json:"message"`
	Context   *domain.TurnContext `json:"context,omitempty"`
}

// Chat handles POST /api/chat. Pipeline failures still answer 200 with a
// generic recommendation.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := strings.TrimSpace(req.SessionID)
	if userID == "" {
		userID = strings.TrimSpace(req.UserID)
	}
	if userID == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "Missing message or sessionId")
		return
	}

	resp := h.svc.HandleTurn(r.Context(), domain.TurnRequest{
		UserID:  userID,
		Message: req.Message,
		Context: req.Context,
	})
	writeJSON(w, http.StatusOK, resp)
}
