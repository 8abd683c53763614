package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ewilliams-labs/crossfade/internal/core/domain"
)

const (
	errCodeUnknownPreference = "UNKNOWN_PREFERENCE"
	errCodeInvalidPreference = "INVALID_PREFERENCE"
)

type preferenceRequest struct {
	SessionID string `json:"sessionId"`
	Type      string `json:"type"`
	Value     any    `json:"value"`
}

type tokenRequest struct {
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// AddPreference handles POST /api/preferences
func (h *Handler) AddPreference(w http.ResponseWriter, r *http.Request) {
	var req preferenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SessionID) == "" || req.Type == "" || req.Value == nil {
		writeError(w, http.StatusBadRequest, "Missing required parameters")
		return
	}

	_, err := h.sessions.AddPreference(r.Context(), req.SessionID, domain.PreferenceKind(req.Type), req.Value)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, successResponse{Success: true})
	case errors.Is(err, domain.ErrUnknownPreference):
		writeErrorWithCode(w, http.StatusBadRequest, err.Error(), errCodeUnknownPreference)
	case errors.Is(err, domain.ErrInvalidPreference):
		writeErrorWithCode(w, http.StatusBadRequest, err.Error(), errCodeInvalidPreference)
	default:
		h.log.WithError(err).WithField("user_id", req.SessionID).Error("rest: update preferences")
		writeError(w, http.StatusInternalServerError, "Failed to update preferences")
	}
}

// SetSpotifyToken handles POST /api/spotify-token
func (h *Handler) SetSpotifyToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SessionID) == "" || req.Token == "" {
		writeError(w, http.StatusBadRequest, "Missing sessionId or token")
		return
	}
	if err := h.sessions.SetProviderToken(r.Context(), req.SessionID, req.Token); err != nil {
		h.log.WithError(err).WithField("user_id", req.SessionID).Error("rest: set provider token")
		writeError(w, http.StatusInternalServerError, "Failed to set Spotify token")
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// GetSession handles GET /api/session/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	session, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyUserID) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.WithError(err).WithField("user_id", id).Error("rest: load session")
		writeError(w, http.StatusInternalServerError, "Failed to fetch session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// PatchSession handles PATCH /api/session/{id}
func (h *Handler) PatchSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var patch domain.SessionPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	session, err := h.sessions.Merge(r.Context(), id, patch)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyUserID) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.WithError(err).WithField("user_id", id).Error("rest: merge session")
		writeError(w, http.StatusInternalServerError, "Failed to update session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}
