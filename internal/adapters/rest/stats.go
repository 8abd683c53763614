package rest

import (
	"errors"
	"net/http"

	"github.com/ewilliams-labs/crossfade/internal/core/domain"
)

// Stats handles GET /api/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeError(w, http.StatusNotImplemented, "stats not configured")
		return
	}
	writeJSON(w, http.StatusOK, h.stats.Snapshot())
}

// TrackAnalysis handles GET /api/tracks/{id}/analysis
func (h *Handler) TrackAnalysis(w http.ResponseWriter, r *http.Request) {
	if h.analyses == nil {
		writeError(w, http.StatusNotImplemented, "track analysis not configured")
		return
	}
	id := r.PathValue("id")
	analysis, err := h.analyses.GetTrackAnalysis(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "track has not been analyzed")
			return
		}
		h.log.WithError(err).WithField("track_id", id).Error("rest: load track analysis")
		writeError(w, http.StatusInternalServerError, "Failed to fetch track analysis")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}
