package api

import (
	"net/http"
)

// statsResponse is the JSON response for GET /stats.
type statsResponse struct {
	Total              int            `json:"total"`
	ByStatus           map[string]int `json:"by_status"`
	AvgDurationSeconds float64        `json:"avg_duration_seconds"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.TaskStats(r.Context())
	if err != nil {
		s.logger.Error("get task stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Total:              stats.Total,
		ByStatus:           stats.CountByStatus,
		AvgDurationSeconds: stats.AvgDurationSeconds,
	})
}
