package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status      string `json:"status"`
	LLMProvider string `json:"llm_provider"`
	LLMModel    string `json:"llm_model"`
	Timestamp   string `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:      "healthy",
		LLMProvider: s.llm.Provider,
		LLMModel:    s.llm.Model,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}
