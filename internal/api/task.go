package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tlane/browserpilot/internal/engine"
	"github.com/tlane/browserpilot/internal/model"
	"github.com/tlane/browserpilot/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// runTaskResponse is the JSON acknowledgment for POST /run-task.
type runTaskResponse struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	StartedAt string `json:"started_at"`
}

// listTasksResponse wraps the task list response.
type listTasksResponse struct {
	Tasks []*model.Task `json:"tasks"`
	Total int           `json:"total"`
}

func (s *Server) handleRunTask(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTaskRequest(w, r)
	if !ok {
		return
	}
	s.submitAsync(w, r, req)
}

// submitAsync queues a task for detached execution and acknowledges with the
// initial snapshot. Shared by /run-task and the scrape convenience endpoints.
func (s *Server) submitAsync(w http.ResponseWriter, r *http.Request, req model.TaskRequest) {
	t, err := s.engine.Submit(r.Context(), req)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidRequest) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("submit task", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to submit task")
		return
	}

	s.writeJSON(w, http.StatusAccepted, runTaskResponse{
		TaskID:    t.ID,
		Status:    t.Status,
		StartedAt: t.StartedAt.Format(timeFormat),
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, err := s.store.GetTask(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.logger.Error("get task", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}

	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := parseIntQuery(r, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}

	tasks, total, err := s.store.ListTasks(r.Context(), status, limit)
	if err != nil {
		s.logger.Error("list tasks", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	if tasks == nil {
		tasks = []*model.Task{}
	}

	s.writeJSON(w, http.StatusOK, listTasksResponse{
		Tasks: tasks,
		Total: total,
	})
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.store.DeleteTask(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "task not found")
			return
		}
		s.logger.Error("delete task", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete task")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("task %s deleted", id),
	})
}

// decodeTaskRequest reads and decodes a TaskRequest body, writing a 400 on
// malformed JSON. Semantic validation happens in the engine.
func (s *Server) decodeTaskRequest(w http.ResponseWriter, r *http.Request) (model.TaskRequest, bool) {
	var req model.TaskRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return model.TaskRequest{}, false
	}
	return req, true
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
