package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/tlane/browserpilot/internal/engine"
)

const timeFormat = time.RFC3339

// handleRunTaskSync runs a task inline and returns the terminal record. A
// failed task maps to a 500 carrying the recorded failure reason; the record
// itself remains queryable at /task/{id} either way.
func (s *Server) handleRunTaskSync(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTaskRequest(w, r)
	if !ok {
		return
	}

	// The inline run can outlast the server's write timeout; clear the
	// connection deadline so the terminal snapshot still reaches the client.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for sync run", "error", err)
	}

	t, err := s.engine.SubmitAndWait(r.Context(), req)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidRequest) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, engine.ErrTaskFailed) {
			s.writeError(w, http.StatusInternalServerError, t.Error)
			return
		}
		s.logger.Error("run task sync", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to run task")
		return
	}

	s.writeJSON(w, http.StatusOK, t)
}
