package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/goodtune/breakwatch/internal/breaks"
	"github.com/rs/zerolog"
)

// SessionsHandler handles break session API requests.
type SessionsHandler struct {
	engine *breaks.Engine
	logger zerolog.Logger
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(engine *breaks.Engine, logger zerolog.Logger) *SessionsHandler {
	return &SessionsHandler{
		engine: engine,
		logger: logger.With().Str("handler", "sessions").Logger(),
	}
}

type sessionRequest struct {
	EmployeeID string `json:"employee_id"`
	BreakType  string `json:"break_type"`
}

// Start begins a break session.
func (h *SessionsHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.engine.StartSession(ctx, req.EmployeeID, req.BreakType); err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error().Err(err).Str("employee_id", req.EmployeeID).Msg("Failed to start session")
			writeError(w, status, "Failed to start session")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("%s session started for %s", req.BreakType, req.EmployeeID),
	})
}

// End completes a break session and reports duration and overtime.
func (h *SessionsHandler) End(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	completion, err := h.engine.EndSession(ctx, req.EmployeeID, req.BreakType)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error().Err(err).Str("employee_id", req.EmployeeID).Msg("Failed to end session")
			writeError(w, status, "Failed to end session")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	overtimeNote := "within limit"
	if completion.Overtime {
		overtimeNote = "overtime"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"message":          fmt.Sprintf("%s session ended after %d minutes, %s", completion.BreakType, completion.DurationMinutes, overtimeNote),
		"duration_minutes": completion.DurationMinutes,
		"overtime":         completion.Overtime,
	})
}

// ListActive returns all in-flight sessions.
func (h *SessionsHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	sessions := h.engine.ActiveSessions()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// CountToday returns the completed session count for today.
func (h *SessionsHandler) CountToday(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()
	employeeID := query.Get("employee_id")
	breakType := query.Get("break_type")

	count, err := h.engine.CountToday(ctx, employeeID, breakType)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error().Err(err).Str("employee_id", employeeID).Msg("Failed to count sessions")
			writeError(w, status, "Failed to count sessions")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"employee_id": employeeID,
		"break_type":  breakType,
		"count":       count,
	})
}
