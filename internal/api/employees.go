package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/goodtune/breakwatch/internal/breaks"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// EmployeesHandler handles employee registry API requests.
type EmployeesHandler struct {
	engine *breaks.Engine
	logger zerolog.Logger
}

// NewEmployeesHandler creates a new employees handler.
func NewEmployeesHandler(engine *breaks.Engine, logger zerolog.Logger) *EmployeesHandler {
	return &EmployeesHandler{
		engine: engine,
		logger: logger.With().Str("handler", "employees").Logger(),
	}
}

type registerRequest struct {
	EmployeeID string `json:"employee_id"`
}

// Register adds an employee.
func (h *EmployeesHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	employeeID := strings.TrimSpace(req.EmployeeID)
	if employeeID == "" {
		writeError(w, http.StatusBadRequest, "Employee ID must not be empty")
		return
	}

	if err := h.engine.RegisterEmployee(ctx, employeeID); err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error().Err(err).Str("employee_id", employeeID).Msg("Failed to register employee")
			writeError(w, status, "Failed to register employee")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("employee %s registered", employeeID),
	})
}

// Check reports whether an employee is registered.
func (h *EmployeesHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	id := vars["id"]

	exists, err := h.engine.EmployeeExists(ctx, id)
	if err != nil {
		h.logger.Error().Err(err).Str("employee_id", id).Msg("Failed to check employee")
		writeError(w, http.StatusInternalServerError, "Failed to check employee")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"employee_id": id,
		"exists":      exists,
	})
}
