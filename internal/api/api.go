// Package api exposes the break tracking engine over HTTP. Handlers are
// thin: all business rules live in the engine, the API only maps errors to
// status codes.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/goodtune/breakwatch/internal/breaks"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"Internal Server Error","message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// statusFor maps engine errors to HTTP status codes. Business-rule
// violations are client errors; anything else is a storage fault.
func statusFor(err error) int {
	switch {
	case errors.Is(err, breaks.ErrUnknownBreakType),
		errors.Is(err, breaks.ErrInvalidPeriod):
		return http.StatusBadRequest
	case errors.Is(err, breaks.ErrUnknownEmployee),
		errors.Is(err, breaks.ErrNoSessionToStop):
		return http.StatusNotFound
	case errors.Is(err, breaks.ErrDailyLimitExceeded),
		errors.Is(err, breaks.ErrSessionAlreadyActive),
		errors.Is(err, breaks.ErrAlreadyRegistered):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Config holds the API server configuration.
type Config struct {
	ListenAddr string
}

// Server is the HTTP API server.
type Server struct {
	server   *http.Server
	router   *mux.Router
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates the API server and wires all routes.
func NewServer(cfg Config, engine *breaks.Engine, logger zerolog.Logger) *Server {
	router := mux.NewRouter()

	sessions := NewSessionsHandler(engine, logger)
	employees := NewEmployeesHandler(engine, logger)
	exports := NewExportHandler(engine, logger)

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/employees", employees.Register).Methods(http.MethodPost)
	v1.HandleFunc("/employees/{id}", employees.Check).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/start", sessions.Start).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/end", sessions.End).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/active", sessions.ListActive).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/count", sessions.CountToday).Methods(http.MethodGet)
	v1.HandleFunc("/export", exports.Download).Methods(http.MethodGet)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		router: router,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// Handler exposes the router, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the API server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting API server")
	go func() {
		var err error
		if s.listener != nil {
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()
	return nil
}

// Stop gracefully stops the API server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
