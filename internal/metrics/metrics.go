package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Session metrics
	SessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakwatch_sessions_started_total",
			Help: "Total break sessions started",
		},
		[]string{"break_type"},
	)

	SessionsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakwatch_sessions_completed_total",
			Help: "Total break sessions completed",
		},
		[]string{"break_type", "overtime"},
	)

	SessionsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakwatch_sessions_rejected_total",
			Help: "Total session requests rejected by business rules",
		},
		[]string{"break_type", "reason"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "breakwatch_active_sessions",
			Help: "Number of in-flight break sessions",
		},
	)

	BreakMinutesConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakwatch_break_minutes_consumed_total",
			Help: "Total break minutes consumed",
		},
		[]string{"break_type"},
	)
)

func init() {
	prometheus.MustRegister(
		SessionsStarted,
		SessionsCompleted,
		SessionsRejected,
		ActiveSessions,
		BreakMinutesConsumed,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
