package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goodtune/breakwatch/internal/breaks"
	"github.com/goodtune/breakwatch/internal/export"
	"github.com/rs/zerolog"
)

// ExportHandler serves CSV downloads of completed records.
type ExportHandler struct {
	engine *breaks.Engine
	logger zerolog.Logger
}

// NewExportHandler creates a new export handler.
func NewExportHandler(engine *breaks.Engine, logger zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		engine: engine,
		logger: logger.With().Str("handler", "export").Logger(),
	}
}

// Download streams the period's completed records as a CSV attachment.
func (h *ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "this_month"
	}

	records, err := h.engine.ExportCompletedRecords(ctx, period)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error().Err(err).Str("period", period).Msg("Failed to export records")
			writeError(w, status, "Failed to export records")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	filename := export.Filename(period, time.Now())
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.WriteHeader(http.StatusOK)

	if err := export.WriteCSV(w, records); err != nil {
		// Headers are gone; all we can do is log.
		h.logger.Error().Err(err).Str("period", period).Msg("Failed to write CSV body")
	}
}
