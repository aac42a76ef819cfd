package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/familycabin/cabin/internal/weather"
)

type weatherService interface {
	Forecast(ctx context.Context) (weather.Report, error)
}

// WeatherHandler serves the cached cabin forecast.
type WeatherHandler struct {
	service   weatherService
	responder responder
	logger    *slog.Logger
}

func NewWeatherHandler(service weatherService, logger *slog.Logger) *WeatherHandler {
	base := defaultLogger(logger)
	return &WeatherHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *WeatherHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	logger := handlerLogger(r.Context(), h.logger, "WeatherHandler", "Get")
	report, err := h.service.Forecast(r.Context())
	if err != nil {
		if errors.Is(err, weather.ErrUnavailable) {
			logger.WarnContext(r.Context(), "forecast unavailable", "error", err, "error_kind", "upstream")
			h.responder.writeJSON(r.Context(), w, http.StatusBadGateway, errorResponse{
				ErrorCode: "UPSTREAM_UNAVAILABLE",
				Message:   "the forecast is temporarily unavailable",
			})
			return
		}
		logger.ErrorContext(r.Context(), "forecast failed", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	if report.Stale {
		logger.InfoContext(r.Context(), "serving stale forecast", "fetched_at", report.FetchedAt)
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, report)
}
