package http

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/familycabin/cabin/internal/application"
	"github.com/familycabin/cabin/internal/feed"
)

// CalendarHandler exports reservations as an iCalendar feed.
type CalendarHandler struct {
	service   reservationService
	options   feed.Options
	now       func() time.Time
	responder responder
	logger    *slog.Logger
}

func NewCalendarHandler(service reservationService, options feed.Options, now func() time.Time, logger *slog.Logger) *CalendarHandler {
	if now == nil {
		now = time.Now
	}
	base := defaultLogger(logger)
	return &CalendarHandler{service: service, options: options, now: now, responder: newResponder(base), logger: base}
}

func (h *CalendarHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := handlerLogger(r.Context(), h.logger, "CalendarHandler", "Get", "principal_id", principal.UserID)

	from, to, err := parseWindow(r)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	views, err := h.service.ListReservations(r.Context(), application.ListReservationsParams{Principal: principal, From: from, To: to})
	if err != nil {
		logger.ErrorContext(r.Context(), "reservation list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	opts := h.options
	opts.Now = h.now()

	// Render fully before writing so a failure can still produce a 500.
	var buf bytes.Buffer
	if err := feed.Write(&buf, views, opts); err != nil {
		logger.ErrorContext(r.Context(), "calendar render failed", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="cabin.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logger.WarnContext(r.Context(), "calendar write failed", "error", err)
	}
}
