package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/familycabin/cabin/internal/application"
	"github.com/familycabin/cabin/internal/booking"
)

type swapResponder interface {
	RespondByToken(ctx context.Context, token string, action booking.SwapAction) (application.SwapResponse, error)
}

// SwapResponseHandler serves the token links sent in swap emails. It needs no
// session; the token is the credential.
type SwapResponseHandler struct {
	service   swapResponder
	responder responder
	logger    *slog.Logger
}

// NewSwapResponseHandler creates a SwapResponseHandler.
func NewSwapResponseHandler(service swapResponder, logger *slog.Logger) *SwapResponseHandler {
	base := defaultLogger(logger)
	return &SwapResponseHandler{service: service, responder: newResponder(base), logger: base}
}

// ServeHTTP accepts GET with token and action query parameters, which is what
// email links produce, and POST with a JSON body.
func (h *SwapResponseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req swapResponseRequest
	switch r.Method {
	case http.MethodGet:
		req.Token = r.URL.Query().Get("token")
		req.Action = r.URL.Query().Get("action")
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeResult(r.Context(), w, http.StatusBadRequest, swapResponseBody{
				Message:   errBadRequestBody.Error(),
				ErrorCode: statusCode(http.StatusBadRequest),
			})
			return
		}
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
		return
	}

	logger := handlerLogger(r.Context(), h.logger, "SwapResponseHandler", "Respond", "action", req.Action)

	action, err := booking.ParseSwapAction(strings.TrimSpace(req.Action))
	if err != nil || action == booking.ActionCancel {
		logger.WarnContext(r.Context(), "unknown swap response action")
		h.writeResult(r.Context(), w, http.StatusUnprocessableEntity, swapResponseBody{
			Message:   "action must be accept or decline",
			ErrorCode: "VALIDATION_FAILED",
		})
		return
	}

	result, err := h.service.RespondByToken(r.Context(), req.Token, action)
	if err != nil {
		status, body := errorFor(err)
		logger.WarnContext(r.Context(), "swap response failed", "status", status, "error", err, "error_kind", application.ErrorKind(err))
		h.writeResult(r.Context(), w, status, swapResponseBody{
			Action:    string(action),
			Message:   body.Message,
			ErrorCode: body.ErrorCode,
		})
		return
	}

	logger.InfoContext(r.Context(), "swap response applied", "swap_id", result.Swap.ID)
	h.writeResult(r.Context(), w, http.StatusOK, swapResponseBody{
		Success: true,
		Action:  string(result.Action),
		Message: result.Message,
	})
}

func (h *SwapResponseHandler) writeResult(ctx context.Context, w http.ResponseWriter, status int, body swapResponseBody) {
	h.responder.writeJSON(ctx, w, status, body)
}

type swapResponseRequest struct {
	Token  string `json:"token"`
	Action string `json:"action"`
}

type swapResponseBody struct {
	Success   bool   `json:"success"`
	Action    string `json:"action,omitempty"`
	Message   string `json:"message"`
	ErrorCode string `json:"error_code,omitempty"`
}
