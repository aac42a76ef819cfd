package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/familycabin/cabin/internal/application"
	"github.com/familycabin/cabin/internal/booking"
)

type swapService interface {
	CreateSwap(ctx context.Context, params application.CreateSwapParams) (application.SwapRequest, error)
	GetSwap(ctx context.Context, principal application.Principal, id string) (application.SwapRequest, error)
	ListSwaps(ctx context.Context, params application.ListSwapsParams) ([]application.SwapRequest, error)
	AcceptSwap(ctx context.Context, principal application.Principal, id string) (application.SwapRequest, error)
	DeclineSwap(ctx context.Context, principal application.Principal, id string) (application.SwapRequest, error)
	CancelSwap(ctx context.Context, principal application.Principal, id string) (application.SwapRequest, error)
}

// SwapHandler serves swap requests for signed-in members.
type SwapHandler struct {
	service   swapService
	responder responder
	logger    *slog.Logger
}

// NewSwapHandler creates a SwapHandler.
func NewSwapHandler(service swapService, logger *slog.Logger) *SwapHandler {
	base := defaultLogger(logger)
	return &SwapHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *SwapHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SwapHandler", operation, attrs...)
}

func (h *SwapHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	status := booking.SwapStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID, "status", string(status))

	swaps, err := h.service.ListSwaps(r.Context(), application.ListSwapsParams{Principal: principal, Status: status})
	if err != nil {
		logger.ErrorContext(r.Context(), "swap list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(swaps)).DebugContext(r.Context(), "swaps listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSwapsResponse{Swaps: toSwapDTOs(swaps)})
}

func (h *SwapHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req swapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode swap request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)
	swap, err := h.service.CreateSwap(r.Context(), application.CreateSwapParams{
		Principal:              principal,
		RequesterReservationID: req.RequesterReservationID,
		TargetReservationID:    req.TargetReservationID,
		Message:                req.Message,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "swap creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("swap_id", swap.ID).InfoContext(r.Context(), "swap requested")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, swapResponse{Swap: toSwapDTO(swap)})
}

func (h *SwapHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := ResourceIDFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	swap, err := h.service.GetSwap(r.Context(), principal, id)
	if err != nil {
		h.log(r.Context(), "Get", "swap_id", id).ErrorContext(r.Context(), "swap lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, swapResponse{Swap: toSwapDTO(swap)})
}

// Act applies accept, decline or cancel to the swap in the request context.
func (h *SwapHandler) Act(action booking.SwapAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h == nil || h.service == nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		id, ok := ResourceIDFromContext(r.Context())
		if !ok {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
			return
		}
		principal, _ := PrincipalFromContext(r.Context())
		logger := h.log(r.Context(), "Act", "principal_id", principal.UserID, "swap_id", id, "action", string(action))

		var (
			swap application.SwapRequest
			err  error
		)
		switch action {
		case booking.ActionAccept:
			swap, err = h.service.AcceptSwap(r.Context(), principal, id)
		case booking.ActionDecline:
			swap, err = h.service.DeclineSwap(r.Context(), principal, id)
		default:
			swap, err = h.service.CancelSwap(r.Context(), principal, id)
		}
		if err != nil {
			logger.WarnContext(r.Context(), "swap action rejected", "error", err, "error_kind", application.ErrorKind(err))
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}

		logger.InfoContext(r.Context(), "swap action applied", "status", string(swap.Status))
		h.responder.writeJSON(r.Context(), w, http.StatusOK, swapResponse{Swap: toSwapDTO(swap)})
	}
}

type swapRequest struct {
	RequesterReservationID string `json:"requester_reservation_id"`
	TargetReservationID    string `json:"target_reservation_id"`
	Message                string `json:"message"`
}

type swapResponse struct {
	Swap swapDTO `json:"swap"`
}

type listSwapsResponse struct {
	Swaps []swapDTO `json:"swaps"`
}

// swapDTO never carries the response token; it only travels by email.
type swapDTO struct {
	ID                     string  `json:"id"`
	RequesterID            string  `json:"requester_id"`
	TargetUserID           string  `json:"target_user_id"`
	RequesterReservationID string  `json:"requester_reservation_id"`
	TargetReservationID    string  `json:"target_reservation_id"`
	Status                 string  `json:"status"`
	Message                string  `json:"message,omitempty"`
	ExpiresAt              string  `json:"expires_at"`
	CreatedAt              string  `json:"created_at"`
	ResolvedAt             *string `json:"resolved_at,omitempty"`
}

func toSwapDTO(swap application.SwapRequest) swapDTO {
	dto := swapDTO{
		ID:                     swap.ID,
		RequesterID:            swap.RequesterID,
		TargetUserID:           swap.TargetUserID,
		RequesterReservationID: swap.RequesterReservationID,
		TargetReservationID:    swap.TargetReservationID,
		Status:                 string(swap.Status),
		Message:                swap.Message,
		ExpiresAt:              swap.ExpiresAt.UTC().Format(time.RFC3339),
		CreatedAt:              swap.CreatedAt.UTC().Format(time.RFC3339),
	}
	if swap.ResolvedAt != nil {
		resolved := swap.ResolvedAt.UTC().Format(time.RFC3339)
		dto.ResolvedAt = &resolved
	}
	return dto
}

func toSwapDTOs(swaps []application.SwapRequest) []swapDTO {
	out := make([]swapDTO, 0, len(swaps))
	for _, s := range swaps {
		out = append(out, toSwapDTO(s))
	}
	return out
}
