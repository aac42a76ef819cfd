package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/familycabin/cabin/internal/booking"
	"github.com/familycabin/cabin/internal/calendar"
)

const (
	maxNotesLength     = 2000
	maxOwnerNameLength = 100
)

// ReservationRepository captures the persistence operations needed by the
// reservation service. Create and Update must evaluate guard and perform the
// write atomically.
type ReservationRepository interface {
	CreateReservation(ctx context.Context, reservation Reservation, guard ReservationGuard) (Reservation, error)
	UpdateReservation(ctx context.Context, reservation Reservation, guard ReservationGuard) (Reservation, error)
	GetReservation(ctx context.Context, id string) (Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
	DeleteReservation(ctx context.Context, id string) error
}

// UserDirectory resolves user ids to profiles.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// ReservationService books, edits and lists cabin stays.
type ReservationService struct {
	reservations ReservationRepository
	users        UserDirectory
	colors       *booking.Colorizer
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewReservationService wires dependencies for the reservation service.
func NewReservationService(reservations ReservationRepository, users UserDirectory, colors *booking.Colorizer, idGenerator func() string, now func() time.Time) *ReservationService {
	return NewReservationServiceWithLogger(reservations, users, colors, idGenerator, now, nil)
}

// NewReservationServiceWithLogger wires dependencies with a specified logger.
func NewReservationServiceWithLogger(reservations ReservationRepository, users UserDirectory, colors *booking.Colorizer, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ReservationService {
	if colors == nil {
		colors = booking.NewColorizer(nil, nil)
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ReservationService{
		reservations: reservations,
		users:        users,
		colors:       colors,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

// CreateReservation books a stay. Members book for themselves; administrators
// may book for another member or for a custom name.
func (s *ReservationService) CreateReservation(ctx context.Context, params CreateReservationParams) (view ReservationView, err error) {
	if s == nil {
		return ReservationView{}, fmt.Errorf("ReservationService is nil")
	}
	if s.reservations == nil {
		return ReservationView{}, fmt.Errorf("reservation repository not configured")
	}

	logger := s.loggerWith(ctx, "CreateReservation",
		"principal_id", params.Principal.UserID,
		"start_date", params.Input.StartDate,
		"end_date", params.Input.EndDate,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation created", "reservation_id", view.ID)
	}()

	if params.Principal.UserID == "" {
		return ReservationView{}, ErrUnauthorized
	}

	dates, vErr := validateReservationInput(params.Input)
	ownerUserID, ownerName, ownerErr := s.resolveOwner(ctx, params.Principal, params.Input, nil)
	if ownerErr != nil && !isValidation(ownerErr) {
		return ReservationView{}, ownerErr
	}
	vErr.merge(asValidation(ownerErr))
	if vErr.HasErrors() {
		return ReservationView{}, vErr
	}

	now := s.now()
	reservation := Reservation{
		ID:          s.idGenerator(),
		OwnerUserID: ownerUserID,
		OwnerName:   ownerName,
		Dates:       dates,
		Notes:       strings.TrimSpace(params.Input.Notes),
		CreatedBy:   params.Principal.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	reservation, err = s.reservations.CreateReservation(ctx, reservation, availabilityGuard(reservation.ID, dates))
	if err != nil {
		return ReservationView{}, mapReservationRepoError(err)
	}
	return s.decorateOne(ctx, reservation)
}

// UpdateReservation replaces dates, notes and optionally the owner of a
// reservation. Only the owner or an administrator may edit; only an
// administrator may reassign.
func (s *ReservationService) UpdateReservation(ctx context.Context, params UpdateReservationParams) (view ReservationView, err error) {
	if s == nil {
		return ReservationView{}, fmt.Errorf("ReservationService is nil")
	}
	if s.reservations == nil {
		return ReservationView{}, fmt.Errorf("reservation repository not configured")
	}

	logger := s.loggerWith(ctx, "UpdateReservation",
		"principal_id", params.Principal.UserID,
		"reservation_id", params.ReservationID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation updated")
	}()

	existing, err := s.reservations.GetReservation(ctx, params.ReservationID)
	if err != nil {
		return ReservationView{}, mapReservationRepoError(err)
	}
	if !canManage(params.Principal, existing) {
		return ReservationView{}, ErrUnauthorized
	}

	dates, vErr := validateReservationInput(params.Input)
	ownerUserID, ownerName, ownerErr := s.resolveOwner(ctx, params.Principal, params.Input, &existing)
	if ownerErr != nil && !isValidation(ownerErr) {
		return ReservationView{}, ownerErr
	}
	vErr.merge(asValidation(ownerErr))
	if vErr.HasErrors() {
		return ReservationView{}, vErr
	}

	updated := existing
	updated.OwnerUserID = ownerUserID
	updated.OwnerName = ownerName
	updated.Dates = dates
	updated.Notes = strings.TrimSpace(params.Input.Notes)
	updated.UpdatedAt = s.now()

	updated, err = s.reservations.UpdateReservation(ctx, updated, availabilityGuard(updated.ID, dates))
	if err != nil {
		return ReservationView{}, mapReservationRepoError(err)
	}
	return s.decorateOne(ctx, updated)
}

// DeleteReservation removes a reservation owned by the caller, or any
// reservation for an administrator.
func (s *ReservationService) DeleteReservation(ctx context.Context, principal Principal, id string) (err error) {
	if s == nil {
		return fmt.Errorf("ReservationService is nil")
	}
	if s.reservations == nil {
		return fmt.Errorf("reservation repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteReservation", "principal_id", principal.UserID, "reservation_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation deleted")
	}()

	existing, err := s.reservations.GetReservation(ctx, id)
	if err != nil {
		return mapReservationRepoError(err)
	}
	if !canManage(principal, existing) {
		return ErrUnauthorized
	}
	if err := s.reservations.DeleteReservation(ctx, id); err != nil {
		return mapReservationRepoError(err)
	}
	return nil
}

// GetReservation returns one decorated reservation.
func (s *ReservationService) GetReservation(ctx context.Context, principal Principal, id string) (ReservationView, error) {
	if s == nil {
		return ReservationView{}, fmt.Errorf("ReservationService is nil")
	}
	if principal.UserID == "" {
		return ReservationView{}, ErrUnauthorized
	}
	reservation, err := s.reservations.GetReservation(ctx, id)
	if err != nil {
		return ReservationView{}, mapReservationRepoError(err)
	}
	return s.decorateOne(ctx, reservation)
}

// ListReservations returns every reservation touching [From, To], ordered by
// start date, each with its owner name and calendar color.
func (s *ReservationService) ListReservations(ctx context.Context, params ListReservationsParams) ([]ReservationView, error) {
	if s == nil {
		return nil, fmt.Errorf("ReservationService is nil")
	}
	if params.Principal.UserID == "" {
		return nil, ErrUnauthorized
	}
	if !params.From.IsZero() && !params.To.IsZero() && params.To.Before(params.From) {
		return nil, fieldError("to", "to must not be before from")
	}
	if s.reservations == nil {
		return nil, nil
	}

	reservations, err := s.reservations.ListReservations(ctx, ReservationFilter{From: params.From, To: params.To})
	if err != nil {
		err = mapReservationRepoError(err)
		s.loggerWith(ctx, "ListReservations").ErrorContext(ctx, "failed to list reservations", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	return s.decorate(ctx, reservations)
}

// resolveOwner decides who owns a created or edited reservation. existing is
// nil on create.
func (s *ReservationService) resolveOwner(ctx context.Context, principal Principal, input ReservationInput, existing *Reservation) (string, string, error) {
	userID := strings.TrimSpace(input.OwnerUserID)
	name := strings.TrimSpace(input.OwnerName)

	if !principal.IsAdmin {
		if name != "" || (userID != "" && userID != principal.UserID) {
			return "", "", ErrUnauthorized
		}
		if existing != nil {
			return existing.OwnerUserID, existing.OwnerName, nil
		}
		return principal.UserID, "", nil
	}

	switch {
	case userID != "" && name != "":
		return "", "", fieldError("owner", "choose either a registered member or a custom name")
	case name != "":
		if utf8.RuneCountInString(name) > maxOwnerNameLength {
			return "", "", fieldError("owner_name", fmt.Sprintf("owner name must be at most %d characters", maxOwnerNameLength))
		}
		return "", name, nil
	case userID != "":
		if s.users != nil {
			if _, err := s.users.GetUser(ctx, userID); err != nil {
				if errors.Is(err, ErrNotFound) {
					return "", "", fieldError("owner_user_id", "unknown member")
				}
				return "", "", upstream(err)
			}
		}
		return userID, "", nil
	case existing != nil:
		return existing.OwnerUserID, existing.OwnerName, nil
	default:
		return principal.UserID, "", nil
	}
}

func (s *ReservationService) decorateOne(ctx context.Context, reservation Reservation) (ReservationView, error) {
	views, err := s.decorate(ctx, []Reservation{reservation})
	if err != nil {
		return ReservationView{}, err
	}
	return views[0], nil
}

func (s *ReservationService) decorate(ctx context.Context, reservations []Reservation) ([]ReservationView, error) {
	names := make(map[string]string)
	if s.users != nil && len(reservations) > 0 {
		users, err := s.users.ListUsers(ctx)
		if err != nil {
			return nil, upstream(err)
		}
		for _, u := range users {
			names[u.ID] = u.DisplayName
		}
	}

	views := make([]ReservationView, 0, len(reservations))
	for _, r := range reservations {
		name, key := r.OwnerName, r.OwnerName
		if r.OwnerUserID != "" {
			name, key = names[r.OwnerUserID], r.OwnerUserID
		}
		views = append(views, ReservationView{
			Reservation:      r,
			OwnerDisplayName: name,
			Color:            s.colors.ColorFor(name, key),
		})
	}
	return views, nil
}

func availabilityGuard(id string, dates calendar.Range) ReservationGuard {
	return func(overlapping []Reservation) error {
		existing := make([]booking.Reservation, 0, len(overlapping))
		for _, r := range overlapping {
			existing = append(existing, booking.Reservation{ID: r.ID, Dates: r.Dates})
		}
		return booking.CheckAvailability(dates, existing, id)
	}
}

func validateReservationInput(input ReservationInput) (calendar.Range, *ValidationError) {
	vErr := &ValidationError{}

	start, startErr := parseRequiredDate(input.StartDate)
	if startErr != "" {
		vErr.add("start_date", startErr)
	}
	end, endErr := parseRequiredDate(input.EndDate)
	if endErr != "" {
		vErr.add("end_date", endErr)
	}
	if startErr == "" && endErr == "" && end.Before(start) {
		vErr.add("end_date", "end date must not be before start date")
	}
	if utf8.RuneCountInString(input.Notes) > maxNotesLength {
		vErr.add("notes", fmt.Sprintf("notes must be at most %d characters", maxNotesLength))
	}
	return calendar.Range{Start: start, End: end}, vErr
}

func parseRequiredDate(value string) (calendar.Date, string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return calendar.Date{}, "date is required"
	}
	d, err := calendar.ParseDate(value)
	if err != nil {
		return calendar.Date{}, "date must be a valid YYYY-MM-DD day"
	}
	return d, ""
}

func canManage(principal Principal, reservation Reservation) bool {
	if principal.UserID == "" {
		return false
	}
	return principal.IsAdmin || reservation.OwnerUserID == principal.UserID
}

func isValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

func asValidation(err error) *ValidationError {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr
	}
	return nil
}

// mapReservationRepoError keeps availability conflicts and application
// sentinels and marks everything else as an upstream failure.
func mapReservationRepoError(err error) error {
	var conflict *booking.ConflictError
	if errors.As(err, &conflict) {
		return err
	}
	return upstream(err)
}
