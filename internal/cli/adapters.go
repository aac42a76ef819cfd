package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/familycabin/cabin/internal/application"
	"github.com/familycabin/cabin/internal/booking"
	"github.com/familycabin/cabin/internal/calendar"
	"github.com/familycabin/cabin/internal/persistence"
)

// storeError translates persistence sentinels into the application's. Errors
// the store does not recognise, such as a guard's *booking.ConflictError,
// pass through untouched.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: %w", application.ErrNotFound, err)
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: %w", application.ErrAlreadyExists, err)
	case errors.Is(err, persistence.ErrStaleState),
		errors.Is(err, persistence.ErrForeignKeyViolation),
		errors.Is(err, persistence.ErrConstraintViolation):
		return fmt.Errorf("%w: %w", application.ErrConflict, err)
	default:
		return err
	}
}

type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(user, passwordHash)); err != nil {
		return application.User{}, storeError(err)
	}
	return a.GetUser(ctx, user.ID)
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, storeError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) DeleteUser(ctx context.Context, id string) error {
	return storeError(a.repo.DeleteUser(ctx, id))
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

// GetUserCredentialsByEmail lets the adapter serve as the auth CredentialStore.
func (a *userRepositoryAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, storeError(err)
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

type reservationRepositoryAdapter struct {
	repo persistence.ReservationRepository
}

func newReservationRepositoryAdapter(repo persistence.ReservationRepository) *reservationRepositoryAdapter {
	return &reservationRepositoryAdapter{repo: repo}
}

func (a *reservationRepositoryAdapter) CreateReservation(ctx context.Context, reservation application.Reservation, guard application.ReservationGuard) (application.Reservation, error) {
	if err := a.repo.CreateReservation(ctx, toPersistenceReservation(reservation), wrapGuard(guard)); err != nil {
		return application.Reservation{}, storeError(err)
	}
	return a.GetReservation(ctx, reservation.ID)
}

func (a *reservationRepositoryAdapter) UpdateReservation(ctx context.Context, reservation application.Reservation, guard application.ReservationGuard) (application.Reservation, error) {
	if err := a.repo.UpdateReservation(ctx, toPersistenceReservation(reservation), wrapGuard(guard)); err != nil {
		return application.Reservation{}, storeError(err)
	}
	return a.GetReservation(ctx, reservation.ID)
}

func (a *reservationRepositoryAdapter) GetReservation(ctx context.Context, id string) (application.Reservation, error) {
	stored, err := a.repo.GetReservation(ctx, id)
	if err != nil {
		return application.Reservation{}, storeError(err)
	}
	return toApplicationReservation(stored), nil
}

func (a *reservationRepositoryAdapter) ListReservations(ctx context.Context, filter application.ReservationFilter) ([]application.Reservation, error) {
	models, err := a.repo.ListReservations(ctx, persistence.ReservationFilter{
		From:        filter.From,
		To:          filter.To,
		OwnerUserID: filter.OwnerUserID,
	})
	if err != nil {
		return nil, storeError(err)
	}
	out := make([]application.Reservation, 0, len(models))
	for _, model := range models {
		out = append(out, toApplicationReservation(model))
	}
	return out, nil
}

func (a *reservationRepositoryAdapter) DeleteReservation(ctx context.Context, id string) error {
	return storeError(a.repo.DeleteReservation(ctx, id))
}

func wrapGuard(guard application.ReservationGuard) persistence.ReservationGuard {
	if guard == nil {
		return nil
	}
	return func(overlapping []persistence.Reservation) error {
		converted := make([]application.Reservation, 0, len(overlapping))
		for _, model := range overlapping {
			converted = append(converted, toApplicationReservation(model))
		}
		return guard(converted)
	}
}

type swapRepositoryAdapter struct {
	repo persistence.SwapRepository
}

func newSwapRepositoryAdapter(repo persistence.SwapRepository) *swapRepositoryAdapter {
	return &swapRepositoryAdapter{repo: repo}
}

func (a *swapRepositoryAdapter) CreateSwap(ctx context.Context, swap application.SwapRequest) (application.SwapRequest, error) {
	if err := a.repo.CreateSwap(ctx, toPersistenceSwap(swap)); err != nil {
		return application.SwapRequest{}, storeError(err)
	}
	return a.GetSwap(ctx, swap.ID)
}

func (a *swapRepositoryAdapter) GetSwap(ctx context.Context, id string) (application.SwapRequest, error) {
	stored, err := a.repo.GetSwap(ctx, id)
	if err != nil {
		return application.SwapRequest{}, storeError(err)
	}
	return toApplicationSwap(stored), nil
}

func (a *swapRepositoryAdapter) GetSwapByToken(ctx context.Context, token string) (application.SwapRequest, error) {
	stored, err := a.repo.GetSwapByToken(ctx, token)
	if err != nil {
		return application.SwapRequest{}, storeError(err)
	}
	return toApplicationSwap(stored), nil
}

func (a *swapRepositoryAdapter) ListSwaps(ctx context.Context, filter application.SwapFilter) ([]application.SwapRequest, error) {
	models, err := a.repo.ListSwaps(ctx, persistence.SwapFilter{
		ParticipantID: filter.ParticipantID,
		Status:        string(filter.Status),
	})
	if err != nil {
		return nil, storeError(err)
	}
	out := make([]application.SwapRequest, 0, len(models))
	for _, model := range models {
		out = append(out, toApplicationSwap(model))
	}
	return out, nil
}

func (a *swapRepositoryAdapter) ResolveSwap(ctx context.Context, id string, from, to booking.SwapStatus, at time.Time) error {
	return storeError(a.repo.ResolveSwap(ctx, id, string(from), string(to), at))
}

func (a *swapRepositoryAdapter) AcceptSwap(ctx context.Context, params application.AcceptSwapParams) ([]string, error) {
	cancelled, err := a.repo.AcceptSwap(ctx, persistence.AcceptSwapParams{
		SwapID:                 params.SwapID,
		RequesterID:            params.RequesterID,
		TargetUserID:           params.TargetUserID,
		RequesterReservationID: params.RequesterReservationID,
		TargetReservationID:    params.TargetReservationID,
		ResolvedAt:             params.ResolvedAt,
	})
	if err != nil {
		return nil, storeError(err)
	}
	return cancelled, nil
}

func (a *swapRepositoryAdapter) CancelExpiredSwaps(ctx context.Context, reference time.Time) ([]string, error) {
	ids, err := a.repo.CancelExpiredSwaps(ctx, reference)
	return ids, storeError(err)
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, storeError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, storeError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, storeError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return storeError(a.repo.DeleteExpiredSessions(ctx, reference))
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		IsAdmin:     model.IsAdmin,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		PasswordHash: passwordHash,
		IsAdmin:      user.IsAdmin,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationReservation(model persistence.Reservation) application.Reservation {
	return application.Reservation{
		ID:          model.ID,
		OwnerUserID: model.OwnerUserID,
		OwnerName:   model.OwnerName,
		Dates:       calendar.Range{Start: model.StartDate, End: model.EndDate},
		Notes:       model.Notes,
		CreatedBy:   model.CreatedBy,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceReservation(reservation application.Reservation) persistence.Reservation {
	return persistence.Reservation{
		ID:          reservation.ID,
		OwnerUserID: reservation.OwnerUserID,
		OwnerName:   reservation.OwnerName,
		StartDate:   reservation.Dates.Start,
		EndDate:     reservation.Dates.End,
		Notes:       reservation.Notes,
		CreatedBy:   reservation.CreatedBy,
		CreatedAt:   reservation.CreatedAt,
		UpdatedAt:   reservation.UpdatedAt,
	}
}

func toApplicationSwap(model persistence.SwapRequest) application.SwapRequest {
	return application.SwapRequest{
		ID:                     model.ID,
		Token:                  model.Token,
		RequesterID:            model.RequesterID,
		TargetUserID:           model.TargetUserID,
		RequesterReservationID: model.RequesterReservationID,
		TargetReservationID:    model.TargetReservationID,
		Status:                 booking.SwapStatus(model.Status),
		Message:                model.Message,
		ExpiresAt:              model.ExpiresAt,
		CreatedAt:              model.CreatedAt,
		UpdatedAt:              model.UpdatedAt,
		ResolvedAt:             cloneTime(model.ResolvedAt),
	}
}

func toPersistenceSwap(swap application.SwapRequest) persistence.SwapRequest {
	return persistence.SwapRequest{
		ID:                     swap.ID,
		Token:                  swap.Token,
		RequesterID:            swap.RequesterID,
		TargetUserID:           swap.TargetUserID,
		RequesterReservationID: swap.RequesterReservationID,
		TargetReservationID:    swap.TargetReservationID,
		Status:                 string(swap.Status),
		Message:                swap.Message,
		ExpiresAt:              swap.ExpiresAt,
		CreatedAt:              swap.CreatedAt,
		UpdatedAt:              swap.UpdatedAt,
		ResolvedAt:             cloneTime(swap.ResolvedAt),
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:          model.ID,
		UserID:      model.UserID,
		Token:       model.Token,
		Fingerprint: model.Fingerprint,
		ExpiresAt:   model.ExpiresAt,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		RevokedAt:   cloneTime(model.RevokedAt),
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:          session.ID,
		UserID:      session.UserID,
		Token:       session.Token,
		Fingerprint: session.Fingerprint,
		ExpiresAt:   session.ExpiresAt,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
		RevokedAt:   cloneTime(session.RevokedAt),
	}
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
