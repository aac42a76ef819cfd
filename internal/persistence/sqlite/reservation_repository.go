package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/familycabin/cabin/internal/calendar"
	"github.com/familycabin/cabin/internal/persistence"
)

// ReservationRepository implements persistence.ReservationRepository using SQLite.
type ReservationRepository struct {
	pool *ConnectionPool
}

// NewReservationRepository creates a new SQLite reservation repository.
func NewReservationRepository(pool *ConnectionPool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

const reservationColumns = `id, owner_user_id, owner_name, start_date, end_date, notes, created_by, created_at, updated_at`

// CreateReservation inserts a reservation after guard has approved the
// reservations it overlaps. The overlap query, the guard and the insert share
// one transaction.
func (r *ReservationRepository) CreateReservation(ctx context.Context, reservation persistence.Reservation, guard persistence.ReservationGuard) error {
	if err := validateReservation(reservation); err != nil {
		return err
	}
	now := time.Now().UTC()
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = now
	}
	if reservation.UpdatedAt.IsZero() {
		reservation.UpdatedAt = reservation.CreatedAt
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := runGuard(ctx, tx, reservation, guard); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reservations (`+reservationColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			reservation.ID,
			nullString(reservation.OwnerUserID),
			nullString(strings.TrimSpace(reservation.OwnerName)),
			reservation.StartDate,
			reservation.EndDate,
			reservation.Notes,
			nullString(reservation.CreatedBy),
			formatTime(reservation.CreatedAt),
			formatTime(reservation.UpdatedAt),
		)
		return mapError(err)
	})
}

// UpdateReservation rewrites owner, dates and notes of an existing
// reservation. The reservation itself is excluded from the overlap set handed
// to guard.
func (r *ReservationRepository) UpdateReservation(ctx context.Context, reservation persistence.Reservation, guard persistence.ReservationGuard) error {
	if err := validateReservation(reservation); err != nil {
		return err
	}
	if reservation.UpdatedAt.IsZero() {
		reservation.UpdatedAt = time.Now().UTC()
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM reservations WHERE id = ?`, reservation.ID).Scan(&exists); err != nil {
			return mapError(err)
		}
		if err := runGuard(ctx, tx, reservation, guard); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `
			UPDATE reservations
			SET owner_user_id = ?, owner_name = ?, start_date = ?, end_date = ?, notes = ?, updated_at = ?
			WHERE id = ?
		`,
			nullString(reservation.OwnerUserID),
			nullString(strings.TrimSpace(reservation.OwnerName)),
			reservation.StartDate,
			reservation.EndDate,
			reservation.Notes,
			formatTime(reservation.UpdatedAt),
			reservation.ID,
		)
		if err != nil {
			return mapError(err)
		}
		return expectOneRow(result, persistence.ErrNotFound)
	})
}

// GetReservation retrieves a reservation by ID.
func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	if id == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	var reservation persistence.Reservation
	err := r.pool.Read(ctx, func(ctx context.Context, q queryer) error {
		var err error
		reservation, err = scanReservation(q.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
		return err
	})
	return reservation, err
}

// ListReservations returns reservations touching the filter window ordered
// by start date.
func (r *ReservationRepository) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	var (
		clauses []string
		args    []any
	)
	if !filter.To.IsZero() {
		clauses = append(clauses, "start_date <= ?")
		args = append(args, filter.To)
	}
	if !filter.From.IsZero() {
		clauses = append(clauses, "end_date >= ?")
		args = append(args, filter.From)
	}
	if filter.OwnerUserID != "" {
		clauses = append(clauses, "owner_user_id = ?")
		args = append(args, filter.OwnerUserID)
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY start_date ASC, end_date ASC, id ASC"

	var reservations []persistence.Reservation
	err := r.pool.Read(ctx, func(ctx context.Context, q queryer) error {
		var err error
		reservations, err = queryReservations(ctx, q, query, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

// DeleteReservation removes a reservation. Swap requests referencing it are
// removed with it.
func (r *ReservationRepository) DeleteReservation(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return expectOneRow(result, persistence.ErrNotFound)
}

func validateReservation(reservation persistence.Reservation) error {
	if reservation.ID == "" || reservation.StartDate.IsZero() || reservation.EndDate.IsZero() {
		return persistence.ErrConstraintViolation
	}
	if reservation.EndDate.Before(reservation.StartDate) {
		return persistence.ErrConstraintViolation
	}
	hasUser := reservation.OwnerUserID != ""
	hasName := strings.TrimSpace(reservation.OwnerName) != ""
	if hasUser == hasName {
		return persistence.ErrConstraintViolation
	}
	return nil
}

func runGuard(ctx context.Context, tx *sql.Tx, reservation persistence.Reservation, guard persistence.ReservationGuard) error {
	if guard == nil {
		return nil
	}
	overlapping, err := queryReservations(ctx, tx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE start_date <= ? AND end_date >= ? AND id <> ?
		ORDER BY start_date ASC, id ASC
	`, reservation.EndDate, reservation.StartDate, reservation.ID)
	if err != nil {
		return err
	}
	return guard(overlapping)
}

func queryReservations(ctx context.Context, q queryer, query string, args ...any) ([]persistence.Reservation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var reservations []persistence.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return reservations, nil
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var (
		reservation                     persistence.Reservation
		ownerUserID, ownerName, creator sql.NullString
		start, end                      calendar.Date
		createdAt, updatedAt            string
	)
	if err := row.Scan(
		&reservation.ID,
		&ownerUserID,
		&ownerName,
		&start,
		&end,
		&reservation.Notes,
		&creator,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Reservation{}, mapError(err)
	}

	reservation.OwnerUserID = ownerUserID.String
	reservation.OwnerName = ownerName.String
	reservation.CreatedBy = creator.String
	reservation.StartDate = start
	reservation.EndDate = end

	var err error
	if reservation.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.Reservation{}, err
	}
	return reservation, nil
}

var _ persistence.ReservationRepository = (*ReservationRepository)(nil)
