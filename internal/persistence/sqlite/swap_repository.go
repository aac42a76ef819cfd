package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/familycabin/cabin/internal/persistence"
)

const (
	swapPending   = "pending"
	swapAccepted  = "accepted"
	swapCancelled = "cancelled"
)

// SwapRepository implements persistence.SwapRepository using SQLite.
type SwapRepository struct {
	pool *ConnectionPool
}

// NewSwapRepository creates a new SQLite swap request repository.
func NewSwapRepository(pool *ConnectionPool) *SwapRepository {
	return &SwapRepository{pool: pool}
}

const swapColumns = `id, token, requester_id, target_user_id, requester_reservation_id, target_reservation_id,
	status, message, expires_at, created_at, updated_at, resolved_at`

// CreateSwap inserts a swap request. A second pending request for the same
// pair of reservations fails with persistence.ErrDuplicate.
func (r *SwapRepository) CreateSwap(ctx context.Context, swap persistence.SwapRequest) error {
	if swap.ID == "" || strings.TrimSpace(swap.Token) == "" || swap.Status == "" || swap.ExpiresAt.IsZero() {
		return persistence.ErrConstraintViolation
	}
	now := time.Now().UTC()
	if swap.CreatedAt.IsZero() {
		swap.CreatedAt = now
	}
	if swap.UpdatedAt.IsZero() {
		swap.UpdatedAt = swap.CreatedAt
	}

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO swap_requests (`+swapColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		swap.ID,
		strings.TrimSpace(swap.Token),
		swap.RequesterID,
		swap.TargetUserID,
		swap.RequesterReservationID,
		swap.TargetReservationID,
		swap.Status,
		swap.Message,
		formatTime(swap.ExpiresAt),
		formatTime(swap.CreatedAt),
		formatTime(swap.UpdatedAt),
		formatTimePtr(swap.ResolvedAt),
	)
	return mapError(err)
}

// GetSwap retrieves a swap request by ID.
func (r *SwapRepository) GetSwap(ctx context.Context, id string) (persistence.SwapRequest, error) {
	if id == "" {
		return persistence.SwapRequest{}, persistence.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+swapColumns+` FROM swap_requests WHERE id = ?`, id)
}

// GetSwapByToken retrieves a swap request by its response token.
func (r *SwapRepository) GetSwapByToken(ctx context.Context, token string) (persistence.SwapRequest, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.SwapRequest{}, persistence.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+swapColumns+` FROM swap_requests WHERE token = ?`, token)
}

// ListSwaps returns swap requests newest first.
func (r *SwapRepository) ListSwaps(ctx context.Context, filter persistence.SwapFilter) ([]persistence.SwapRequest, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.ParticipantID != "" {
		clauses = append(clauses, "(requester_id = ? OR target_user_id = ?)")
		args = append(args, filter.ParticipantID, filter.ParticipantID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	query := `SELECT ` + swapColumns + ` FROM swap_requests`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"

	var swaps []persistence.SwapRequest
	err := r.pool.Read(ctx, func(ctx context.Context, q queryer) error {
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return mapError(err)
		}
		defer rows.Close()

		swaps = swaps[:0]
		for rows.Next() {
			swap, err := scanSwap(rows)
			if err != nil {
				return err
			}
			swaps = append(swaps, swap)
		}
		return mapError(rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return swaps, nil
}

// ResolveSwap moves a request from status from to status to. Only one of
// several concurrent resolutions can succeed; the others see
// persistence.ErrStaleState.
func (r *SwapRepository) ResolveSwap(ctx context.Context, id, from, to string, at time.Time) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM swap_requests WHERE id = ?`, id).Scan(&exists); err != nil {
			return mapError(err)
		}
		result, err := tx.ExecContext(ctx, `
			UPDATE swap_requests
			SET status = ?, resolved_at = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`, to, formatTime(at), formatTime(at), id, from)
		if err != nil {
			return mapError(err)
		}
		return expectOneRow(result, persistence.ErrStaleState)
	})
}

// AcceptSwap performs the exchange in a single transaction:
//
//  1. the request moves from pending to accepted;
//  2. each reservation passes to the other participant, but only if it is
//     still owned by the participant recorded on the request;
//  3. every other pending request naming either reservation is cancelled.
//
// If any guarded update matches no row the transaction rolls back and
// persistence.ErrStaleState is returned.
func (r *SwapRepository) AcceptSwap(ctx context.Context, params persistence.AcceptSwapParams) ([]string, error) {
	at := formatTime(params.ResolvedAt)
	var cancelled []string

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM swap_requests WHERE id = ?`, params.SwapID).Scan(&exists); err != nil {
			return mapError(err)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE swap_requests
			SET status = ?, resolved_at = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`, swapAccepted, at, at, params.SwapID, swapPending)
		if err != nil {
			return mapError(err)
		}
		if err := expectOneRow(result, persistence.ErrStaleState); err != nil {
			return err
		}

		transfer := `
			UPDATE reservations
			SET owner_user_id = ?, owner_name = NULL, updated_at = ?
			WHERE id = ? AND owner_user_id = ?
		`
		result, err = tx.ExecContext(ctx, transfer, params.TargetUserID, at, params.RequesterReservationID, params.RequesterID)
		if err != nil {
			return mapError(err)
		}
		if err := expectOneRow(result, persistence.ErrStaleState); err != nil {
			return err
		}
		result, err = tx.ExecContext(ctx, transfer, params.RequesterID, at, params.TargetReservationID, params.TargetUserID)
		if err != nil {
			return mapError(err)
		}
		if err := expectOneRow(result, persistence.ErrStaleState); err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT id FROM swap_requests
			WHERE status = ? AND id <> ?
			  AND (requester_reservation_id IN (?, ?) OR target_reservation_id IN (?, ?))
			ORDER BY id
		`, swapPending, params.SwapID,
			params.RequesterReservationID, params.TargetReservationID,
			params.RequesterReservationID, params.TargetReservationID)
		if err != nil {
			return mapError(err)
		}
		ids, err := collectIDs(rows)
		if err != nil {
			return err
		}

		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `
				UPDATE swap_requests
				SET status = ?, resolved_at = ?, updated_at = ?
				WHERE id = ? AND status = ?
			`, swapCancelled, at, at, id, swapPending); err != nil {
				return mapError(err)
			}
		}
		cancelled = ids
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// CancelExpiredSwaps cancels every pending request whose deadline is at or
// before reference and returns their IDs.
func (r *SwapRepository) CancelExpiredSwaps(ctx context.Context, reference time.Time) ([]string, error) {
	cutoff := formatTime(reference)
	var cancelled []string

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id FROM swap_requests
			WHERE status = ? AND expires_at <= ?
			ORDER BY id
		`, swapPending, cutoff)
		if err != nil {
			return mapError(err)
		}
		ids, err := collectIDs(rows)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE swap_requests
			SET status = ?, resolved_at = ?, updated_at = ?
			WHERE status = ? AND expires_at <= ?
		`, swapCancelled, cutoff, cutoff, swapPending, cutoff); err != nil {
			return mapError(err)
		}
		cancelled = ids
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (r *SwapRepository) getOne(ctx context.Context, query string, arg any) (persistence.SwapRequest, error) {
	var swap persistence.SwapRequest
	err := r.pool.Read(ctx, func(ctx context.Context, q queryer) error {
		var err error
		swap, err = scanSwap(q.QueryRowContext(ctx, query, arg))
		return err
	})
	return swap, err
}

func collectIDs(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, mapError(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return ids, nil
}

func scanSwap(row rowScanner) (persistence.SwapRequest, error) {
	var (
		swap                            persistence.SwapRequest
		expiresAt, createdAt, updatedAt string
		resolvedAt                      sql.NullString
	)
	if err := row.Scan(
		&swap.ID,
		&swap.Token,
		&swap.RequesterID,
		&swap.TargetUserID,
		&swap.RequesterReservationID,
		&swap.TargetReservationID,
		&swap.Status,
		&swap.Message,
		&expiresAt,
		&createdAt,
		&updatedAt,
		&resolvedAt,
	); err != nil {
		return persistence.SwapRequest{}, mapError(err)
	}

	var err error
	if swap.ExpiresAt, err = parseTime("expires_at", expiresAt); err != nil {
		return persistence.SwapRequest{}, err
	}
	if swap.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.SwapRequest{}, err
	}
	if swap.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.SwapRequest{}, err
	}
	if swap.ResolvedAt, err = parseTimePtr("resolved_at", resolvedAt); err != nil {
		return persistence.SwapRequest{}, err
	}
	return swap, nil
}

var _ persistence.SwapRepository = (*SwapRepository)(nil)
