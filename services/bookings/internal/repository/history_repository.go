package repository

import (
	"context"

	"github.com/diagnosis/hotel-bookings/services/bookings/internal/domain"
	"github.com/google/uuid"
)

// HistoryRepository is append-only. There is no update or delete.
type HistoryRepository interface {
	Append(ctx context.Context, e *domain.HistoryEvent) (*domain.HistoryEvent, error)
	ListByBooking(ctx context.Context, bookingID int64) ([]domain.HistoryEvent, error)
}

type historyRepository struct {
	q Querier
}

const historyCols = `id, booking_id, event_id, old_status, new_status, changed_by, description, changed_at`

func (r *historyRepository) Append(ctx context.Context, e *domain.HistoryEvent) (*domain.HistoryEvent, error) {
	const q = `INSERT INTO booking_history (booking_id, event_id, old_status, new_status, changed_by, description)
	VALUES ($1,$2,$3,$4,$5,$6)
	RETURNING ` + historyCols

	eventID := e.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var out domain.HistoryEvent
	err := r.q.QueryRow(ctx, q, e.BookingID, eventID, e.OldStatus, e.NewStatus, e.ChangedBy, e.Description).Scan(
		&out.ID, &out.BookingID, &out.EventID, &out.OldStatus, &out.NewStatus,
		&out.ChangedBy, &out.Description, &out.ChangedAt,
	)
	if err != nil {
		return nil, translate(err, nil)
	}
	return &out, nil
}

func (r *historyRepository) ListByBooking(ctx context.Context, bookingID int64) ([]domain.HistoryEvent, error) {
	const q = `SELECT ` + historyCols + ` FROM booking_history WHERE booking_id=$1 ORDER BY id`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.q.Query(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.HistoryEvent
	for rows.Next() {
		var e domain.HistoryEvent
		if err := rows.Scan(
			&e.ID, &e.BookingID, &e.EventID, &e.OldStatus, &e.NewStatus,
			&e.ChangedBy, &e.Description, &e.ChangedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
