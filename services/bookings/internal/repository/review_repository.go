package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diagnosis/hotel-bookings/services/bookings/internal/domain"
	"github.com/jackc/pgx/v5"
)

type ReviewRepository interface {
	Create(ctx context.Context, rv *domain.Review) (*domain.Review, error)
	GetByID(ctx context.Context, id int64) (*domain.Review, error)
	GetByBooking(ctx context.Context, bookingID int64) (*domain.Review, error)
	// UpdateContent rewrites rating and text and puts the review back in the
	// moderation queue.
	UpdateContent(ctx context.Context, id int64, rating int, text string) (*domain.Review, error)
	SetModeration(ctx context.Context, id int64, status domain.ReviewStatus, moderatorID int64, comment string, at time.Time) (*domain.Review, error)
	SetReply(ctx context.Context, id int64, reply string, at time.Time) (*domain.Review, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f domain.ReviewFilter) ([]domain.Review, error)
	CountByStatus(ctx context.Context, status domain.ReviewStatus) (int, error)
}

type reviewRepository struct {
	q Querier
}

const reviewCols = `id, booking_id, guest_id, room_id, rating, text, status,
moderated_by, moderation_comment, moderated_at, owner_reply, owner_reply_at, created_at, updated_at`

func scanReview(row scanner) (*domain.Review, error) {
	var rv domain.Review
	err := row.Scan(
		&rv.ID, &rv.BookingID, &rv.GuestID, &rv.RoomID, &rv.Rating, &rv.Text, &rv.Status,
		&rv.ModeratedBy, &rv.ModerationComment, &rv.ModeratedAt, &rv.OwnerReply, &rv.OwnerReplyAt,
		&rv.CreatedAt, &rv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

func (r *reviewRepository) one(ctx context.Context, q string, args ...any) (*domain.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rv, err := scanReview(r.q.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, domain.ErrAlreadyReviewed)
	}
	return rv, nil
}

func (r *reviewRepository) Create(ctx context.Context, rv *domain.Review) (*domain.Review, error) {
	const q = `INSERT INTO reviews (booking_id, guest_id, room_id, rating, text, status)
	VALUES ($1,$2,$3,$4,$5,$6)
	RETURNING ` + reviewCols
	return r.one(ctx, q, rv.BookingID, rv.GuestID, rv.RoomID, rv.Rating, rv.Text, rv.Status)
}

func (r *reviewRepository) GetByID(ctx context.Context, id int64) (*domain.Review, error) {
	return r.one(ctx, `SELECT `+reviewCols+` FROM reviews WHERE id=$1`, id)
}

func (r *reviewRepository) GetByBooking(ctx context.Context, bookingID int64) (*domain.Review, error) {
	return r.one(ctx, `SELECT `+reviewCols+` FROM reviews WHERE booking_id=$1`, bookingID)
}

func (r *reviewRepository) UpdateContent(ctx context.Context, id int64, rating int, text string) (*domain.Review, error) {
	const q = `UPDATE reviews SET rating=$2, text=$3, status='pending',
		moderated_by=NULL, moderation_comment='', moderated_at=NULL, updated_at=now()
	WHERE id=$1 RETURNING ` + reviewCols
	return r.one(ctx, q, id, rating, text)
}

func (r *reviewRepository) SetModeration(ctx context.Context, id int64, status domain.ReviewStatus, moderatorID int64, comment string, at time.Time) (*domain.Review, error) {
	const q = `UPDATE reviews SET status=$2, moderated_by=$3, moderation_comment=$4, moderated_at=$5, updated_at=now()
	WHERE id=$1 RETURNING ` + reviewCols
	return r.one(ctx, q, id, status, moderatorID, comment, at)
}

func (r *reviewRepository) SetReply(ctx context.Context, id int64, reply string, at time.Time) (*domain.Review, error) {
	const q = `UPDATE reviews SET owner_reply=$2, owner_reply_at=$3, updated_at=now()
	WHERE id=$1 RETURNING ` + reviewCols
	return r.one(ctx, q, id, reply, at)
}

func (r *reviewRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.q.Exec(ctx, `DELETE FROM reviews WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *reviewRepository) List(ctx context.Context, f domain.ReviewFilter) ([]domain.Review, error) {
	limit, offset := normLimit(f.Limit, f.Offset)

	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.RoomID != 0 {
		add("room_id=$%d", f.RoomID)
	}
	if f.GuestID != 0 {
		add("guest_id=$%d", f.GuestID)
	}
	if f.OwnerID != 0 {
		add("room_id IN (SELECT id FROM rooms WHERE owner_id=$%d)", f.OwnerID)
	}
	if f.Status != "" {
		add("status=$%d", f.Status)
	}

	q := `SELECT ` + reviewCols + ` FROM reviews`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, limit, offset)
	q += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rv)
	}
	return out, rows.Err()
}

func (r *reviewRepository) CountByStatus(ctx context.Context, status domain.ReviewStatus) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var n int
	err := r.q.QueryRow(ctx, `SELECT count(*) FROM reviews WHERE status=$1`, status).Scan(&n)
	return n, err
}
