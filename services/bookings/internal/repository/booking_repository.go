package repository

import (
	"context"
	"errors"

	"github.com/diagnosis/hotel-bookings/services/bookings/internal/domain"
	"github.com/jackc/pgx/v5"
)

type BookingRepository interface {
	Create(ctx context.Context, b *domain.Booking) (*domain.Booking, error)
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	// GetForUpdate locks the booking row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*domain.Booking, error)
	GetView(ctx context.Context, id int64) (*domain.BookingView, error)
	UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus) (*domain.Booking, error)
	UpdateDates(ctx context.Context, id int64, rng domain.DateRange, totalCost float64) (*domain.Booking, error)
	// ActiveForRoom lists Pending and Confirmed bookings of a room that
	// overlap rng, skipping excludeID when it is non-zero.
	ActiveForRoom(ctx context.Context, roomID int64, rng domain.DateRange, excludeID int64) ([]domain.Booking, error)
	// ActiveForRooms lists Pending and Confirmed bookings of any of the rooms
	// that overlap rng.
	ActiveForRooms(ctx context.Context, roomIDs []int64, rng domain.DateRange) ([]domain.Booking, error)
	ListByGuest(ctx context.Context, guestID int64, limit, offset int, status *domain.BookingStatus) ([]domain.BookingView, error)
	ListByOwner(ctx context.Context, ownerID int64, limit, offset int, status *domain.BookingStatus) ([]domain.BookingView, error)
	OwnerStats(ctx context.Context, ownerID int64) (domain.OwnerStats, error)
}

type bookingRepository struct {
	q Querier
}

const bookingCols = `id, guest_id, room_id, check_in, check_out, status, total_cost, created_at, updated_at`

const bookingViewCols = `b.id, b.guest_id, b.room_id, b.check_in, b.check_out, b.status, b.total_cost,
b.created_at, b.updated_at, r.address, r.room_type, r.owner_id, u.email, u.first_name, u.last_name`

const bookingViewFrom = ` FROM bookings b
JOIN rooms r ON r.id = b.room_id
JOIN users u ON u.id = b.guest_id`

func scanBooking(row scanner) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.GuestID, &b.RoomID, &b.CheckIn, &b.CheckOut,
		&b.Status, &b.TotalCost, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func scanBookingView(row scanner) (*domain.BookingView, error) {
	var (
		v           domain.BookingView
		first, last string
	)
	err := row.Scan(
		&v.ID, &v.GuestID, &v.RoomID, &v.CheckIn, &v.CheckOut, &v.Status, &v.TotalCost,
		&v.CreatedAt, &v.UpdatedAt, &v.RoomAddress, &v.RoomType, &v.RoomOwnerID,
		&v.GuestEmail, &first, &last,
	)
	if err != nil {
		return nil, err
	}
	u := domain.User{Email: v.GuestEmail, FirstName: first, LastName: last}
	v.GuestName = u.DisplayName()
	return &v, nil
}

func (r *bookingRepository) Create(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
	const q = `INSERT INTO bookings (guest_id, room_id, check_in, check_out, status, total_cost)
	VALUES ($1,$2,$3,$4,$5,$6)
	RETURNING ` + bookingCols

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	created, err := scanBooking(r.q.QueryRow(ctx, q,
		b.GuestID, b.RoomID, b.CheckIn, b.CheckOut, b.Status, b.TotalCost,
	))
	if err != nil {
		return nil, translate(err, domain.ErrRoomUnavailable)
	}
	return created, nil
}

func (r *bookingRepository) getOne(ctx context.Context, q string, id int64) (*domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	b, err := scanBooking(r.q.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (r *bookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.getOne(ctx, `SELECT `+bookingCols+` FROM bookings WHERE id=$1`, id)
}

func (r *bookingRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.getOne(ctx, `SELECT `+bookingCols+` FROM bookings WHERE id=$1 FOR UPDATE`, id)
}

func (r *bookingRepository) GetView(ctx context.Context, id int64) (*domain.BookingView, error) {
	const q = `SELECT ` + bookingViewCols + bookingViewFrom + ` WHERE b.id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	v, err := scanBookingView(r.q.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus) (*domain.Booking, error) {
	const q = `UPDATE bookings SET status=$2, updated_at=now() WHERE id=$1 RETURNING ` + bookingCols
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	b, err := scanBooking(r.q.QueryRow(ctx, q, id, status))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, domain.ErrRoomUnavailable)
	}
	return b, nil
}

func (r *bookingRepository) UpdateDates(ctx context.Context, id int64, rng domain.DateRange, totalCost float64) (*domain.Booking, error) {
	const q = `UPDATE bookings SET check_in=$2, check_out=$3, total_cost=$4, updated_at=now()
	WHERE id=$1 RETURNING ` + bookingCols
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	b, err := scanBooking(r.q.QueryRow(ctx, q, id, rng.CheckIn, rng.CheckOut, totalCost))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, domain.ErrRoomUnavailable)
	}
	return b, nil
}

func (r *bookingRepository) list(ctx context.Context, q string, args ...any) ([]domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (r *bookingRepository) ActiveForRoom(ctx context.Context, roomID int64, rng domain.DateRange, excludeID int64) ([]domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings
	WHERE room_id=$1 AND status IN ('Pending','Confirmed')
	  AND check_in <= $3 AND check_out >= $2
	  AND id <> $4
	ORDER BY check_in`
	return r.list(ctx, q, roomID, rng.CheckIn, rng.CheckOut, excludeID)
}

func (r *bookingRepository) ActiveForRooms(ctx context.Context, roomIDs []int64, rng domain.DateRange) ([]domain.Booking, error) {
	if len(roomIDs) == 0 {
		return nil, nil
	}
	const q = `SELECT ` + bookingCols + ` FROM bookings
	WHERE room_id = ANY($1) AND status IN ('Pending','Confirmed')
	  AND check_in <= $3 AND check_out >= $2`
	return r.list(ctx, q, roomIDs, rng.CheckIn, rng.CheckOut)
}

func (r *bookingRepository) listViews(ctx context.Context, where string, id int64, limit, offset int, status *domain.BookingStatus) ([]domain.BookingView, error) {
	limit, offset = normLimit(limit, offset)

	q := `SELECT ` + bookingViewCols + bookingViewFrom + ` WHERE ` + where
	args := []any{id}
	if status != nil {
		q += ` AND b.status=$2 ORDER BY b.created_at DESC LIMIT $3 OFFSET $4`
		args = append(args, *status, limit, offset)
	} else {
		q += ` ORDER BY b.created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BookingView
	for rows.Next() {
		v, err := scanBookingView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func (r *bookingRepository) ListByGuest(ctx context.Context, guestID int64, limit, offset int, status *domain.BookingStatus) ([]domain.BookingView, error) {
	return r.listViews(ctx, `b.guest_id=$1`, guestID, limit, offset, status)
}

func (r *bookingRepository) ListByOwner(ctx context.Context, ownerID int64, limit, offset int, status *domain.BookingStatus) ([]domain.BookingView, error) {
	return r.listViews(ctx, `r.owner_id=$1`, ownerID, limit, offset, status)
}

func (r *bookingRepository) OwnerStats(ctx context.Context, ownerID int64) (domain.OwnerStats, error) {
	const q = `SELECT count(*), count(*) FILTER (WHERE b.status IN ('Pending','Confirmed'))
	FROM bookings b JOIN rooms r ON r.id = b.room_id
	WHERE r.owner_id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var s domain.OwnerStats
	err := r.q.QueryRow(ctx, q, ownerID).Scan(&s.TotalBookings, &s.ActiveBookings)
	return s, err
}
