package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/diagnosis/hotel-bookings/services/bookings/internal/domain"
	"github.com/jackc/pgx/v5"
)

type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) (*domain.Room, error)
	GetByID(ctx context.Context, id int64) (*domain.Room, error)
	// GetForUpdate locks the room row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*domain.Room, error)
	Update(ctx context.Context, room *domain.Room) (*domain.Room, error)
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
	ListByOwner(ctx context.Context, ownerID int64) ([]domain.Room, error)
	CountByOwner(ctx context.Context, ownerID int64) (int, error)
	// SearchCandidates returns active rooms at the destination that fit the
	// party, cheapest first. destination must already be trimmed.
	SearchCandidates(ctx context.Context, destination string, guests int) ([]domain.Room, error)
	AddImages(ctx context.Context, roomID int64, urls []string) ([]domain.RoomImage, error)
	ListImages(ctx context.Context, roomID int64) ([]domain.RoomImage, error)
	DeleteImage(ctx context.Context, roomID, imageID int64) error
}

type roomRepository struct {
	q Querier
}

const roomCols = `id, owner_id, room_type, price_per_night, address, capacity, size,
amenities, is_active, photo, created_at, updated_at`

func scanRoom(row scanner) (*domain.Room, error) {
	var (
		rm        domain.Room
		amenities string
	)
	err := row.Scan(
		&rm.ID, &rm.OwnerID, &rm.Type, &rm.PricePerNight, &rm.Address, &rm.Capacity, &rm.Size,
		&amenities, &rm.IsActive, &rm.Photo, &rm.CreatedAt, &rm.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rm.Amenities = domain.ParseAmenities(amenities)
	return &rm, nil
}

func (r *roomRepository) collect(rows pgx.Rows) ([]domain.Room, error) {
	defer rows.Close()
	var rooms []domain.Room
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *rm)
	}
	return rooms, rows.Err()
}

func (r *roomRepository) Create(ctx context.Context, room *domain.Room) (*domain.Room, error) {
	const q = `INSERT INTO rooms (owner_id, room_type, price_per_night, address, capacity, size, amenities, is_active, photo)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	RETURNING ` + roomCols

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	created, err := scanRoom(r.q.QueryRow(ctx, q,
		room.OwnerID, room.Type, room.PricePerNight, room.Address, room.Capacity, room.Size,
		domain.JoinAmenities(room.Amenities), room.IsActive, room.Photo,
	))
	if err != nil {
		return nil, translate(err, nil)
	}
	return created, nil
}

func (r *roomRepository) get(ctx context.Context, q string, id int64) (*domain.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rm, err := scanRoom(r.q.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rm.Images, err = r.ListImages(ctx, rm.ID); err != nil {
		return nil, err
	}
	return rm, nil
}

func (r *roomRepository) GetByID(ctx context.Context, id int64) (*domain.Room, error) {
	return r.get(ctx, `SELECT `+roomCols+` FROM rooms WHERE id=$1`, id)
}

func (r *roomRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Room, error) {
	return r.get(ctx, `SELECT `+roomCols+` FROM rooms WHERE id=$1 FOR UPDATE`, id)
}

func (r *roomRepository) Update(ctx context.Context, room *domain.Room) (*domain.Room, error) {
	const q = `UPDATE rooms SET
		room_type=$2, price_per_night=$3, address=$4, capacity=$5, size=$6,
		amenities=$7, is_active=$8, photo=$9, updated_at=now()
	WHERE id=$1
	RETURNING ` + roomCols

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	updated, err := scanRoom(r.q.QueryRow(ctx, q,
		room.ID, room.Type, room.PricePerNight, room.Address, room.Capacity, room.Size,
		domain.JoinAmenities(room.Amenities), room.IsActive, room.Photo,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, nil)
	}
	return updated, nil
}

func (r *roomRepository) SetActive(ctx context.Context, id int64, active bool) error {
	const q = `UPDATE rooms SET is_active=$2, updated_at=now() WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.q.Exec(ctx, q, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *roomRepository) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM rooms WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.q.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *roomRepository) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Room, error) {
	const q = `SELECT ` + roomCols + ` FROM rooms WHERE owner_id=$1 ORDER BY created_at DESC`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.q.Query(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *roomRepository) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	const q = `SELECT count(*) FROM rooms WHERE owner_id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var n int
	err := r.q.QueryRow(ctx, q, ownerID).Scan(&n)
	return n, err
}

func (r *roomRepository) SearchCandidates(ctx context.Context, destination string, guests int) ([]domain.Room, error) {
	const q = `SELECT ` + roomCols + ` FROM rooms
	WHERE is_active AND lower(address)=lower($1) AND capacity >= $2
	ORDER BY price_per_night, id`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.q.Query(ctx, q, strings.TrimSpace(destination), guests)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *roomRepository) AddImages(ctx context.Context, roomID int64, urls []string) ([]domain.RoomImage, error) {
	const q = `INSERT INTO room_images (room_id, url) VALUES ($1,$2) RETURNING id, room_id, url, created_at`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	out := make([]domain.RoomImage, 0, len(urls))
	for _, u := range urls {
		var img domain.RoomImage
		if err := r.q.QueryRow(ctx, q, roomID, u).Scan(&img.ID, &img.RoomID, &img.URL, &img.CreatedAt); err != nil {
			return nil, translate(err, nil)
		}
		out = append(out, img)
	}
	return out, nil
}

func (r *roomRepository) ListImages(ctx context.Context, roomID int64) ([]domain.RoomImage, error) {
	const q = `SELECT id, room_id, url, created_at FROM room_images WHERE room_id=$1 ORDER BY id`
	rows, err := r.q.Query(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var imgs []domain.RoomImage
	for rows.Next() {
		var img domain.RoomImage
		if err := rows.Scan(&img.ID, &img.RoomID, &img.URL, &img.CreatedAt); err != nil {
			return nil, err
		}
		imgs = append(imgs, img)
	}
	return imgs, rows.Err()
}

func (r *roomRepository) DeleteImage(ctx context.Context, roomID, imageID int64) error {
	const q = `DELETE FROM room_images WHERE id=$1 AND room_id=$2`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.q.Exec(ctx, q, imageID, roomID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
