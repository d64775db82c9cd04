package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied statement by statement on startup. Every statement is
// idempotent so repeated boots are safe.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,

	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		first_name    TEXT NOT NULL DEFAULT '',
		last_name     TEXT NOT NULL DEFAULT '',
		phone         TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user','staff','admin')),
		is_superuser  BOOLEAN NOT NULL DEFAULT FALSE,
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS rooms (
		id              BIGSERIAL PRIMARY KEY,
		owner_id        BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		room_type       TEXT NOT NULL CHECK (room_type IN ('Standard','Deluxe','Suite')),
		price_per_night NUMERIC(10,2) NOT NULL CHECK (price_per_night >= 0),
		address         TEXT NOT NULL,
		capacity        INT NOT NULL CHECK (capacity >= 1),
		size            TEXT NOT NULL DEFAULT '',
		amenities       TEXT NOT NULL DEFAULT '',
		is_active       BOOLEAN NOT NULL DEFAULT TRUE,
		photo           TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`ALTER TABLE rooms
		ALTER COLUMN size DROP DEFAULT,
		ALTER COLUMN size TYPE TEXT USING size::text,
		ALTER COLUMN size SET DEFAULT ''`,
	`CREATE INDEX IF NOT EXISTS rooms_address_idx ON rooms (lower(address))`,

	`CREATE TABLE IF NOT EXISTS room_images (
		id         BIGSERIAL PRIMARY KEY,
		room_id    BIGINT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		url        TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id         BIGSERIAL PRIMARY KEY,
		guest_id   BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		room_id    BIGINT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		check_in   DATE NOT NULL,
		check_out  DATE NOT NULL,
		status     TEXT NOT NULL DEFAULT 'Pending' CHECK (status IN ('Pending','Confirmed','Cancelled')),
		total_cost NUMERIC(12,2) NOT NULL CHECK (total_cost >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT bookings_dates_chk CHECK (check_in < check_out),
		CONSTRAINT bookings_no_overlap EXCLUDE USING gist (
			room_id WITH =,
			daterange(check_in, check_out, '[]') WITH &&
		) WHERE (status IN ('Pending','Confirmed'))
	)`,
	`CREATE INDEX IF NOT EXISTS bookings_guest_idx ON bookings (guest_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS booking_history (
		id          BIGSERIAL PRIMARY KEY,
		booking_id  BIGINT NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
		event_id    UUID NOT NULL UNIQUE,
		old_status  TEXT NOT NULL DEFAULT '',
		new_status  TEXT NOT NULL,
		changed_by  TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		changed_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS booking_history_booking_idx ON booking_history (booking_id, id)`,

	`CREATE TABLE IF NOT EXISTS reviews (
		id                 BIGSERIAL PRIMARY KEY,
		booking_id         BIGINT NOT NULL UNIQUE REFERENCES bookings(id) ON DELETE CASCADE,
		guest_id           BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		room_id            BIGINT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		rating             INT NOT NULL CHECK (rating BETWEEN 1 AND 5),
		text               TEXT NOT NULL,
		status             TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','approved','rejected')),
		moderated_by       BIGINT REFERENCES users(id) ON DELETE SET NULL,
		moderation_comment TEXT NOT NULL DEFAULT '',
		moderated_at       TIMESTAMPTZ,
		owner_reply        TEXT NOT NULL DEFAULT '',
		owner_reply_at     TIMESTAMPTZ,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS reviews_room_idx ON reviews (room_id, status)`,
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
