package service

import (
	"context"
	"fmt"

	"github.com/diagnosis/hotel-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/repository"
)

// ConflictResolver answers whether a stay would collide with the room's
// Pending or Confirmed bookings.
type ConflictResolver interface {
	// HasConflict skips excludeBookingID when it is non-zero. It errors only
	// when the store fails.
	HasConflict(ctx context.Context, roomID int64, rng domain.DateRange, excludeBookingID int64) (bool, error)
}

type conflictResolver struct {
	bookings repository.BookingRepository
}

func NewConflictResolver(bookings repository.BookingRepository) ConflictResolver {
	return &conflictResolver{bookings: bookings}
}

func (c *conflictResolver) HasConflict(ctx context.Context, roomID int64, rng domain.DateRange, excludeBookingID int64) (bool, error) {
	candidates, err := c.bookings.ActiveForRoom(ctx, roomID, rng, excludeBookingID)
	if err != nil {
		return false, fmt.Errorf("failed to load bookings for room %d: %w", roomID, err)
	}
	for i := range candidates {
		b := &candidates[i]
		if b.ID == excludeBookingID || !b.Status.Active() {
			continue
		}
		if b.Range().Overlaps(rng) {
			return true, nil
		}
	}
	return false, nil
}
