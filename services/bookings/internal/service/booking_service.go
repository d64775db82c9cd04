package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/diagnosis/hotel-bookings/pkg/config"
	"github.com/diagnosis/hotel-bookings/pkg/events"
	"github.com/diagnosis/hotel-bookings/pkg/logger"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/policy"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/repository"
)

type BookingService interface {
	Create(ctx context.Context, actor domain.Identity, roomID int64, checkIn, checkOut time.Time) (*domain.Booking, error)
	Confirm(ctx context.Context, actor domain.Identity, bookingID int64) (*domain.Booking, error)
	Cancel(ctx context.Context, actor domain.Identity, bookingID int64) (*domain.Booking, error)
	UpdateDates(ctx context.Context, actor domain.Identity, bookingID int64, checkIn, checkOut time.Time) (*domain.Booking, error)

	Get(ctx context.Context, actor domain.Identity, bookingID int64) (*domain.BookingView, error)
	Events(ctx context.Context, actor domain.Identity, bookingID int64) ([]domain.HistoryEvent, error)
	ListAsGuest(ctx context.Context, actor domain.Identity, limit, offset int, status *domain.BookingStatus) ([]domain.BookingView, error)
	ListAsOwner(ctx context.Context, actor domain.Identity, limit, offset int, status *domain.BookingStatus) ([]domain.BookingView, error)
	// History merges guest and owner bookings, newest first.
	History(ctx context.Context, actor domain.Identity, limit int) ([]domain.BookingView, error)
	OwnerStats(ctx context.Context, actor domain.Identity) (domain.OwnerStats, error)
}

type bookingService struct {
	store    repository.Store
	eventBus events.Publisher
	config   *config.Config
	clock    domain.Clock
}

func NewBookingService(store repository.Store, eventBus events.Publisher, cfg *config.Config, clock domain.Clock) BookingService {
	return &bookingService{
		store:    store,
		eventBus: eventBus,
		config:   cfg,
		clock:    clock,
	}
}

func (s *bookingService) Create(ctx context.Context, actor domain.Identity, roomID int64, checkIn, checkOut time.Time) (*domain.Booking, error) {
	if err := policy.Check(actor, policy.OpCreateBooking); err != nil {
		return nil, err
	}
	rng := domain.NewDateRange(checkIn, checkOut)

	var booking *domain.Booking
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		room, err := tx.Rooms().GetForUpdate(ctx, roomID)
		if err != nil {
			return fmt.Errorf("failed to load room: %w", err)
		}
		if room == nil || !room.IsActive {
			return notFound("room")
		}
		if policy.IsRoomOwner(actor, room) {
			return forbidden("you cannot book your own room")
		}
		if err := rng.Validate(s.clock.Today()); err != nil {
			return err
		}

		conflict, err := NewConflictResolver(tx.Bookings()).HasConflict(ctx, roomID, rng, 0)
		if err != nil {
			return err
		}
		if conflict {
			return domain.ErrRoomUnavailable
		}

		booking, err = tx.Bookings().Create(ctx, &domain.Booking{
			GuestID:   actor.UserID,
			RoomID:    roomID,
			CheckIn:   rng.CheckIn,
			CheckOut:  rng.CheckOut,
			Status:    domain.BookingPending,
			TotalCost: domain.StayCost(room.PricePerNight, rng.Nights()),
		})
		if err != nil {
			return keepDomain(err, "failed to create booking")
		}

		_, err = tx.History().Append(ctx, &domain.HistoryEvent{
			BookingID:   booking.ID,
			OldStatus:   "",
			NewStatus:   domain.BookingPending,
			ChangedBy:   domain.SystemActor,
			Description: "booking created",
		})
		return keepDomain(err, "failed to record booking history")
	})
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Booking created", "booking_id", booking.ID, "room_id", roomID, "range", rng.String())
	s.publishBooking(ctx, events.BookingCreated, booking, domain.SystemActor)
	return booking, nil
}

// lockBooking loads a booking and locks its room and then the booking itself,
// in the same order Create takes locks.
func lockBooking(ctx context.Context, tx repository.Store, bookingID int64) (*domain.Booking, *domain.Room, error) {
	b, err := tx.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if b == nil {
		return nil, nil, notFound("booking")
	}
	room, err := tx.Rooms().GetForUpdate(ctx, b.RoomID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock room: %w", err)
	}
	if room == nil {
		return nil, nil, notFound("room")
	}
	b, err = tx.Bookings().GetForUpdate(ctx, bookingID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock booking: %w", err)
	}
	if b == nil {
		return nil, nil, notFound("booking")
	}
	return b, room, nil
}

func (s *bookingService) Confirm(ctx context.Context, actor domain.Identity, bookingID int64) (*domain.Booking, error) {
	if err := policy.Check(actor, policy.OpConfirmBooking); err != nil {
		return nil, err
	}

	var (
		booking *domain.Booking
		changed bool
	)
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		b, room, err := lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if !policy.CanConfirm(actor, b, room) {
			return forbidden("only the guest or the room owner can confirm this booking")
		}

		switch b.Status {
		case domain.BookingConfirmed:
			booking = b
			return nil
		case domain.BookingCancelled:
			if !s.config.Booking.AllowConfirmCancelled {
				return domain.ErrInvalidTransition
			}
			// a reopened booking holds the room again
			conflict, err := NewConflictResolver(tx.Bookings()).HasConflict(ctx, b.RoomID, b.Range(), b.ID)
			if err != nil {
				return err
			}
			if conflict {
				return domain.ErrRoomUnavailable
			}
		}

		booking, err = tx.Bookings().UpdateStatus(ctx, b.ID, domain.BookingConfirmed)
		if err != nil {
			return keepDomain(err, "failed to confirm booking")
		}
		if booking == nil {
			return notFound("booking")
		}
		changed = true

		_, err = tx.History().Append(ctx, &domain.HistoryEvent{
			BookingID:   b.ID,
			OldStatus:   b.Status,
			NewStatus:   domain.BookingConfirmed,
			ChangedBy:   actor.ActorName(),
			Description: "booking confirmed",
		})
		return keepDomain(err, "failed to record booking history")
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.publishBooking(ctx, events.BookingConfirmed, booking, actor.ActorName())
	}
	return booking, nil
}

func (s *bookingService) Cancel(ctx context.Context, actor domain.Identity, bookingID int64) (*domain.Booking, error) {
	if err := policy.Check(actor, policy.OpCancelBooking); err != nil {
		return nil, err
	}

	var (
		booking *domain.Booking
		changed bool
	)
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		b, _, err := lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if !policy.IsBookingGuest(actor, b) {
			return forbidden("only the guest can cancel this booking")
		}
		if b.Status == domain.BookingCancelled {
			booking = b
			return nil
		}

		booking, err = tx.Bookings().UpdateStatus(ctx, b.ID, domain.BookingCancelled)
		if err != nil {
			return keepDomain(err, "failed to cancel booking")
		}
		if booking == nil {
			return notFound("booking")
		}
		changed = true

		_, err = tx.History().Append(ctx, &domain.HistoryEvent{
			BookingID:   b.ID,
			OldStatus:   b.Status,
			NewStatus:   domain.BookingCancelled,
			ChangedBy:   actor.ActorName(),
			Description: "booking cancelled",
		})
		return keepDomain(err, "failed to record booking history")
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.publishBooking(ctx, events.BookingCanceled, booking, actor.ActorName())
	}
	return booking, nil
}

func (s *bookingService) UpdateDates(ctx context.Context, actor domain.Identity, bookingID int64, checkIn, checkOut time.Time) (*domain.Booking, error) {
	if err := policy.Check(actor, policy.OpUpdateBooking); err != nil {
		return nil, err
	}
	rng := domain.NewDateRange(checkIn, checkOut)

	var before, booking *domain.Booking
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		b, room, err := lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if !policy.IsBookingGuest(actor, b) {
			return forbidden("only the guest can change this booking")
		}
		if b.Status == domain.BookingCancelled {
			return fmt.Errorf("%w: cancelled bookings cannot be rescheduled", domain.ErrConflict)
		}
		if err := rng.Validate(s.clock.Today()); err != nil {
			return err
		}

		conflict, err := NewConflictResolver(tx.Bookings()).HasConflict(ctx, b.RoomID, rng, b.ID)
		if err != nil {
			return err
		}
		if conflict {
			return domain.ErrRoomUnavailable
		}

		newCost := domain.StayCost(room.PricePerNight, rng.Nights())
		booking, err = tx.Bookings().UpdateDates(ctx, b.ID, rng, newCost)
		if err != nil {
			return keepDomain(err, "failed to update booking dates")
		}
		if booking == nil {
			return notFound("booking")
		}
		before = b

		_, err = tx.History().Append(ctx, &domain.HistoryEvent{
			BookingID:   b.ID,
			OldStatus:   b.Status,
			NewStatus:   b.Status,
			ChangedBy:   actor.ActorName(),
			Description: domain.DatesChangedDescription(b.TotalCost, newCost),
		})
		return keepDomain(err, "failed to record booking history")
	})
	if err != nil {
		return nil, err
	}

	ev := events.BookingDatesChangedEvent{
		BookingEvent: s.bookingEvent(ctx, booking, actor.ActorName()),
		OldCheckIn:   before.CheckIn,
		OldCheckOut:  before.CheckOut,
		OldTotalCost: before.TotalCost,
	}
	publish(ctx, s.eventBus, events.BookingDatesChanged, ev)
	return booking, nil
}

// canView lets the guest, the room owner and moderators read a booking.
func canView(actor domain.Identity, v *domain.BookingView) bool {
	return v.GuestID == actor.UserID || v.RoomOwnerID == actor.UserID || actor.Can(domain.CapModerate)
}

func (s *bookingService) Get(ctx context.Context, actor domain.Identity, bookingID int64) (*domain.BookingView, error) {
	if err := policy.Check(actor, policy.OpViewBooking); err != nil {
		return nil, err
	}
	v, err := s.store.Bookings().GetView(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if v == nil {
		return nil, notFound("booking")
	}
	if !canView(actor, v) {
		return nil, forbidden("not your booking")
	}
	return v, nil
}

func (s *bookingService) Events(ctx context.Context, actor domain.Identity, bookingID int64) ([]domain.HistoryEvent, error) {
	if _, err := s.Get(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	evs, err := s.store.History().ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking history: %w", err)
	}
	return evs, nil
}

func (s *bookingService) ListAsGuest(ctx context.Context, actor domain.Identity, limit, offset int, status *domain.BookingStatus) ([]domain.BookingView, error) {
	if err := policy.Check(actor, policy.OpBookingHistory); err != nil {
		return nil, err
	}
	return s.store.Bookings().ListByGuest(ctx, actor.UserID, limit, offset, status)
}

func (s *bookingService) ListAsOwner(ctx context.Context, actor domain.Identity, limit, offset int, status *domain.BookingStatus) ([]domain.BookingView, error) {
	if err := policy.Check(actor, policy.OpOwnerBookings); err != nil {
		return nil, err
	}
	return s.store.Bookings().ListByOwner(ctx, actor.UserID, limit, offset, status)
}

func (s *bookingService) History(ctx context.Context, actor domain.Identity, limit int) ([]domain.BookingView, error) {
	if err := policy.Check(actor, policy.OpBookingHistory); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	guest, err := s.store.Bookings().ListByGuest(ctx, actor.UserID, limit, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list guest bookings: %w", err)
	}
	owned, err := s.store.Bookings().ListByOwner(ctx, actor.UserID, limit, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list owner bookings: %w", err)
	}

	seen := make(map[int64]bool, len(guest)+len(owned))
	all := make([]domain.BookingView, 0, len(guest)+len(owned))
	for _, v := range append(guest, owned...) {
		if seen[v.ID] {
			continue
		}
		seen[v.ID] = true
		all = append(all, v)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *bookingService) OwnerStats(ctx context.Context, actor domain.Identity) (domain.OwnerStats, error) {
	if err := policy.Check(actor, policy.OpOwnerBookings); err != nil {
		return domain.OwnerStats{}, err
	}
	return s.store.Bookings().OwnerStats(ctx, actor.UserID)
}

func (s *bookingService) bookingEvent(ctx context.Context, b *domain.Booking, changedBy string) events.BookingEvent {
	guestEmail, guestName := emailOf(ctx, s.store.Users(), b.GuestID)
	ev := events.BookingEvent{
		BookingID:  b.ID,
		RoomID:     b.RoomID,
		GuestID:    b.GuestID,
		GuestEmail: guestEmail,
		GuestName:  guestName,
		CheckIn:    b.CheckIn,
		CheckOut:   b.CheckOut,
		Status:     string(b.Status),
		TotalCost:  b.TotalCost,
		ChangedBy:  changedBy,
		OccurredAt: s.clock(),
	}
	if room, err := s.store.Rooms().GetByID(ctx, b.RoomID); err == nil && room != nil {
		ev.OwnerEmail, _ = emailOf(ctx, s.store.Users(), room.OwnerID)
	}
	return ev
}

func (s *bookingService) publishBooking(ctx context.Context, subject string, b *domain.Booking, changedBy string) {
	publish(ctx, s.eventBus, subject, s.bookingEvent(ctx, b, changedBy))
}
