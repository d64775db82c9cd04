package service

import (
	"context"
	"fmt"

	"github.com/diagnosis/hotel-bookings/pkg/config"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/repository"
)

type AvailabilityService interface {
	// FindAvailableRooms does not validate dates. An empty destination
	// yields an empty result.
	FindAvailableRooms(ctx context.Context, q domain.SearchQuery) ([]domain.Room, error)
	// Search validates the query first and prices each room for the stay.
	Search(ctx context.Context, q domain.SearchQuery) ([]domain.SearchResult, error)
}

type availabilityService struct {
	store  repository.Store
	config *config.Config
	clock  domain.Clock
}

func NewAvailabilityService(store repository.Store, cfg *config.Config, clock domain.Clock) AvailabilityService {
	return &availabilityService{store: store, config: cfg, clock: clock}
}

func (s *availabilityService) FindAvailableRooms(ctx context.Context, q domain.SearchQuery) ([]domain.Room, error) {
	dest := q.NormalizedDestination()
	if dest == "" {
		return []domain.Room{}, nil
	}
	guests := q.Guests
	if guests < 1 {
		guests = 1
	}

	candidates, err := s.store.Rooms().SearchCandidates(ctx, dest, guests)
	if err != nil {
		return nil, fmt.Errorf("failed to search rooms: %w", err)
	}

	matching := make([]domain.Room, 0, len(candidates))
	ids := make([]int64, 0, len(candidates))
	for i := range candidates {
		if !candidates[i].IsActive || candidates[i].Capacity < guests {
			continue
		}
		if !q.Filters.Matches(&candidates[i]) {
			continue
		}
		matching = append(matching, candidates[i])
		ids = append(ids, candidates[i].ID)
	}
	if len(matching) == 0 {
		return []domain.Room{}, nil
	}

	rng := q.Range()
	blocking, err := s.store.Bookings().ActiveForRooms(ctx, ids, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to load blocking bookings: %w", err)
	}
	booked := make(map[int64]bool, len(blocking))
	for i := range blocking {
		if blocking[i].Status.Active() && blocking[i].Range().Overlaps(rng) {
			booked[blocking[i].RoomID] = true
		}
	}

	out := matching[:0]
	for _, r := range matching {
		if !booked[r.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *availabilityService) Search(ctx context.Context, q domain.SearchQuery) ([]domain.SearchResult, error) {
	rng := q.Range()
	if err := rng.Validate(s.clock.Today()); err != nil {
		return nil, err
	}
	max := s.config.Booking.MaxSearchGuests
	if q.Guests < 1 || (max > 0 && q.Guests > max) {
		return nil, domain.NewValidationError("guests", fmt.Sprintf("must be between 1 and %d", max))
	}

	rooms, err := s.FindAvailableRooms(ctx, q)
	if err != nil {
		return nil, err
	}

	nights := rng.Nights()
	results := make([]domain.SearchResult, 0, len(rooms))
	for _, r := range rooms {
		results = append(results, domain.SearchResult{
			Room:       r,
			Nights:     nights,
			TotalPrice: domain.StayCost(r.PricePerNight, nights),
		})
	}
	return results, nil
}
