package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/diagnosis/hotel-bookings/pkg/config"
	"github.com/diagnosis/hotel-bookings/pkg/logger"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/policy"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/repository"
)

type RoomService interface {
	Create(ctx context.Context, actor domain.Identity, in *domain.RoomInput) (*domain.Room, error)
	Update(ctx context.Context, actor domain.Identity, roomID int64, in *domain.RoomInput) (*domain.Room, error)
	SetActive(ctx context.Context, actor domain.Identity, roomID int64, active bool) error
	Delete(ctx context.Context, actor domain.Identity, roomID int64) error
	AddImages(ctx context.Context, actor domain.Identity, roomID int64, urls []string) (*domain.Room, error)
	DeleteImage(ctx context.Context, actor domain.Identity, roomID, imageID int64) error
	// Get hides inactive rooms from everyone except their owner.
	Get(ctx context.Context, actor domain.Identity, roomID int64) (*domain.Room, error)
	ListMine(ctx context.Context, actor domain.Identity) ([]domain.Room, error)
}

type roomService struct {
	store  repository.Store
	config *config.Config
}

func NewRoomService(store repository.Store, cfg *config.Config) RoomService {
	return &roomService{store: store, config: cfg}
}

// maxImages lets configuration lower the per-room image cap but never raise it.
func (s *roomService) maxImages() int {
	if n := s.config.Booking.MaxRoomImages; n > 0 {
		return min(n, domain.MaxRoomImages)
	}
	return domain.MaxRoomImages
}

func cleanURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

func (s *roomService) Create(ctx context.Context, actor domain.Identity, in *domain.RoomInput) (*domain.Room, error) {
	if err := policy.Check(actor, policy.OpCreateRoom); err != nil {
		return nil, err
	}
	in.Images = cleanURLs(in.Images)
	room, err := in.Validate(s.config.Booking.MinPricePerNight, s.maxImages())
	if err != nil {
		return nil, err
	}
	room.OwnerID = actor.UserID

	var created *domain.Room
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		var err error
		created, err = tx.Rooms().Create(ctx, room)
		if err != nil {
			return keepDomain(err, "failed to create room")
		}
		if len(in.Images) > 0 {
			created.Images, err = tx.Rooms().AddImages(ctx, created.ID, in.Images)
			if err != nil {
				return keepDomain(err, "failed to save room images")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Room created", "room_id", created.ID, "owner_id", actor.UserID)
	return created, nil
}

// ownRoom locks the room and verifies the actor owns it.
func ownRoom(ctx context.Context, tx repository.Store, actor domain.Identity, roomID int64) (*domain.Room, error) {
	room, err := tx.Rooms().GetForUpdate(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load room: %w", err)
	}
	if room == nil {
		return nil, notFound("room")
	}
	if !policy.IsRoomOwner(actor, room) {
		return nil, forbidden("not your room")
	}
	return room, nil
}

func (s *roomService) Update(ctx context.Context, actor domain.Identity, roomID int64, in *domain.RoomInput) (*domain.Room, error) {
	if err := policy.Check(actor, policy.OpUpdateRoom); err != nil {
		return nil, err
	}
	in.Images = cleanURLs(in.Images)
	patch, err := in.Validate(s.config.Booking.MinPricePerNight, s.maxImages())
	if err != nil {
		return nil, err
	}

	var updated *domain.Room
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		current, err := ownRoom(ctx, tx, actor, roomID)
		if err != nil {
			return err
		}
		if in.IsActive == nil {
			patch.IsActive = current.IsActive
		}
		if patch.Photo == "" {
			patch.Photo = current.Photo
		}
		patch.ID = current.ID
		patch.OwnerID = current.OwnerID
		patch.Images = current.Images
		if patch.ImageCount()+len(in.Images) > s.maxImages() {
			return domain.NewValidationError("images", fmt.Sprintf("a room holds at most %d images", s.maxImages()))
		}

		updated, err = tx.Rooms().Update(ctx, patch)
		if err != nil {
			return keepDomain(err, "failed to update room")
		}
		if updated == nil {
			return notFound("room")
		}
		added := []domain.RoomImage{}
		if len(in.Images) > 0 {
			if added, err = tx.Rooms().AddImages(ctx, roomID, in.Images); err != nil {
				return keepDomain(err, "failed to save room images")
			}
		}
		updated.Images = append(current.Images, added...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *roomService) SetActive(ctx context.Context, actor domain.Identity, roomID int64, active bool) error {
	if err := policy.Check(actor, policy.OpUpdateRoom); err != nil {
		return err
	}
	return s.store.InTx(ctx, func(tx repository.Store) error {
		if _, err := ownRoom(ctx, tx, actor, roomID); err != nil {
			return err
		}
		return keepDomain(tx.Rooms().SetActive(ctx, roomID, active), "failed to update room")
	})
}

func (s *roomService) Delete(ctx context.Context, actor domain.Identity, roomID int64) error {
	if err := policy.Check(actor, policy.OpDeleteRoom); err != nil {
		return err
	}
	return s.store.InTx(ctx, func(tx repository.Store) error {
		if _, err := ownRoom(ctx, tx, actor, roomID); err != nil {
			return err
		}
		return keepDomain(tx.Rooms().Delete(ctx, roomID), "failed to delete room")
	})
}

func (s *roomService) AddImages(ctx context.Context, actor domain.Identity, roomID int64, urls []string) (*domain.Room, error) {
	if err := policy.Check(actor, policy.OpUpdateRoom); err != nil {
		return nil, err
	}
	urls = cleanURLs(urls)
	if len(urls) == 0 {
		return nil, domain.NewValidationError("images", "at least one image URL is required")
	}

	var room *domain.Room
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		var err error
		room, err = ownRoom(ctx, tx, actor, roomID)
		if err != nil {
			return err
		}
		if free := room.FreeImageSlots(s.maxImages()); len(urls) > free {
			return domain.NewValidationError("images", fmt.Sprintf("only %d more images fit this room", free))
		}
		added, err := tx.Rooms().AddImages(ctx, roomID, urls)
		if err != nil {
			return keepDomain(err, "failed to save room images")
		}
		room.Images = append(room.Images, added...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (s *roomService) DeleteImage(ctx context.Context, actor domain.Identity, roomID, imageID int64) error {
	if err := policy.Check(actor, policy.OpUpdateRoom); err != nil {
		return err
	}
	return s.store.InTx(ctx, func(tx repository.Store) error {
		if _, err := ownRoom(ctx, tx, actor, roomID); err != nil {
			return err
		}
		return keepDomain(tx.Rooms().DeleteImage(ctx, roomID, imageID), "failed to delete image")
	})
}

func (s *roomService) Get(ctx context.Context, actor domain.Identity, roomID int64) (*domain.Room, error) {
	room, err := s.store.Rooms().GetByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	if room == nil || (!room.IsActive && !policy.IsRoomOwner(actor, room)) {
		return nil, notFound("room")
	}
	return room, nil
}

func (s *roomService) ListMine(ctx context.Context, actor domain.Identity) ([]domain.Room, error) {
	if err := policy.Check(actor, policy.OpListMyRoom); err != nil {
		return nil, err
	}
	rooms, err := s.store.Rooms().ListByOwner(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	if rooms == nil {
		rooms = []domain.Room{}
	}
	return rooms, nil
}
