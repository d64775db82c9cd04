package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/diagnosis/hotel-bookings/pkg/config"
	"github.com/diagnosis/hotel-bookings/pkg/events"
	"github.com/diagnosis/hotel-bookings/pkg/logger"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/policy"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/repository"
)

type ReviewService interface {
	Create(ctx context.Context, actor domain.Identity, bookingID int64, rating int, text string) (*domain.Review, error)
	Update(ctx context.Context, actor domain.Identity, reviewID int64, rating int, text string) (*domain.Review, error)
	Delete(ctx context.Context, actor domain.Identity, reviewID int64) error
	Moderate(ctx context.Context, actor domain.Identity, reviewID int64, status domain.ReviewStatus, comment string) (*domain.Review, error)
	// QuickModerate takes "approve" or "reject" and records no comment.
	QuickModerate(ctx context.Context, actor domain.Identity, reviewID int64, action string) (*domain.Review, error)
	Reply(ctx context.Context, actor domain.Identity, reviewID int64, text string) (*domain.Review, error)
	ListVisible(ctx context.Context, actor domain.Identity, roomID int64, limit, offset int) ([]domain.Review, error)
	ModerationQueue(ctx context.Context, actor domain.Identity, status string, limit, offset int) (*domain.ModerationQueue, error)
}

type reviewService struct {
	store    repository.Store
	eventBus events.Publisher
	config   *config.Config
	clock    domain.Clock
}

func NewReviewService(store repository.Store, eventBus events.Publisher, cfg *config.Config, clock domain.Clock) ReviewService {
	return &reviewService{
		store:    store,
		eventBus: eventBus,
		config:   cfg,
		clock:    clock,
	}
}

func (s *reviewService) Create(ctx context.Context, actor domain.Identity, bookingID int64, rating int, text string) (*domain.Review, error) {
	if err := policy.Check(actor, policy.OpCreateReview); err != nil {
		return nil, err
	}

	booking, err := s.store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if booking == nil {
		return nil, notFound("booking")
	}
	if !policy.IsBookingGuest(actor, booking) {
		return nil, forbidden("you can only review your own bookings")
	}
	room, err := s.store.Rooms().GetByID(ctx, booking.RoomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load room: %w", err)
	}
	if room == nil {
		return nil, notFound("room")
	}
	if policy.IsRoomOwner(actor, room) {
		return nil, forbidden("you cannot review your own room")
	}
	if err := domain.ValidateRating(rating); err != nil {
		return nil, err
	}
	text, err = domain.ValidateReviewText(text)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.Reviews().GetByBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing review: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrAlreadyReviewed
	}

	rv, err := s.store.Reviews().Create(ctx, &domain.Review{
		BookingID: bookingID,
		GuestID:   actor.UserID,
		RoomID:    booking.RoomID,
		Rating:    rating,
		Text:      text,
		Status:    domain.ReviewPending,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.ErrAlreadyReviewed
		}
		return nil, keepDomain(err, "failed to create review")
	}

	s.publishReview(ctx, events.ReviewCreated, rv, room)
	return rv, nil
}

func (s *reviewService) loadOwn(ctx context.Context, actor domain.Identity, reviewID int64) (*domain.Review, error) {
	rv, err := s.store.Reviews().GetByID(ctx, reviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to load review: %w", err)
	}
	if rv == nil {
		return nil, notFound("review")
	}
	if !policy.IsReviewAuthor(actor, rv) {
		return nil, forbidden("not your review")
	}
	return rv, nil
}

func (s *reviewService) Update(ctx context.Context, actor domain.Identity, reviewID int64, rating int, text string) (*domain.Review, error) {
	if err := policy.Check(actor, policy.OpUpdateReview); err != nil {
		return nil, err
	}
	if _, err := s.loadOwn(ctx, actor, reviewID); err != nil {
		return nil, err
	}
	if err := domain.ValidateRating(rating); err != nil {
		return nil, err
	}
	text, err := domain.ValidateReviewText(text)
	if err != nil {
		return nil, err
	}

	rv, err := s.store.Reviews().UpdateContent(ctx, reviewID, rating, text)
	if err != nil {
		return nil, keepDomain(err, "failed to update review")
	}
	if rv == nil {
		return nil, notFound("review")
	}
	return rv, nil
}

func (s *reviewService) Delete(ctx context.Context, actor domain.Identity, reviewID int64) error {
	if err := policy.Check(actor, policy.OpDeleteReview); err != nil {
		return err
	}
	if _, err := s.loadOwn(ctx, actor, reviewID); err != nil {
		return err
	}
	return keepDomain(s.store.Reviews().Delete(ctx, reviewID), "failed to delete review")
}

func (s *reviewService) Moderate(ctx context.Context, actor domain.Identity, reviewID int64, status domain.ReviewStatus, comment string) (*domain.Review, error) {
	if err := policy.Check(actor, policy.OpModerateReview); err != nil {
		return nil, err
	}
	if !status.ModerationOutcome() {
		return nil, domain.NewValidationError("status", "must be approved or rejected")
	}

	existing, err := s.store.Reviews().GetByID(ctx, reviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to load review: %w", err)
	}
	if existing == nil {
		return nil, notFound("review")
	}

	rv, err := s.store.Reviews().SetModeration(ctx, reviewID, status, actor.UserID, strings.TrimSpace(comment), s.clock())
	if err != nil {
		return nil, keepDomain(err, "failed to moderate review")
	}
	if rv == nil {
		return nil, notFound("review")
	}

	room, err := s.store.Rooms().GetByID(ctx, rv.RoomID)
	if err != nil {
		logger.WarnContext(ctx, "Failed to load room for review event", "review_id", rv.ID, "room_id", rv.RoomID, "error", err)
	}
	s.publishReview(ctx, events.ReviewModerated, rv, room)
	return rv, nil
}

func (s *reviewService) QuickModerate(ctx context.Context, actor domain.Identity, reviewID int64, action string) (*domain.Review, error) {
	var status domain.ReviewStatus
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "approve":
		status = domain.ReviewApproved
	case "reject":
		status = domain.ReviewRejected
	default:
		if err := policy.Check(actor, policy.OpModerateReview); err != nil {
			return nil, err
		}
		return nil, domain.NewValidationError("action", "must be approve or reject")
	}
	return s.Moderate(ctx, actor, reviewID, status, "")
}

func (s *reviewService) Reply(ctx context.Context, actor domain.Identity, reviewID int64, text string) (*domain.Review, error) {
	if err := policy.Check(actor, policy.OpReplyReview); err != nil {
		return nil, err
	}

	existing, err := s.store.Reviews().GetByID(ctx, reviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to load review: %w", err)
	}
	if existing == nil {
		return nil, notFound("review")
	}
	room, err := s.store.Rooms().GetByID(ctx, existing.RoomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load room: %w", err)
	}
	if !policy.CanReply(actor, room) {
		return nil, forbidden("only the room owner can reply")
	}
	reply := strings.TrimSpace(text)
	if reply == "" {
		return nil, domain.NewValidationError("reply", "is required")
	}
	if existing.HasReply() && !s.config.Booking.AllowReplyOverwrite {
		return nil, fmt.Errorf("%w: review already has a reply", domain.ErrConflict)
	}

	rv, err := s.store.Reviews().SetReply(ctx, reviewID, reply, s.clock())
	if err != nil {
		return nil, keepDomain(err, "failed to save reply")
	}
	if rv == nil {
		return nil, notFound("review")
	}

	s.publishReview(ctx, events.ReviewReplied, rv, room)
	return rv, nil
}

func (s *reviewService) ListVisible(ctx context.Context, actor domain.Identity, roomID int64, limit, offset int) ([]domain.Review, error) {
	if err := policy.Check(actor, policy.OpListReviews); err != nil {
		return nil, err
	}
	f := domain.ReviewFilter{Limit: limit, Offset: offset}

	switch {
	case roomID != 0:
		f.RoomID = roomID
		f.Status = domain.ReviewApproved
	case actor.Authenticated():
		owned, err := s.store.Rooms().CountByOwner(ctx, actor.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to check room ownership: %w", err)
		}
		if owned > 0 {
			f.OwnerID = actor.UserID
		} else {
			f.GuestID = actor.UserID
		}
	default:
		f.Status = domain.ReviewApproved
	}

	reviews, err := s.store.Reviews().List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	if reviews == nil {
		reviews = []domain.Review{}
	}
	return reviews, nil
}

func (s *reviewService) ModerationQueue(ctx context.Context, actor domain.Identity, status string, limit, offset int) (*domain.ModerationQueue, error) {
	if err := policy.Check(actor, policy.OpModerationQueue); err != nil {
		return nil, err
	}
	f := domain.ReviewFilter{Limit: limit, Offset: offset}
	if strings.TrimSpace(status) != "" {
		st, ok := domain.ParseReviewStatus(status)
		if !ok {
			return nil, domain.NewValidationError("status", "unknown review status")
		}
		f.Status = st
	}

	reviews, err := s.store.Reviews().List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	pending, err := s.store.Reviews().CountByStatus(ctx, domain.ReviewPending)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending reviews: %w", err)
	}
	if reviews == nil {
		reviews = []domain.Review{}
	}
	return &domain.ModerationQueue{Reviews: reviews, PendingCount: pending}, nil
}

func (s *reviewService) publishReview(ctx context.Context, subject string, rv *domain.Review, room *domain.Room) {
	guestEmail, _ := emailOf(ctx, s.store.Users(), rv.GuestID)
	ev := events.ReviewEvent{
		ReviewID:   rv.ID,
		BookingID:  rv.BookingID,
		RoomID:     rv.RoomID,
		GuestID:    rv.GuestID,
		GuestEmail: guestEmail,
		Rating:     rv.Rating,
		Status:     string(rv.Status),
		Comment:    rv.ModerationComment,
		Reply:      rv.OwnerReply,
		OccurredAt: s.clock(),
	}
	if room != nil {
		ev.OwnerEmail, _ = emailOf(ctx, s.store.Users(), room.OwnerID)
	}
	publish(ctx, s.eventBus, subject, ev)
}
