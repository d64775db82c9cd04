package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/diagnosis/hotel-bookings/pkg/events"
	"github.com/diagnosis/hotel-bookings/pkg/logger"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/repository"
)

// publish sends an event after the state change is durable. Delivery
// failures are logged and never fail the operation.
func publish(ctx context.Context, bus events.Publisher, subject string, payload any) {
	if bus == nil {
		return
	}
	if err := bus.Publish(ctx, subject, payload); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event", "subject", subject, "error", err)
	}
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
}

func forbidden(reason string) error {
	return fmt.Errorf("%w: %s", domain.ErrForbidden, reason)
}

// keepDomain passes domain errors through untouched and wraps the rest.
func keepDomain(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrForbidden) ||
		errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrUnauthenticated) ||
		domain.IsValidation(err) {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func emailOf(ctx context.Context, users repository.UserRepository, id int64) (email, name string) {
	u, err := users.FindByID(ctx, id)
	if err != nil {
		logger.WarnContext(ctx, "Failed to load user for event", "user_id", id, "error", err)
		return "", ""
	}
	if u == nil {
		return "", ""
	}
	return u.Email, u.DisplayName()
}
