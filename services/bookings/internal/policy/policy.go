// Package policy decides who may run which operation. Requirements are data;
// Check is the only evaluator.
package policy

import (
	"fmt"

	"github.com/diagnosis/hotel-bookings/services/bookings/internal/domain"
)

type Operation string

const (
	OpSearch      Operation = "search"
	OpViewRoom    Operation = "room.view"
	OpListReviews Operation = "review.list"
	OpRegister    Operation = "account.register"
	OpLogin       Operation = "account.login"

	OpViewProfile Operation = "account.profile"

	OpCreateRoom Operation = "room.create"
	OpUpdateRoom Operation = "room.update"
	OpDeleteRoom Operation = "room.delete"
	OpListMyRoom Operation = "room.mine"

	OpCreateBooking  Operation = "booking.create"
	OpUpdateBooking  Operation = "booking.update_dates"
	OpCancelBooking  Operation = "booking.cancel"
	OpConfirmBooking Operation = "booking.confirm"
	OpViewBooking    Operation = "booking.view"
	OpBookingHistory Operation = "booking.history"
	OpOwnerBookings  Operation = "booking.owner"

	OpCreateReview Operation = "review.create"
	OpUpdateReview Operation = "review.update"
	OpDeleteReview Operation = "review.delete"
	OpReplyReview  Operation = "review.reply"

	OpModerateReview  Operation = "review.moderate"
	OpModerationQueue Operation = "review.queue"

	OpManageUsers Operation = "account.manage"
)

// Requirement describes what an identity needs before an operation runs.
// Resource checks such as ownership happen afterwards in the services.
type Requirement struct {
	Login      bool
	Capability domain.Capability
}

// Requirements is the permission table. Operations missing here are denied.
var Requirements = map[Operation]Requirement{
	OpSearch:      {},
	OpViewRoom:    {},
	OpListReviews: {},
	OpRegister:    {},
	OpLogin:       {},

	OpViewProfile: {Login: true},

	OpCreateRoom: {Login: true, Capability: domain.CapHost},
	OpUpdateRoom: {Login: true, Capability: domain.CapHost},
	OpDeleteRoom: {Login: true, Capability: domain.CapHost},
	OpListMyRoom: {Login: true},

	OpCreateBooking:  {Login: true, Capability: domain.CapBook},
	OpUpdateBooking:  {Login: true, Capability: domain.CapBook},
	OpCancelBooking:  {Login: true, Capability: domain.CapBook},
	OpConfirmBooking: {Login: true},
	OpViewBooking:    {Login: true},
	OpBookingHistory: {Login: true},
	OpOwnerBookings:  {Login: true},

	OpCreateReview: {Login: true, Capability: domain.CapReview},
	OpUpdateReview: {Login: true, Capability: domain.CapReview},
	OpDeleteReview: {Login: true, Capability: domain.CapReview},
	OpReplyReview:  {Login: true},

	OpModerateReview:  {Login: true, Capability: domain.CapModerate},
	OpModerationQueue: {Login: true, Capability: domain.CapModerate},

	OpManageUsers: {Login: true, Capability: domain.CapManageUsers},
}

// Check returns nil when id may run op. It returns an error wrapping
// domain.ErrUnauthenticated or domain.ErrForbidden otherwise.
func Check(id domain.Identity, op Operation) error {
	req, ok := Requirements[op]
	if !ok {
		return fmt.Errorf("%w: unknown operation %q", domain.ErrForbidden, op)
	}
	if !req.Login && req.Capability == "" {
		return nil
	}
	if !id.Authenticated() {
		return domain.ErrUnauthenticated
	}
	if !id.Active {
		return fmt.Errorf("%w: account is deactivated", domain.ErrForbidden)
	}
	if req.Capability != "" && !id.Can(req.Capability) {
		return fmt.Errorf("%w: %s requires %s", domain.ErrForbidden, op, req.Capability)
	}
	return nil
}

func IsRoomOwner(id domain.Identity, room *domain.Room) bool {
	return id.Authenticated() && room != nil && room.OwnerID == id.UserID
}

func IsBookingGuest(id domain.Identity, b *domain.Booking) bool {
	return id.Authenticated() && b != nil && b.GuestID == id.UserID
}

// CanConfirm lets either side of a booking confirm it.
func CanConfirm(id domain.Identity, b *domain.Booking, room *domain.Room) bool {
	return IsBookingGuest(id, b) || IsRoomOwner(id, room)
}

func CanReply(id domain.Identity, room *domain.Room) bool {
	return IsRoomOwner(id, room)
}

func IsReviewAuthor(id domain.Identity, rv *domain.Review) bool {
	return id.Authenticated() && rv != nil && rv.GuestID == id.UserID
}
