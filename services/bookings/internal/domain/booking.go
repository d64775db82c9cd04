package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "Pending"
	BookingConfirmed BookingStatus = "Confirmed"
	BookingCancelled BookingStatus = "Cancelled"
)

// ActiveStatuses are the statuses that hold a room.
var ActiveStatuses = []BookingStatus{BookingPending, BookingConfirmed}

func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return BookingPending, true
	case "confirmed":
		return BookingConfirmed, true
	case "cancelled", "canceled":
		return BookingCancelled, true
	}
	return "", false
}

func (s BookingStatus) Active() bool {
	return s == BookingPending || s == BookingConfirmed
}

// CanTransition reports whether from -> to is part of the lifecycle.
// Reopening a cancelled booking is a policy decision made by the caller.
func CanTransition(from, to BookingStatus) bool {
	switch from {
	case BookingPending:
		return to == BookingConfirmed || to == BookingCancelled
	case BookingConfirmed:
		return to == BookingCancelled
	}
	return false
}

// SystemActor labels history entries not caused by a person.
const SystemActor = "SYSTEM"

const DateLayout = "2006-01-02"

func ParseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, NewValidationError(field, "must be a date in YYYY-MM-DD format")
	}
	return t, nil
}

// DateRange is a stay from CheckIn to CheckOut, compared at day granularity.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func NewDateRange(in, out time.Time) DateRange {
	return DateRange{CheckIn: Date(in), CheckOut: Date(out)}
}

// Overlaps treats both ends as inclusive, so a stay checking in on the day
// another checks out collides with it.
func (r DateRange) Overlaps(o DateRange) bool {
	return !r.CheckIn.After(o.CheckOut) && !r.CheckOut.Before(o.CheckIn)
}

func (r DateRange) Nights() int {
	return int(r.CheckOut.Sub(r.CheckIn).Hours() / 24)
}

// Validate rejects ranges that are inverted, empty or start before today.
func (r DateRange) Validate(today time.Time) error {
	if !r.CheckIn.Before(r.CheckOut) {
		return NewValidationError("check_out", "must be after check-in date")
	}
	if r.CheckIn.Before(Date(today)) {
		return NewValidationError("check_in", "cannot be in the past")
	}
	return nil
}

func (r DateRange) String() string {
	return r.CheckIn.Format(DateLayout) + ".." + r.CheckOut.Format(DateLayout)
}

// StayCost is price * nights rounded to cents.
func StayCost(pricePerNight float64, nights int) float64 {
	if nights < 0 {
		nights = 0
	}
	return math.Round(pricePerNight*float64(nights)*100) / 100
}

type Booking struct {
	ID        int64         `json:"id"`
	GuestID   int64         `json:"guest_id"`
	RoomID    int64         `json:"room_id"`
	CheckIn   time.Time     `json:"check_in"`
	CheckOut  time.Time     `json:"check_out"`
	Status    BookingStatus `json:"status"`
	TotalCost float64       `json:"total_cost"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (b *Booking) Range() DateRange {
	return NewDateRange(b.CheckIn, b.CheckOut)
}

// HistoryEvent is one append-only entry of a booking's audit trail.
type HistoryEvent struct {
	ID          int64         `json:"id"`
	BookingID   int64         `json:"booking_id"`
	EventID     string        `json:"event_id"`
	OldStatus   BookingStatus `json:"old_status"`
	NewStatus   BookingStatus `json:"new_status"`
	ChangedBy   string        `json:"changed_by"`
	Description string        `json:"description"`
	ChangedAt   time.Time     `json:"changed_at"`
}

func DatesChangedDescription(oldCost, newCost float64) string {
	return fmt.Sprintf("dates changed, cost %.2f -> %.2f", oldCost, newCost)
}

// BookingView is a booking joined with what callers usually show next to it.
type BookingView struct {
	Booking
	RoomAddress string   `json:"room_address"`
	RoomType    RoomType `json:"room_type"`
	RoomOwnerID int64    `json:"room_owner_id"`
	GuestEmail  string   `json:"guest_email"`
	GuestName   string   `json:"guest_name"`
}

type OwnerStats struct {
	TotalBookings  int `json:"total_bookings"`
	ActiveBookings int `json:"active_bookings"`
}
