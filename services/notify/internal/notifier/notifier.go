package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/diagnosis/hotel-bookings/pkg/events"
	"github.com/diagnosis/hotel-bookings/pkg/logger"
	"github.com/diagnosis/hotel-bookings/services/notify/internal/mailer"
)

const dateLayout = "2006-01-02"

// Deduper remembers handled message IDs across redeliveries.
type Deduper interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type Notifier struct {
	sender  mailer.Sender
	dedupe  Deduper
	ttl     time.Duration
	timeout time.Duration
}

// New builds a Notifier. dedupe may be nil.
func New(sender mailer.Sender, dedupe Deduper, ttl time.Duration) *Notifier {
	return &Notifier{sender: sender, dedupe: dedupe, ttl: ttl, timeout: 30 * time.Second}
}

// Handle is the bus callback. Failures are logged; the bus does not retry.
func (n *Notifier) Handle(msg *events.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if err := n.Process(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "Failed to process event", "subject", msg.Subject, "event_id", msg.ID, "error", err)
	}
}

// Process turns one event into emails and sends them.
func (n *Notifier) Process(ctx context.Context, msg *events.Message) error {
	if n.dedupe != nil && msg.ID != "" {
		fresh, err := n.dedupe.Reserve(ctx, "notify:"+msg.ID, n.ttl)
		if err != nil {
			logger.WarnContext(ctx, "Dedupe check failed", "event_id", msg.ID, "error", err)
		} else if !fresh {
			logger.DebugContext(ctx, "Skipping duplicate event", "event_id", msg.ID)
			return nil
		}
	}

	mails, err := Compose(msg.Subject, msg.Data)
	if err != nil {
		return err
	}

	var firstErr error
	for _, m := range mails {
		if m.To == "" {
			continue
		}
		if err := n.sender.Send(ctx, m); err != nil {
			logger.ErrorContext(ctx, "Failed to send email", "subject", msg.Subject, "to", m.To, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		logger.InfoContext(ctx, "Notification sent", "subject", msg.Subject, "to", m.To)
	}
	return firstErr
}

// Compose renders the emails for an event subject. Unknown subjects yield
// no mail.
func Compose(subject string, data []byte) ([]mailer.Message, error) {
	switch subject {
	case events.BookingCreated, events.BookingConfirmed, events.BookingCanceled:
		var ev events.BookingEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", subject, err)
		}
		return bookingMails(subject, ev), nil

	case events.BookingDatesChanged:
		var ev events.BookingDatesChangedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", subject, err)
		}
		return datesChangedMails(ev), nil

	case events.ReviewCreated, events.ReviewModerated, events.ReviewReplied:
		var ev events.ReviewEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", subject, err)
		}
		return reviewMails(subject, ev), nil
	}
	return nil, nil
}

func stay(ev events.BookingEvent) string {
	return fmt.Sprintf("%s to %s", ev.CheckIn.Format(dateLayout), ev.CheckOut.Format(dateLayout))
}

func bookingMails(subject string, ev events.BookingEvent) []mailer.Message {
	switch subject {
	case events.BookingCreated:
		return []mailer.Message{
			{
				To:      ev.GuestEmail,
				ToName:  ev.GuestName,
				Subject: fmt.Sprintf("Booking #%d received", ev.BookingID),
				Text: fmt.Sprintf("Your booking #%d for %s is pending confirmation. Total: %.2f.",
					ev.BookingID, stay(ev), ev.TotalCost),
			},
			{
				To:      ev.OwnerEmail,
				Subject: fmt.Sprintf("New booking request #%d", ev.BookingID),
				Text: fmt.Sprintf("%s requested room #%d for %s. Please confirm the booking.",
					ev.GuestName, ev.RoomID, stay(ev)),
			},
		}
	case events.BookingConfirmed:
		return []mailer.Message{{
			To:      ev.GuestEmail,
			ToName:  ev.GuestName,
			Subject: fmt.Sprintf("Booking #%d confirmed", ev.BookingID),
			Text:    fmt.Sprintf("Your booking #%d for %s is confirmed.", ev.BookingID, stay(ev)),
		}}
	case events.BookingCanceled:
		return []mailer.Message{
			{
				To:      ev.GuestEmail,
				ToName:  ev.GuestName,
				Subject: fmt.Sprintf("Booking #%d cancelled", ev.BookingID),
				Text:    fmt.Sprintf("Your booking #%d for %s has been cancelled.", ev.BookingID, stay(ev)),
			},
			{
				To:      ev.OwnerEmail,
				Subject: fmt.Sprintf("Booking #%d cancelled", ev.BookingID),
				Text:    fmt.Sprintf("Booking #%d of room #%d for %s was cancelled.", ev.BookingID, ev.RoomID, stay(ev)),
			},
		}
	}
	return nil
}

func datesChangedMails(ev events.BookingDatesChangedEvent) []mailer.Message {
	old := fmt.Sprintf("%s to %s", ev.OldCheckIn.Format(dateLayout), ev.OldCheckOut.Format(dateLayout))
	text := fmt.Sprintf("Booking #%d moved from %s to %s. Total: %.2f (was %.2f).",
		ev.BookingID, old, stay(ev.BookingEvent), ev.TotalCost, ev.OldTotalCost)
	subject := fmt.Sprintf("Booking #%d dates changed", ev.BookingID)
	return []mailer.Message{
		{To: ev.GuestEmail, ToName: ev.GuestName, Subject: subject, Text: text},
		{To: ev.OwnerEmail, Subject: subject, Text: text},
	}
}

func reviewMails(subject string, ev events.ReviewEvent) []mailer.Message {
	switch subject {
	case events.ReviewCreated:
		return []mailer.Message{{
			To:      ev.OwnerEmail,
			Subject: fmt.Sprintf("New %d-star review for room #%d", ev.Rating, ev.RoomID),
			Text:    "A guest reviewed your room. It will appear once a moderator approves it.",
		}}
	case events.ReviewModerated:
		text := fmt.Sprintf("Your review of room #%d was %s.", ev.RoomID, ev.Status)
		if ev.Comment != "" {
			text += " Moderator note: " + ev.Comment
		}
		return []mailer.Message{{
			To:      ev.GuestEmail,
			Subject: fmt.Sprintf("Your review was %s", ev.Status),
			Text:    text,
		}}
	case events.ReviewReplied:
		return []mailer.Message{{
			To:      ev.GuestEmail,
			Subject: fmt.Sprintf("The owner of room #%d replied to your review", ev.RoomID),
			Text:    ev.Reply,
		}}
	}
	return nil
}
