package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/diagnosis/hotel-bookings/pkg/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url, name string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())
	return n.conn.PublishMsg(msg)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(toMessage(msg))
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(toMessage(msg))
	})
	return err
}

func (n *NATSEventBus) Close() error {
	return n.conn.Drain()
}

func toMessage(msg *nats.Msg) *Message {
	id := ""
	if msg.Header != nil {
		id = msg.Header.Get(nats.MsgIdHdr)
	}
	if id == "" {
		id = uuid.NewString()
	}
	return &Message{
		Subject:   msg.Subject,
		Data:      msg.Data,
		Timestamp: time.Now(),
		ID:        id,
	}
}

// Event subjects
const (
	BookingCreated      = "booking.created"
	BookingConfirmed    = "booking.confirmed"
	BookingCanceled     = "booking.canceled"
	BookingDatesChanged = "booking.dates_changed"

	ReviewCreated   = "review.created"
	ReviewModerated = "review.moderated"
	ReviewReplied   = "review.replied"
)

// BookingSubjects matches every booking event.
const BookingSubjects = "booking.>"

// ReviewSubjects matches every review event.
const ReviewSubjects = "review.>"

// Event payloads
type BookingEvent struct {
	BookingID  int64     `json:"booking_id"`
	RoomID     int64     `json:"room_id"`
	GuestID    int64     `json:"guest_id"`
	GuestEmail string    `json:"guest_email"`
	GuestName  string    `json:"guest_name"`
	OwnerEmail string    `json:"owner_email,omitempty"`
	CheckIn    time.Time `json:"check_in"`
	CheckOut   time.Time `json:"check_out"`
	Status     string    `json:"status"`
	TotalCost  float64   `json:"total_cost"`
	ChangedBy  string    `json:"changed_by"`
	OccurredAt time.Time `json:"occurred_at"`
}

type BookingDatesChangedEvent struct {
	BookingEvent
	OldCheckIn   time.Time `json:"old_check_in"`
	OldCheckOut  time.Time `json:"old_check_out"`
	OldTotalCost float64   `json:"old_total_cost"`
}

type ReviewEvent struct {
	ReviewID   int64     `json:"review_id"`
	BookingID  int64     `json:"booking_id"`
	RoomID     int64     `json:"room_id"`
	GuestID    int64     `json:"guest_id"`
	GuestEmail string    `json:"guest_email"`
	OwnerEmail string    `json:"owner_email,omitempty"`
	Rating     int       `json:"rating"`
	Status     string    `json:"status"`
	Comment    string    `json:"comment,omitempty"`
	Reply      string    `json:"reply,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
