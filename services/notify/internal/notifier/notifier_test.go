package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/diagnosis/hotel-bookings/pkg/events"
	"github.com/diagnosis/hotel-bookings/services/notify/internal/mailer"
)

type mockSender struct {
	sent []mailer.Message
	err  error
}

func (m *mockSender) Send(_ context.Context, msg mailer.Message) error {
	m.sent = append(m.sent, msg)
	return m.err
}

type memDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memDeduper) Reserve(_ context.Context, key string, _ time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

func message(t *testing.T, subject, id string, payload any) *events.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &events.Message{Subject: subject, Data: data, ID: id, Timestamp: time.Now()}
}

func bookingEvent() events.BookingEvent {
	return events.BookingEvent{
		BookingID:  5,
		RoomID:     2,
		GuestEmail: "guest@example.com",
		GuestName:  "Guest",
		OwnerEmail: "owner@example.com",
		CheckIn:    time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:   time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC),
		Status:     "Pending",
		TotalCost:  450,
	}
}

func TestComposeBookingEvents(t *testing.T) {
	tests := []struct {
		subject string
		wantTo  []string
	}{
		{events.BookingCreated, []string{"guest@example.com", "owner@example.com"}},
		{events.BookingConfirmed, []string{"guest@example.com"}},
		{events.BookingCanceled, []string{"guest@example.com", "owner@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			data, _ := json.Marshal(bookingEvent())
			mails, err := Compose(tt.subject, data)
			if err != nil {
				t.Fatalf("Compose() error = %v", err)
			}
			if len(mails) != len(tt.wantTo) {
				t.Fatalf("mails = %d, want %d", len(mails), len(tt.wantTo))
			}
			for i, m := range mails {
				if m.To != tt.wantTo[i] {
					t.Errorf("mail %d to %s, want %s", i, m.To, tt.wantTo[i])
				}
				if !strings.Contains(m.Text, "2025-07-01 to 2025-07-04") {
					t.Errorf("mail %d text %q lacks the stay", i, m.Text)
				}
			}
		})
	}
}

func TestComposeDatesChanged(t *testing.T) {
	ev := events.BookingDatesChangedEvent{
		BookingEvent: bookingEvent(),
		OldCheckIn:   time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC),
		OldCheckOut:  time.Date(2025, 6, 22, 0, 0, 0, 0, time.UTC),
		OldTotalCost: 300,
	}
	data, _ := json.Marshal(ev)
	mails, err := Compose(events.BookingDatesChanged, data)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if len(mails) != 2 || !strings.Contains(mails[0].Text, "450.00 (was 300.00)") {
		t.Errorf("mails = %+v", mails)
	}
}

func TestComposeReviewEvents(t *testing.T) {
	ev := events.ReviewEvent{ReviewID: 1, RoomID: 2, Rating: 4, GuestEmail: "guest@example.com",
		OwnerEmail: "owner@example.com", Status: "rejected", Comment: "off topic", Reply: "Thank you!"}
	data, _ := json.Marshal(ev)

	created, _ := Compose(events.ReviewCreated, data)
	if len(created) != 1 || created[0].To != "owner@example.com" {
		t.Errorf("created = %+v", created)
	}
	moderated, _ := Compose(events.ReviewModerated, data)
	if len(moderated) != 1 || !strings.Contains(moderated[0].Text, "rejected") || !strings.Contains(moderated[0].Text, "off topic") {
		t.Errorf("moderated = %+v", moderated)
	}
	replied, _ := Compose(events.ReviewReplied, data)
	if len(replied) != 1 || replied[0].Text != "Thank you!" {
		t.Errorf("replied = %+v", replied)
	}
}

func TestComposeUnknownAndBroken(t *testing.T) {
	if mails, err := Compose("room.created", []byte(`{}`)); err != nil || mails != nil {
		t.Errorf("unknown subject = %v, %v", mails, err)
	}
	if _, err := Compose(events.BookingCreated, []byte(`{`)); err == nil {
		t.Error("broken payload should fail")
	}
}

func TestProcessSkipsDuplicatesAndBlankRecipients(t *testing.T) {
	sender := &mockSender{}
	n := New(sender, &memDeduper{seen: map[string]bool{}}, time.Hour)

	ev := bookingEvent()
	ev.OwnerEmail = ""
	msg := message(t, events.BookingCreated, "evt-1", ev)

	for i := 0; i < 2; i++ {
		if err := n.Process(context.Background(), msg); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
	}
	if len(sender.sent) != 1 || sender.sent[0].To != "guest@example.com" {
		t.Errorf("sent = %+v", sender.sent)
	}
}

func TestProcessReportsSendFailure(t *testing.T) {
	sender := &mockSender{err: errors.New("smtp down")}
	n := New(sender, nil, time.Hour)

	err := n.Process(context.Background(), message(t, events.BookingCanceled, "evt-2", bookingEvent()))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(sender.sent) != 2 {
		t.Errorf("every recipient should be attempted, sent = %d", len(sender.sent))
	}
}
