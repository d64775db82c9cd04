package domain

import (
	"strings"
	"time"
)

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

func ParseReviewStatus(s string) (ReviewStatus, bool) {
	switch r := ReviewStatus(strings.ToLower(strings.TrimSpace(s))); r {
	case ReviewPending, ReviewApproved, ReviewRejected:
		return r, true
	}
	return "", false
}

// ModerationOutcome is a status a moderator may set.
func (s ReviewStatus) ModerationOutcome() bool {
	return s == ReviewApproved || s == ReviewRejected
}

type Review struct {
	ID                int64        `json:"id"`
	BookingID         int64        `json:"booking_id"`
	GuestID           int64        `json:"guest_id"`
	RoomID            int64        `json:"room_id"`
	Rating            int          `json:"rating"`
	Text              string       `json:"text"`
	Status            ReviewStatus `json:"status"`
	ModeratedBy       *int64       `json:"moderated_by,omitempty"`
	ModerationComment string       `json:"moderation_comment,omitempty"`
	ModeratedAt       *time.Time   `json:"moderated_at,omitempty"`
	OwnerReply        string       `json:"owner_reply,omitempty"`
	OwnerReplyAt      *time.Time   `json:"owner_reply_at,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

func (r *Review) HasReply() bool {
	return strings.TrimSpace(r.OwnerReply) != ""
}

func ValidateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return NewValidationError("rating", "must be between 1 and 5")
	}
	return nil
}

// ValidateReviewText trims the body. An empty body is a rating-only review.
func ValidateReviewText(text string) (string, error) {
	return strings.TrimSpace(text), nil
}

// ReviewFilter selects reviews for a listing. Zero fields do not filter.
type ReviewFilter struct {
	RoomID  int64
	OwnerID int64
	GuestID int64
	Status  ReviewStatus
	Limit   int
	Offset  int
}

type ModerationQueue struct {
	Reviews      []Review `json:"reviews"`
	PendingCount int      `json:"pending_count"`
}
