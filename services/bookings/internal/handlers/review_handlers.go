package handlers

import (
	"net/http"
	"strconv"

	"github.com/diagnosis/hotel-bookings/pkg/response"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/domain"
	"github.com/go-chi/chi/v5"
)

type reviewRequest struct {
	BookingID int64  `json:"booking_id,omitempty"`
	Rating    int    `json:"rating"`
	Text      string `json:"text"`
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request, roomID int64) {
	limit, offset := parsePagination(r)
	reviews, err := h.reviews.ListVisible(r.Context(), identityFrom(r), roomID, limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, reviews)
}

// ListReviews lists what the caller may see, optionally narrowed to a room.
func (h *Handlers) ListReviews(w http.ResponseWriter, r *http.Request) {
	var roomID int64
	if v := r.URL.Query().Get("room_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			response.FieldError(w, "room_id", "Invalid room_id")
			return
		}
		roomID = id
	}
	h.listReviews(w, r, roomID)
}

func (h *Handlers) ListRoomReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	h.listReviews(w, r, id)
}

func (h *Handlers) CreateReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.BookingID <= 0 {
		response.FieldError(w, "booking_id", "is required")
		return
	}
	rv, err := h.reviews.Create(r.Context(), identityFrom(r), req.BookingID, req.Rating, req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, rv)
}

func (h *Handlers) UpdateReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rv, err := h.reviews.Update(r.Context(), identityFrom(r), id, req.Rating, req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, rv)
}

func (h *Handlers) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.reviews.Delete(r.Context(), identityFrom(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ReplyReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Reply string `json:"reply"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	rv, err := h.reviews.Reply(r.Context(), identityFrom(r), id, req.Reply)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, rv)
}

func (h *Handlers) ModerationQueue(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	q, err := h.reviews.ModerationQueue(r.Context(), identityFrom(r), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, q)
}

func (h *Handlers) ModerateReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Status  string `json:"status"`
		Comment string `json:"comment"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	status, _ := domain.ParseReviewStatus(req.Status)
	rv, err := h.reviews.Moderate(r.Context(), identityFrom(r), id, status, req.Comment)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, rv)
}

func (h *Handlers) QuickModerate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	rv, err := h.reviews.QuickModerate(r.Context(), identityFrom(r), id, chi.URLParam(r, "action"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, rv)
}
