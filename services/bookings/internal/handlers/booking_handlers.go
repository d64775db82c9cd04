package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/diagnosis/hotel-bookings/pkg/response"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/domain"
)

type stayRequest struct {
	RoomID   int64  `json:"room_id,omitempty"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
}

func (s stayRequest) dates() (time.Time, time.Time, error) {
	in, err := domain.ParseDate("check_in", s.CheckIn)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	out, err := domain.ParseDate("check_out", s.CheckOut)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return in, out, nil
}

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req stayRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RoomID <= 0 {
		response.FieldError(w, "room_id", "is required")
		return
	}
	checkIn, checkOut, err := req.dates()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	booking, err := h.bookings.Create(r.Context(), identityFrom(r), req.RoomID, checkIn, checkOut)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, booking)
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	booking, err := h.bookings.Get(r.Context(), identityFrom(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, booking)
}

func (h *Handlers) BookingEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	evs, err := h.bookings.Events(r.Context(), identityFrom(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if evs == nil {
		evs = []domain.HistoryEvent{}
	}
	response.JSON(w, http.StatusOK, evs)
}

func (h *Handlers) UpdateBookingDates(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req stayRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	checkIn, checkOut, err := req.dates()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	booking, err := h.bookings.UpdateDates(r.Context(), identityFrom(r), id, checkIn, checkOut)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, booking)
}

func (h *Handlers) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	booking, err := h.bookings.Confirm(r.Context(), identityFrom(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, booking)
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	booking, err := h.bookings.Cancel(r.Context(), identityFrom(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, booking)
}

func (h *Handlers) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	status, ok := parseStatusFilter(w, r)
	if !ok {
		return
	}
	views, err := h.bookings.ListAsGuest(r.Context(), identityFrom(r), limit, offset, status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeViews(w, views)
}

func (h *Handlers) ListOwnerBookings(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	status, ok := parseStatusFilter(w, r)
	if !ok {
		return
	}
	views, err := h.bookings.ListAsOwner(r.Context(), identityFrom(r), limit, offset, status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeViews(w, views)
}

func (h *Handlers) BookingHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	views, err := h.bookings.History(r.Context(), identityFrom(r), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeViews(w, views)
}

func (h *Handlers) OwnerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.bookings.OwnerStats(r.Context(), identityFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, stats)
}

func writeViews(w http.ResponseWriter, views []domain.BookingView) {
	if views == nil {
		views = []domain.BookingView{}
	}
	response.JSON(w, http.StatusOK, views)
}
