package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/diagnosis/hotel-bookings/pkg/response"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/domain"
)

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}

// SearchRooms answers the public availability search. Dates and destination
// come from the query string, filters are optional.
func (h *Handlers) SearchRooms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	checkIn, err := domain.ParseDate("check_in", q.Get("check_in"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	checkOut, err := domain.ParseDate("check_out", q.Get("check_out"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	guests := 1
	if raw := strings.TrimSpace(q.Get("guests")); raw != "" {
		if guests, err = strconv.Atoi(raw); err != nil {
			response.FieldError(w, "guests", "must be a number")
			return
		}
	}

	results, err := h.availability.Search(r.Context(), domain.SearchQuery{
		Destination: q.Get("destination"),
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		Guests:      guests,
		Filters: domain.SearchFilters{
			RoomType: q.Get("room_type"),
			PriceMin: q.Get("price_min"),
			PriceMax: q.Get("price_max"),
			Wifi:     queryBool(r, "wifi"),
			Parking:  queryBool(r, "parking"),
		},
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, results)
}

func (h *Handlers) GetRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	room, err := h.rooms.Get(r.Context(), identityFrom(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, room)
}

func (h *Handlers) ListMyRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.rooms.ListMine(r.Context(), identityFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, rooms)
}

func (h *Handlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var in domain.RoomInput
	if !decodeJSON(w, r, &in) {
		return
	}
	room, err := h.rooms.Create(r.Context(), identityFrom(r), &in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, room)
}

func (h *Handlers) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in domain.RoomInput
	if !decodeJSON(w, r, &in) {
		return
	}
	room, err := h.rooms.Update(r.Context(), identityFrom(r), id, &in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, room)
}

func (h *Handlers) SetRoomActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Active *bool `json:"active"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Active == nil {
		response.FieldError(w, "active", "is required")
		return
	}
	if err := h.rooms.SetActive(r.Context(), identityFrom(r), id, *req.Active); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.rooms.Delete(r.Context(), identityFrom(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) AddRoomImages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		URLs []string `json:"urls"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	room, err := h.rooms.AddImages(r.Context(), identityFrom(r), id, req.URLs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, room)
}

func (h *Handlers) DeleteRoomImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	imageID, ok := pathID(w, r, "imageID")
	if !ok {
		return
	}
	if err := h.rooms.DeleteImage(r.Context(), identityFrom(r), id, imageID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
