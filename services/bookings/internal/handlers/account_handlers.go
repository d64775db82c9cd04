package handlers

import (
	"net/http"

	"github.com/diagnosis/hotel-bookings/pkg/response"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/domain"
)

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.accounts.Register(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, user)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.accounts.Login(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, res)
}

func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.Profile(r.Context(), identityFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, user)
}

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	users, err := h.accounts.ListUsers(r.Context(), identityFrom(r), limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	response.JSON(w, http.StatusOK, users)
}

func (h *Handlers) SetUserRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.accounts.SetRole(r.Context(), identityFrom(r), id, domain.Role(req.Role)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) SetUserActive(w http.ResponseWriter, r *http.Request) {
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
	if err := h.accounts.SetActive(r.Context(), identityFrom(r), id, *req.Active); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
