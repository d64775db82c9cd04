package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/diagnosis/hotel-bookings/pkg/auth"
	"github.com/diagnosis/hotel-bookings/pkg/config"
	"github.com/diagnosis/hotel-bookings/pkg/logger"
	"github.com/diagnosis/hotel-bookings/pkg/response"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/service"
	"github.com/go-chi/chi/v5"
)

type Services struct {
	Accounts     service.AccountService
	Rooms        service.RoomService
	Availability service.AvailabilityService
	Bookings     service.BookingService
	Reviews      service.ReviewService
}

type Handlers struct {
	accounts     service.AccountService
	rooms        service.RoomService
	availability service.AvailabilityService
	bookings     service.BookingService
	reviews      service.ReviewService
	config       *config.Config
}

func New(svc Services, cfg *config.Config) *Handlers {
	return &Handlers{
		accounts:     svc.Accounts,
		rooms:        svc.Rooms,
		availability: svc.Availability,
		bookings:     svc.Bookings,
		reviews:      svc.Reviews,
		config:       cfg,
	}
}

// Routes builds the API router. idempotent wraps the POST endpoints that
// create bookings and reviews; pass nil to disable replay protection.
func (h *Handlers) Routes(idempotent func(http.Handler) http.Handler) chi.Router {
	if idempotent == nil {
		idempotent = func(next http.Handler) http.Handler { return next }
	}

	r := chi.NewRouter()
	r.Use(h.Authenticate)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})

	r.Route("/rooms", func(r chi.Router) {
		r.Get("/search", h.SearchRooms)
		r.Get("/{id}", h.GetRoom)
		r.Get("/{id}/reviews", h.ListRoomReviews)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireLogin)
			r.Post("/", h.CreateRoom)
			r.Put("/{id}", h.UpdateRoom)
			r.Patch("/{id}/active", h.SetRoomActive)
			r.Delete("/{id}", h.DeleteRoom)
			r.Post("/{id}/images", h.AddRoomImages)
			r.Delete("/{id}/images/{imageID}", h.DeleteRoomImage)
		})
	})

	r.Route("/me", func(r chi.Router) {
		r.Use(h.RequireLogin)
		r.Get("/", h.Profile)
		r.Get("/rooms", h.ListMyRooms)
	})

	r.Route("/bookings", func(r chi.Router) {
		r.Use(h.RequireLogin)
		r.With(idempotent).Post("/", h.CreateBooking)
		r.Get("/", h.ListMyBookings)
		r.Get("/history", h.BookingHistory)
		r.Get("/owner", h.ListOwnerBookings)
		r.Get("/owner/stats", h.OwnerStats)
		r.Get("/{id}", h.GetBooking)
		r.Get("/{id}/events", h.BookingEvents)
		r.Patch("/{id}", h.UpdateBookingDates)
		r.Post("/{id}/confirm", h.ConfirmBooking)
		r.Post("/{id}/cancel", h.CancelBooking)
	})

	r.Route("/reviews", func(r chi.Router) {
		r.Get("/", h.ListReviews)
		r.Group(func(r chi.Router) {
			r.Use(h.RequireLogin)
			r.With(idempotent).Post("/", h.CreateReview)
			r.Put("/{id}", h.UpdateReview)
			r.Delete("/{id}", h.DeleteReview)
			r.Post("/{id}/reply", h.ReplyReview)
		})
	})

	r.Route("/moderation/reviews", func(r chi.Router) {
		r.Use(h.RequireLogin)
		r.Get("/", h.ModerationQueue)
		r.Post("/{id}", h.ModerateReview)
		r.Post("/{id}/{action}", h.QuickModerate)
	})

	r.Route("/admin/users", func(r chi.Router) {
		r.Use(h.RequireLogin)
		r.Get("/", h.ListUsers)
		r.Patch("/{id}/role", h.SetUserRole)
		r.Patch("/{id}/active", h.SetUserActive)
	})

	return r
}

type identityKey struct{}

// Authenticate resolves a bearer token to the current identity. Requests
// without a token continue as anonymous; a bad token is rejected.
func (h *Handlers) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Unauthorized(w, "Missing or invalid authorization header")
			return
		}

		claims, err := auth.Parse(strings.TrimPrefix(authHeader, "Bearer "), h.config.Auth.JWTSecret)
		if err != nil {
			response.WriteError(w, http.StatusUnauthorized, "Invalid token", response.CodeInvalidToken)
			return
		}

		id, err := h.accounts.Identity(r.Context(), claims.Sub)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthenticated) {
				response.WriteError(w, http.StatusUnauthorized, "Invalid token", response.CodeInvalidToken)
				return
			}
			h.fail(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, id)
		ctx = context.WithValue(ctx, logger.UserIDKey, id.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireLogin short-circuits anonymous requests on routes that never
// serve them.
func (h *Handlers) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !identityFrom(r).Authenticated() {
			response.Unauthorized(w, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func identityFrom(r *http.Request) domain.Identity {
	if id, ok := r.Context().Value(identityKey{}).(domain.Identity); ok {
		return id
	}
	return domain.Anonymous()
}

// fail maps service errors onto HTTP responses.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		response.FieldError(w, ve.Field, ve.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		response.Unauthorized(w, "Authentication required")
	case errors.Is(err, domain.ErrForbidden):
		response.Forbidden(w, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, domain.ErrRoomUnavailable):
		response.WriteError(w, http.StatusConflict, "Room is not available for the selected dates", response.CodeUnavailable)
	case errors.Is(err, domain.ErrEmailTaken):
		response.WriteError(w, http.StatusConflict, "Email is already registered", response.CodeEmailExists)
	case errors.Is(err, domain.ErrConflict):
		response.Conflict(w, err.Error())
	default:
		logger.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		response.InternalError(w, "Internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		response.FieldError(w, name, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// parsePagination reads limit and offset, falling back to 20 and 0.
func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}

func parseStatusFilter(w http.ResponseWriter, r *http.Request) (*domain.BookingStatus, bool) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil, true
	}
	st, ok := domain.ParseBookingStatus(raw)
	if !ok {
		response.FieldError(w, "status", "Invalid status parameter")
		return nil, false
	}
	return &st, true
}
