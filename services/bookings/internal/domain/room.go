package domain

import (
	"regexp"
	"strings"
	"time"
)

type RoomType string

const (
	RoomStandard RoomType = "Standard"
	RoomDeluxe   RoomType = "Deluxe"
	RoomSuite    RoomType = "Suite"
)

func ParseRoomType(s string) (RoomType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standard":
		return RoomStandard, true
	case "deluxe":
		return RoomDeluxe, true
	case "suite":
		return RoomSuite, true
	}
	return "", false
}

// MaxRoomImages counts the primary photo together with the gallery.
const MaxRoomImages = 5

// MaxRoomSizeLen bounds the free-text size label, e.g. "25 m2".
const MaxRoomSizeLen = 50

type Room struct {
	ID            int64       `json:"id"`
	OwnerID       int64       `json:"owner_id"`
	Type          RoomType    `json:"room_type"`
	PricePerNight float64     `json:"price_per_night"`
	Address       string      `json:"address"`
	Capacity      int         `json:"capacity"`
	Size          string      `json:"size"`
	Amenities     []string    `json:"amenities"`
	IsActive      bool        `json:"is_active"`
	Photo         string      `json:"photo,omitempty"`
	Images        []RoomImage `json:"images,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

type RoomImage struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"room_id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// ImageCount is the primary photo plus gallery images.
func (r *Room) ImageCount() int {
	n := len(r.Images)
	if r.Photo != "" {
		n++
	}
	return n
}

// FreeImageSlots is how many more images the room may hold.
func (r *Room) FreeImageSlots(max int) int {
	if free := max - r.ImageCount(); free > 0 {
		return free
	}
	return 0
}

// HasAmenity reports whether any amenity contains one of the needles,
// compared case-insensitively.
func (r *Room) HasAmenity(needles ...string) bool {
	for _, a := range r.Amenities {
		la := strings.ToLower(a)
		for _, n := range needles {
			if strings.Contains(la, strings.ToLower(n)) {
				return true
			}
		}
	}
	return false
}

var amenitySep = regexp.MustCompile(`[\n,]+`)

// ParseAmenities splits free text on commas and newlines, trims each entry
// and drops empties.
func ParseAmenities(raw string) []string {
	out := []string{}
	for _, part := range amenitySep.Split(raw, -1) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinAmenities is the storage form of an amenity list.
func JoinAmenities(list []string) string {
	return strings.Join(list, "\n")
}

type RoomInput struct {
	Type          string   `json:"room_type"`
	PricePerNight float64  `json:"price_per_night"`
	Address       string   `json:"address"`
	Capacity      int      `json:"capacity"`
	Size          string   `json:"size"`
	Amenities     string   `json:"amenities"`
	IsActive      *bool    `json:"is_active,omitempty"`
	Photo         string   `json:"photo,omitempty"`
	Images        []string `json:"images,omitempty"`
}

// Validate checks the input and returns the normalized room fields.
func (in *RoomInput) Validate(minPrice float64, maxImages int) (*Room, error) {
	rt, ok := ParseRoomType(in.Type)
	if !ok {
		return nil, NewValidationError("room_type", "must be one of Standard, Deluxe, Suite")
	}
	if in.PricePerNight < minPrice {
		return nil, NewValidationError("price_per_night", "is below the minimum nightly price")
	}
	addr := strings.TrimSpace(in.Address)
	if addr == "" {
		return nil, NewValidationError("address", "is required")
	}
	if in.Capacity < 1 {
		return nil, NewValidationError("capacity", "must be at least 1")
	}
	size := strings.TrimSpace(in.Size)
	if len([]rune(size)) > MaxRoomSizeLen {
		return nil, NewValidationError("size", "is too long")
	}
	photo := strings.TrimSpace(in.Photo)
	n := len(in.Images)
	if photo != "" {
		n++
	}
	if n > maxImages {
		return nil, NewValidationError("images", "too many images for one room")
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return &Room{
		Type:          rt,
		PricePerNight: in.PricePerNight,
		Address:       addr,
		Capacity:      in.Capacity,
		Size:          size,
		Amenities:     ParseAmenities(in.Amenities),
		IsActive:      active,
		Photo:         photo,
	}, nil
}
