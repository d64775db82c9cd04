package domain

import (
	"strconv"
	"strings"
	"time"
)

// Amenity needles used by the boolean search filters.
var (
	WifiNeedles    = []string{"wi-fi", "wifi", "вайф"}
	ParkingNeedles = []string{"парков", "parking"}
)

// SearchFilters are optional refinements. Prices stay raw so that
// unparsable input can be ignored instead of rejected.
type SearchFilters struct {
	RoomType string
	PriceMin string
	PriceMax string
	Wifi     bool
	Parking  bool
}

type SearchQuery struct {
	Destination string
	CheckIn     time.Time
	CheckOut    time.Time
	Guests      int
	Filters     SearchFilters
}

func (q SearchQuery) Range() DateRange {
	return NewDateRange(q.CheckIn, q.CheckOut)
}

// NormalizedDestination is the trimmed, case-folded destination.
func (q SearchQuery) NormalizedDestination() string {
	return strings.ToLower(strings.TrimSpace(q.Destination))
}

// Matches applies the filters to a single room.
func (f SearchFilters) Matches(r *Room) bool {
	if f.RoomType != "" {
		if rt, ok := ParseRoomType(f.RoomType); !ok || r.Type != rt {
			return false
		}
	}
	if min, ok := parsePrice(f.PriceMin); ok && r.PricePerNight < min {
		return false
	}
	if max, ok := parsePrice(f.PriceMax); ok && r.PricePerNight > max {
		return false
	}
	if f.Wifi && !r.HasAmenity(WifiNeedles...) {
		return false
	}
	if f.Parking && !r.HasAmenity(ParkingNeedles...) {
		return false
	}
	return true
}

func parsePrice(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// SearchResult is one available room with the price of the requested stay.
type SearchResult struct {
	Room
	Nights     int     `json:"nights"`
	TotalPrice float64 `json:"total_price"`
}
