// Package places talks to the Google Places API (New) and defines the place
// record shared by the caches, the resolver and the HTTP API.
package places

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Place is a restaurant record as returned to clients and stored in the
// place cache. PlaceID is the provider's stable id and may be empty.
type Place struct {
	PlaceID              string        `json:"place_id,omitempty"`
	ContentID            string        `json:"content_id,omitempty"`
	Name                 string        `json:"name"`
	FormattedAddress     string        `json:"formatted_address"`
	FormattedPhoneNumber string        `json:"formatted_phone_number,omitempty"`
	Website              string        `json:"website,omitempty"`
	Rating               float64       `json:"rating,omitempty"`
	UserRatingsTotal     int           `json:"user_ratings_total"`
	PriceLevel           int           `json:"price_level,omitempty"`
	Types                []string      `json:"types"`
	Geometry             Geometry      `json:"geometry"`
	Photos               []Photo       `json:"photos"`
	OpeningHours         *OpeningHours `json:"opening_hours,omitempty"`
	BusinessStatus       string        `json:"business_status,omitempty"`
	URL                  string        `json:"url,omitempty"`
}

type Geometry struct {
	Location Location `json:"location"`
}

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Photo struct {
	PhotoReference string `json:"photo_reference"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
}

type OpeningHours struct {
	OpenNow     bool     `json:"open_now"`
	WeekdayText []string `json:"weekday_text,omitempty"`
}

// Identified reports whether the place carries a provider id and may be
// written to the place cache.
func (p Place) Identified() bool {
	return p.PlaceID != ""
}

// ID returns the provider id, or the content id for unidentified records.
func (p Place) ID() string {
	if p.PlaceID != "" {
		return p.PlaceID
	}
	if p.ContentID != "" {
		return p.ContentID
	}
	return ContentID(p.Name, p.FormattedAddress)
}

// ContentID derives a stable identity for a record without a provider id.
// The "content:" prefix keeps it disjoint from provider ids.
func ContentID(name, address string) string {
	h := sha256.Sum256([]byte(normalizeSpace(name) + "\x00" + normalizeSpace(address)))
	return "content:" + hex.EncodeToString(h[:8])
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// PriceLevelNumber maps the provider's price enum to 1..4. Unknown or
// missing values map to 2.
func PriceLevelNumber(level string) int {
	switch level {
	case "PRICE_LEVEL_FREE", "PRICE_LEVEL_INEXPENSIVE":
		return 1
	case "PRICE_LEVEL_MODERATE":
		return 2
	case "PRICE_LEVEL_EXPENSIVE":
		return 3
	case "PRICE_LEVEL_VERY_EXPENSIVE":
		return 4
	default:
		return 2
	}
}

// FilterByPrice keeps places whose price level is in levels. An empty levels
// slice keeps everything.
func FilterByPrice(in []Place, levels []int) []Place {
	if len(levels) == 0 {
		return in
	}
	allowed := make(map[int]bool, len(levels))
	for _, l := range levels {
		allowed[l] = true
	}
	out := make([]Place, 0, len(in))
	for _, p := range in {
		if allowed[p.PriceLevel] {
			out = append(out, p)
		}
	}
	return out
}
