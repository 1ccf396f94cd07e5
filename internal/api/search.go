package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/dishcover/internal/placecache"
	"github.com/kalambet/dishcover/internal/places"
)

const (
	defaultSearchDistance = 10
	defaultSearchLimit    = 20
)

type searchRequest struct {
	City        string   `json:"city"`
	Cuisines    []string `json:"cuisines" validate:"max=20,dive,required,max=100"`
	PriceLevel  []int    `json:"priceLevel" validate:"max=4,dive,min=1,max=4"`
	MaxDistance float64  `json:"maxDistance" validate:"omitempty,min=0,max=50"`
	MinRating   float64  `json:"minRating" validate:"omitempty,min=0,max=5"`
	Limit       int      `json:"limit" validate:"omitempty,min=1,max=20"`
	Offset      int      `json:"offset" validate:"min=0"`
}

type searchResponse struct {
	Restaurants []places.Place `json:"restaurants"`
	TotalCount  int            `json:"totalCount"`
	HasMore     bool           `json:"hasMore"`
}

// toSearchParams applies the search defaults. It is shared with the MCP
// search tool.
func toSearchParams(city string, cuisines []string, priceLevels []int, maxDistance, minRating float64) places.SearchParams {
	if len(priceLevels) == 0 {
		priceLevels = []int{1, 2, 3, 4}
	}
	if maxDistance == 0 {
		maxDistance = defaultSearchDistance
	}
	return places.SearchParams{
		City:        strings.TrimSpace(city),
		Cuisines:    cuisines,
		PriceLevels: priceLevels,
		MaxDistance: maxDistance,
		MinRating:   minRating,
	}
}

// page returns results[offset:offset+limit] clamped to the slice bounds.
// The offset is clamped before adding so huge offsets cannot overflow.
func page(results []places.Place, offset, limit int) searchResponse {
	total := len(results)
	start := min(offset, total)
	end := min(start+limit, total)
	out := results[start:end]
	if out == nil {
		out = []places.Place{}
	}
	return searchResponse{
		Restaurants: out,
		TotalCount:  total,
		HasMore:     total > end,
	}
}

func handleSearch(finder PlaceFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if !readJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.City) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "City is required")
			return
		}
		if !validBody(w, &req) {
			return
		}
		limit := req.Limit
		if limit == 0 {
			limit = defaultSearchLimit
		}

		params := toSearchParams(req.City, req.Cuisines, req.PriceLevel, req.MaxDistance, req.MinRating)
		results, err := finder.Search(r.Context(), params)
		if err != nil {
			serverError(w, r, "Failed to search restaurants", err)
			return
		}
		writeJSON(w, http.StatusOK, page(results, req.Offset, limit))
	}
}

func handleDetails(finder PlaceFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		placeID := chi.URLParam(r, "placeId")
		if placeID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "Place ID is required")
			return
		}

		p, err := finder.Details(r.Context(), placeID)
		var apiErr *places.APIError
		switch {
		case err == nil:
		case errors.Is(err, placecache.ErrContentID),
			errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound:
			httpError(w, http.StatusNotFound, "not_found_error", "Restaurant not found")
			return
		default:
			serverError(w, r, "Failed to fetch restaurant details", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"restaurant": p})
	}
}
