package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kalambet/dishcover/internal/prompt"
	"github.com/kalambet/dishcover/internal/recommend"
)

type recommendRequest struct {
	City    string          `json:"city"`
	Limit   int             `json:"limit" validate:"omitempty,min=1,max=20"`
	Chat    string          `json:"chat" validate:"max=2000"`
	Filters *filtersRequest `json:"filters"`
}

type filtersRequest struct {
	Cuisines    []string `json:"cuisines" validate:"max=20,dive,required,max=100"`
	PriceLevel  []int    `json:"priceLevel" validate:"max=4,dive,min=1,max=4"`
	MaxDistance float64  `json:"maxDistance" validate:"omitempty,min=0,max=50"`
	MinRating   float64  `json:"minRating" validate:"omitempty,min=0,max=5"`
}

func handleRecommend(rec Recommender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recommendRequest
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

		in := recommend.Request{
			UserID: userID(r),
			City:   req.City,
			Limit:  req.Limit,
			Chat:   req.Chat,
		}
		if f := req.Filters; f != nil {
			in.Filters = &prompt.Filters{
				Cuisines:    f.Cuisines,
				PriceLevels: f.PriceLevel,
				MaxDistance: f.MaxDistance,
				MinRating:   f.MinRating,
			}
		}

		resp, err := rec.Recommend(r.Context(), in)
		var insufficient *recommend.InsufficientHistoryError
		switch {
		case err == nil:
		case errors.Is(err, recommend.ErrCityRequired):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "City is required")
			return
		case errors.Is(err, recommend.ErrPreferencesNotFound):
			httpError(w, http.StatusNotFound, "not_found_error", "User preferences not found. Please complete onboarding.")
			return
		case errors.As(err, &insufficient):
			httpError(w, http.StatusBadRequest, "insufficient_history", "%s", insufficient.Error())
			return
		default:
			serverError(w, r, "Failed to generate recommendations", err)
			return
		}

		if resp.Recommendations == nil {
			resp.Recommendations = []recommend.Recommendation{}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
