package places

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/kalambet/dishcover/internal/metrics"
)

const (
	defaultBaseURL = "https://places.googleapis.com/v1"
	defaultTimeout = 10 * time.Second

	searchFieldMask = "places.id,places.displayName,places.formattedAddress,places.rating,places.userRatingCount," +
		"places.priceLevel,places.types,places.location,places.photos,places.internationalPhoneNumber," +
		"places.websiteUri,places.regularOpeningHours,places.businessStatus,places.googleMapsUri"
	detailsFieldMask = "id,displayName,formattedAddress,rating,userRatingCount,priceLevel,types,location,photos," +
		"internationalPhoneNumber,websiteUri,regularOpeningHours,businessStatus,googleMapsUri"

	breakerName = "google-places"
)

// Searcher is anything that can run a place text search.
type Searcher interface {
	Search(ctx context.Context, p SearchParams) ([]Place, error)
}

// APIError is returned for non-2xx provider responses.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Status == http.StatusBadRequest {
		return fmt.Sprintf("invalid request to Google Places API: %s", e.Body)
	}
	return fmt.Sprintf("Google Places API error: %d - %s", e.Status, e.Body)
}

// Client calls the Google Places API (New). Calls pass through a circuit
// breaker that opens after five consecutive failures.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[any]
}

// NewClient creates a Places client. Empty baseURL and zero timeout select
// the defaults.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cb: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:        breakerName,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: isHealthy,
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
				metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
				metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			},
		}),
	}
}

// isHealthy reports whether err leaves the breaker's failure count alone.
// Caller cancellation and 4xx rejections other than 429 do not count.
func isHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status < http.StatusInternalServerError && apiErr.Status != http.StatusTooManyRequests
	}
	return false
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

type searchTextRequest struct {
	TextQuery      string  `json:"textQuery"`
	MaxResultCount int     `json:"maxResultCount"`
	MinRating      float64 `json:"minRating,omitempty"`
}

type searchTextResponse struct {
	Places []apiPlace `json:"places"`
}

type apiPlace struct {
	ID          string `json:"id"`
	DisplayName *struct {
		Text string `json:"text"`
	} `json:"displayName"`
	FormattedAddress string   `json:"formattedAddress"`
	Rating           float64  `json:"rating"`
	UserRatingCount  int      `json:"userRatingCount"`
	PriceLevel       string   `json:"priceLevel"`
	Types            []string `json:"types"`
	Location         *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	Photos []struct {
		Name     string `json:"name"`
		WidthPx  int    `json:"widthPx"`
		HeightPx int    `json:"heightPx"`
	} `json:"photos"`
	InternationalPhoneNumber string `json:"internationalPhoneNumber"`
	WebsiteURI               string `json:"websiteUri"`
	RegularOpeningHours      *struct {
		OpenNow             bool     `json:"openNow"`
		WeekdayDescriptions []string `json:"weekdayDescriptions"`
	} `json:"regularOpeningHours"`
	BusinessStatus string `json:"businessStatus"`
	GoogleMapsURI  string `json:"googleMapsUri"`
}

func (a apiPlace) toPlace() Place {
	p := Place{
		PlaceID:              a.ID,
		Name:                 "Unknown Restaurant",
		FormattedAddress:     a.FormattedAddress,
		FormattedPhoneNumber: a.InternationalPhoneNumber,
		Website:              a.WebsiteURI,
		Rating:               a.Rating,
		UserRatingsTotal:     a.UserRatingCount,
		PriceLevel:           PriceLevelNumber(a.PriceLevel),
		Types:                a.Types,
		Photos:               make([]Photo, 0, len(a.Photos)),
		BusinessStatus:       a.BusinessStatus,
		URL:                  a.GoogleMapsURI,
	}
	if a.DisplayName != nil && a.DisplayName.Text != "" {
		p.Name = a.DisplayName.Text
	}
	if p.Types == nil {
		p.Types = []string{}
	}
	if a.Location != nil {
		p.Geometry.Location = Location{Lat: a.Location.Latitude, Lng: a.Location.Longitude}
	}
	for _, ph := range a.Photos {
		w, h := ph.WidthPx, ph.HeightPx
		if w == 0 {
			w = 400
		}
		if h == 0 {
			h = 300
		}
		p.Photos = append(p.Photos, Photo{PhotoReference: ph.Name, Width: w, Height: h})
	}
	if a.RegularOpeningHours != nil {
		p.OpeningHours = &OpeningHours{
			OpenNow:     a.RegularOpeningHours.OpenNow,
			WeekdayText: a.RegularOpeningHours.WeekdayDescriptions,
		}
	}
	if p.PlaceID == "" {
		p.ContentID = ContentID(p.Name, p.FormattedAddress)
	}
	return p
}

// Search runs a text search and filters the results by price level.
func (c *Client) Search(ctx context.Context, p SearchParams) ([]Place, error) {
	start := time.Now()
	res, err := c.cb.Execute(func() (any, error) {
		return c.doSearch(ctx, p)
	})
	c.observe("search", start, err)
	if err != nil {
		return nil, err
	}
	return FilterByPrice(res.([]Place), p.PriceLevels), nil
}

func (c *Client) doSearch(ctx context.Context, p SearchParams) ([]Place, error) {
	body, err := json.Marshal(searchTextRequest{
		TextQuery:      p.TextQuery(),
		MaxResultCount: p.MaxResultCount(),
		MinRating:      p.MinRating,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req, searchFieldMask)

	var out searchTextResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}

	result := make([]Place, 0, len(out.Places))
	for _, ap := range out.Places {
		result = append(result, ap.toPlace())
	}
	return result, nil
}

// Details fetches a single place by provider id.
func (c *Client) Details(ctx context.Context, placeID string) (Place, error) {
	start := time.Now()
	res, err := c.cb.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/places/"+url.PathEscape(placeID), nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		c.setHeaders(req, detailsFieldMask)

		var ap apiPlace
		if err := c.do(req, &ap); err != nil {
			return nil, err
		}
		return ap.toPlace(), nil
	})
	c.observe("details", start, err)
	if err != nil {
		return Place{}, err
	}
	return res.(Place), nil
}

func (c *Client) setHeaders(req *http.Request, fieldMask string) {
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) observe(op string, start time.Time, err error) {
	metrics.PlacesRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	result := "success"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		result = "rejected"
	case err != nil:
		result = "failure"
	}
	metrics.PlacesRequests.WithLabelValues(op, result).Inc()
}
