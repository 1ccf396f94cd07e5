package places

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MaxResults is the provider's per-call result cap.
const MaxResults = 20

// SearchParams describes a text search. Query, when set, is a free-form
// search (typically a restaurant name) scoped to City.
type SearchParams struct {
	City        string   `json:"city"`
	Query       string   `json:"query,omitempty"`
	Cuisines    []string `json:"cuisines,omitempty"`
	PriceLevels []int    `json:"priceLevel,omitempty"`
	MaxDistance float64  `json:"maxDistance,omitempty"`
	MinRating   float64  `json:"minRating,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

// TextQuery builds the provider text query. A custom query gets " in city"
// appended unless it already mentions the city; otherwise cuisines are
// joined with " or " in front of "restaurants in city".
func (p SearchParams) TextQuery() string {
	if p.Query != "" {
		if strings.Contains(strings.ToLower(p.Query), strings.ToLower(p.City)) {
			return p.Query
		}
		return p.Query + " in " + p.City
	}
	q := "restaurants in " + p.City
	if len(p.Cuisines) > 0 {
		q = strings.Join(p.Cuisines, " or ") + " " + q
	}
	return q
}

// MaxResultCount clamps Limit to 1..MaxResults, defaulting to MaxResults.
func (p SearchParams) MaxResultCount() int {
	if p.Limit <= 0 || p.Limit > MaxResults {
		return MaxResults
	}
	return p.Limit
}

// SearchCacheKey returns a stable key for the search cache. Cuisine and price
// order do not affect the key; city and cuisines are compared
// case-insensitively.
func SearchCacheKey(p SearchParams) string {
	cuisines := make([]string, 0, len(p.Cuisines))
	for _, c := range p.Cuisines {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			cuisines = append(cuisines, c)
		}
	}
	sort.Strings(cuisines)

	prices := append([]int(nil), p.PriceLevels...)
	sort.Ints(prices)
	priceStrs := make([]string, len(prices))
	for i, v := range prices {
		priceStrs[i] = strconv.Itoa(v)
	}

	raw := fmt.Sprintf("city=%s|cuisines=%s|price=%s|min_rating=%s",
		strings.ToLower(strings.TrimSpace(p.City)),
		strings.Join(cuisines, ","),
		strings.Join(priceStrs, ","),
		strconv.FormatFloat(p.MinRating, 'f', -1, 64),
	)
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
