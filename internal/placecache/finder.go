package placecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/dishcover/internal/places"
)

// ErrContentID is returned when details are requested for a content id,
// which has no provider record behind it.
var ErrContentID = errors.New("content ids have no provider details")

// Detailer fetches a single place from the provider.
// Implemented by places.Client.
type Detailer interface {
	Details(ctx context.Context, placeID string) (places.Place, error)
}

// Finder serves searches and place details cache-first, writing provider
// results back into the caches.
type Finder struct {
	cache    *Cache
	searcher places.Searcher
	detailer Detailer
	logger   *slog.Logger
}

func NewFinder(cache *Cache, searcher places.Searcher, detailer Detailer) *Finder {
	return &Finder{
		cache:    cache,
		searcher: searcher,
		detailer: detailer,
		logger:   slog.Default().With("component", "finder"),
	}
}

// Search returns every result for params (at most places.MaxResults),
// filtered by price level.
func (f *Finder) Search(ctx context.Context, params places.SearchParams) ([]places.Place, error) {
	cached, ok, err := f.cache.GetSearch(params)
	if err != nil {
		f.logger.Warn("reading search cache failed", "error", err)
	}
	if ok {
		return cached, nil
	}

	params.Limit = places.MaxResults
	results, err := f.searcher.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("searching places: %w", err)
	}
	results = places.FilterByPrice(results, params.PriceLevels)

	if err := f.cache.PutSearch(params, results); err != nil {
		f.logger.Warn("writing search cache failed", "error", err)
	}
	skipped, err := f.cache.PutAll(results)
	if err != nil {
		f.logger.Warn("caching search results failed", "error", err)
	}
	if skipped > 0 {
		f.logger.Warn("search results without place id were not cached", "count", skipped)
	}
	return results, nil
}

// Details returns a fresh cached place or fetches it from the provider.
func (f *Finder) Details(ctx context.Context, placeID string) (places.Place, error) {
	if strings.HasPrefix(placeID, "content:") {
		return places.Place{}, ErrContentID
	}
	p, ok, err := f.cache.Get(placeID)
	if err != nil {
		f.logger.Warn("reading place cache failed", "place_id", placeID, "error", err)
	}
	if ok {
		return p, nil
	}

	p, err = f.detailer.Details(ctx, placeID)
	if err != nil {
		return places.Place{}, fmt.Errorf("fetching place details: %w", err)
	}
	if p.PlaceID == "" {
		p.PlaceID = placeID
	}
	if err := f.cache.Put(p); err != nil {
		f.logger.Warn("caching place details failed", "place_id", placeID, "error", err)
	}
	return p, nil
}
