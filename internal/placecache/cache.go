// Package placecache applies freshness rules to the place and search caches
// kept in SQLite.
package placecache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/dishcover/internal/metrics"
	"github.com/kalambet/dishcover/internal/places"
	"github.com/kalambet/dishcover/internal/storage"
)

// ErrUnidentified is returned when writing a place without a provider id.
var ErrUnidentified = errors.New("place has no provider id")

const (
	DefaultPlaceTTL  = 7 * 24 * time.Hour
	DefaultSearchTTL = time.Hour
)

// Store defines the storage operations the Cache needs.
// Implemented by storage.Store.
type Store interface {
	GetCachedPlace(placeID string) (storage.CachedPlace, error)
	GetCachedPlaces(ids []string) (map[string]storage.CachedPlace, error)
	CachedPlacesSince(since time.Time, limit int) ([]storage.CachedPlace, error)
	UpsertCachedPlace(c storage.CachedPlace) error
	GetSearchCache(key string) (storage.SearchCacheEntry, error)
	PutSearchCache(e storage.SearchCacheEntry) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Cache struct {
	store     Store
	clock     Clock
	placeTTL  time.Duration
	searchTTL time.Duration
}

// New creates a Cache. Non-positive TTLs select the defaults.
func New(store Store, placeTTL, searchTTL time.Duration) *Cache {
	return NewWithClock(store, realClock{}, placeTTL, searchTTL)
}

// NewWithClock creates a Cache with a custom clock (for testing).
func NewWithClock(store Store, clock Clock, placeTTL, searchTTL time.Duration) *Cache {
	if placeTTL <= 0 {
		placeTTL = DefaultPlaceTTL
	}
	if searchTTL <= 0 {
		searchTTL = DefaultSearchTTL
	}
	return &Cache{store: store, clock: clock, placeTTL: placeTTL, searchTTL: searchTTL}
}

// Fresh reports whether a row cached at cachedAt is still usable at now.
// A row exactly ttl old is stale.
func Fresh(cachedAt, now time.Time, ttl time.Duration) bool {
	return now.Sub(cachedAt) < ttl
}

func decodePlace(c storage.CachedPlace) (places.Place, error) {
	var p places.Place
	if err := json.Unmarshal([]byte(c.Data), &p); err != nil {
		return places.Place{}, fmt.Errorf("decoding cached place %s: %w", c.PlaceID, err)
	}
	p.PlaceID = c.PlaceID
	p.ContentID = ""
	return p, nil
}

// Get returns the cached place if present and fresh.
func (c *Cache) Get(placeID string) (places.Place, bool, error) {
	row, err := c.store.GetCachedPlace(placeID)
	if errors.Is(err, storage.ErrNotFound) {
		metrics.CacheMisses.WithLabelValues("place").Inc()
		return places.Place{}, false, nil
	}
	if err != nil {
		return places.Place{}, false, err
	}
	if !Fresh(row.CachedAt, c.clock.Now(), c.placeTTL) {
		metrics.CacheMisses.WithLabelValues("place").Inc()
		return places.Place{}, false, nil
	}
	p, err := decodePlace(row)
	if err != nil {
		return places.Place{}, false, err
	}
	metrics.CacheHits.WithLabelValues("place").Inc()
	return p, true, nil
}

// Lookup returns cached places for ids regardless of age. Rows that fail to
// decode are skipped.
func (c *Cache) Lookup(ids []string) (map[string]places.Place, error) {
	rows, err := c.store.GetCachedPlaces(ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]places.Place, len(rows))
	for id, row := range rows {
		p, err := decodePlace(row)
		if err != nil {
			continue
		}
		out[id] = p
	}
	return out, nil
}

// Candidates returns up to limit fresh cached places, most recently cached
// first.
func (c *Cache) Candidates(limit int) ([]places.Place, error) {
	rows, err := c.store.CachedPlacesSince(c.clock.Now().Add(-c.placeTTL), limit)
	if err != nil {
		return nil, err
	}
	out := make([]places.Place, 0, len(rows))
	for _, row := range rows {
		p, err := decodePlace(row)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Put upserts an identified place. Unidentified places are rejected with
// ErrUnidentified and never written.
func (c *Cache) Put(p places.Place) error {
	if !p.Identified() {
		return ErrUnidentified
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding place %s: %w", p.PlaceID, err)
	}
	return c.store.UpsertCachedPlace(storage.CachedPlace{
		PlaceID:  p.PlaceID,
		Data:     string(data),
		CachedAt: c.clock.Now(),
	})
}

// PutAll upserts every identified place and returns how many were skipped
// for lacking a provider id.
func (c *Cache) PutAll(ps []places.Place) (skipped int, err error) {
	for _, p := range ps {
		if err := c.Put(p); err != nil {
			if errors.Is(err, ErrUnidentified) {
				skipped++
				continue
			}
			return skipped, err
		}
	}
	return skipped, nil
}

// GetSearch returns a fresh cached result page for params.
func (c *Cache) GetSearch(params places.SearchParams) ([]places.Place, bool, error) {
	row, err := c.store.GetSearchCache(places.SearchCacheKey(params))
	if errors.Is(err, storage.ErrNotFound) {
		metrics.CacheMisses.WithLabelValues("search").Inc()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !Fresh(row.CachedAt, c.clock.Now(), c.searchTTL) {
		metrics.CacheMisses.WithLabelValues("search").Inc()
		return nil, false, nil
	}
	var out []places.Place
	if err := json.Unmarshal([]byte(row.Results), &out); err != nil {
		return nil, false, fmt.Errorf("decoding cached search: %w", err)
	}
	metrics.CacheHits.WithLabelValues("search").Inc()
	return out, true, nil
}

// PutSearch stores results for params, overwriting any previous entry.
func (c *Cache) PutSearch(params places.SearchParams, results []places.Place) error {
	if results == nil {
		results = []places.Place{}
	}
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encoding search results: %w", err)
	}
	return c.store.PutSearchCache(storage.SearchCacheEntry{
		Key:      places.SearchCacheKey(params),
		Results:  string(data),
		CachedAt: c.clock.Now(),
	})
}
