package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// --- Place cache ---

func (s *Store) GetCachedPlace(placeID string) (CachedPlace, error) {
	var c CachedPlace
	var cachedAt string
	err := s.db.QueryRow(`SELECT place_id, data, cached_at FROM restaurants WHERE place_id = ?`, placeID).
		Scan(&c.PlaceID, &c.Data, &cachedAt)
	if err == sql.ErrNoRows {
		return CachedPlace{}, ErrNotFound
	}
	if err != nil {
		return CachedPlace{}, err
	}
	if c.CachedAt, err = parseTime(cachedAt); err != nil {
		return CachedPlace{}, fmt.Errorf("parsing cached_at: %w", err)
	}
	return c, nil
}

// GetCachedPlaces returns the cached rows for ids regardless of age, keyed by
// place id. Missing ids are absent from the map.
func (s *Store) GetCachedPlaces(ids []string) (map[string]CachedPlace, error) {
	result := make(map[string]CachedPlace, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.Repeat(",?", len(ids)-1)
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.Query(`SELECT place_id, data, cached_at FROM restaurants WHERE place_id IN (?`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCachedPlace(rows)
		if err != nil {
			return nil, err
		}
		result[c.PlaceID] = c
	}
	return result, rows.Err()
}

// CachedPlacesSince returns up to limit rows cached strictly after since,
// newest first.
func (s *Store) CachedPlacesSince(since time.Time, limit int) ([]CachedPlace, error) {
	rows, err := s.db.Query(`
		SELECT place_id, data, cached_at FROM restaurants
		WHERE cached_at > ? ORDER BY cached_at DESC LIMIT ?`, formatTime(since), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []CachedPlace
	for rows.Next() {
		c, err := scanCachedPlace(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

func scanCachedPlace(r rowScanner) (CachedPlace, error) {
	var c CachedPlace
	var cachedAt string
	if err := r.Scan(&c.PlaceID, &c.Data, &cachedAt); err != nil {
		return CachedPlace{}, err
	}
	t, err := parseTime(cachedAt)
	if err != nil {
		return CachedPlace{}, fmt.Errorf("parsing cached_at: %w", err)
	}
	c.CachedAt = t
	return c, nil
}

// UpsertCachedPlace writes a place row, overwriting any existing row with
// the same id.
func (s *Store) UpsertCachedPlace(c CachedPlace) error {
	if c.PlaceID == "" {
		return fmt.Errorf("upserting cached place: empty place id")
	}
	_, err := s.db.Exec(`
		INSERT INTO restaurants (place_id, data, cached_at) VALUES (?, ?, ?)
		ON CONFLICT(place_id) DO UPDATE SET data = excluded.data, cached_at = excluded.cached_at`,
		c.PlaceID, c.Data, formatTime(c.CachedAt),
	)
	return err
}

// --- Search cache ---

func (s *Store) GetSearchCache(key string) (SearchCacheEntry, error) {
	var e SearchCacheEntry
	var cachedAt string
	err := s.db.QueryRow(`SELECT cache_key, results, cached_at FROM search_cache WHERE cache_key = ?`, key).
		Scan(&e.Key, &e.Results, &cachedAt)
	if err == sql.ErrNoRows {
		return SearchCacheEntry{}, ErrNotFound
	}
	if err != nil {
		return SearchCacheEntry{}, err
	}
	if e.CachedAt, err = parseTime(cachedAt); err != nil {
		return SearchCacheEntry{}, fmt.Errorf("parsing cached_at: %w", err)
	}
	return e, nil
}

func (s *Store) PutSearchCache(e SearchCacheEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO search_cache (cache_key, results, cached_at) VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET results = excluded.results, cached_at = excluded.cached_at`,
		e.Key, e.Results, formatTime(e.CachedAt),
	)
	return err
}
