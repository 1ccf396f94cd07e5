// Package summary derives a short text summary of a user's taste from their
// interaction history and keeps it fresh through the job queue.
package summary

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kalambet/dishcover/internal/places"
	"github.com/kalambet/dishcover/internal/storage"
)

const (
	NoHistory    = "No interaction history yet."
	historyLimit = 100

	topCuisines      = 5
	topNeighborhoods = 3
	topDislikes      = 3
)

var genericTypes = map[string]bool{
	"point_of_interest": true,
	"establishment":     true,
	"food":              true,
}

// Store defines the storage operations the Summarizer needs.
// Implemented by storage.Store.
type Store interface {
	RecentInteractions(userID string, limit int) ([]storage.Interaction, error)
	UpsertSummary(userID, summary string, at time.Time) error
}

// PlaceLookup resolves place ids against the place cache.
// Implemented by placecache.Cache.
type PlaceLookup interface {
	Lookup(ids []string) (map[string]places.Place, error)
}

type Stats struct {
	TotalInteractions int `json:"totalInteractions"`
	Likes             int `json:"likes"`
	Passes            int `json:"passes"`
	Saves             int `json:"saves"`
}

type Result struct {
	Summary string
	Stats   Stats
	// Persisted is false when there was no history to summarize.
	Persisted bool
}

type Summarizer struct {
	store  Store
	places PlaceLookup
	now    func() time.Time
}

func NewSummarizer(store Store, lookup PlaceLookup) *Summarizer {
	return &Summarizer{store: store, places: lookup, now: time.Now}
}

// Refresh recomputes and stores the user's summary. An empty history yields
// NoHistory and nothing is written.
func (s *Summarizer) Refresh(userID string) (Result, error) {
	recent, err := s.store.RecentInteractions(userID, historyLimit)
	if err != nil {
		return Result{}, fmt.Errorf("loading interactions: %w", err)
	}
	if len(recent) == 0 {
		return Result{Summary: NoHistory}, nil
	}

	ids := make([]string, 0, len(recent))
	for _, in := range recent {
		ids = append(ids, in.PlaceID)
	}
	cached, err := s.places.Lookup(ids)
	if err != nil {
		return Result{}, fmt.Errorf("looking up places: %w", err)
	}

	text, stats := Compute(recent, cached)
	if err := s.store.UpsertSummary(userID, text, s.now()); err != nil {
		return Result{}, fmt.Errorf("saving summary: %w", err)
	}
	return Result{Summary: text, Stats: stats, Persisted: true}, nil
}

// Compute builds the summary text for interactions (newest first) using the
// cached places in byID. Each distinct place is counted once per bucket.
func Compute(interactions []storage.Interaction, byID map[string]places.Place) (string, Stats) {
	var stats Stats
	var likedIDs, savedIDs, passedIDs []string
	for _, in := range interactions {
		switch in.Action {
		case storage.ActionLike:
			stats.Likes++
			likedIDs = append(likedIDs, in.PlaceID)
		case storage.ActionPass:
			stats.Passes++
			passedIDs = append(passedIDs, in.PlaceID)
		case storage.ActionSave:
			stats.Saves++
			savedIDs = append(savedIDs, in.PlaceID)
		}
	}
	stats.TotalInteractions = len(interactions)

	cuisines := newCounter()
	prices := newCounter()
	neighborhoods := newCounter()
	dislikes := newCounter()

	for _, id := range distinct(append(likedIDs, savedIDs...)) {
		p, ok := byID[id]
		if !ok {
			continue
		}
		for _, t := range p.Types {
			if !genericTypes[t] {
				cuisines.add(t)
			}
		}
		if p.PriceLevel > 0 {
			prices.add(strings.Repeat("$", p.PriceLevel))
		}
		if parts := strings.Split(p.FormattedAddress, ","); len(parts) > 1 {
			if n := strings.TrimSpace(parts[1]); n != "" {
				neighborhoods.add(n)
			}
		}
	}
	for _, id := range distinct(passedIDs) {
		p, ok := byID[id]
		if !ok {
			continue
		}
		for _, t := range p.Types {
			if !genericTypes[t] {
				dislikes.add(t)
			}
		}
	}

	var parts []string
	if top := cuisines.top(topCuisines); len(top) > 0 {
		items := make([]string, len(top))
		for i, e := range top {
			items[i] = fmt.Sprintf("%s (%d)", humanize(e.key), e.n)
		}
		parts = append(parts, "Favored cuisines: "+strings.Join(items, ", "))
	}
	if top := prices.top(0); len(top) > 0 {
		parts = append(parts, "Price preference: "+strings.Join(keys(top, false), ", "))
	}
	if top := neighborhoods.top(topNeighborhoods); len(top) > 0 {
		parts = append(parts, "Frequent neighborhoods: "+strings.Join(keys(top, false), ", "))
	}
	if top := dislikes.top(topDislikes); len(top) > 0 {
		parts = append(parts, "Tends to avoid: "+strings.Join(keys(top, true), ", "))
	}
	parts = append(parts, fmt.Sprintf("Total interactions: %d (%d likes, %d passes, %d saves)",
		stats.TotalInteractions, stats.Likes, stats.Passes, stats.Saves))

	return strings.Join(parts, ". ") + ".", stats
}

func humanize(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

func distinct(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

type count struct {
	key string
	n   int
}

// counter tallies keys and remembers first-seen order for tie breaks.
type counter struct {
	idx     map[string]int
	entries []count
}

func newCounter() *counter {
	return &counter{idx: make(map[string]int)}
}

func (c *counter) add(key string) {
	if i, ok := c.idx[key]; ok {
		c.entries[i].n++
		return
	}
	c.idx[key] = len(c.entries)
	c.entries = append(c.entries, count{key: key, n: 1})
}

// top returns the n most frequent keys, or all of them when n <= 0.
func (c *counter) top(n int) []count {
	out := make([]count, len(c.entries))
	copy(out, c.entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].n > out[j].n })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func keys(cs []count, human bool) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.key
		if human {
			out[i] = humanize(c.key)
		}
	}
	return out
}
