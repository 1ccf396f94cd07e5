package recommend

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/dishcover/internal/metrics"
	"github.com/kalambet/dishcover/internal/placecache"
	"github.com/kalambet/dishcover/internal/places"
)

const (
	DefaultConcurrency = 3
	candidateLimit     = 100
)

// CandidateCache is the slice of the place cache the resolver uses.
// Implemented by placecache.Cache.
type CandidateCache interface {
	Candidates(limit int) ([]places.Place, error)
	Put(p places.Place) error
}

// Recommendation is a suggestion resolved to a concrete place.
type Recommendation struct {
	Restaurant places.Place `json:"restaurant"`
	Reason     string       `json:"reason"`
	Confidence string       `json:"confidence"`
}

// Resolver maps generated restaurant names to places, preferring fresh
// cached places and falling back to a provider search.
type Resolver struct {
	cache       CandidateCache
	searcher    places.Searcher
	matcher     Matcher
	concurrency int
	logger      *slog.Logger
}

func NewResolver(cache CandidateCache, searcher places.Searcher, matcher Matcher, concurrency int) *Resolver {
	if matcher == nil {
		matcher = ScoredMatcher{}
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Resolver{
		cache:       cache,
		searcher:    searcher,
		matcher:     matcher,
		concurrency: concurrency,
		logger:      slog.Default().With("component", "resolver"),
	}
}

// Resolve resolves suggestions in city. Suggestions that cannot be resolved
// are dropped; the rest keep their input order.
func (r *Resolver) Resolve(ctx context.Context, suggestions []Suggestion, city string) []Recommendation {
	if len(suggestions) == 0 {
		return []Recommendation{}
	}

	candidates, err := r.cache.Candidates(candidateLimit)
	if err != nil {
		r.logger.Warn("loading cache candidates failed", "error", err)
		candidates = nil
	}

	slots := make([]*Recommendation, len(suggestions))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, s := range suggestions {
		g.Go(func() error {
			p, ok := r.resolveOne(ctx, s.RestaurantName, city, candidates)
			if ok {
				slots[i] = &Recommendation{Restaurant: p, Reason: s.Reason, Confidence: s.Confidence}
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Recommendation, 0, len(suggestions))
	for _, rec := range slots {
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out
}

func (r *Resolver) resolveOne(ctx context.Context, name, city string, candidates []places.Place) (places.Place, bool) {
	if p, ok := r.matcher.Match(name, candidates); ok {
		metrics.ResolverOutcomes.WithLabelValues("cache").Inc()
		return p, true
	}

	results, err := r.searcher.Search(ctx, places.SearchParams{City: city, Query: name, Limit: 1})
	if err != nil {
		r.logger.Warn("search for recommendation failed", "restaurant", name, "error", err)
		metrics.ResolverOutcomes.WithLabelValues("dropped").Inc()
		return places.Place{}, false
	}
	if len(results) == 0 {
		r.logger.Warn("no search result for recommendation", "restaurant", name)
		metrics.ResolverOutcomes.WithLabelValues("dropped").Inc()
		return places.Place{}, false
	}

	p := results[0]
	if err := r.cache.Put(p); err != nil {
		if errors.Is(err, placecache.ErrUnidentified) {
			r.logger.Warn("search result has no place id, not caching", "restaurant", name)
			if p.ContentID == "" {
				p.ContentID = places.ContentID(p.Name, p.FormattedAddress)
			}
		} else {
			r.logger.Warn("caching resolved place failed", "place_id", p.PlaceID, "error", err)
		}
	}
	metrics.ResolverOutcomes.WithLabelValues("search").Inc()
	return p, true
}
