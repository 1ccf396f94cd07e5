// Package recommend turns a user's history and preferences into resolved
// restaurant recommendations.
package recommend

import (
	"fmt"

	"github.com/kalambet/dishcover/internal/places"
	"github.com/kalambet/dishcover/internal/prompt"
	"github.com/kalambet/dishcover/internal/storage"
)

const (
	DefaultHistoryLimit    = 100
	DefaultMinInteractions = 5
)

// InsufficientHistoryError is returned when a user has too few interactions
// for personalized recommendations.
type InsufficientHistoryError struct {
	Count int
	Min   int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("You need at least %d interactions to get personalized recommendations. You have %d.", e.Min, e.Count)
}

// InteractionSource is the read side of the interaction log.
// Implemented by storage.Store.
type InteractionSource interface {
	RecentInteractions(userID string, limit int) ([]storage.Interaction, error)
}

// PlaceLookup resolves place ids against the place cache regardless of age.
// Implemented by placecache.Cache.
type PlaceLookup interface {
	Lookup(ids []string) (map[string]places.Place, error)
}

type Aggregator struct {
	interactions    InteractionSource
	places          PlaceLookup
	historyLimit    int
	minInteractions int
}

// NewAggregator creates an Aggregator. Non-positive limits select the
// defaults.
func NewAggregator(interactions InteractionSource, lookup PlaceLookup, historyLimit, minInteractions int) *Aggregator {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	if minInteractions <= 0 {
		minInteractions = DefaultMinInteractions
	}
	return &Aggregator{
		interactions:    interactions,
		places:          lookup,
		historyLimit:    historyLimit,
		minInteractions: minInteractions,
	}
}

// Aggregate is a user's bucketed history.
type Aggregate struct {
	History          prompt.History
	InteractionCount int
}

// Aggregate loads the user's recent interactions and buckets the cached
// places they refer to. Opens are counted but not bucketed; interactions
// whose place is not cached are skipped.
func (a *Aggregator) Aggregate(userID string) (Aggregate, error) {
	recent, err := a.interactions.RecentInteractions(userID, a.historyLimit)
	if err != nil {
		return Aggregate{}, fmt.Errorf("loading interactions: %w", err)
	}
	if len(recent) < a.minInteractions {
		return Aggregate{}, &InsufficientHistoryError{Count: len(recent), Min: a.minInteractions}
	}

	ids := make([]string, 0, len(recent))
	seen := make(map[string]bool, len(recent))
	for _, in := range recent {
		if !seen[in.PlaceID] {
			seen[in.PlaceID] = true
			ids = append(ids, in.PlaceID)
		}
	}
	cached, err := a.places.Lookup(ids)
	if err != nil {
		return Aggregate{}, fmt.Errorf("looking up cached places: %w", err)
	}

	h := prompt.History{
		Likes:  []prompt.LikedPlace{},
		Passes: []prompt.SeenPlace{},
		Maybes: []prompt.SeenPlace{},
	}
	for _, in := range recent {
		p, ok := cached[in.PlaceID]
		if !ok {
			continue
		}
		switch in.Action {
		case storage.ActionLike, storage.ActionSave:
			h.Likes = append(h.Likes, prompt.LikedPlace{
				Name:       p.Name,
				Types:      p.Types,
				PriceLevel: p.PriceLevel,
				Rating:     p.Rating,
			})
		case storage.ActionPass:
			h.Passes = append(h.Passes, prompt.SeenPlace{Name: p.Name, Types: p.Types})
		case storage.ActionMaybe:
			h.Maybes = append(h.Maybes, prompt.SeenPlace{Name: p.Name, Types: p.Types})
		}
	}
	return Aggregate{History: h, InteractionCount: len(recent)}, nil
}
