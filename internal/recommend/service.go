package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/dishcover/internal/llm"
	"github.com/kalambet/dishcover/internal/places"
	"github.com/kalambet/dishcover/internal/prompt"
	"github.com/kalambet/dishcover/internal/storage"
)

var (
	ErrPreferencesNotFound = errors.New("preferences not found")
	ErrCityRequired        = errors.New("city is required")
)

const DefaultLimit = 10

// PreferencesSource returns a user's saved preferences, or an error wrapping
// storage.ErrNotFound.
type PreferencesSource interface {
	Get(userID string) (storage.UserPreferences, error)
}

// SummarySource returns a user's stored preference summary.
type SummarySource interface {
	GetSummary(userID string) (storage.PreferenceSummary, error)
}

type Request struct {
	UserID  string
	City    string
	Limit   int
	Chat    string
	Filters *prompt.Filters
}

type Response struct {
	Recommendations  []Recommendation `json:"recommendations"`
	TotalCount       int              `json:"totalCount"`
	InteractionCount int              `json:"interactionCount"`
}

// Service runs the recommendation pipeline for one request.
type Service struct {
	prefs        PreferencesSource
	summaries    SummarySource
	aggregator   *Aggregator
	generator    llm.Generator
	resolver     *Resolver
	defaultLimit int
	logger       *slog.Logger
}

func NewService(prefs PreferencesSource, summaries SummarySource, aggregator *Aggregator, generator llm.Generator, resolver *Resolver, defaultLimit int) *Service {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	return &Service{
		prefs:        prefs,
		summaries:    summaries,
		aggregator:   aggregator,
		generator:    generator,
		resolver:     resolver,
		defaultLimit: defaultLimit,
		logger:       slog.Default().With("component", "recommend"),
	}
}

// Recommend returns up to req.Limit resolved recommendations. Unparseable
// generator output produces an empty, successful response.
func (s *Service) Recommend(ctx context.Context, req Request) (Response, error) {
	city := strings.TrimSpace(req.City)
	if city == "" {
		return Response{}, ErrCityRequired
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	limit = min(limit, places.MaxResults)

	prefs, err := s.prefs.Get(req.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return Response{}, ErrPreferencesNotFound
	}
	if err != nil {
		return Response{}, fmt.Errorf("loading preferences: %w", err)
	}

	var summary string
	if s.summaries != nil {
		sum, err := s.summaries.GetSummary(req.UserID)
		switch {
		case err == nil:
			summary = sum.Summary
		case !errors.Is(err, storage.ErrNotFound):
			s.logger.Warn("loading preference summary failed", "user_id", req.UserID, "error", err)
		}
	}

	agg, err := s.aggregator.Aggregate(req.UserID)
	if err != nil {
		return Response{}, err
	}

	text := prompt.Build(prompt.Request{
		Profile: prompt.Profile{
			Cuisines:        prefs.Cuisines,
			PriceRange:      prefs.PriceRange,
			MaxDistance:     prefs.MaxDistance,
			VibeTags:        prefs.VibeTags,
			AgeRange:        prefs.AgeRange,
			Neighborhood:    prefs.Neighborhood,
			DiningFrequency: prefs.DiningFrequency,
			TypicalSpend:    prefs.TypicalSpend,
		},
		History: agg.History,
		City:    city,
		Limit:   limit,
		Summary: summary,
		Chat:    strings.TrimSpace(req.Chat),
		Filters: req.Filters,
	})

	raw, err := s.generator.Generate(ctx, text)
	if err != nil {
		return Response{}, fmt.Errorf("generating recommendations: %w", err)
	}

	suggestions := ParseSuggestions(raw)
	if len(suggestions) == 0 {
		s.logger.Warn("generator returned no usable recommendations", "user_id", req.UserID)
	}
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}

	recs := s.resolver.Resolve(ctx, suggestions, city)
	s.logger.Debug("recommendations resolved", "user_id", req.UserID, "suggested", len(suggestions), "resolved", len(recs))
	return Response{
		Recommendations:  recs,
		TotalCount:       len(recs),
		InteractionCount: agg.InteractionCount,
	}, nil
}
