// Package api serves the dishcover HTTP API and the MCP tool surface.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kalambet/dishcover/internal/auth"
	"github.com/kalambet/dishcover/internal/metrics"
	"github.com/kalambet/dishcover/internal/placecache"
	"github.com/kalambet/dishcover/internal/places"
	"github.com/kalambet/dishcover/internal/preferences"
	"github.com/kalambet/dishcover/internal/recommend"
	"github.com/kalambet/dishcover/internal/storage"
	"github.com/kalambet/dishcover/internal/summary"
)

// Recommender runs the recommendation pipeline. Implemented by
// recommend.Service.
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) (recommend.Response, error)
}

// PlaceFinder serves cache-first searches and details. Implemented by
// placecache.Finder.
type PlaceFinder interface {
	Search(ctx context.Context, params places.SearchParams) ([]places.Place, error)
	Details(ctx context.Context, placeID string) (places.Place, error)
}

// SummaryRefresher recomputes a user's preference summary. Implemented by
// summary.Summarizer.
type SummaryRefresher interface {
	Refresh(userID string) (summary.Result, error)
}

// Deps holds everything the HTTP handlers need.
type Deps struct {
	Store       *storage.Store
	Sessions    *auth.Sessions
	Preferences *preferences.Manager
	Recommender Recommender
	Finder      PlaceFinder
	Places      *placecache.Cache
	Summaries   SummaryRefresher

	// RateLimit requests per RateWindow per user on POST /recommendations.
	// Zero disables the limiter.
	RateLimit  int
	RateWindow time.Duration
}

// NewHandler returns the HTTP API. Everything except /health and /metrics
// requires a session.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(instrument)
	r.Use(recoverer)

	r.Get("/health", handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(deps.Sessions.Middleware(unauthorized))

		r.With(recommendLimiter(deps.RateLimit, deps.RateWindow)).
			Post("/recommendations", handleRecommend(deps.Recommender))

		r.Post("/search", handleSearch(deps.Finder))
		r.Get("/places/details/{placeId}", handleDetails(deps.Finder))

		r.Post("/interactions", handleCreateInteraction(deps.Store))
		r.Get("/interactions", handleListInteractions(deps.Store))

		r.Route("/lists", func(r chi.Router) {
			r.Get("/", handleListLists(deps.Store))
			r.Post("/", handleCreateList(deps.Store))
			r.Get("/{listId}", handleGetList(deps.Store, deps.Places))
			r.Patch("/{listId}", handleUpdateList(deps.Store))
			r.Delete("/{listId}", handleDeleteList(deps.Store))
			r.Post("/{listId}/restaurants", handleAddToList(deps.Store))
			r.Delete("/{listId}/restaurants", handleRemoveFromList(deps.Store))
		})

		r.Get("/preferences", handleGetPreferences(deps.Preferences))
		r.Put("/preferences", handlePutPreferences(deps.Preferences))
		r.Get("/preferences/summary", handleGetSummary(deps.Store))
		r.Post("/preferences/summary", handleRefreshSummary(deps.Summaries))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	httpError(w, http.StatusUnauthorized, "authentication_error", "Unauthorized")
}

// userID returns the authenticated user. Routes behind the session
// middleware always have one.
func userID(r *http.Request) string {
	id, _ := auth.UserID(r.Context())
	return id
}

// recommendLimiter limits recommendation requests per user, falling back to
// the client IP when no user is known.
func recommendLimiter(limit int, window time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 || window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if id, ok := auth.UserID(r.Context()); ok {
				return "user:" + id, nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.APIRateLimitHits.WithLabelValues("/recommendations").Inc()
			httpError(w, http.StatusTooManyRequests, "rate_limit_error", "Too many recommendation requests. Please wait before trying again.")
		}),
	)
}

// recoverer turns handler panics into a JSON 500.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				serverError(w, r, "Internal server error", fmt.Errorf("panic: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// instrument records request counts and latency by route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.APIRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.APIRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
