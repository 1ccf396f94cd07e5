package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/kalambet/dishcover/internal/preferences"
	"github.com/kalambet/dishcover/internal/storage"
)

type summaryView struct {
	Summary   string    `json:"summary"`
	UpdatedAt time.Time `json:"updated_at"`
}

func handleGetPreferences(mgr *preferences.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := mgr.Get(userID(r))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "User preferences not found")
			return
		}
		if err != nil {
			serverError(w, r, "Failed to fetch preferences", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"preferences": preferences.FromStorage(p)})
	}
}

func handlePutPreferences(mgr *preferences.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req preferences.Preferences
		if !readJSON(w, r, &req) {
			return
		}

		p, err := mgr.Save(userID(r), req)
		if errors.Is(err, preferences.ErrInvalid) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", err.Error())
			return
		}
		if err != nil {
			serverError(w, r, "Failed to save preferences", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"preferences": preferences.FromStorage(p)})
	}
}

// handleGetSummary returns the stored summary, or null when none exists.
func handleGetSummary(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := store.GetSummary(userID(r))
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]any{"summary": nil})
			return
		}
		if err != nil {
			serverError(w, r, "Failed to fetch summary", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"summary": summaryView{Summary: s.Summary, UpdatedAt: s.UpdatedAt}})
	}
}

func handleRefreshSummary(refresher SummaryRefresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := refresher.Refresh(userID(r))
		if err != nil {
			serverError(w, r, "Failed to generate summary", err)
			return
		}
		if !res.Persisted {
			writeJSON(w, http.StatusOK, map[string]any{"summary": res.Summary})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"summary": res.Summary, "stats": res.Stats})
	}
}
