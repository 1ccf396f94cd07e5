package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kalambet/dishcover/internal/storage"
	"github.com/kalambet/dishcover/internal/summary"
)

type interactionRequest struct {
	PlaceID  string          `json:"placeId"`
	Action   string          `json:"action"`
	Metadata json.RawMessage `json:"metadata"`
}

type interactionView struct {
	ID        string          `json:"id"`
	PlaceID   string          `json:"place_id"`
	Action    string          `json:"action"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}

func toInteractionView(in storage.Interaction) interactionView {
	meta := json.RawMessage(in.Metadata)
	if !json.Valid(meta) {
		meta = json.RawMessage("{}")
	}
	return interactionView{
		ID:        in.ID,
		PlaceID:   in.PlaceID,
		Action:    in.Action,
		Metadata:  meta,
		CreatedAt: in.CreatedAt,
	}
}

// recordInteraction appends the interaction, adds saved places to the
// user's default list and schedules a summary refresh for actions that
// change it. Only the append is fatal.
func recordInteraction(store *storage.Store, userID, placeID, action, metadata string) error {
	if err := store.SaveInteraction(storage.Interaction{
		UserID:   userID,
		PlaceID:  placeID,
		Action:   action,
		Metadata: metadata,
	}); err != nil {
		return fmt.Errorf("saving interaction: %w", err)
	}

	if action == storage.ActionSave {
		if list, err := store.EnsureDefaultList(userID); err != nil {
			slog.Warn("loading default list failed", "user_id", userID, "error", err)
		} else if _, err := store.AddToList(userID, list.ID, placeID); err != nil {
			slog.Warn("adding saved place to default list failed", "user_id", userID, "place_id", placeID, "error", err)
		}
	}

	switch action {
	case storage.ActionLike, storage.ActionPass, storage.ActionSave:
		if _, err := summary.Enqueue(store, userID); err != nil {
			slog.Warn("scheduling summary refresh failed", "user_id", userID, "error", err)
		}
	}
	return nil
}

func handleCreateInteraction(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req interactionRequest
		if !readJSON(w, r, &req) {
			return
		}
		if req.PlaceID == "" || req.Action == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "Place ID and action are required")
			return
		}
		if !storage.ValidAction(req.Action) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "Invalid action")
			return
		}

		metadata := "{}"
		if len(req.Metadata) > 0 && string(req.Metadata) != "null" {
			var obj map[string]any
			if err := json.Unmarshal(req.Metadata, &obj); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "metadata must be a JSON object")
				return
			}
			metadata = string(req.Metadata)
		}

		if err := recordInteraction(store, userID(r), req.PlaceID, req.Action, metadata); err != nil {
			serverError(w, r, "Failed to save interaction", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func handleListInteractions(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 50, 200)
		offset := parseIntParam(r, "offset", 0, 0)

		rows, err := store.ListInteractions(userID(r), limit, offset)
		if err != nil {
			serverError(w, r, "Failed to fetch interactions", err)
			return
		}
		out := make([]interactionView, len(rows))
		for i, in := range rows {
			out[i] = toInteractionView(in)
		}
		writeJSON(w, http.StatusOK, map[string]any{"interactions": out})
	}
}
