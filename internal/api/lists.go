package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/dishcover/internal/placecache"
	"github.com/kalambet/dishcover/internal/places"
	"github.com/kalambet/dishcover/internal/storage"
)

type listView struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	IsDefault       bool      `json:"is_default"`
	RestaurantCount int       `json:"restaurant_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toListView(l storage.List) listView {
	return listView{
		ID:              l.ID,
		UserID:          l.UserID,
		Name:            l.Name,
		Description:     l.Description,
		IsDefault:       l.IsDefault,
		RestaurantCount: l.RestaurantCount,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}

type createListRequest struct {
	Name        string `json:"name" validate:"max=200"`
	Description string `json:"description" validate:"max=1000"`
}

type updateListRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

type listRestaurantRequest struct {
	PlaceID string `json:"placeId"`
}

func listNotFound(w http.ResponseWriter) {
	httpError(w, http.StatusNotFound, "not_found_error", "List not found")
}

func handleListLists(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lists, err := store.ListLists(userID(r))
		if err != nil {
			serverError(w, r, "Failed to fetch lists", err)
			return
		}
		out := make([]listView, len(lists))
		for i, l := range lists {
			out[i] = toListView(l)
		}
		writeJSON(w, http.StatusOK, map[string]any{"lists": out})
	}
}

func handleCreateList(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createListRequest
		if !readJSON(w, r, &req) {
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "Name is required")
			return
		}
		if !validBody(w, &req) {
			return
		}

		l, err := store.CreateList(userID(r), req.Name, req.Description)
		if err != nil {
			serverError(w, r, "Failed to create list", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"list": toListView(l)})
	}
}

// handleGetList returns the list with every member that is in the place
// cache, most recently added first.
func handleGetList(store *storage.Store, cache *placecache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := store.GetList(userID(r), chi.URLParam(r, "listId"))
		if errors.Is(err, storage.ErrNotFound) {
			listNotFound(w)
			return
		}
		if err != nil {
			serverError(w, r, "Failed to fetch list", err)
			return
		}

		members, err := store.ListMembers(l.ID)
		if err != nil {
			serverError(w, r, "Failed to fetch restaurants", err)
			return
		}
		ids := make([]string, len(members))
		for i, m := range members {
			ids[i] = m.PlaceID
		}
		cached, err := cache.Lookup(ids)
		if err != nil {
			serverError(w, r, "Failed to fetch restaurants", err)
			return
		}

		restaurants := make([]places.Place, 0, len(ids))
		for _, id := range ids {
			if p, ok := cached[id]; ok {
				restaurants = append(restaurants, p)
			}
		}
		if missing := len(ids) - len(restaurants); missing > 0 {
			slog.Debug("list members missing from place cache", "list_id", l.ID, "count", missing)
		}
		writeJSON(w, http.StatusOK, map[string]any{"list": toListView(l), "restaurants": restaurants})
	}
}

func handleUpdateList(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateListRequest
		if !readJSON(w, r, &req) {
			return
		}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "Name is required")
				return
			}
			req.Name = &name
		}
		if !validBody(w, &req) {
			return
		}

		l, err := store.UpdateList(userID(r), chi.URLParam(r, "listId"), req.Name, req.Description)
		if errors.Is(err, storage.ErrNotFound) {
			listNotFound(w)
			return
		}
		if err != nil {
			serverError(w, r, "Failed to update list", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"list": toListView(l)})
	}
}

func handleDeleteList(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := store.DeleteList(userID(r), chi.URLParam(r, "listId"))
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
		case errors.Is(err, storage.ErrNotFound):
			listNotFound(w)
		case errors.Is(err, storage.ErrDefaultList):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "Cannot delete default list")
		default:
			serverError(w, r, "Failed to delete list", err)
		}
	}
}

func handleAddToList(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req listRestaurantRequest
		if !readJSON(w, r, &req) {
			return
		}
		if req.PlaceID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "Place ID is required")
			return
		}

		added, err := store.AddToList(userID(r), chi.URLParam(r, "listId"), req.PlaceID)
		if errors.Is(err, storage.ErrNotFound) {
			listNotFound(w)
			return
		}
		if err != nil {
			serverError(w, r, "Failed to add restaurant to list", err)
			return
		}
		if !added {
			writeJSON(w, http.StatusOK, map[string]any{"message": "Restaurant already in list"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func handleRemoveFromList(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		placeID := r.URL.Query().Get("placeId")
		if placeID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "Place ID is required")
			return
		}
		uid, listID := userID(r), chi.URLParam(r, "listId")

		if _, err := store.GetList(uid, listID); errors.Is(err, storage.ErrNotFound) {
			listNotFound(w)
			return
		} else if err != nil {
			serverError(w, r, "Failed to remove restaurant from list", err)
			return
		}

		err := store.RemoveFromList(uid, listID, placeID)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "Restaurant not in list")
			return
		}
		if err != nil {
			serverError(w, r, "Failed to remove restaurant from list", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}
