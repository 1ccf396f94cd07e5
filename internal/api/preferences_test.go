package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/kalambet/dishcover/internal/places"
	"github.com/kalambet/dishcover/internal/preferences"
	"github.com/kalambet/dishcover/internal/storage"
	"github.com/kalambet/dishcover/internal/summary"
)

func TestPreferences_GetMissing(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.do(t, http.MethodGet, "/preferences", "", "u1"), http.StatusNotFound)
}

func TestPreferences_PutAndGet(t *testing.T) {
	env := newTestEnv(t)
	body := `{"default_city":"Austin","cuisines":["thai","ramen"],"price_range":[1,2],"vibe_tags":["casual"],"neighborhood":"East Austin"}`

	rec := env.do(t, http.MethodPut, "/preferences", body, "u1")
	expectStatus(t, rec, http.StatusOK)
	var out struct {
		Preferences preferences.Preferences `json:"preferences"`
	}
	decode(t, rec, &out)
	if out.Preferences.DefaultCity != "Austin" || out.Preferences.MaxDistance != preferences.DefaultMaxDistance {
		t.Errorf("preferences = %+v", out.Preferences)
	}
	if !strings.Contains(rec.Body.String(), `"price_range":[1,2]`) {
		t.Errorf("body not snake_case: %s", rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/preferences", "", "u1")
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &out)
	if len(out.Preferences.Cuisines) != 2 || out.Preferences.Neighborhood != "East Austin" {
		t.Errorf("preferences = %+v", out.Preferences)
	}

	lists, err := env.store.ListLists("u1")
	if err != nil || len(lists) != 1 || !lists[0].IsDefault {
		t.Errorf("lists = %+v, %v; want the default list", lists, err)
	}
}

func TestPreferences_PutInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"price level", `{"default_city":"Austin","price_range":[0]}`, "price levels must be between 1 and 4"},
		{"distance", `{"default_city":"Austin","max_distance":40}`, "max distance must be between 0.5 and 25 miles"},
		{"city", `{"cuisines":["thai"]}`, "default city is required"},
	}
	env := newTestEnv(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPut, "/preferences", tt.body, "u1")
			expectStatus(t, rec, http.StatusBadRequest)
			if msg := errorMessage(t, rec); !strings.Contains(msg, tt.want) {
				t.Errorf("message = %q, want it to contain %q", msg, tt.want)
			}
		})
	}
}

func TestSummary_Endpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/preferences/summary", "", "u1")
	expectStatus(t, rec, http.StatusOK)
	if rec.Body.String() != "{\"summary\":null}\n" {
		t.Errorf("empty summary body = %q", rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/preferences/summary", "", "u1")
	expectStatus(t, rec, http.StatusOK)
	if rec.Body.String() != "{\"summary\":\""+summary.NoHistory+"\"}\n" {
		t.Errorf("no-history body = %q", rec.Body.String())
	}

	env.cache.Put(places.Place{PlaceID: "p1", Name: "Thai Kun", Types: []string{"thai_restaurant"}, PriceLevel: 1})
	for _, a := range []string{"like", "save", "pass"} {
		env.store.SaveInteraction(storage.Interaction{UserID: "u1", PlaceID: "p1", Action: a})
	}

	rec = env.do(t, http.MethodPost, "/preferences/summary", "", "u1")
	expectStatus(t, rec, http.StatusOK)
	var refreshed struct {
		Summary string        `json:"summary"`
		Stats   summary.Stats `json:"stats"`
	}
	decode(t, rec, &refreshed)
	if refreshed.Stats != (summary.Stats{TotalInteractions: 3, Likes: 1, Passes: 1, Saves: 1}) {
		t.Errorf("stats = %+v", refreshed.Stats)
	}
	if !strings.Contains(refreshed.Summary, "Total interactions: 3") {
		t.Errorf("summary = %q", refreshed.Summary)
	}

	rec = env.do(t, http.MethodGet, "/preferences/summary", "", "u1")
	var stored struct {
		Summary summaryView `json:"summary"`
	}
	decode(t, rec, &stored)
	if stored.Summary.Summary != refreshed.Summary {
		t.Errorf("stored = %q, want %q", stored.Summary.Summary, refreshed.Summary)
	}
}
