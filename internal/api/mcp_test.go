package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/dishcover/internal/places"
	"github.com/kalambet/dishcover/internal/preferences"
	"github.com/kalambet/dishcover/internal/recommend"
	"github.com/kalambet/dishcover/internal/storage"
)

func newTestMCPDeps(t *testing.T) (MCPDeps, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	return MCPDeps{
		Store:       env.store,
		Preferences: env.deps.Preferences,
		Recommender: env.rec,
		Finder:      env.finder,
		UserID:      "local",
	}, env
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestNewMCPServer(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if s := NewMCPServer(deps, "test"); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}

func TestMCPTool_SearchRestaurants(t *testing.T) {
	deps, env := newTestMCPDeps(t)
	env.finder.results = fivePlaces()

	result, err := mcpSearchRestaurants(deps)(context.Background(), makeCallToolRequest("search_restaurants", map[string]interface{}{
		"city":      "Austin",
		"cuisines":  []interface{}{"thai"},
		"max_price": 2,
		"limit":     3,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}

	var out []placeSummary
	if err := json.Unmarshal([]byte(toolText(t, result)), &out); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(out) != 3 || out[0].PlaceID != "p0" {
		t.Errorf("results = %+v", out)
	}

	got := env.finder.searches[0]
	if got.City != "Austin" || len(got.PriceLevels) != 2 || got.PriceLevels[1] != 2 || len(got.Cuisines) != 1 {
		t.Errorf("params = %+v", got)
	}
}

func TestMCPTool_SearchRestaurants_Validation(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpSearchRestaurants(deps)

	for name, args := range map[string]map[string]interface{}{
		"missing city": {},
		"bad price":    {"city": "Austin", "max_price": 7},
	} {
		t.Run(name, func(t *testing.T) {
			result, err := handler(context.Background(), makeCallToolRequest("search_restaurants", args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.IsError {
				t.Errorf("expected tool error, got %s", toolText(t, result))
			}
		})
	}
}

func TestMCPTool_RecommendRestaurants(t *testing.T) {
	deps, env := newTestMCPDeps(t)
	env.rec.resp = recommend.Response{Recommendations: []recommend.Recommendation{
		{Restaurant: places.Place{PlaceID: "p1", Name: "Uchi"}, Reason: "Sushi lover"},
	}}

	result, err := mcpRecommendRestaurants(deps)(context.Background(), makeCallToolRequest("recommend_restaurants", map[string]interface{}{
		"city": "Austin",
		"chat": "something fancy",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := toolText(t, result)
	if result.IsError || !strings.Contains(text, "Sushi lover") {
		t.Errorf("result = %s", text)
	}
	if req := env.rec.calls[0]; req.UserID != "local" || req.Chat != "something fancy" {
		t.Errorf("request = %+v", req)
	}

	env.rec.err = &recommend.InsufficientHistoryError{Count: 2, Min: 5}
	result, _ = mcpRecommendRestaurants(deps)(context.Background(), makeCallToolRequest("recommend_restaurants", map[string]interface{}{"city": "Austin"}))
	if !result.IsError || !strings.Contains(toolText(t, result), "You have 2") {
		t.Errorf("result = %s", toolText(t, result))
	}

	env.rec.err = errors.New("boom")
	result, _ = mcpRecommendRestaurants(deps)(context.Background(), makeCallToolRequest("recommend_restaurants", map[string]interface{}{"city": "Austin"}))
	if !result.IsError {
		t.Error("expected tool error")
	}
}

func TestMCPTool_RecordInteraction(t *testing.T) {
	deps, env := newTestMCPDeps(t)
	handler := mcpRecordInteraction(deps)

	result, err := handler(context.Background(), makeCallToolRequest("record_interaction", map[string]interface{}{
		"place_id": "p1",
		"action":   "save",
	}))
	if err != nil || result.IsError {
		t.Fatalf("result = %v, %v", result, err)
	}

	rows, _ := env.store.RecentInteractions("local", 10)
	if len(rows) != 1 || rows[0].Action != storage.ActionSave || rows[0].Metadata != `{"source":"mcp"}` {
		t.Errorf("rows = %+v", rows)
	}
	list, _ := env.store.EnsureDefaultList("local")
	if list.RestaurantCount != 1 {
		t.Errorf("default list count = %d, want 1", list.RestaurantCount)
	}

	result, _ = handler(context.Background(), makeCallToolRequest("record_interaction", map[string]interface{}{
		"place_id": "p1",
		"action":   "adore",
	}))
	if !result.IsError {
		t.Error("expected error for invalid action")
	}
}

func TestMCPTool_AddToList(t *testing.T) {
	deps, env := newTestMCPDeps(t)
	handler := mcpAddToList(deps)

	result, _ := handler(context.Background(), makeCallToolRequest("add_to_list", map[string]interface{}{"place_id": "p1"}))
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}
	result, _ = handler(context.Background(), makeCallToolRequest("add_to_list", map[string]interface{}{"place_id": "p1"}))
	if text := toolText(t, result); text != "Restaurant already in list" {
		t.Errorf("duplicate text = %q", text)
	}

	other, err := env.store.CreateList("someone-else", "Theirs", "")
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}
	result, _ = handler(context.Background(), makeCallToolRequest("add_to_list", map[string]interface{}{"place_id": "p1", "list_id": other.ID}))
	if !result.IsError || toolText(t, result) != "list not found" {
		t.Errorf("result = %s", toolText(t, result))
	}
}

func TestMCPResource_Preferences(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpResourcePreferences(deps)

	if _, err := handler(context.Background(), makeReadResourceRequest("user://preferences")); err == nil {
		t.Error("expected error without saved preferences")
	}

	if _, err := deps.Preferences.Save("local", preferences.Preferences{DefaultCity: "Austin", Cuisines: []string{"thai"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	contents, err := handler(context.Background(), makeReadResourceRequest("user://preferences"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.URI != "user://preferences" || !strings.Contains(tc.Text, `"default_city":"Austin"`) {
		t.Errorf("contents = %+v", tc)
	}
}
