package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/dishcover/internal/places"
	"github.com/kalambet/dishcover/internal/preferences"
	"github.com/kalambet/dishcover/internal/recommend"
	"github.com/kalambet/dishcover/internal/storage"
)

// MCPDeps holds dependencies for the MCP server. Every tool acts as UserID.
type MCPDeps struct {
	Store       *storage.Store
	Preferences *preferences.Manager
	Recommender Recommender
	Finder      PlaceFinder
	UserID      string
}

// NewMCPServer creates an MCP server with the dishcover tools and resources
// registered.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"dishcover",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("dishcover: restaurant search, personalized recommendations and saved lists."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_restaurants",
			mcp.WithDescription("Search restaurants in a city, optionally filtered by cuisine, price and rating."),
			mcp.WithString("city", mcp.Description("City to search in"), mcp.Required()),
			mcp.WithArray("cuisines", mcp.Description("Cuisines to include, e.g. thai, ramen")),
			mcp.WithNumber("max_price", mcp.Description("Highest price level to include, 1-4 (default 4)")),
			mcp.WithNumber("min_rating", mcp.Description("Minimum rating, 0-5")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
		),
		mcpSearchRestaurants(deps),
	)

	s.AddTool(
		mcp.NewTool("recommend_restaurants",
			mcp.WithDescription("Recommend restaurants based on the user's preferences and interaction history."),
			mcp.WithString("city", mcp.Description("City to recommend restaurants in"), mcp.Required()),
			mcp.WithString("chat", mcp.Description("What the user is in the mood for")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of recommendations (default 10)")),
		),
		mcpRecommendRestaurants(deps),
	)

	s.AddTool(
		mcp.NewTool("record_interaction",
			mcp.WithDescription("Record how the user reacted to a restaurant."),
			mcp.WithString("place_id", mcp.Description("Restaurant place id"), mcp.Required()),
			mcp.WithString("action", mcp.Description("One of like, pass, maybe, save, open"), mcp.Required()),
		),
		mcpRecordInteraction(deps),
	)

	s.AddTool(
		mcp.NewTool("add_to_list",
			mcp.WithDescription("Add a restaurant to one of the user's lists."),
			mcp.WithString("place_id", mcp.Description("Restaurant place id"), mcp.Required()),
			mcp.WithString("list_id", mcp.Description("List id (default: the Favorites list)")),
		),
		mcpAddToList(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"user://preferences",
			"Dining Preferences",
			mcp.WithResourceDescription("The user's saved dining preferences as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourcePreferences(deps),
	)

	return s
}

type placeSummary struct {
	PlaceID    string   `json:"place_id"`
	Name       string   `json:"name"`
	Address    string   `json:"address"`
	Rating     float64  `json:"rating,omitempty"`
	PriceLevel int      `json:"price_level,omitempty"`
	Types      []string `json:"types,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

func summarizePlace(p places.Place) placeSummary {
	return placeSummary{
		PlaceID:    p.ID(),
		Name:       p.Name,
		Address:    p.FormattedAddress,
		Rating:     p.Rating,
		PriceLevel: p.PriceLevel,
		Types:      p.Types,
	}
}

func mcpSearchRestaurants(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		city, err := req.RequireString("city")
		if err != nil || city == "" {
			return mcpError("city is required"), nil
		}

		maxPrice := req.GetInt("max_price", 4)
		if maxPrice < 1 || maxPrice > 4 {
			return mcpError("max_price must be between 1 and 4"), nil
		}
		levels := make([]int, 0, maxPrice)
		for l := 1; l <= maxPrice; l++ {
			levels = append(levels, l)
		}
		limit := req.GetInt("limit", 10)
		if limit <= 0 || limit > places.MaxResults {
			limit = 10
		}

		params := toSearchParams(city, req.GetStringSlice("cuisines", nil), levels, 0, req.GetFloat("min_rating", 0))
		results, err := deps.Finder.Search(ctx, params)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		results = results[:min(limit, len(results))]

		out := make([]placeSummary, len(results))
		for i, p := range results {
			out[i] = summarizePlace(p)
		}
		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRecommendRestaurants(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		city, err := req.RequireString("city")
		if err != nil || city == "" {
			return mcpError("city is required"), nil
		}

		resp, err := deps.Recommender.Recommend(ctx, recommend.Request{
			UserID: deps.UserID,
			City:   city,
			Limit:  req.GetInt("limit", 0),
			Chat:   req.GetString("chat", ""),
		})
		var insufficient *recommend.InsufficientHistoryError
		switch {
		case err == nil:
		case errors.Is(err, recommend.ErrPreferencesNotFound):
			return mcpError("no saved preferences; set them up first"), nil
		case errors.As(err, &insufficient):
			return mcpError(insufficient.Error()), nil
		default:
			return mcpError(fmt.Sprintf("recommendation failed: %v", err)), nil
		}

		out := make([]placeSummary, len(resp.Recommendations))
		for i, rec := range resp.Recommendations {
			out[i] = summarizePlace(rec.Restaurant)
			out[i].Reason = rec.Reason
		}
		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal recommendations: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRecordInteraction(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		placeID, err := req.RequireString("place_id")
		if err != nil || placeID == "" {
			return mcpError("place_id is required"), nil
		}
		action, err := req.RequireString("action")
		if err != nil || !storage.ValidAction(action) {
			return mcpError("action must be one of like, pass, maybe, save, open"), nil
		}

		if err := recordInteraction(deps.Store, deps.UserID, placeID, action, `{"source":"mcp"}`); err != nil {
			return mcpError(fmt.Sprintf("failed to record interaction: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Recorded %s for %s", action, placeID)), nil
	}
}

func mcpAddToList(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		placeID, err := req.RequireString("place_id")
		if err != nil || placeID == "" {
			return mcpError("place_id is required"), nil
		}

		listID := req.GetString("list_id", "")
		if listID == "" {
			l, err := deps.Store.EnsureDefaultList(deps.UserID)
			if err != nil {
				return mcpError(fmt.Sprintf("failed to load default list: %v", err)), nil
			}
			listID = l.ID
		}

		added, err := deps.Store.AddToList(deps.UserID, listID, placeID)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError("list not found"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to add to list: %v", err)), nil
		}
		if !added {
			return mcpText("Restaurant already in list"), nil
		}
		return mcpText(fmt.Sprintf("Added %s to list %s", placeID, listID)), nil
	}
}

func mcpResourcePreferences(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		p, err := deps.Preferences.Get(deps.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to get preferences: %w", err)
		}

		b, err := json.Marshal(preferences.FromStorage(p))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal preferences: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
