package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/dishcover/internal/auth"
	"github.com/kalambet/dishcover/internal/config"
)

// restaurantView is the subset of a place the CLI prints.
type restaurantView struct {
	PlaceID          string  `json:"place_id"`
	ContentID        string  `json:"content_id"`
	Name             string  `json:"name"`
	FormattedAddress string  `json:"formatted_address"`
	Rating           float64 `json:"rating"`
	PriceLevel       int     `json:"price_level"`
}

func (r restaurantView) id() string {
	if r.PlaceID != "" {
		return r.PlaceID
	}
	return r.ContentID
}

type listSummary struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	IsDefault       bool   `json:"is_default"`
	RestaurantCount int    `json:"restaurant_count"`
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parsePriceLevels(s string) ([]int, error) {
	var levels []int
	for _, part := range splitList(s) {
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 || n > 4 {
			return nil, fmt.Errorf("invalid price level %q: use 1-4", part)
		}
		levels = append(levels, n)
	}
	return levels, nil
}

// --- recommend ---

var recommendCmd = &cobra.Command{
	Use:   "recommend <city>",
	Short: "Get personalized restaurant recommendations",
	Long: `Get personalized restaurant recommendations for a city.

Examples:
  dishcover recommend Austin
  dishcover recommend "New York" --chat "quiet date night" --limit 5`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		chat, _ := cmd.Flags().GetString("chat")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{"city": strings.Join(args, " ")}
		if limit > 0 {
			req["limit"] = limit
		}
		if chat != "" {
			req["chat"] = chat
		}

		resp, err := client.post(cmdContext(cmd), "/recommendations", req)
		if err != nil {
			return err
		}

		var result struct {
			Recommendations []struct {
				Restaurant restaurantView `json:"restaurant"`
				Reason     string         `json:"reason"`
				Confidence string         `json:"confidence"`
			} `json:"recommendations"`
			InteractionCount int `json:"interactionCount"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Recommendations) == 0 {
			fmt.Println("No recommendations found.")
			return nil
		}

		for i, rec := range result.Recommendations {
			r := rec.Restaurant
			fmt.Printf("%d. %s\n", i+1, restaurantLine(r.Name, r.FormattedAddress, r.Rating, r.PriceLevel))
			if rec.Reason != "" {
				fmt.Printf("   %s\n", rec.Reason)
			}
			if id := r.id(); id != "" {
				fmt.Printf("   %s\n", colorize(colorCyan, id))
			}
		}
		return nil
	},
}

func init() {
	recommendCmd.Flags().Int("limit", 0, "number of recommendations (default: server setting)")
	recommendCmd.Flags().String("chat", "", "free-form request, e.g. \"spicy and cheap\"")
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <city>",
	Short: "Search restaurants in a city",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cuisines, _ := cmd.Flags().GetString("cuisine")
		price, _ := cmd.Flags().GetString("price")
		minRating, _ := cmd.Flags().GetFloat64("min-rating")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		levels, err := parsePriceLevels(price)
		if err != nil {
			return err
		}

		req := map[string]any{
			"city":   strings.Join(args, " "),
			"limit":  limit,
			"offset": offset,
		}
		if c := splitList(cuisines); c != nil {
			req["cuisines"] = c
		}
		if levels != nil {
			req["priceLevel"] = levels
		}
		if minRating > 0 {
			req["minRating"] = minRating
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmdContext(cmd), "/search", req)
		if err != nil {
			return err
		}

		var result struct {
			Restaurants []restaurantView `json:"restaurants"`
			TotalCount  int              `json:"totalCount"`
			HasMore     bool             `json:"hasMore"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Restaurants) == 0 {
			fmt.Println("No restaurants found.")
			return nil
		}

		for _, r := range result.Restaurants {
			fmt.Printf("%s  %s\n", colorize(colorCyan, r.id()), restaurantLine(r.Name, r.FormattedAddress, r.Rating, r.PriceLevel))
		}
		if result.HasMore {
			fmt.Printf("\nShowing %d of %d. Use --offset %d for more.\n", len(result.Restaurants), result.TotalCount, offset+len(result.Restaurants))
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().String("cuisine", "", "comma-separated cuisines")
	searchCmd.Flags().String("price", "", "comma-separated price levels (1-4)")
	searchCmd.Flags().Float64("min-rating", 0, "minimum rating")
	searchCmd.Flags().Int("limit", 20, "page size")
	searchCmd.Flags().Int("offset", 0, "page offset")
}

// --- interactions ---

var interactCmd = &cobra.Command{
	Use:   "interact <placeId> <action>",
	Short: "Record an interaction (like, pass, save, open)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		placeID, action := args[0], args[1]

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmdContext(cmd), "/interactions", map[string]any{
			"placeId":  placeID,
			"action":   action,
			"metadata": map[string]string{"source": "cli"},
		})
		if err != nil {
			return err
		}

		var result map[string]any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Recorded %s for %s", action, placeID)
		return nil
	},
}

var interactionsCmd = &cobra.Command{
	Use:   "interactions",
	Short: "Show interaction history",
}

var interactionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent interactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmdContext(cmd), fmt.Sprintf("/interactions?limit=%d", limit))
		if err != nil {
			return err
		}

		var result struct {
			Interactions []struct {
				PlaceID   string `json:"place_id"`
				Action    string `json:"action"`
				CreatedAt string `json:"created_at"`
			} `json:"interactions"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Interactions) == 0 {
			fmt.Println("No interactions found.")
			return nil
		}

		for _, ix := range result.Interactions {
			fmt.Printf("%s  %-5s  %s\n", ix.CreatedAt, ix.Action, colorize(colorCyan, ix.PlaceID))
		}
		return nil
	},
}

func init() {
	interactionsListCmd.Flags().Int("limit", 20, "maximum number of interactions to list")
	interactionsCmd.AddCommand(interactionsListCmd)
}

// --- lists ---

var listsCmd = &cobra.Command{
	Use:   "lists",
	Short: "Manage restaurant lists",
}

var listsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show your lists",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmdContext(cmd), "/lists")
		if err != nil {
			return err
		}

		var result struct {
			Lists []listSummary `json:"lists"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Lists) == 0 {
			fmt.Println("No lists yet.")
			return nil
		}

		for _, l := range result.Lists {
			name := l.Name
			if l.IsDefault {
				name += " (default)"
			}
			fmt.Printf("%s  %s  %d restaurants\n", colorize(colorCyan, l.ID), colorize(colorBold, name), l.RestaurantCount)
		}
		return nil
	},
}

var listsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmdContext(cmd), "/lists", map[string]string{
			"name":        strings.Join(args, " "),
			"description": description,
		})
		if err != nil {
			return err
		}

		var result struct {
			List listSummary `json:"list"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Created list %q (%s)", result.List.Name, result.List.ID)
		return nil
	},
}

var listsShowCmd = &cobra.Command{
	Use:   "show <listId>",
	Short: "Show a list and its restaurants",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmdContext(cmd), "/lists/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var result struct {
			List        listSummary      `json:"list"`
			Restaurants []restaurantView `json:"restaurants"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(colorize(colorBold, result.List.Name))
		if result.List.Description != "" {
			fmt.Printf("  %s\n", result.List.Description)
		}
		if len(result.Restaurants) == 0 {
			fmt.Println("  (empty)")
			return nil
		}
		for _, r := range result.Restaurants {
			fmt.Printf("  %s\n", restaurantLine(r.Name, r.FormattedAddress, r.Rating, r.PriceLevel))
		}
		return nil
	},
}

var listsDeleteCmd = &cobra.Command{
	Use:   "delete <listId>",
	Short: "Delete a list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmdContext(cmd), "/lists/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var result map[string]any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted list %s", args[0])
		return nil
	},
}

var listsAddCmd = &cobra.Command{
	Use:   "add <listId> <placeId>",
	Short: "Add a restaurant to a list",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmdContext(cmd), "/lists/"+url.PathEscape(args[0])+"/restaurants", map[string]string{"placeId": args[1]})
		if err != nil {
			return err
		}

		var result struct {
			Message string `json:"message"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Message != "" {
			printWarning("%s", result.Message)
			return nil
		}
		printSuccess("Added %s", args[1])
		return nil
	},
}

var listsRemoveCmd = &cobra.Command{
	Use:   "remove <listId> <placeId>",
	Short: "Remove a restaurant from a list",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmdContext(cmd), "/lists/"+url.PathEscape(args[0])+"/restaurants?placeId="+url.QueryEscape(args[1]))
		if err != nil {
			return err
		}

		var result map[string]any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Removed %s", args[1])
		return nil
	},
}

func init() {
	listsCreateCmd.Flags().String("description", "", "list description")
	listsCmd.AddCommand(listsListCmd, listsCreateCmd, listsShowCmd, listsDeleteCmd, listsAddCmd, listsRemoveCmd)
}

// --- preferences ---

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Manage dining preferences",
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show preferences as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmdContext(cmd), "/preferences")
		if err != nil {
			return err
		}

		var result struct {
			Preferences any `json:"preferences"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		return printJSON(result.Preferences)
	},
}

var prefsEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open preferences JSON in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi"
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := cmdContext(cmd)

		// Start from an empty template when the user has not onboarded yet.
		current := map[string]any{
			"default_city": "",
			"cuisines":     []string{},
			"price_range":  []int{},
			"vibe_tags":    []string{},
		}
		resp, err := client.get(ctx, "/preferences")
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusNotFound {
			var result struct {
				Preferences map[string]any `json:"preferences"`
			}
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
			delete(result.Preferences, "created_at")
			delete(result.Preferences, "updated_at")
			current = result.Preferences
		} else {
			resp.Body.Close()
		}

		data, err := json.MarshalIndent(current, "", "  ")
		if err != nil {
			return err
		}

		tmpFile, err := os.CreateTemp("", "dishcover-prefs-*.json")
		if err != nil {
			return fmt.Errorf("creating temp file: %w", err)
		}
		tmpPath := tmpFile.Name()
		defer os.Remove(tmpPath)

		if _, err := tmpFile.Write(data); err != nil {
			tmpFile.Close()
			return err
		}
		tmpFile.Close()

		editorCmd := exec.Command(editor, tmpPath)
		editorCmd.Stdin = os.Stdin
		editorCmd.Stdout = os.Stdout
		editorCmd.Stderr = os.Stderr
		if err := editorCmd.Run(); err != nil {
			return fmt.Errorf("editor exited with error: %w", err)
		}

		edited, err := os.ReadFile(tmpPath)
		if err != nil {
			return err
		}

		var fields map[string]any
		if err := json.Unmarshal(edited, &fields); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}

		putResp, err := client.put(ctx, "/preferences", fields)
		if err != nil {
			return err
		}
		var saved map[string]any
		if err := decodeJSON(putResp, &saved); err != nil {
			return err
		}

		printSuccess("Preferences updated")
		return nil
	},
}

func init() {
	prefsCmd.AddCommand(prefsShowCmd, prefsEditCmd)
}

// --- summary ---

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show or refresh your taste summary",
}

var summaryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored taste summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmdContext(cmd), "/preferences/summary")
		if err != nil {
			return err
		}

		var result struct {
			Summary *struct {
				Summary   string `json:"summary"`
				UpdatedAt string `json:"updated_at"`
			} `json:"summary"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Summary == nil {
			fmt.Println("No summary yet. Like, pass or save a few restaurants first.")
			return nil
		}
		fmt.Println(result.Summary.Summary)
		printStatus("Updated", "%s", result.Summary.UpdatedAt)
		return nil
	},
}

var summaryRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Regenerate the taste summary now",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmdContext(cmd), "/preferences/summary", nil)
		if err != nil {
			return err
		}

		var result struct {
			Summary string `json:"summary"`
			Stats   *struct {
				TotalInteractions int `json:"totalInteractions"`
				Likes             int `json:"likes"`
				Passes            int `json:"passes"`
				Saves             int `json:"saves"`
			} `json:"stats"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Summary)
		if result.Stats != nil {
			printStatus("Interactions", "%d (%d likes, %d passes, %d saves)",
				result.Stats.TotalInteractions, result.Stats.Likes, result.Stats.Passes, result.Stats.Saves)
		}
		return nil
	},
}

func init() {
	summaryCmd.AddCommand(summaryShowCmd, summaryRefreshCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret <key> <value>",
	Short: "Store a secret (API keys, session secret)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetSecret(args[0], args[1]); err != nil {
			return err
		}

		printSuccess("Stored %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configSetSecretCmd)
}

// --- token ---

var tokenCmd = &cobra.Command{
	Use:   "token <userId>",
	Short: "Issue a session token for a user",
	Long: `Issue a session token signed with auth.session_secret.

The token can be sent as the session cookie or as "Authorization: Bearer <token>",
or exported as DISHCOVER_TOKEN for this CLI.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetDuration("ttl")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		sessions, err := auth.NewSessions(cfg.Auth.SessionSecret, cfg.Auth.CookieName, 0)
		if err != nil {
			return err
		}
		token, err := sessions.Issue(args[0], ttl)
		if err != nil {
			return err
		}

		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Duration("ttl", 30*24*time.Hour, "token lifetime")
}
