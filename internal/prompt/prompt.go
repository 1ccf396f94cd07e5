// Package prompt renders the recommendation prompt sent to the generator.
package prompt

import (
	"fmt"
	"strconv"
	"strings"
)

const defaultLimit = 10

// Profile is the slice of user preferences the prompt uses.
type Profile struct {
	Cuisines        []string
	PriceRange      []int
	MaxDistance     float64
	VibeTags        []string
	AgeRange        string
	Neighborhood    string
	DiningFrequency string
	TypicalSpend    string
}

// LikedPlace is a liked or saved place as shown to the generator.
type LikedPlace struct {
	Name       string   `json:"name"`
	Types      []string `json:"types"`
	PriceLevel int      `json:"price_level,omitempty"`
	Rating     float64  `json:"rating,omitempty"`
}

// SeenPlace is a passed or maybe place as shown to the generator.
type SeenPlace struct {
	Name  string   `json:"name"`
	Types []string `json:"types"`
}

// History groups interaction history into the three prompt buckets.
type History struct {
	Likes  []LikedPlace `json:"likes"`
	Passes []SeenPlace  `json:"passes"`
	Maybes []SeenPlace  `json:"maybes"`
}

// Filters are the active search filters for the current request.
type Filters struct {
	Cuisines    []string `json:"cuisines,omitempty"`
	PriceLevels []int    `json:"priceLevel,omitempty"`
	MaxDistance float64  `json:"maxDistance,omitempty"`
	MinRating   float64  `json:"minRating,omitempty"`
}

type Request struct {
	Profile Profile
	History History
	City    string
	Limit   int
	Summary string
	Chat    string
	Filters *Filters
}

// Dollars renders a price level as repeated "$".
func Dollars(level int) string {
	if level <= 0 {
		return ""
	}
	return strings.Repeat("$", level)
}

func dollarList(levels []int) string {
	parts := make([]string, 0, len(levels))
	for _, l := range levels {
		parts = append(parts, Dollars(l))
	}
	return strings.Join(parts, ", ")
}

func firstTypes(types []string) string {
	if len(types) > 3 {
		types = types[:3]
	}
	return strings.Join(types, ", ")
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func bullets(lines []string) string {
	var sb strings.Builder
	for i, l := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("- ")
		sb.WriteString(l)
	}
	return sb.String()
}

// Build renders the full recommendation prompt.
func Build(r Request) string {
	limit := r.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	p := r.Profile

	var global []string
	if p.AgeRange != "" {
		global = append(global, "Age Range: "+p.AgeRange)
	}
	if p.Neighborhood != "" {
		global = append(global, "Preferred Neighborhood: "+p.Neighborhood)
	}
	if p.DiningFrequency != "" {
		global = append(global, "Dining Frequency: "+p.DiningFrequency)
	}
	if p.TypicalSpend != "" {
		global = append(global, "Typical Spend: "+p.TypicalSpend)
	}

	var filters []string
	if f := r.Filters; f != nil {
		if len(f.Cuisines) > 0 {
			filters = append(filters, "Cuisines: "+strings.Join(f.Cuisines, ", "))
		}
		if len(f.PriceLevels) > 0 {
			filters = append(filters, "Price Levels: "+dollarList(f.PriceLevels))
		}
		if f.MaxDistance > 0 {
			filters = append(filters, "Max Distance: "+num(f.MaxDistance)+" miles")
		}
		if f.MinRating > 0 {
			filters = append(filters, "Min Rating: "+num(f.MinRating)+" stars")
		}
	}

	liked := make([]string, 0, len(r.History.Likes))
	for _, l := range r.History.Likes {
		price := "price unknown"
		if l.PriceLevel > 0 {
			price = Dollars(l.PriceLevel)
		}
		rating := "N/A"
		if l.Rating > 0 {
			rating = num(l.Rating)
		}
		liked = append(liked, fmt.Sprintf("%s (%s, %s, rating: %s)", l.Name, firstTypes(l.Types), price, rating))
	}
	passed := seenLines(r.History.Passes)
	maybes := seenLines(r.History.Maybes)

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a dining concierge assistant. Based on the user's profile, preferences, interaction history, and specific request, recommend %d restaurants in %s.\n\n", limit, r.City)

	if len(global) > 0 {
		fmt.Fprintf(&sb, "GLOBAL PROFILE:\n%s\n\n", bullets(global))
	}
	if r.Chat != "" {
		fmt.Fprintf(&sb, "USER REQUEST:\n%q\n\n", r.Chat)
	}
	if r.Summary != "" {
		fmt.Fprintf(&sb, "PREFERENCE SUMMARY (from past behavior):\n%s\n\n", r.Summary)
	}

	sb.WriteString("SAVED PREFERENCES:\n")
	fmt.Fprintf(&sb, "- Preferred Cuisines: %s\n", orDefault(strings.Join(p.Cuisines, ", "), "No specific preferences"))
	fmt.Fprintf(&sb, "- Price Range: %s\n", orDefault(dollarList(p.PriceRange), "Any"))
	fmt.Fprintf(&sb, "- Max Distance: %s miles\n", num(p.MaxDistance))
	fmt.Fprintf(&sb, "- Vibe Tags: %s\n\n", orDefault(strings.Join(p.VibeTags, ", "), "No specific vibe preferences"))

	if len(filters) > 0 {
		fmt.Fprintf(&sb, "ACTIVE FILTERS (current search):\n%s\n\n", bullets(filters))
	}

	sb.WriteString("INTERACTION HISTORY:\n\n")
	fmt.Fprintf(&sb, "Restaurants the user LIKED:\n%s\n\n", orDefault(bullets(liked), "None yet"))
	fmt.Fprintf(&sb, "Restaurants the user PASSED on:\n%s\n\n", orDefault(bullets(passed), "None yet"))
	fmt.Fprintf(&sb, "Restaurants the user is UNSURE about (Maybe):\n%s\n\n", orDefault(bullets(maybes), "None yet"))

	sb.WriteString("TASK:\n")
	fmt.Fprintf(&sb, "Based on the above information, recommend up to %d specific restaurants in %s that the user would likely enjoy.", limit, r.City)
	if r.Chat != "" {
		sb.WriteString(" PRIORITIZE matching the user request above.")
	}
	sb.WriteString(" Focus on:\n")
	if r.Chat != "" {
		sb.WriteString("1. Fulfilling the specific user request/intent\n")
		sb.WriteString("2. Considering global profile and filters\n")
	} else {
		sb.WriteString("1. Matching their stated preferences\n")
		sb.WriteString("2. Learning from their liked restaurants (cuisine types, price levels, vibes)\n")
	}
	sb.WriteString("3. Learning from preference summary and interaction history\n")
	sb.WriteString("4. Avoiding types of places they passed on\n")
	sb.WriteString("5. Suggesting variety while staying within constraints\n\n")

	sb.WriteString("IMPORTANT FORMAT REQUIREMENTS:\n")
	fmt.Fprintf(&sb, "- Recommend REAL restaurants that exist in %s", r.City)
	if p.Neighborhood != "" {
		fmt.Fprintf(&sb, " (preferably in or near %s)", p.Neighborhood)
	}
	sb.WriteString("\n")
	sb.WriteString("- Provide the exact restaurant name as it would appear on Google Maps\n")
	sb.WriteString("- Include a brief reason for each recommendation (1-2 sentences max)\n")
	sb.WriteString("- Assign a confidence level: high, medium, or low\n")
	fmt.Fprintf(&sb, "- Return at most %d recommendations (you may return fewer if appropriate matches are limited)\n\n", limit)

	sb.WriteString(responseFormat)
	return sb.String()
}

const responseFormat = `Return your response in this exact JSON format:
{
  "recommendations": [
    {
      "restaurantName": "Exact Restaurant Name",
      "reason": "Brief explanation of why this matches",
      "confidence": "high"
    }
  ]
}

Return ONLY valid JSON, no additional text before or after.`

func seenLines(in []SeenPlace) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, fmt.Sprintf("%s (%s)", s.Name, firstTypes(s.Types)))
	}
	return out
}
