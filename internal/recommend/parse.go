package recommend

import (
	"encoding/json"
	"strings"
)

// Suggestion is one entry of the generator's JSON answer.
type Suggestion struct {
	RestaurantName string `json:"restaurantName"`
	Reason         string `json:"reason"`
	Confidence     string `json:"confidence"`
}

// ParseSuggestions extracts suggestions from untrusted generator output.
// Anything that is not a JSON object with a "recommendations" array yields
// an empty result rather than an error.
func ParseSuggestions(raw string) []Suggestion {
	s := stripFences(raw)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return []Suggestion{}
	}

	var envelope struct {
		Recommendations json.RawMessage `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), &envelope); err != nil {
		return []Suggestion{}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(envelope.Recommendations, &items); err != nil {
		return []Suggestion{}
	}

	out := make([]Suggestion, 0, len(items))
	for _, item := range items {
		var sg Suggestion
		if err := json.Unmarshal(item, &sg); err != nil {
			continue
		}
		sg.RestaurantName = strings.TrimSpace(sg.RestaurantName)
		if sg.RestaurantName == "" {
			continue
		}
		out = append(out, sg)
	}
	return out
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
