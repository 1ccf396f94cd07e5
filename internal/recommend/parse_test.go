package recommend

import "testing"

func TestParseSuggestions(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		names []string
	}{
		{
			name:  "plain json",
			raw:   `{"recommendations":[{"restaurantName":"Uchi","reason":"sushi","confidence":"high"}]}`,
			names: []string{"Uchi"},
		},
		{
			name:  "code fence",
			raw:   "```json\n{\"recommendations\":[{\"restaurantName\":\"Uchi\"},{\"restaurantName\":\"Odd Duck\"}]}\n```",
			names: []string{"Uchi", "Odd Duck"},
		},
		{
			name:  "prose around object",
			raw:   "Sure! Here you go:\n{\"recommendations\":[{\"restaurantName\":\"Uchi\"}]}\nEnjoy.",
			names: []string{"Uchi"},
		},
		{
			name:  "entries without a name are skipped",
			raw:   `{"recommendations":[{"reason":"x"},{"restaurantName":"  Uchi  "},"oops"]}`,
			names: []string{"Uchi"},
		},
		{name: "missing array", raw: `{"restaurants":[{"restaurantName":"Uchi"}]}`},
		{name: "array of wrong type", raw: `{"recommendations":"Uchi"}`},
		{name: "invalid json", raw: `{"recommendations":[{"restaurantName":"Uchi"}`},
		{name: "no object", raw: "I cannot help with that."},
		{name: "empty", raw: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSuggestions(tt.raw)
			if got == nil {
				t.Fatal("ParseSuggestions returned nil, want empty slice")
			}
			if len(got) != len(tt.names) {
				t.Fatalf("got %d suggestions, want %d: %+v", len(got), len(tt.names), got)
			}
			for i, n := range tt.names {
				if got[i].RestaurantName != n {
					t.Errorf("suggestion %d = %q, want %q", i, got[i].RestaurantName, n)
				}
			}
		})
	}
}

func TestParseSuggestionsKeepsReasonAndConfidence(t *testing.T) {
	got := ParseSuggestions(`{"recommendations":[{"restaurantName":"Uchi","reason":"Great omakase.","confidence":"medium"}]}`)
	if len(got) != 1 || got[0].Reason != "Great omakase." || got[0].Confidence != "medium" {
		t.Errorf("got %+v", got)
	}
}
