package recommend

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/kalambet/dishcover/internal/places"
)

// Matcher picks the cached place a generated restaurant name refers to.
type Matcher interface {
	Match(name string, candidates []places.Place) (places.Place, bool)
}

const (
	jaccardThreshold     = 0.6
	levenshteinThreshold = 0.85
)

// NewMatcher returns the matcher registered under kind.
func NewMatcher(kind string) (Matcher, error) {
	switch kind {
	case "", "scored":
		return ScoredMatcher{}, nil
	case "substring":
		return SubstringMatcher{}, nil
	default:
		return nil, fmt.Errorf("unknown matcher %q", kind)
	}
}

// ScoredMatcher ranks candidates in tiers: exact name, normalized name,
// token overlap, then edit distance. The highest tier wins and candidates
// earlier in the slice win ties.
type ScoredMatcher struct{}

const (
	tierNone = iota
	tierEditDistance
	tierTokens
	tierNormalized
	tierExact
)

func (ScoredMatcher) Match(name string, candidates []places.Place) (places.Place, bool) {
	if strings.TrimSpace(name) == "" {
		return places.Place{}, false
	}
	normalized := normalizeName(name)
	tokens := tokenSet(normalized)

	best, bestTier := -1, tierNone
	for i, c := range candidates {
		tier := matchTier(name, normalized, tokens, c.Name)
		if tier > bestTier {
			best, bestTier = i, tier
			if tier == tierExact {
				break
			}
		}
	}
	if best < 0 {
		return places.Place{}, false
	}
	return candidates[best], true
}

func matchTier(raw, normalized string, tokens map[string]struct{}, candidate string) int {
	if candidate == "" {
		return tierNone
	}
	if raw == candidate {
		return tierExact
	}
	cn := normalizeName(candidate)
	if cn == "" {
		return tierNone
	}
	if normalized == cn {
		return tierNormalized
	}
	if jaccard(tokens, tokenSet(cn)) >= jaccardThreshold {
		return tierTokens
	}
	if similarity(normalized, cn) >= levenshteinThreshold {
		return tierEditDistance
	}
	return tierNone
}

var stripMarks = runes.Remove(runes.In(unicode.Mn))

// normalizeName lower-cases, strips diacritics, spells "&" as "and" and
// collapses everything that is not a letter or digit into single spaces.
func normalizeName(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, stripMarks, norm.NFC), s)
	if err != nil {
		folded = s
	}
	folded = strings.ReplaceAll(strings.ToLower(folded), "&", " and ")
	folded = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		if r == '\'' || r == '’' {
			return -1
		}
		return ' '
	}, folded)
	return strings.Join(strings.Fields(folded), " ")
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range strings.Fields(s) {
		out[t] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// similarity is 1 - levenshtein(a, b) / max(len(a), len(b)) over runes.
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// SubstringMatcher accepts the first candidate whose name contains the
// generated name, or is contained by it, ignoring case.
type SubstringMatcher struct{}

func (SubstringMatcher) Match(name string, candidates []places.Place) (places.Place, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return places.Place{}, false
	}
	for _, c := range candidates {
		cn := strings.ToLower(strings.TrimSpace(c.Name))
		if cn == "" {
			continue
		}
		if strings.Contains(cn, n) || strings.Contains(n, cn) {
			return c, true
		}
	}
	return places.Place{}, false
}
