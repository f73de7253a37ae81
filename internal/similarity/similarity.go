// Package similarity scores text pairs in [0,1]. The in-repo provider is
// lexical token overlap standing in for embedding similarity; a real
// embedding backend can replace it without touching anything downstream.
package similarity

import (
	"context"
	"strings"
)

// Provider scores how alike two texts are, 0 (unrelated) to 1 (identical).
// Implementations may call out to remote models, so the contract carries a
// context and an error.
type Provider interface {
	Score(ctx context.Context, a, b string) (float64, error)
}

// Func adapts a plain scoring function to a Provider.
type Func func(a, b string) float64

func (f Func) Score(_ context.Context, a, b string) (float64, error) {
	return f(a, b), nil
}

// Lexical scores by Jaccard overlap of normalized token sets. Cheap,
// deterministic, and never fails.
type Lexical struct{}

// NewLexical returns the lexical token-overlap provider.
func NewLexical() Lexical { return Lexical{} }

func (Lexical) Score(_ context.Context, a, b string) (float64, error) {
	return Jaccard(a, b), nil
}

// Jaccard computes token-set overlap: |A∩B| / |A∪B|.
func Jaccard(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 && len(tb) == 0 {
		if strings.TrimSpace(a) == strings.TrimSpace(b) {
			return 1
		}
		return 0
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	if union == 0 {
		return 1
	}
	return float64(shared) / float64(union)
}

// tokenSet lowercases and splits on anything outside [a-z0-9-_],
// skipping single-character tokens.
func tokenSet(text string) map[string]struct{} {
	text = strings.ToLower(text)
	set := make(map[string]struct{})
	var current strings.Builder
	flush := func() {
		if current.Len() > 1 {
			set[current.String()] = struct{}{}
		}
		current.Reset()
	}
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return set
}
