// Package summary compresses record text down to a target tier. The engine
// only sees the Summarizer interface; implementations range from the
// deterministic extractive reducer to an Ollama-backed model.
package summary

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/engramdb/engram/internal/store"
)

// Summarizer rewrites text at the fidelity of the target tier.
// Compression paths must call it before discarding any source content.
type Summarizer interface {
	Summarize(ctx context.Context, text string, target store.Tier) (string, error)
}

// Budgets for the extractive reducer, in characters / keywords.
const (
	summaryBudget  = 200
	tagKeywords    = 5
	traceKeywords  = 3
	minKeywordsLen = 3
)

// Extractive is the default summarizer: purely lexical, deterministic,
// never fails. SUMMARY keeps the leading sentences within a budget, TAG
// keeps the top keywords, TRACE a faint keyword trace, ARCHIVE a tombstone.
type Extractive struct{}

// NewExtractive returns the deterministic lexical summarizer.
func NewExtractive() Extractive { return Extractive{} }

func (Extractive) Summarize(_ context.Context, text string, target store.Tier) (string, error) {
	text = strings.TrimSpace(text)
	switch target {
	case store.TierFull:
		return text, nil
	case store.TierSummary:
		return leadingSentences(text, summaryBudget), nil
	case store.TierTag:
		kw := topKeywords(text, tagKeywords)
		if len(kw) == 0 {
			return leadingSentences(text, summaryBudget/4), nil
		}
		return strings.Join(kw, ", "), nil
	case store.TierTrace:
		kw := topKeywords(text, traceKeywords)
		if len(kw) == 0 {
			return "faint trace of an earlier memory", nil
		}
		return "faint trace: " + strings.Join(kw, ", "), nil
	case store.TierArchive:
		return fmt.Sprintf("archived memory (%d chars at full fidelity)", len(text)), nil
	}
	return "", fmt.Errorf("summarize: unknown tier %q", target)
}

// leadingSentences keeps whole sentences from the front until the budget
// is spent; a single over-budget sentence is cut hard.
func leadingSentences(text string, budget int) string {
	if len(text) <= budget {
		return text
	}
	var b strings.Builder
	for _, s := range splitSentences(text) {
		if b.Len() > 0 && b.Len()+len(s)+1 > budget {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
		if b.Len() >= budget {
			break
		}
	}
	out := b.String()
	if out == "" {
		out = text
	}
	if len(out) > budget {
		out = strings.TrimSpace(out[:budget]) + "…"
	}
	return out
}

func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(b.String()); s != "" {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// topKeywords ranks tokens by frequency (ties alphabetical) and returns
// up to n of them.
func topKeywords(text string, n int) []string {
	counts := make(map[string]int)
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '-'
	}) {
		if len(tok) >= minKeywordsLen {
			counts[tok]++
		}
	}
	kws := make([]string, 0, len(counts))
	for k := range counts {
		kws = append(kws, k)
	}
	sort.Slice(kws, func(i, j int) bool {
		if counts[kws[i]] != counts[kws[j]] {
			return counts[kws[i]] > counts[kws[j]]
		}
		return kws[i] < kws[j]
	})
	if len(kws) > n {
		kws = kws[:n]
	}
	return kws
}
