package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/engramdb/engram/internal/store"
)

// Mode gates which tiers and lifecycle states a query may surface.
type Mode string

const (
	// ModeNormal serves everyday recall: only FULL and SUMMARY records.
	ModeNormal Mode = "normal"
	// ModeReview resurfaces everything live or soft-deleted, any tier.
	// The only path by which archived content comes back.
	ModeReview Mode = "review"
	// ModeDebug is review without the coarse threshold, for inspecting
	// why something does or does not rank.
	ModeDebug Mode = "debug"
)

// ParseMode validates a wire-format mode string. Empty means normal.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeNormal:
		return ModeNormal, nil
	case ModeReview:
		return ModeReview, nil
	case ModeDebug:
		return ModeDebug, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", store.ErrInvalid, s)
}

// RetrievalConfig tunes the two-stage ranking. The three blend weights
// must sum to 1. The coarse stage feeds the fine stage at most twice the
// effective result count.
type RetrievalConfig struct {
	TopK            int
	CoarseThreshold float64
	SemanticWeight  float64
	RecencyWeight   float64
	RetentionWeight float64
	Rerank          bool
}

// DefaultRetrievalConfig returns the production ranking blend.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopK:            10,
		CoarseThreshold: 0.1,
		SemanticWeight:  0.7,
		RecencyWeight:   0.3,
		RetentionWeight: 0.0,
		Rerank:          true,
	}
}

// Query asks for the records most relevant to Text within one owner scope.
type Query struct {
	Owner store.Owner
	Text  string
	Mode  Mode
	Limit int // overrides TopK when positive
}

// Result is one ranked hit. The explanation is part of the contract, not
// optional telemetry.
type Result struct {
	Record      *store.Record `json:"record"`
	Score       float64       `json:"score"`
	Coarse      float64       `json:"coarse"`
	Recency     float64       `json:"recency,omitempty"`
	Retention   float64       `json:"retention,omitempty"`
	Boost       float64       `json:"boost,omitempty"`
	Explanation string        `json:"explanation"`
}

// Retrieve ranks the owner's records against the query. The coarse stage
// filters by cheap text similarity; the fine stage blends semantic score,
// recency, and retention weight, then applies behavioral and category
// boosts.
func (e *Engine) Retrieve(ctx context.Context, q Query) ([]Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, fmt.Errorf("retrieve: %w: empty query", store.ErrInvalid)
	}
	mode, err := ParseMode(string(q.Mode))
	if err != nil {
		return nil, err
	}
	now := e.now()
	rc := e.retr

	limit := q.Limit
	if limit <= 0 {
		limit = rc.TopK
	}
	if limit <= 0 {
		limit = 10
	}

	type scored struct {
		rec    *store.Record
		coarse float64
	}
	var cands []scored
	for _, rec := range e.st.ByOwner(q.Owner) {
		if !visibleIn(rec, mode) {
			continue
		}
		score, err := e.sim.Score(ctx, q.Text, rec.Text)
		if err != nil {
			return nil, &CollaboratorError{Op: "similarity score", Err: err}
		}
		if mode != ModeDebug && score < rc.CoarseThreshold {
			continue
		}
		cands = append(cands, scored{rec, score})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].coarse != cands[j].coarse {
			return cands[i].coarse > cands[j].coarse
		}
		return cands[i].rec.ID < cands[j].rec.ID
	})
	// The fine stage sees at most twice the requested count; everything
	// below that line is cut on coarse score alone.
	if keep := 2 * limit; len(cands) > keep {
		cands = cands[:keep]
	}

	if !rc.Rerank {
		if len(cands) > limit {
			cands = cands[:limit]
		}
		results := make([]Result, 0, len(cands))
		for _, c := range cands {
			results = append(results, Result{
				Record:      c.rec,
				Score:       c.coarse,
				Coarse:      c.coarse,
				Explanation: fmt.Sprintf("coarse lexical overlap %.3f; reranking disabled, order is coarse only", c.coarse),
			})
		}
		return results, nil
	}

	results := make([]Result, 0, len(cands))
	for _, c := range cands {
		f, err := e.cfg.Weight(c.rec, now)
		if err != nil {
			e.log.Warn("retrieve: record skipped", "id", c.rec.ID, "error", err)
			continue
		}
		recency := math.Exp(-0.01 * e.cfg.decayDays(now.Sub(c.rec.Meta.LastActivatedAt)))
		retention := f.Total / WeightCeil
		base := rc.SemanticWeight*c.coarse + rc.RecencyWeight*recency + rc.RetentionWeight*retention

		// Behavioral boosts accumulate additively into one factor; the
		// category boost multiplies on top.
		behavior := 0.0
		var why []string
		if c.rec.Meta.MentionCount > 5 {
			behavior += 0.1
			why = append(why, "mentioned often (+0.1)")
		}
		if c.rec.Meta.ReinforceCount > 3 {
			behavior += 0.1
			why = append(why, "heavily reinforced (+0.1)")
		}
		boost := 1.0 + behavior
		if cat := c.rec.Meta.Category; cat == store.CategoryIdentity || cat == store.CategoryStablePreference {
			boost *= 1.2
			why = append(why, fmt.Sprintf("%s category (×1.2)", cat))
		}

		results = append(results, Result{
			Record:      c.rec,
			Score:       base * boost,
			Coarse:      c.coarse,
			Recency:     recency,
			Retention:   retention,
			Boost:       boost,
			Explanation: explainScore(rc, c.coarse, recency, retention, boost, why),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.ID < results[j].Record.ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func visibleIn(rec *store.Record, mode Mode) bool {
	switch mode {
	case ModeReview, ModeDebug:
		return true
	default:
		return rec.Live() &&
			(rec.Meta.Tier == store.TierFull || rec.Meta.Tier == store.TierSummary)
	}
}

func explainScore(rc RetrievalConfig, coarse, recency, retention, boost float64, why []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "semantic %.3f×%.1f + recency %.3f×%.1f", coarse, rc.SemanticWeight, recency, rc.RecencyWeight)
	if rc.RetentionWeight > 0 {
		fmt.Fprintf(&b, " + retention %.3f×%.1f", retention, rc.RetentionWeight)
	}
	if len(why) > 0 {
		fmt.Fprintf(&b, "; boosted %.2fx: %s", boost, strings.Join(why, ", "))
	}
	return b.String()
}
