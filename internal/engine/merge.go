package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/engramdb/engram/internal/store"
)

// RunMerge clusters near-duplicate live records per owner and category and
// consolidates each cluster into one SUMMARY record. Frozen and sensitive
// records never participate: folding them into a summary would drop their
// protections.
func (e *Engine) RunMerge(ctx context.Context) CycleStats {
	start := e.now()
	var stats CycleStats
	for _, owner := range e.st.Owners() {
		if ctx.Err() != nil {
			break
		}
		byCat := make(map[store.Category][]*store.Record)
		for _, rec := range e.st.ByOwner(owner) {
			if !mergeable(rec) {
				continue
			}
			byCat[rec.Meta.Category] = append(byCat[rec.Meta.Category], rec)
		}
		for _, cat := range store.Categories() {
			recs := byCat[cat]
			if len(recs) < e.cfg.MergeMinGroup {
				continue
			}
			stats.Examined += len(recs)
			groups, err := e.clusterSimilar(ctx, recs)
			if err != nil {
				stats.Errors++
				e.log.Error("merge pass: clustering failed", "owner", owner.Key(), "category", cat, "error", err)
				continue
			}
			for _, group := range groups {
				merged, err := e.mergeGroup(ctx, group, e.now())
				if err != nil {
					stats.Errors++
					e.log.Error("merge pass: group aborted", "owner", owner.Key(), "category", cat, "error", err)
					continue
				}
				stats.Changed += len(group)
				e.log.Info("merged near-duplicates",
					"owner", owner.Key(), "category", cat, "sources", len(group), "merged", merged.ID)
			}
		}
	}
	stats.Duration = e.now().Sub(start)
	return stats
}

func mergeable(rec *store.Record) bool {
	return rec.Live() && !rec.Meta.Frozen && !rec.Meta.Sensitive
}

// clusterSimilar groups records greedily: each unclaimed record seeds a
// group and absorbs later unclaimed records whose similarity to the seed
// clears the bar. Only groups reaching the minimum size are returned; a
// record left in an undersized group stays available to later seeds.
func (e *Engine) clusterSimilar(ctx context.Context, recs []*store.Record) ([][]*store.Record, error) {
	claimed := make(map[string]bool)
	var groups [][]*store.Record
	for i, seed := range recs {
		if claimed[seed.ID] {
			continue
		}
		group := []*store.Record{seed}
		for _, cand := range recs[i+1:] {
			if claimed[cand.ID] {
				continue
			}
			score, err := e.sim.Score(ctx, seed.Text, cand.Text)
			if err != nil {
				return nil, &CollaboratorError{Op: "similarity score", Err: err}
			}
			if score >= e.cfg.MergeSim {
				group = append(group, cand)
			}
		}
		if len(group) < e.cfg.MergeMinGroup {
			continue
		}
		for _, m := range group {
			claimed[m.ID] = true
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// consolidateAround merges the live near-duplicates of seed, seed included,
// when enough of them exist. Returns nil with no error when no group forms.
func (e *Engine) consolidateAround(ctx context.Context, seed *store.Record, now time.Time) (*store.Record, error) {
	group := []*store.Record{seed}
	for _, cand := range e.st.ByOwner(seed.Owner) {
		if cand.ID == seed.ID || !mergeable(cand) || cand.Meta.Category != seed.Meta.Category {
			continue
		}
		score, err := e.sim.Score(ctx, seed.Text, cand.Text)
		if err != nil {
			return nil, &CollaboratorError{Op: "similarity score", Err: err}
		}
		if score >= e.cfg.MergeSim {
			group = append(group, cand)
		}
	}
	if len(group) < e.cfg.MergeMinGroup {
		return nil, nil
	}
	return e.mergeGroup(ctx, group, now)
}

// mergeGroup consolidates one cluster into a fresh SUMMARY record. The
// summarizer must succeed before any source is touched; a failure aborts
// the whole group with nothing committed. Sources are soft-deleted, never
// removed outright, so the provenance chain stays navigable until cleanup.
func (e *Engine) mergeGroup(ctx context.Context, group []*store.Record, now time.Time) (*store.Record, error) {
	if len(group) == 0 {
		return nil, fmt.Errorf("merge: empty group")
	}

	// Prefer texts still at high fidelity as summarizer input; fall back
	// to whatever text remains.
	var texts []string
	var contributors []string
	for _, m := range group {
		if m.Text == "" {
			continue
		}
		if m.Meta.Tier == store.TierFull || m.Meta.Tier == store.TierSummary {
			texts = append(texts, m.Text)
			contributors = append(contributors, m.ID)
		}
	}
	if len(texts) == 0 {
		for _, m := range group {
			if m.Text != "" {
				texts = append(texts, m.Text)
				contributors = append(contributors, m.ID)
			}
		}
	}

	merged, err := e.sum.Summarize(ctx, strings.Join(texts, "\n"), store.TierSummary)
	if err != nil {
		return nil, &CollaboratorError{Op: "summarize merge group", Err: err}
	}

	seed := group[0]
	rec, err := store.NewRecord(e.st.NewID(), seed.Owner, merged, mostFrequentCategory(group), now)
	if err != nil {
		return nil, err
	}
	rec.Meta.Tier = store.TierSummary
	rec.Meta.GroupID = seed.Meta.GroupID

	createdAt := seed.Meta.CreatedAt
	mentions := 0
	ids := make([]string, 0, len(group))
	for _, m := range group {
		if m.Meta.CreatedAt.Before(createdAt) {
			createdAt = m.Meta.CreatedAt
		}
		mentions += m.Meta.MentionCount
		ids = append(ids, m.ID)
		for _, mod := range m.Meta.Modalities {
			rec.AddModality(mod)
		}
	}
	rec.Meta.CreatedAt = createdAt
	rec.Meta.LastActivatedAt = now
	rec.Meta.MentionCount = mentions
	rec.Meta.MergedFrom = ids
	rec.Meta.CompressedFrom = contributors

	f, err := e.cfg.Weight(rec, now)
	if err != nil {
		return nil, err
	}
	rec.Meta.Factors = f
	if err := e.st.Put(rec); err != nil {
		return nil, fmt.Errorf("store merged record: %w", err)
	}

	for _, m := range group {
		if _, err := e.st.Update(m.ID, func(r *store.Record) error {
			r.Meta.Deleted = true
			r.Meta.DeletedAt = now
			return nil
		}); err != nil {
			e.log.Error("merge: source not retired", "id", m.ID, "merged", rec.ID, "error", err)
		}
	}
	e.ops.batchMerges.Add(1)
	e.ops.mergedAway.Add(int64(len(group)))
	return rec, nil
}

func mostFrequentCategory(group []*store.Record) store.Category {
	counts := make(map[store.Category]int)
	for _, m := range group {
		counts[m.Meta.Category]++
	}
	best := group[0].Meta.Category
	for _, cat := range store.Categories() {
		if counts[cat] > counts[best] {
			best = cat
		}
	}
	return best
}
