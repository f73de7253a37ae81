package engine

import (
	"context"
	"time"

	"github.com/engramdb/engram/internal/store"
)

// CycleStats summarizes one maintenance pass over the corpus.
type CycleStats struct {
	Examined int           `json:"examined"`
	Changed  int           `json:"changed"`
	Errors   int           `json:"errors"`
	Duration time.Duration `json:"duration"`
}

// CompressRecord runs the passive-decay path for one record: recompute the
// weight and, when it no longer holds the current tier, rewrite the text at
// the lower fidelity. The activation clock is never touched, so running
// this twice back-to-back cannot cascade a second transition.
func (e *Engine) CompressRecord(ctx context.Context, id string) (*store.Record, Decision, error) {
	now := e.now()
	rec, err := e.st.Get(id)
	if err != nil {
		return nil, Decision{}, err
	}
	if !rec.Live() {
		return rec, Decision{Action: ActionKeep, Reason: "soft-deleted, left to cleanup"}, nil
	}
	if rec.Meta.Frozen || rec.Meta.SensitivityLevel >= 3 {
		return rec, Decision{Action: ActionKeep, Reason: "pinned at full fidelity"}, nil
	}

	dec, err := e.cfg.Decide(rec, Stimulus{Trigger: TriggerPassiveDecay}, now)
	if err != nil {
		return nil, Decision{}, err
	}
	if dec.Action != ActionCompress {
		// No transition; still refresh the factor snapshot so explain
		// reflects the sweep.
		updated, err := e.st.Update(id, func(r *store.Record) error {
			f, err := e.cfg.Weight(r, now)
			if err != nil {
				return err
			}
			r.Meta.Factors = f
			return nil
		})
		if err != nil {
			return nil, Decision{}, err
		}
		return updated, dec, nil
	}

	// Summarize outside the store lock; the collaborator may be slow.
	text, degraded := e.renderTier(ctx, rec.Text, dec.Target)

	updated, err := e.st.Update(id, func(r *store.Record) error {
		before := r.Meta.Factors.Total
		f, err := e.cfg.Weight(r, now)
		if err != nil {
			return err
		}
		from := r.Meta.Tier
		r.Meta.Tier = dec.Target
		if !degraded {
			r.Text = text
		}
		r.Meta.Factors = f
		r.AppendCompression(store.CompressionEvent{At: now, From: from, To: dec.Target, Degraded: degraded})
		r.AppendWeightChange(store.WeightChange{At: now, From: before, To: f.Total, Reason: dec.Reason})
		return nil
	})
	if err != nil {
		return nil, Decision{}, err
	}
	e.ops.compressions.Add(1)
	if degraded {
		e.ops.degraded.Add(1)
	}
	e.log.Debug("record compressed", "id", id, "to", dec.Target, "degraded", degraded)
	return updated, dec, nil
}

// renderTier asks the summarizer for the lower-fidelity rendition. On
// failure the original text survives and the transition proceeds marked
// degraded.
func (e *Engine) renderTier(ctx context.Context, text string, target store.Tier) (string, bool) {
	out, err := e.sum.Summarize(ctx, text, target)
	if err != nil {
		cerr := &CollaboratorError{Op: "summarize", Err: err}
		e.log.Warn("summarizer failed, keeping original text", "target", target, "error", cerr)
		return text, true
	}
	return out, false
}

// RunCompression sweeps every live, unpinned record through the
// passive-decay trigger. Per-record failures are logged and counted, never
// fatal to the sweep.
func (e *Engine) RunCompression(ctx context.Context) CycleStats {
	start := e.now()
	var stats CycleStats
	for _, rec := range e.st.All() {
		if ctx.Err() != nil {
			break
		}
		if !rec.Live() || rec.Meta.Frozen || rec.Meta.SensitivityLevel >= 3 {
			continue
		}
		stats.Examined++
		before := rec.Meta.Tier
		updated, _, err := e.CompressRecord(ctx, rec.ID)
		if err != nil {
			stats.Errors++
			e.log.Error("compression pass: record failed", "id", rec.ID, "error", err)
			continue
		}
		if updated.Meta.Tier != before {
			stats.Changed++
		}
	}
	stats.Duration = e.now().Sub(start)
	return stats
}
