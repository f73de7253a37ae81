package engine

import "context"

// RunCleanup hard-deletes what the grace rules allow: soft-deleted records
// past the grace window, and bottomed-out records older than the retention
// horizon. This is the only path by which a record fully disappears.
func (e *Engine) RunCleanup(ctx context.Context) CycleStats {
	start := e.now()
	now := start
	var stats CycleStats
	for _, rec := range e.st.All() {
		if ctx.Err() != nil {
			break
		}
		stats.Examined++

		remove := false
		reason := ""
		switch {
		case rec.Meta.Deleted:
			if !rec.Meta.DeletedAt.IsZero() && now.Sub(rec.Meta.DeletedAt) >= e.cfg.SoftDeleteGrace {
				remove = true
				reason = "grace period expired"
			}
		case rec.Meta.Frozen || rec.Meta.Sensitive:
			// Protected records only leave via an explicit delete.
		default:
			f, err := e.cfg.Weight(rec, now)
			if err != nil {
				stats.Errors++
				e.log.Error("cleanup pass: weigh failed", "id", rec.ID, "error", err)
				continue
			}
			if f.Total <= e.cfg.CleanupFloor && now.Sub(rec.Meta.CreatedAt) >= e.cfg.CleanupAge {
				remove = true
				reason = "weight at floor beyond retention horizon"
			}
		}
		if !remove {
			continue
		}

		if err := e.st.Remove(rec.ID); err != nil {
			stats.Errors++
			e.log.Error("cleanup pass: remove failed", "id", rec.ID, "error", err)
			continue
		}
		stats.Changed++
		e.ops.hardDeletes.Add(1)
		e.log.Info("record removed", "id", rec.ID, "reason", reason)
	}
	stats.Duration = e.now().Sub(start)
	return stats
}
