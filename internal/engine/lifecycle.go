package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/engramdb/engram/internal/store"
)

// Lifecycle operations run synchronously, outside the scheduler. By
// convention they are no-ops on unknown ids — operator tooling retries
// blindly — with ExplainWeight as the deliberate exception.

// Freeze pins a record at full fidelity, immune to auto-compression.
// Returns nil, nil when the id is unknown.
func (e *Engine) Freeze(id string) (*store.Record, error) {
	return e.setFrozen(id, true)
}

// Unfreeze lifts the pin; decay resumes from the untouched activation
// clock. Returns nil, nil when the id is unknown.
func (e *Engine) Unfreeze(id string) (*store.Record, error) {
	return e.setFrozen(id, false)
}

func (e *Engine) setFrozen(id string, frozen bool) (*store.Record, error) {
	now := e.now()
	rec, err := e.st.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if frozen {
		if _, err := e.cfg.Decide(rec, Stimulus{Trigger: TriggerManualFreeze}, now); err != nil {
			return nil, err
		}
	}
	updated, err := e.st.Update(id, func(r *store.Record) error {
		r.Meta.Frozen = frozen
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set frozen on %s: %w", id, err)
	}
	e.log.Debug("frozen flag set", "id", id, "frozen", frozen)
	return updated, nil
}

// MarkSensitive raises a record's compression resistance. Level 0 clears
// the flag entirely; levels 1-3 raise the tier floor, with 3 pinning full
// fidelity. Returns nil, nil when the id is unknown.
func (e *Engine) MarkSensitive(id string, level int, encrypted bool) (*store.Record, error) {
	if level < 0 || level > 3 {
		return nil, fmt.Errorf("mark sensitive: %w: level %d out of range", store.ErrInvalid, level)
	}
	_, err := e.st.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	updated, err := e.st.Update(id, func(r *store.Record) error {
		r.Meta.Sensitive = level > 0
		r.Meta.SensitivityLevel = level
		r.Meta.Encrypted = encrypted
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mark sensitive on %s: %w", id, err)
	}
	e.log.Debug("sensitivity set", "id", id, "level", level, "encrypted", encrypted)
	return updated, nil
}

// Delete retires a record. Soft deletion leaves it queryable under review
// modes until the cleanup grace window expires; hard deletion removes the
// record and its index entries immediately. Returns nil, nil when the id
// is unknown.
func (e *Engine) Delete(id string, hard bool) (*store.Record, error) {
	now := e.now()
	rec, err := e.st.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if _, err := e.cfg.Decide(rec, Stimulus{Trigger: TriggerManualDelete}, now); err != nil {
		return nil, err
	}

	if hard {
		if err := e.st.Remove(id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		e.ops.hardDeletes.Add(1)
		e.log.Info("record hard-deleted", "id", id)
		return rec, nil
	}

	updated, err := e.st.Update(id, func(r *store.Record) error {
		if r.Meta.Deleted {
			return nil
		}
		r.Meta.Deleted = true
		r.Meta.DeletedAt = now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("soft delete %s: %w", id, err)
	}
	e.ops.softDeletes.Add(1)
	e.log.Info("record soft-deleted", "id", id)
	return updated, nil
}

// Explanation is the read-only factor breakdown for one record, with a
// human-readable note per factor.
type Explanation struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Tier     store.Tier     `json:"tier"`
	Category store.Category `json:"category"`
	Factors  store.Factors  `json:"factors"`
	Notes    []string       `json:"notes"`
}

// ExplainWeight recomputes the six factors without touching the record.
// Unlike the mutating lifecycle operations, asking about an unknown id is
// an explicit error.
func (e *Engine) ExplainWeight(id string) (*Explanation, error) {
	rec, err := e.st.Get(id)
	if err != nil {
		return nil, err
	}
	f, err := e.cfg.Weight(rec, e.now())
	if err != nil {
		return nil, err
	}
	return &Explanation{
		ID:       rec.ID,
		Text:     rec.Text,
		Tier:     rec.Meta.Tier,
		Category: rec.Meta.Category,
		Factors:  f,
		Notes:    explainFactors(rec, f),
	}, nil
}

func explainFactors(rec *store.Record, f store.Factors) []string {
	m := rec.Meta
	notes := []string{
		fmt.Sprintf("recency %.3f: decay since last activation at the %s rate", f.Recency, m.Category),
	}
	if m.LastMentionedAt.IsZero() {
		notes = append(notes, "semantic 1.000: never re-mentioned")
	} else {
		notes = append(notes, fmt.Sprintf("semantic %.3f: boost fading since the last mention", f.Semantic))
	}
	switch {
	case !m.Negated && !m.Corrected:
		notes = append(notes, "conflict 1.000: never contradicted")
	case m.CorrectedAt.IsZero():
		notes = append(notes, "conflict 0.300: negated, no correction recorded")
	default:
		notes = append(notes, fmt.Sprintf("conflict %.3f: corrected, penalty tracking time since correction", f.Conflict))
	}
	notes = append(notes,
		fmt.Sprintf("importance %.2f: fixed multiplier for %s", f.Importance, m.Category),
		fmt.Sprintf("personalization %.2f: user decay factor", f.Personalization),
		fmt.Sprintf("momentum %.3f: %d mention(s) in the trailing 24h", f.Momentum, rec.MentionsWithin(momentumWindow, f.ComputedAt)),
		fmt.Sprintf("total %.3f: product of all six, clamped to [%.2f, %.1f]", f.Total, WeightFloor, WeightCeil),
	)
	if m.Frozen {
		notes = append(notes, "frozen: tier pinned at full regardless of weight")
	}
	if m.Sensitive {
		notes = append(notes, fmt.Sprintf("sensitive level %d: compression floor raised", m.SensitivityLevel))
	}
	if m.Deleted {
		notes = append(notes, "soft-deleted: awaiting the cleanup grace window")
	}
	if len(m.MergedFrom) > 0 {
		notes = append(notes, fmt.Sprintf("consolidated from %s", strings.Join(m.MergedFrom, ", ")))
	}
	return notes
}
