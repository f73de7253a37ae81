// Package engine implements tiered memory retention: a six-factor decay
// weight, fidelity tiers with lossy compression between them, a trigger
// table that routes events to actions, batch consolidation of near
// duplicates, and the maintenance passes that keep a corpus tidy.
package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/engramdb/engram/internal/store"
)

// Config carries the retention tunables. The zero value is unusable; start
// from DefaultConfig and override.
type Config struct {
	// Personalization is the user decay factor U, 0.7 (slow forgetter)
	// through 1.5 (fast forgetter). It scales the effective decay rate and
	// multiplies into the weight directly.
	Personalization float64

	// DecayDay is the wall-clock length of one decay-day. Production runs
	// at 24h; tests shrink it to make decay observable.
	DecayDay time.Duration

	// Mention routing thresholds.
	MentionMergeSim float64 // at or above: fold the mention into the match
	MentionLinkSim  float64 // at or above: new record linked to the match

	// Frequent-reinforce detection.
	FrequentWindow    time.Duration
	FrequentThreshold int

	// Batch consolidation.
	MergeSim      float64 // pairwise similarity bar against the seed
	MergeMinGroup int     // smaller clusters are left alone

	// Cleanup policy.
	SoftDeleteGrace time.Duration
	CleanupFloor    float64
	CleanupAge      time.Duration
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		Personalization:   1.0,
		DecayDay:          24 * time.Hour,
		MentionMergeSim:   0.85,
		MentionLinkSim:    0.60,
		FrequentWindow:    24 * time.Hour,
		FrequentThreshold: 3,
		MergeSim:          0.85,
		MergeMinGroup:     3,
		SoftDeleteGrace:   30 * 24 * time.Hour,
		CleanupFloor:      0.01,
		CleanupAge:        365 * 24 * time.Hour,
	}
}

// alphaBase is the per-category base decay rate, in weight per decay-day.
// Identity facts barely move; temporary scraps are gone within weeks.
var alphaBase = map[store.Category]float64{
	store.CategoryIdentity:         0.002,
	store.CategoryStablePreference: 0.005,
	store.CategorySkill:            0.007,
	store.CategoryFact:             0.008,
	store.CategoryShortPreference:  0.010,
	store.CategoryEvent:            0.012,
	store.CategoryTemporary:        0.015,
}

const defaultAlpha = 0.01

// importanceOf is the fixed per-category importance multiplier.
var importanceOf = map[store.Category]float64{
	store.CategoryIdentity:         1.5,
	store.CategoryStablePreference: 1.3,
	store.CategorySkill:            1.2,
	store.CategoryFact:             1.1,
	store.CategoryShortPreference:  1.0,
	store.CategoryEvent:            0.9,
	store.CategoryTemporary:        0.8,
}

// Every computed weight is clamped into [WeightFloor, WeightCeil].
const (
	WeightFloor = 0.01
	WeightCeil  = 2.0
)

// Tier thresholds: a record holds a tier while its weight stays above the
// tier's lower bound.
const (
	tierFullAbove    = 0.7
	tierSummaryAbove = 0.3
	tierTagAbove     = 0.1
	tierTraceAbove   = 0.03
)

// Factor shape constants.
const (
	semanticBoost = 0.5  // fresh mention adds up to +50%
	semanticRate  = 0.05 // and fades at 5% per decay-day

	conflictFloor    = 0.3 // negated content bottoms out at 30%
	conflictRecovery = 0.7
	conflictRate     = 0.01

	momentumBoost  = 0.3 // burst of mentions adds at most +30%
	momentumRate   = 0.5
	momentumWindow = 24 * time.Hour
)

// decayDays converts an elapsed wall-clock duration into decay-days.
// Negative elapsed time (clock skew) counts as zero.
func (c Config) decayDays(d time.Duration) float64 {
	day := c.DecayDay
	if day <= 0 {
		day = 24 * time.Hour
	}
	if d < 0 {
		return 0
	}
	return d.Seconds() / day.Seconds()
}

func (c Config) userFactor() float64 {
	if c.Personalization <= 0 {
		return 1.0
	}
	return c.Personalization
}

// Weight computes the six-factor retention weight of rec at the given
// instant. It never mutates the record. A record with no activation
// timestamp yields ErrInvalidTimestamp rather than a default weight.
func (c Config) Weight(rec *store.Record, now time.Time) (store.Factors, error) {
	m := &rec.Meta
	if m.LastActivatedAt.IsZero() {
		return store.Factors{}, fmt.Errorf("weigh %s: %w", rec.ID, ErrInvalidTimestamp)
	}
	u := c.userFactor()

	alpha, ok := alphaBase[m.Category]
	if !ok {
		alpha = defaultAlpha
	}
	t := c.decayDays(now.Sub(m.LastActivatedAt))
	recency := 1.0 / (1.0 + alpha*u*t)

	semantic := 1.0
	if !m.LastMentionedAt.IsZero() {
		d := c.decayDays(now.Sub(m.LastMentionedAt))
		semantic = 1.0 + semanticBoost*math.Exp(-semanticRate*d)
	}

	conflict := 1.0
	if m.Negated || m.Corrected {
		conflict = conflictFloor
		if !m.CorrectedAt.IsZero() {
			d := c.decayDays(now.Sub(m.CorrectedAt))
			conflict = conflictFloor + conflictRecovery*math.Exp(-conflictRate*d)
		}
	}

	importance, ok := importanceOf[m.Category]
	if !ok {
		importance = 1.0
	}

	n := rec.MentionsWithin(momentumWindow, now)
	momentum := 1.0 + momentumBoost*(1.0-math.Exp(-momentumRate*float64(n)))

	total := recency * semantic * conflict * importance * u * momentum
	total = math.Max(WeightFloor, math.Min(WeightCeil, total))

	return store.Factors{
		Recency:         recency,
		Semantic:        semantic,
		Conflict:        conflict,
		Importance:      importance,
		Personalization: u,
		Momentum:        momentum,
		Total:           total,
		ComputedAt:      now,
	}, nil
}

// naturalTier maps a clamped weight onto the fidelity ladder, ignoring
// freezes and sensitivity.
func naturalTier(w float64) store.Tier {
	switch {
	case w > tierFullAbove:
		return store.TierFull
	case w > tierSummaryAbove:
		return store.TierSummary
	case w > tierTagAbove:
		return store.TierTag
	case w > tierTraceAbove:
		return store.TierTrace
	default:
		return store.TierArchive
	}
}

// TierFor returns the tier rec should hold at weight w. Frozen records pin
// FULL. Sensitive records get a floor that rises with their level: level 3
// pins FULL, level 2 holds FULL while the weight would still rate SUMMARY,
// level 1 never drops below SUMMARY while the weight rates TAG or better.
func TierFor(rec *store.Record, w float64) store.Tier {
	if rec.Meta.Frozen {
		return store.TierFull
	}
	nat := naturalTier(w)
	if !rec.Meta.Sensitive {
		return nat
	}
	switch rec.Meta.SensitivityLevel {
	case 3:
		return store.TierFull
	case 2:
		if w > tierSummaryAbove {
			return store.TierFull
		}
		return higherOf(nat, store.TierSummary)
	case 1:
		if w > tierTagAbove {
			return higherOf(nat, store.TierSummary)
		}
		return higherOf(nat, store.TierTag)
	default:
		return nat
	}
}

func higherOf(a, b store.Tier) store.Tier {
	if a.Rank() >= b.Rank() {
		return a
	}
	return b
}

// UpgradeTier returns the tier a record may climb to after a mention of
// the given similarity. Promotion moves one step at a time: a near-exact
// match (>0.95) lifts any tier, a strong match (>0.90) only lifts records
// already compressed to TAG or below.
func UpgradeTier(current store.Tier, sim float64) store.Tier {
	if current == store.TierFull {
		return current
	}
	switch {
	case sim > 0.95:
		return stepUp(current)
	case sim > 0.90 && current.Rank() <= store.TierTag.Rank():
		return stepUp(current)
	}
	return current
}

func stepUp(t store.Tier) store.Tier {
	switch t {
	case store.TierArchive:
		return store.TierTrace
	case store.TierTrace:
		return store.TierTag
	case store.TierTag:
		return store.TierSummary
	case store.TierSummary:
		return store.TierFull
	}
	return t
}
