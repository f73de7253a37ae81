package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engramdb/engram/internal/store"
)

func TestDecideStaticTriggers(t *testing.T) {
	cfg := DefaultConfig()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := newWeighted(t, store.CategoryFact, t0)

	cases := []struct {
		stim Stimulus
		want Action
	}{
		{Stimulus{Trigger: TriggerManualFreeze}, ActionFreeze},
		{Stimulus{Trigger: TriggerManualDelete}, ActionDelete},
		{Stimulus{Trigger: TriggerUserNegation}, ActionMarkNegated},
		{Stimulus{Trigger: TriggerCrossModalUpdate, Modality: store.ModalityImage}, ActionMerge},
	}
	for _, tc := range cases {
		dec, err := cfg.Decide(rec, tc.stim, t0)
		require.NoError(t, err, "trigger %s", tc.stim.Trigger)
		assert.Equal(t, tc.want, dec.Action, "trigger %s", tc.stim.Trigger)
		assert.False(t, dec.Refresh, "trigger %s", tc.stim.Trigger)
		assert.NotEmpty(t, dec.Reason, "trigger %s", tc.stim.Trigger)
	}
}

func TestDecideMentionBands(t *testing.T) {
	cfg := DefaultConfig()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := newWeighted(t, store.CategoryFact, t0)

	cases := []struct {
		sim     float64
		want    Action
		link    bool
		refresh bool
	}{
		{0.99, ActionMerge, false, true},
		{0.85, ActionMerge, false, true},
		{0.84, ActionCreateNew, true, false},
		{0.60, ActionCreateNew, true, false},
		{0.59, ActionCreateNew, false, false},
		{0.10, ActionCreateNew, false, false},
	}
	for _, tc := range cases {
		dec, err := cfg.Decide(rec, Stimulus{Trigger: TriggerUserMention, Similarity: tc.sim}, t0)
		require.NoError(t, err, "sim %v", tc.sim)
		assert.Equal(t, tc.want, dec.Action, "sim %v", tc.sim)
		assert.Equal(t, tc.link, dec.Link, "sim %v", tc.sim)
		assert.Equal(t, tc.refresh, dec.Refresh, "sim %v", tc.sim)
	}
}

func TestDecideFrequentReinforce(t *testing.T) {
	cfg := DefaultConfig()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := newWeighted(t, store.CategoryEvent, t0)

	stim := Stimulus{Trigger: TriggerFrequentReinforce}

	// Two mentions in the window: reinforced but kept.
	rec.RegisterMention(t0.Add(1 * time.Hour))
	rec.RegisterMention(t0.Add(2 * time.Hour))
	dec, err := cfg.Decide(rec, stim, t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ActionKeep, dec.Action)
	assert.True(t, dec.Refresh)

	// The third mention crosses the threshold.
	rec.RegisterMention(t0.Add(3 * time.Hour))
	dec, err = cfg.Decide(rec, stim, t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ActionMerge, dec.Action)
	assert.True(t, dec.Refresh)

	// Mentions age out of the window.
	dec, err = cfg.Decide(rec, stim, t0.Add(3*day))
	require.NoError(t, err)
	assert.Equal(t, ActionKeep, dec.Action)
}

func TestDecidePassiveDecay(t *testing.T) {
	cfg := DefaultConfig()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("fresh record holds its tier", func(t *testing.T) {
		rec := newWeighted(t, store.CategoryFact, t0)
		dec, err := cfg.Decide(rec, Stimulus{Trigger: TriggerPassiveDecay}, t0)
		require.NoError(t, err)
		assert.Equal(t, ActionKeep, dec.Action)
	})

	t.Run("decayed record compresses to its rated tier", func(t *testing.T) {
		rec := newWeighted(t, store.CategoryFact, t0)
		dec, err := cfg.Decide(rec, Stimulus{Trigger: TriggerPassiveDecay}, t0.Add(100*day))
		require.NoError(t, err)
		assert.Equal(t, ActionCompress, dec.Action)
		assert.Equal(t, store.TierSummary, dec.Target)
		assert.False(t, dec.Refresh, "decay must not touch the activation clock")
	})

	t.Run("already compressed record keeps", func(t *testing.T) {
		rec := newWeighted(t, store.CategoryFact, t0)
		rec.Meta.Tier = store.TierSummary
		dec, err := cfg.Decide(rec, Stimulus{Trigger: TriggerPassiveDecay}, t0.Add(100*day))
		require.NoError(t, err)
		assert.Equal(t, ActionKeep, dec.Action)
	})

	t.Run("decay never promotes", func(t *testing.T) {
		rec := newWeighted(t, store.CategoryFact, t0)
		rec.Meta.Tier = store.TierTrace
		dec, err := cfg.Decide(rec, Stimulus{Trigger: TriggerPassiveDecay}, t0)
		require.NoError(t, err)
		assert.Equal(t, ActionKeep, dec.Action)
	})

	t.Run("frozen record never compresses", func(t *testing.T) {
		rec := newWeighted(t, store.CategoryTemporary, t0)
		rec.Meta.Frozen = true
		dec, err := cfg.Decide(rec, Stimulus{Trigger: TriggerPassiveDecay}, t0.Add(400*day))
		require.NoError(t, err)
		assert.Equal(t, ActionKeep, dec.Action)
	})

	t.Run("missing activation timestamp is an error", func(t *testing.T) {
		rec := &store.Record{ID: "x", Meta: store.Metadata{Category: store.CategoryFact, Tier: store.TierFull}}
		_, err := cfg.Decide(rec, Stimulus{Trigger: TriggerPassiveDecay}, t0)
		require.ErrorIs(t, err, ErrInvalidTimestamp)
	})
}

func TestDecideUnknownTrigger(t *testing.T) {
	cfg := DefaultConfig()
	rec := newWeighted(t, store.CategoryFact, time.Now())

	_, err := cfg.Decide(rec, Stimulus{Trigger: "mood_swing"}, time.Now())
	require.ErrorIs(t, err, ErrUnknownTrigger)
}

func TestParseTrigger(t *testing.T) {
	for _, s := range []string{
		"manual_freeze", "manual_delete", "user_negation",
		"frequent_reinforce", "user_mention", "passive_decay",
		"cross_modal_update",
	} {
		got, err := ParseTrigger(s)
		require.NoError(t, err, s)
		assert.Equal(t, Trigger(s), got)
	}

	_, err := ParseTrigger("mood_swing")
	require.ErrorIs(t, err, ErrUnknownTrigger)
}
