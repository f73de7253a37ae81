package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engramdb/engram/internal/store"
)

func softDelete(t *testing.T, e *Engine, id string) {
	t.Helper()
	_, err := e.st.Update(id, func(r *store.Record) error {
		r.Meta.Deleted = true
		r.Meta.DeletedAt = e.now()
		return nil
	})
	require.NoError(t, err)
}

func TestRunCleanupGracePeriod(t *testing.T) {
	e, c := testEngine(t)
	seedRecord(t, e, "rec-old", "retired a month ago", store.CategoryFact)
	seedRecord(t, e, "rec-recent", "retired two days later", store.CategoryFact)

	softDelete(t, e, "rec-old")
	c.Advance(2 * day)
	softDelete(t, e, "rec-recent")

	c.Advance(29 * day)
	stats := e.RunCleanup(context.Background())

	assert.Equal(t, 2, stats.Examined)
	assert.Equal(t, 1, stats.Changed)

	_, err := e.st.Get("rec-old")
	require.ErrorIs(t, err, store.ErrNotFound)

	recent, err := e.st.Get("rec-recent")
	require.NoError(t, err)
	assert.True(t, recent.Meta.Deleted, "still waiting out the grace period")
}

func TestRunCleanupBottomedOutRecords(t *testing.T) {
	e, c := testEngine(t)
	seedRecord(t, e, "rec-junk", "parking spot for one tuesday", store.CategoryTemporary)
	seedRecord(t, e, "rec-faded", "another scrap of the same week", store.CategoryTemporary)
	seedRecord(t, e, "rec-core", "grew up on the coast", store.CategoryIdentity)
	_, err := e.st.Update("rec-junk", func(r *store.Record) error {
		r.Meta.Negated = true
		return nil
	})
	require.NoError(t, err)

	c.Advance(1825 * day)
	stats := e.RunCleanup(context.Background())
	assert.Equal(t, 1, stats.Changed)

	_, err = e.st.Get("rec-junk")
	require.ErrorIs(t, err, store.ErrNotFound)

	// Un-negated temporary content decays hard but floats above the floor.
	faded, err := e.st.Get("rec-faded")
	require.NoError(t, err)
	assert.True(t, faded.Live())

	_, err = e.st.Get("rec-core")
	require.NoError(t, err)
}

func TestRunCleanupSparesProtected(t *testing.T) {
	e, c := testEngine(t)
	seedRecord(t, e, "rec-frozen", "one tuesday parking spot", store.CategoryTemporary)
	seedRecord(t, e, "rec-secret", "another tuesday parking spot", store.CategoryTemporary)
	_, err := e.st.Update("rec-frozen", func(r *store.Record) error {
		r.Meta.Frozen = true
		r.Meta.Negated = true
		return nil
	})
	require.NoError(t, err)
	_, err = e.st.Update("rec-secret", func(r *store.Record) error {
		r.Meta.Sensitive = true
		r.Meta.SensitivityLevel = 1
		r.Meta.Negated = true
		return nil
	})
	require.NoError(t, err)

	c.Advance(1825 * day)
	stats := e.RunCleanup(context.Background())

	assert.Equal(t, 0, stats.Changed)
	assert.Equal(t, 2, e.st.Len())
}

// A record at the weight floor survives until it is also past the
// retention horizon.
func TestRunCleanupAgeGate(t *testing.T) {
	e, c := testEngine(t)
	rec := &store.Record{
		ID:    "rec-young",
		Owner: testOwner,
		Text:  "imported from an older archive",
		Meta: store.Metadata{
			Category:        store.CategoryTemporary,
			Tier:            store.TierFull,
			CreatedAt:       c.Now().Add(-100 * day),
			LastActivatedAt: c.Now().Add(-2000 * day),
			Negated:         true,
		},
	}
	require.NoError(t, e.st.Put(rec))

	f, err := e.Weigh("rec-young")
	require.NoError(t, err)
	require.LessOrEqual(t, f.Total, e.cfg.CleanupFloor)

	stats := e.RunCleanup(context.Background())
	assert.Equal(t, 0, stats.Changed)
	assert.Equal(t, 1, e.st.Len())
}

func TestRunCleanupCountsWeighFailures(t *testing.T) {
	e, _ := testEngine(t)
	bad := &store.Record{
		ID:    "rec-bad",
		Owner: testOwner,
		Text:  "corrupted import",
		Meta:  store.Metadata{Category: store.CategoryFact, Tier: store.TierFull},
	}
	require.NoError(t, e.st.Put(bad))

	stats := e.RunCleanup(context.Background())
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 0, stats.Changed)
	assert.Equal(t, 1, e.st.Len())
}
