package store

import (
	"errors"
	"testing"
	"time"
)

var testOwner = Owner{Device: "phone-1", User: "user-1"}

func mustRecord(t *testing.T, id, text string, cat Category, now time.Time) *Record {
	t.Helper()
	r, err := NewRecord(id, testOwner, text, cat, now)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	return r
}

func TestNewRecordDefaults(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := mustRecord(t, "rec-1", "drinks oat-milk lattes", CategoryStablePreference, now)

	if r.Meta.Tier != TierFull {
		t.Errorf("tier = %q, want %q", r.Meta.Tier, TierFull)
	}
	if !r.Meta.CreatedAt.Equal(now) || !r.Meta.LastActivatedAt.Equal(now) {
		t.Errorf("timestamps = %v/%v, want both %v", r.Meta.CreatedAt, r.Meta.LastActivatedAt, now)
	}
	if len(r.Meta.Modalities) != 1 || r.Meta.Modalities[0] != ModalityText {
		t.Errorf("modalities = %v, want [text]", r.Meta.Modalities)
	}
	if !r.Live() {
		t.Error("new record should be live")
	}
}

func TestNewRecordValidation(t *testing.T) {
	now := time.Now()

	if _, err := NewRecord("", testOwner, "x", CategoryFact, now); !errors.Is(err, ErrInvalid) {
		t.Errorf("empty id: err = %v, want ErrInvalid", err)
	}
	if _, err := NewRecord("rec-1", Owner{Device: "d"}, "x", CategoryFact, now); !errors.Is(err, ErrInvalid) {
		t.Errorf("incomplete owner: err = %v, want ErrInvalid", err)
	}
	if _, err := NewRecord("rec-1", testOwner, "x", Category("mood"), now); !errors.Is(err, ErrInvalid) {
		t.Errorf("bad category: err = %v, want ErrInvalid", err)
	}
}

func TestRegisterMention(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := mustRecord(t, "rec-1", "x", CategoryFact, now)

	r.RegisterMention(now)
	r.RegisterMention(now.Add(1 * time.Hour))
	r.RegisterMention(now.Add(2 * time.Hour))

	if r.Meta.MentionCount != 3 {
		t.Errorf("mention_count = %d, want 3", r.Meta.MentionCount)
	}
	if !r.Meta.LastMentionedAt.Equal(now.Add(2 * time.Hour)) {
		t.Errorf("last_mentioned_at = %v, want %v", r.Meta.LastMentionedAt, now.Add(2*time.Hour))
	}
	if got := r.MentionsWithin(24*time.Hour, now.Add(2*time.Hour)); got != 3 {
		t.Errorf("MentionsWithin(24h) = %d, want 3", got)
	}

	// A mention eight days later prunes the earlier window entries.
	later := now.Add(8 * 24 * time.Hour)
	r.RegisterMention(later)
	if len(r.Meta.RecentMentions) != 1 {
		t.Errorf("recent window = %d entries, want 1 after prune", len(r.Meta.RecentMentions))
	}
	if r.Meta.MentionCount != 4 {
		t.Errorf("mention_count = %d, want 4 (counter never prunes)", r.Meta.MentionCount)
	}
}

func TestRegisterMentionCapsWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := mustRecord(t, "rec-1", "x", CategoryFact, now)

	for i := 0; i < maxRecentMentions+20; i++ {
		r.RegisterMention(now.Add(time.Duration(i) * time.Second))
	}
	if len(r.Meta.RecentMentions) != maxRecentMentions {
		t.Errorf("recent window = %d entries, want cap %d", len(r.Meta.RecentMentions), maxRecentMentions)
	}
}

func TestMentionsWithinBounds(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := mustRecord(t, "rec-1", "x", CategoryFact, now)

	r.Meta.RecentMentions = []time.Time{
		now.Add(-25 * time.Hour), // outside
		now.Add(-24 * time.Hour), // boundary, inside
		now.Add(-1 * time.Hour),  // inside
		now.Add(1 * time.Hour),   // future, outside
	}
	if got := r.MentionsWithin(24*time.Hour, now); got != 2 {
		t.Errorf("MentionsWithin = %d, want 2", got)
	}
}

func TestLogCaps(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := mustRecord(t, "rec-1", "x", CategoryFact, now)

	for i := 0; i < maxLogEntries+10; i++ {
		at := now.Add(time.Duration(i) * time.Minute)
		r.AppendWeightChange(WeightChange{At: at, From: 1, To: 0.9, Reason: "decay"})
		r.AppendCompression(CompressionEvent{At: at, From: TierFull, To: TierSummary})
	}

	if len(r.Meta.WeightLog) != maxLogEntries {
		t.Errorf("weight log = %d entries, want %d", len(r.Meta.WeightLog), maxLogEntries)
	}
	if len(r.Meta.CompressionLog) != maxLogEntries {
		t.Errorf("compression log = %d entries, want %d", len(r.Meta.CompressionLog), maxLogEntries)
	}

	// Oldest entries were dropped, newest kept, order preserved.
	first := r.Meta.WeightLog[0].At
	last := r.Meta.WeightLog[len(r.Meta.WeightLog)-1].At
	if !first.Equal(now.Add(10 * time.Minute)) {
		t.Errorf("oldest kept = %v, want %v", first, now.Add(10*time.Minute))
	}
	if !last.Equal(now.Add(time.Duration(maxLogEntries+9) * time.Minute)) {
		t.Errorf("newest kept = %v, want %v", last, now.Add(time.Duration(maxLogEntries+9)*time.Minute))
	}
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := mustRecord(t, "rec-1", "x", CategoryFact, now)
	r.Tags = []string{"coffee"}
	r.Vectors = map[Modality][]float32{ModalityText: {0.1, 0.2}}
	r.Meta.MergedFrom = []string{"a", "b"}
	r.Meta.WeightLog = []WeightChange{{At: now, From: 1, To: 0.9}}

	c := r.Clone()
	c.Tags[0] = "tea"
	c.Vectors[ModalityText][0] = 9
	c.Meta.MergedFrom[0] = "z"
	c.Meta.WeightLog[0].To = 0

	if r.Tags[0] != "coffee" {
		t.Error("clone shares Tags backing array")
	}
	if r.Vectors[ModalityText][0] != 0.1 {
		t.Error("clone shares vector backing array")
	}
	if r.Meta.MergedFrom[0] != "a" {
		t.Error("clone shares MergedFrom backing array")
	}
	if r.Meta.WeightLog[0].To != 0.9 {
		t.Error("clone shares WeightLog backing array")
	}
}

func TestAddModality(t *testing.T) {
	now := time.Now()
	r := mustRecord(t, "rec-1", "x", CategoryFact, now)

	r.AddModality(ModalityImage)
	r.AddModality(ModalityImage)
	r.AddModality(ModalityText)

	if len(r.Meta.Modalities) != 2 {
		t.Errorf("modalities = %v, want [text image]", r.Meta.Modalities)
	}
}

func TestParseEnums(t *testing.T) {
	if tier, err := ParseTier(" Full "); err != nil || tier != TierFull {
		t.Errorf("ParseTier = %q, %v", tier, err)
	}
	if _, err := ParseTier("lossless"); !errors.Is(err, ErrInvalid) {
		t.Errorf("ParseTier bad: err = %v, want ErrInvalid", err)
	}
	if cat, err := ParseCategory("IDENTITY"); err != nil || cat != CategoryIdentity {
		t.Errorf("ParseCategory = %q, %v", cat, err)
	}
	if _, err := ParseCategory("vibe"); !errors.Is(err, ErrInvalid) {
		t.Errorf("ParseCategory bad: err = %v, want ErrInvalid", err)
	}
}

func TestOwnerKeyRoundTrip(t *testing.T) {
	o := Owner{Device: "tablet-7", User: "ada"}
	parsed, err := ParseOwnerKey(o.Key())
	if err != nil {
		t.Fatalf("ParseOwnerKey: %v", err)
	}
	if parsed != o {
		t.Errorf("ParseOwnerKey = %+v, want %+v", parsed, o)
	}

	if _, err := ParseOwnerKey("nodivider"); !errors.Is(err, ErrInvalid) {
		t.Errorf("bad key: err = %v, want ErrInvalid", err)
	}
}

func TestTierRankOrder(t *testing.T) {
	order := Tiers()
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() <= order[i].Rank() {
			t.Errorf("rank(%s)=%d not above rank(%s)=%d",
				order[i-1], order[i-1].Rank(), order[i], order[i].Rank())
		}
	}
	if Tier("lossless").Rank() != -1 {
		t.Error("unknown tier should rank -1")
	}
}
