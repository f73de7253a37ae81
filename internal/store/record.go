// Package store holds the record model and the in-memory corpus that the
// retention engine operates on.
package store

import (
	"fmt"
	"strings"
	"time"
)

// Tier is the content fidelity remaining for a record. Records fade from
// FULL down to ARCHIVE as their retention weight decays.
type Tier string

const (
	TierFull    Tier = "full"
	TierSummary Tier = "summary"
	TierTag     Tier = "tag"
	TierTrace   Tier = "trace"
	TierArchive Tier = "archive"
)

// Rank orders tiers by fidelity: archive=0 ... full=4. Used to decide
// whether a transition is an upgrade or a downgrade.
func (t Tier) Rank() int {
	switch t {
	case TierFull:
		return 4
	case TierSummary:
		return 3
	case TierTag:
		return 2
	case TierTrace:
		return 1
	case TierArchive:
		return 0
	}
	return -1
}

func (t Tier) Valid() bool { return t.Rank() >= 0 }

// ParseTier validates a wire-format tier string.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown tier %q", ErrInvalid, s)
	}
	return t, nil
}

// Tiers returns all tiers from highest fidelity to lowest.
func Tiers() []Tier {
	return []Tier{TierFull, TierSummary, TierTag, TierTrace, TierArchive}
}

// Category classifies what kind of thing a record remembers. The category
// drives both the decay rate and the importance multiplier.
type Category string

const (
	CategoryIdentity         Category = "identity"
	CategoryStablePreference Category = "stable_preference"
	CategorySkill            Category = "skill"
	CategoryFact             Category = "fact"
	CategoryShortPreference  Category = "short_preference"
	CategoryEvent            Category = "event"
	CategoryTemporary        Category = "temporary"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryIdentity, CategoryStablePreference, CategorySkill,
		CategoryFact, CategoryShortPreference, CategoryEvent, CategoryTemporary:
		return true
	}
	return false
}

// ParseCategory validates a wire-format category string.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalid, s)
	}
	return c, nil
}

// Categories returns all categories, slowest-decaying first.
func Categories() []Category {
	return []Category{
		CategoryIdentity, CategoryStablePreference, CategorySkill,
		CategoryFact, CategoryShortPreference, CategoryEvent, CategoryTemporary,
	}
}

// Modality tags a content channel attached to a record.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
	ModalityAudio Modality = "audio"
	ModalityVideo Modality = "video"
)

func (m Modality) Valid() bool {
	switch m {
	case ModalityText, ModalityImage, ModalityAudio, ModalityVideo:
		return true
	}
	return false
}

// Owner is the (device, user) pair scoping a record's visibility.
type Owner struct {
	Device string `json:"device"`
	User   string `json:"user"`
}

// Key returns the canonical "device:user" index key.
func (o Owner) Key() string { return o.Device + ":" + o.User }

// ParseOwnerKey splits a "device:user" key back into an Owner.
func ParseOwnerKey(key string) (Owner, error) {
	device, user, ok := strings.Cut(key, ":")
	if !ok || device == "" || user == "" {
		return Owner{}, fmt.Errorf("%w: owner key %q (want device:user)", ErrInvalid, key)
	}
	return Owner{Device: device, User: user}, nil
}

// Factors is the last computed six-factor breakdown for a record.
// Total is the clamped product of the other six.
type Factors struct {
	Recency         float64   `json:"recency"`
	Semantic        float64   `json:"semantic"`
	Conflict        float64   `json:"conflict"`
	Importance      float64   `json:"importance"`
	Personalization float64   `json:"personalization"`
	Momentum        float64   `json:"momentum"`
	Total           float64   `json:"total"`
	ComputedAt      time.Time `json:"computed_at"`
}

// WeightChange is one entry in a record's capped weight-change log.
type WeightChange struct {
	At     time.Time `json:"at"`
	From   float64   `json:"from"`
	To     float64   `json:"to"`
	Reason string    `json:"reason"`
}

// CompressionEvent is one entry in a record's capped compression history.
// Degraded marks a transition where the summarizer failed and the original
// text was carried into the lower tier unchanged.
type CompressionEvent struct {
	At       time.Time `json:"at"`
	From     Tier      `json:"from"`
	To       Tier      `json:"to"`
	Degraded bool      `json:"degraded,omitempty"`
}

// Correction links a negated record to the record that superseded it.
type Correction struct {
	At       time.Time `json:"at"`
	RecordID string    `json:"record_id"`
}

// Explainability logs keep only the most recent entries.
const maxLogEntries = 50

// recentMentionHorizon bounds the rolling mention window kept on a record.
// Momentum only ever looks 24h back, so a week of history is plenty.
const recentMentionHorizon = 7 * 24 * time.Hour

const maxRecentMentions = 100

// Metadata is the retention state attached to every record.
//
// CreatedAt is immutable provenance; LastActivatedAt moves every time the
// record is explicitly touched. Decay is measured from LastActivatedAt,
// age from CreatedAt.
type Metadata struct {
	CreatedAt       time.Time `json:"created_at"`
	LastActivatedAt time.Time `json:"last_activated_at"`

	Tier     Tier     `json:"tier"`
	Category Category `json:"category"`

	Factors Factors `json:"factors"`

	// Behavioral counters.
	MentionCount    int         `json:"mention_count"`
	ReinforceCount  int         `json:"reinforce_count"`
	RecentMentions  []time.Time `json:"recent_mentions,omitempty"`
	LastMentionedAt time.Time   `json:"last_mentioned_at,omitzero"`

	// Conflict state. CorrectedAt stays zero until a correction lands;
	// the conflict penalty bottoms out at 0.3 until then.
	Negated     bool         `json:"negated"`
	Corrected   bool         `json:"corrected"`
	CorrectedAt time.Time    `json:"corrected_at,omitzero"`
	Corrections []Correction `json:"corrections,omitempty"`

	// Provenance. Never dropped by a lossy transformation.
	SourceIDs      []string `json:"source_ids,omitempty"`
	MergedFrom     []string `json:"merged_from,omitempty"`
	CompressedFrom []string `json:"compressed_from,omitempty"`
	ParentID       string   `json:"parent_id,omitempty"`
	ChildIDs       []string `json:"child_ids,omitempty"`

	Modalities []Modality `json:"modalities"`

	// Sensitivity raises the compression bar; level 3 pins FULL.
	Sensitive        bool `json:"sensitive"`
	SensitivityLevel int  `json:"sensitivity_level"`
	Encrypted        bool `json:"encrypted"`

	// Lifecycle flags. Soft-deleted records linger for a grace period
	// before the cleanup cycle removes them for good.
	Deleted   bool      `json:"deleted"`
	DeletedAt time.Time `json:"deleted_at,omitzero"`
	Frozen    bool      `json:"frozen"`

	// Explainability logs, capped at maxLogEntries each.
	WeightLog      []WeightChange     `json:"weight_log,omitempty"`
	CompressionLog []CompressionEvent `json:"compression_log,omitempty"`

	// Group sharing.
	GroupID    string   `json:"group_id,omitempty"`
	SharedWith []string `json:"shared_with,omitempty"`
}

// Record is one remembered item: content, owner scope, and retention state.
type Record struct {
	ID        string                 `json:"id"`
	Owner     Owner                  `json:"owner"`
	Text      string                 `json:"text"`
	MediaRefs []string               `json:"media_refs,omitempty"`
	Vectors   map[Modality][]float32 `json:"vectors,omitempty"`
	Tags      []string               `json:"tags,omitempty"`
	Keywords  []string               `json:"keywords,omitempty"`
	Entities  []string               `json:"entities,omitempty"`
	Meta      Metadata               `json:"meta"`
}

// NewRecord builds a fresh FULL-tier record. The category must be valid;
// everything else defaults.
func NewRecord(id string, owner Owner, text string, category Category, now time.Time) (*Record, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalid)
	}
	if owner.Device == "" || owner.User == "" {
		return nil, fmt.Errorf("%w: incomplete owner %q", ErrInvalid, owner.Key())
	}
	if !category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalid, category)
	}
	return &Record{
		ID:    id,
		Owner: owner,
		Text:  text,
		Meta: Metadata{
			CreatedAt:       now,
			LastActivatedAt: now,
			Tier:            TierFull,
			Category:        category,
			Modalities:      []Modality{ModalityText},
		},
	}, nil
}

// Live reports whether the record is visible to normal processing.
func (r *Record) Live() bool { return !r.Meta.Deleted }

// RegisterMention records an explicit mention at the given instant:
// bumps the counter, refreshes the mention timestamp, and appends to the
// rolling window (pruned to the horizon, capped in size).
func (r *Record) RegisterMention(at time.Time) {
	r.Meta.MentionCount++
	if at.After(r.Meta.LastMentionedAt) {
		r.Meta.LastMentionedAt = at
	}
	r.Meta.RecentMentions = append(r.Meta.RecentMentions, at)

	cutoff := at.Add(-recentMentionHorizon)
	kept := r.Meta.RecentMentions[:0]
	for _, t := range r.Meta.RecentMentions {
		if !t.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	if n := len(kept); n > maxRecentMentions {
		kept = kept[n-maxRecentMentions:]
	}
	r.Meta.RecentMentions = kept
}

// MentionsWithin counts mentions inside the window ending at now.
func (r *Record) MentionsWithin(window time.Duration, now time.Time) int {
	cutoff := now.Add(-window)
	n := 0
	for _, t := range r.Meta.RecentMentions {
		if !t.Before(cutoff) && !t.After(now) {
			n++
		}
	}
	return n
}

// AppendWeightChange appends to the weight-change log, dropping the oldest
// entries beyond the cap.
func (r *Record) AppendWeightChange(wc WeightChange) {
	r.Meta.WeightLog = append(r.Meta.WeightLog, wc)
	if n := len(r.Meta.WeightLog); n > maxLogEntries {
		r.Meta.WeightLog = r.Meta.WeightLog[n-maxLogEntries:]
	}
}

// AppendCompression appends to the compression history, dropping the oldest
// entries beyond the cap.
func (r *Record) AppendCompression(ev CompressionEvent) {
	r.Meta.CompressionLog = append(r.Meta.CompressionLog, ev)
	if n := len(r.Meta.CompressionLog); n > maxLogEntries {
		r.Meta.CompressionLog = r.Meta.CompressionLog[n-maxLogEntries:]
	}
}

// Clone returns a deep copy. The store hands out and accepts only copies,
// so callers never hold aliases into store-owned memory.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.MediaRefs = cloneStrings(r.MediaRefs)
	c.Tags = cloneStrings(r.Tags)
	c.Keywords = cloneStrings(r.Keywords)
	c.Entities = cloneStrings(r.Entities)
	if r.Vectors != nil {
		c.Vectors = make(map[Modality][]float32, len(r.Vectors))
		for k, v := range r.Vectors {
			vv := make([]float32, len(v))
			copy(vv, v)
			c.Vectors[k] = vv
		}
	}
	c.Meta.RecentMentions = cloneTimes(r.Meta.RecentMentions)
	c.Meta.Corrections = append([]Correction(nil), r.Meta.Corrections...)
	c.Meta.SourceIDs = cloneStrings(r.Meta.SourceIDs)
	c.Meta.MergedFrom = cloneStrings(r.Meta.MergedFrom)
	c.Meta.CompressedFrom = cloneStrings(r.Meta.CompressedFrom)
	c.Meta.ChildIDs = cloneStrings(r.Meta.ChildIDs)
	c.Meta.Modalities = append([]Modality(nil), r.Meta.Modalities...)
	c.Meta.WeightLog = append([]WeightChange(nil), r.Meta.WeightLog...)
	c.Meta.CompressionLog = append([]CompressionEvent(nil), r.Meta.CompressionLog...)
	c.Meta.SharedWith = cloneStrings(r.Meta.SharedWith)
	return &c
}

// AddModality appends a modality if not already present.
func (r *Record) AddModality(m Modality) {
	for _, have := range r.Meta.Modalities {
		if have == m {
			return
		}
	}
	r.Meta.Modalities = append(r.Meta.Modalities, m)
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func cloneTimes(s []time.Time) []time.Time {
	if s == nil {
		return nil
	}
	return append([]time.Time(nil), s...)
}
