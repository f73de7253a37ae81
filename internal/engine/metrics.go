package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/engramdb/engram/internal/store"
)

// opCounters are process-lifetime operation totals, bumped by the engine
// as work happens.
type opCounters struct {
	ingests       atomic.Int64
	creates       atomic.Int64
	mentionMerges atomic.Int64
	reinforces    atomic.Int64
	negations     atomic.Int64
	compressions  atomic.Int64
	degraded      atomic.Int64
	batchMerges   atomic.Int64
	mergedAway    atomic.Int64
	softDeletes   atomic.Int64
	hardDeletes   atomic.Int64
}

// OpTotals is the exported view of the cumulative operation counters.
type OpTotals struct {
	Ingests       int64 `json:"ingests"`
	Creates       int64 `json:"creates"`
	MentionMerges int64 `json:"mention_merges"`
	Reinforces    int64 `json:"reinforces"`
	Negations     int64 `json:"negations"`
	Compressions  int64 `json:"compressions"`
	Degraded      int64 `json:"degraded_compressions"`
	BatchMerges   int64 `json:"batch_merges"`
	MergedAway    int64 `json:"records_merged_away"`
	SoftDeletes   int64 `json:"soft_deletes"`
	HardDeletes   int64 `json:"hard_deletes"`
}

func (c *opCounters) totals() OpTotals {
	return OpTotals{
		Ingests:       c.ingests.Load(),
		Creates:       c.creates.Load(),
		MentionMerges: c.mentionMerges.Load(),
		Reinforces:    c.reinforces.Load(),
		Negations:     c.negations.Load(),
		Compressions:  c.compressions.Load(),
		Degraded:      c.degraded.Load(),
		BatchMerges:   c.batchMerges.Load(),
		MergedAway:    c.mergedAway.Load(),
		SoftDeletes:   c.softDeletes.Load(),
		HardDeletes:   c.hardDeletes.Load(),
	}
}

// WeightDistribution summarizes the spread of last-computed weights across
// the live corpus. Buckets follow the tier thresholds.
type WeightDistribution struct {
	Min     float64        `json:"min"`
	Max     float64        `json:"max"`
	Mean    float64        `json:"mean"`
	Buckets map[string]int `json:"buckets"`
}

// Snapshot is one observation of corpus health, taken after a maintenance
// pass.
type Snapshot struct {
	TakenAt     time.Time              `json:"taken_at"`
	Pass        string                 `json:"pass,omitempty"`
	Stats       CycleStats             `json:"stats"`
	Total       int                    `json:"total_records"`
	Live        int                    `json:"live_records"`
	PerTier     map[store.Tier]int     `json:"per_tier"`
	PerCategory map[store.Category]int `json:"per_category"`
	Ops         OpTotals               `json:"ops"`
	Weights     WeightDistribution     `json:"weights"`
}

// Snapshot observes the corpus right now, attributing the observation to
// the named pass.
func (e *Engine) Snapshot(pass string, stats CycleStats) Snapshot {
	snap := Snapshot{
		TakenAt:     e.now(),
		Pass:        pass,
		Stats:       stats,
		PerTier:     make(map[store.Tier]int),
		PerCategory: make(map[store.Category]int),
		Ops:         e.ops.totals(),
		Weights: WeightDistribution{
			Min:     0,
			Buckets: make(map[string]int),
		},
	}

	var sum float64
	var weighted int
	for _, rec := range e.st.All() {
		snap.Total++
		if !rec.Live() {
			continue
		}
		snap.Live++
		snap.PerTier[rec.Meta.Tier]++
		snap.PerCategory[rec.Meta.Category]++

		f := rec.Meta.Factors
		if f.ComputedAt.IsZero() {
			continue
		}
		w := f.Total
		if weighted == 0 || w < snap.Weights.Min {
			snap.Weights.Min = w
		}
		if w > snap.Weights.Max {
			snap.Weights.Max = w
		}
		sum += w
		weighted++
		snap.Weights.Buckets[weightBucket(w)]++
	}
	if weighted > 0 {
		snap.Weights.Mean = sum / float64(weighted)
	}
	return snap
}

func weightBucket(w float64) string {
	switch {
	case w > tierFullAbove:
		return "full"
	case w > tierSummaryAbove:
		return "summary"
	case w > tierTagAbove:
		return "tag"
	case w > tierTraceAbove:
		return "trace"
	default:
		return "archive"
	}
}

// Collector keeps a rolling history of snapshots, oldest dropped first.
type Collector struct {
	mu   sync.Mutex
	max  int
	hist []Snapshot
}

// NewCollector builds a collector retaining at most max snapshots.
func NewCollector(max int) *Collector {
	if max <= 0 {
		max = 100
	}
	return &Collector{max: max}
}

// Add appends a snapshot, evicting the oldest beyond the cap.
func (c *Collector) Add(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hist = append(c.hist, s)
	if n := len(c.hist); n > c.max {
		c.hist = c.hist[n-c.max:]
	}
}

// History returns the retained snapshots, oldest first.
func (c *Collector) History() []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Snapshot(nil), c.hist...)
}

// Latest returns the most recent snapshot, if any.
func (c *Collector) Latest() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.hist) == 0 {
		return Snapshot{}, false
	}
	return c.hist[len(c.hist)-1], true
}
