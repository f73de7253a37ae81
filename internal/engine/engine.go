package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/engramdb/engram/internal/similarity"
	"github.com/engramdb/engram/internal/store"
	"github.com/engramdb/engram/internal/summary"
)

// Engine applies retention decisions to a store. All mutation funnels
// through here; the store itself only guards against torn writes.
type Engine struct {
	st   *store.Store
	cfg  Config
	retr RetrievalConfig
	sim  similarity.Provider
	sum  summary.Summarizer
	log  *slog.Logger
	now  func() time.Time

	ops opCounters
}

// Option configures an Engine.
type Option func(*Engine)

// WithSimilarity swaps the similarity backend.
func WithSimilarity(p similarity.Provider) Option {
	return func(e *Engine) { e.sim = p }
}

// WithSummarizer swaps the summarizer backend.
func WithSummarizer(s summary.Summarizer) Option {
	return func(e *Engine) { e.sum = s }
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock replaces the time source, so tests can move time by hand.
func WithClock(fn func() time.Time) Option {
	return func(e *Engine) {
		if fn != nil {
			e.now = fn
		}
	}
}

// WithRetrieval tunes the retriever.
func WithRetrieval(rc RetrievalConfig) Option {
	return func(e *Engine) { e.retr = rc }
}

// New assembles an engine over st. Collaborators default to the in-process
// implementations: lexical token overlap for similarity and the extractive
// summarizer.
func New(st *store.Store, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		st:   st,
		cfg:  cfg,
		retr: DefaultRetrievalConfig(),
		sim:  similarity.NewLexical(),
		sum:  summary.NewExtractive(),
		log:  slog.New(slog.DiscardHandler),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store exposes the underlying record store.
func (e *Engine) Store() *store.Store { return e.st }

// Config returns the retention tuning in effect.
func (e *Engine) Config() Config { return e.cfg }

// Weigh returns the current six-factor breakdown for a record without
// mutating anything.
func (e *Engine) Weigh(id string) (store.Factors, error) {
	rec, err := e.st.Get(id)
	if err != nil {
		return store.Factors{}, err
	}
	return e.cfg.Weight(rec, e.now())
}

// IngestRequest is new content entering the corpus.
type IngestRequest struct {
	Owner    store.Owner
	Text     string
	Category store.Category
	Modality store.Modality // defaults to text
	Tags     []string
	MediaRef string
	GroupID  string
}

// IngestResult reports how new content was routed: folded into an existing
// record, created as a linked child, or created independently.
type IngestResult struct {
	Record     *store.Record `json:"record"`
	Decision   Decision      `json:"decision"`
	MatchID    string        `json:"match_id,omitempty"`
	Similarity float64       `json:"similarity,omitempty"`
	Created    bool          `json:"created"`
}

// Ingest routes new content through the mention branch of the decision
// table, against the owner's best-matching live record.
func (e *Engine) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("ingest: %w: empty text", store.ErrInvalid)
	}
	if req.Modality == "" {
		req.Modality = store.ModalityText
	}
	if !req.Modality.Valid() {
		return nil, fmt.Errorf("ingest: %w: unknown modality %q", store.ErrInvalid, req.Modality)
	}
	now := e.now()
	e.ops.ingests.Add(1)

	match, sim, err := e.bestMatch(ctx, req.Owner, req.Text)
	if err != nil {
		return nil, err
	}
	if match == nil {
		rec, err := e.createRecord(req, "", now)
		if err != nil {
			return nil, err
		}
		e.log.Debug("ingest: first record for owner", "owner", req.Owner.Key(), "id", rec.ID)
		return &IngestResult{
			Record:   rec,
			Decision: Decision{Action: ActionCreateNew, Reason: "no prior records for owner"},
			Created:  true,
		}, nil
	}

	dec, err := e.cfg.Decide(match, Stimulus{Trigger: TriggerUserMention, Similarity: sim}, now)
	if err != nil {
		return nil, err
	}

	switch dec.Action {
	case ActionMerge:
		rec, err := e.foldMention(match.ID, sim, now, dec.Reason)
		if err != nil {
			return nil, err
		}
		return &IngestResult{Record: rec, Decision: dec, MatchID: match.ID, Similarity: sim}, nil

	case ActionCreateNew:
		parent := ""
		if dec.Link {
			parent = match.ID
		}
		rec, err := e.createRecord(req, parent, now)
		if err != nil {
			return nil, err
		}
		if dec.Link {
			if _, err := e.st.Update(match.ID, func(r *store.Record) error {
				r.Meta.ChildIDs = append(r.Meta.ChildIDs, rec.ID)
				return nil
			}); err != nil {
				return nil, fmt.Errorf("link to %s: %w", match.ID, err)
			}
		}
		return &IngestResult{Record: rec, Decision: dec, MatchID: match.ID, Similarity: sim, Created: true}, nil
	}

	return nil, fmt.Errorf("ingest: unexpected action %q for mention", dec.Action)
}

// bestMatch scans the owner's live records for the closest text match.
// Returns nil with no error when the owner has no live records.
func (e *Engine) bestMatch(ctx context.Context, owner store.Owner, text string) (*store.Record, float64, error) {
	var best *store.Record
	bestScore := -1.0
	for _, rec := range e.st.ByOwner(owner) {
		if !rec.Live() {
			continue
		}
		score, err := e.sim.Score(ctx, text, rec.Text)
		if err != nil {
			return nil, 0, &CollaboratorError{Op: "similarity score", Err: err}
		}
		if score > bestScore {
			best, bestScore = rec, score
		}
	}
	if best == nil {
		return nil, 0, nil
	}
	return best, bestScore, nil
}

func (e *Engine) createRecord(req IngestRequest, parentID string, now time.Time) (*store.Record, error) {
	rec, err := store.NewRecord(e.st.NewID(), req.Owner, req.Text, req.Category, now)
	if err != nil {
		return nil, err
	}
	rec.Tags = append(rec.Tags, req.Tags...)
	rec.Meta.ParentID = parentID
	rec.Meta.GroupID = req.GroupID
	if req.Modality != store.ModalityText {
		rec.AddModality(req.Modality)
		if req.MediaRef != "" {
			rec.MediaRefs = append(rec.MediaRefs, req.MediaRef)
		}
	}
	f, err := e.cfg.Weight(rec, now)
	if err != nil {
		return nil, err
	}
	rec.Meta.Factors = f
	if err := e.st.Put(rec); err != nil {
		return nil, fmt.Errorf("store new record: %w", err)
	}
	e.ops.creates.Add(1)
	return rec, nil
}

// foldMention absorbs a high-similarity mention into an existing record:
// counters and the activation clock refresh, and a strong enough match can
// lift the record one tier.
func (e *Engine) foldMention(id string, sim float64, now time.Time, reason string) (*store.Record, error) {
	rec, err := e.st.Update(id, func(r *store.Record) error {
		before := r.Meta.Factors.Total
		r.RegisterMention(now)
		r.Meta.LastActivatedAt = now
		if up := UpgradeTier(r.Meta.Tier, sim); up != r.Meta.Tier {
			r.AppendCompression(store.CompressionEvent{At: now, From: r.Meta.Tier, To: up})
			r.Meta.Tier = up
		}
		f, err := e.cfg.Weight(r, now)
		if err != nil {
			return err
		}
		r.Meta.Factors = f
		r.AppendWeightChange(store.WeightChange{At: now, From: before, To: f.Total, Reason: reason})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fold mention into %s: %w", id, err)
	}
	e.ops.mentionMerges.Add(1)
	return rec, nil
}

// Reinforce registers an explicit mention of a known record. A burst of
// mentions inside the reinforce window additionally consolidates the
// record's near duplicates; momentum itself saturates, so the boost cannot
// stack unbounded.
func (e *Engine) Reinforce(ctx context.Context, id string) (*store.Record, Decision, error) {
	now := e.now()
	updated, err := e.st.Update(id, func(r *store.Record) error {
		before := r.Meta.Factors.Total
		r.RegisterMention(now)
		r.Meta.ReinforceCount++
		r.Meta.LastActivatedAt = now
		f, err := e.cfg.Weight(r, now)
		if err != nil {
			return err
		}
		r.Meta.Factors = f
		r.AppendWeightChange(store.WeightChange{At: now, From: before, To: f.Total, Reason: "explicit reinforcement"})
		return nil
	})
	if err != nil {
		return nil, Decision{}, fmt.Errorf("reinforce %s: %w", id, err)
	}
	e.ops.reinforces.Add(1)

	dec, err := e.cfg.Decide(updated, Stimulus{Trigger: TriggerFrequentReinforce}, now)
	if err != nil {
		return nil, Decision{}, err
	}
	if dec.Action == ActionMerge {
		merged, err := e.consolidateAround(ctx, updated, now)
		if err != nil {
			// the reinforcement itself landed; consolidation retries next cycle
			e.log.Warn("reinforce: consolidation failed", "id", id, "error", err)
			return updated, dec, nil
		}
		if merged != nil {
			return merged, dec, nil
		}
	}
	return updated, dec, nil
}

// AttachModality extends a record with a new content channel. The decay
// clock is left alone: a photo of a known fact is not the user re-asserting
// it.
func (e *Engine) AttachModality(ctx context.Context, id string, m store.Modality, mediaRef string) (*store.Record, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("attach modality: %w: unknown modality %q", store.ErrInvalid, m)
	}
	now := e.now()
	rec, err := e.st.Get(id)
	if err != nil {
		return nil, err
	}
	dec, err := e.cfg.Decide(rec, Stimulus{Trigger: TriggerCrossModalUpdate, Modality: m}, now)
	if err != nil {
		return nil, err
	}
	updated, err := e.st.Update(id, func(r *store.Record) error {
		r.AddModality(m)
		if mediaRef != "" {
			r.MediaRefs = append(r.MediaRefs, mediaRef)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("attach modality to %s: %w", id, err)
	}
	e.log.Debug("modality attached", "id", id, "modality", m, "reason", dec.Reason)
	return updated, nil
}

// NegationResult pairs the negated record with the correction that
// superseded it, when corrected content was supplied.
type NegationResult struct {
	Negated    *store.Record `json:"negated"`
	Correction *store.Record `json:"correction,omitempty"`
}

// Negate marks a record as contradicted. The record is retained with its
// conflict penalty floored, never overwritten; corrected content, when
// supplied, lands in a fresh record cross-linked with the old one.
func (e *Engine) Negate(ctx context.Context, id, corrected string) (*NegationResult, error) {
	now := e.now()
	rec, err := e.st.Get(id)
	if err != nil {
		return nil, err
	}
	dec, err := e.cfg.Decide(rec, Stimulus{Trigger: TriggerUserNegation}, now)
	if err != nil {
		return nil, err
	}

	var correction *store.Record
	if strings.TrimSpace(corrected) != "" {
		correction, err = store.NewRecord(e.st.NewID(), rec.Owner, corrected, rec.Meta.Category, now)
		if err != nil {
			return nil, err
		}
		correction.Meta.SourceIDs = []string{rec.ID}
		correction.Meta.ParentID = rec.ID
		f, err := e.cfg.Weight(correction, now)
		if err != nil {
			return nil, err
		}
		correction.Meta.Factors = f
		if err := e.st.Put(correction); err != nil {
			return nil, fmt.Errorf("store correction: %w", err)
		}
	}

	negated, err := e.st.Update(id, func(r *store.Record) error {
		before := r.Meta.Factors.Total
		r.Meta.Negated = true
		if correction != nil {
			r.Meta.Corrected = true
			r.Meta.CorrectedAt = now
			r.Meta.Corrections = append(r.Meta.Corrections, store.Correction{At: now, RecordID: correction.ID})
			r.Meta.ChildIDs = append(r.Meta.ChildIDs, correction.ID)
		}
		f, err := e.cfg.Weight(r, now)
		if err != nil {
			return err
		}
		r.Meta.Factors = f
		r.AppendWeightChange(store.WeightChange{At: now, From: before, To: f.Total, Reason: dec.Reason})
		return nil
	})
	if err != nil {
		if correction != nil {
			if rmErr := e.st.Remove(correction.ID); rmErr != nil && !errors.Is(rmErr, store.ErrNotFound) {
				e.log.Error("negate: orphaned correction", "id", correction.ID, "error", rmErr)
			}
		}
		return nil, fmt.Errorf("negate %s: %w", id, err)
	}
	e.ops.negations.Add(1)
	return &NegationResult{Negated: negated, Correction: correction}, nil
}
