package engine

import (
	"fmt"
	"time"

	"github.com/engramdb/engram/internal/store"
)

// Trigger names an event aimed at a record.
type Trigger string

const (
	TriggerManualFreeze      Trigger = "manual_freeze"
	TriggerManualDelete      Trigger = "manual_delete"
	TriggerUserNegation      Trigger = "user_negation"
	TriggerFrequentReinforce Trigger = "frequent_reinforce"
	TriggerUserMention       Trigger = "user_mention"
	TriggerPassiveDecay      Trigger = "passive_decay"
	TriggerCrossModalUpdate  Trigger = "cross_modal_update"
)

// ParseTrigger validates a wire-format trigger string.
func ParseTrigger(s string) (Trigger, error) {
	t := Trigger(s)
	switch t {
	case TriggerManualFreeze, TriggerManualDelete, TriggerUserNegation,
		TriggerFrequentReinforce, TriggerUserMention, TriggerPassiveDecay,
		TriggerCrossModalUpdate:
		return t, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownTrigger)
}

// Action is what the engine does in response to a trigger.
type Action string

const (
	ActionFreeze      Action = "freeze"
	ActionDelete      Action = "delete"
	ActionMarkNegated Action = "mark_negated"
	ActionMerge       Action = "merge"
	ActionCreateNew   Action = "create_new"
	ActionCompress    Action = "compress"
	ActionKeep        Action = "keep"
)

// Stimulus is one event routed through the decision table.
type Stimulus struct {
	Trigger Trigger

	// Similarity of the incoming content to the record, for mention and
	// cross-modal triggers.
	Similarity float64

	// Modality of the incoming content, for cross-modal triggers.
	Modality store.Modality
}

// Decision is the routed outcome. Refresh reports whether the action
// resets the record's activation clock; passive decay never does.
type Decision struct {
	Action  Action     `json:"action"`
	Link    bool       `json:"link,omitempty"`
	Refresh bool       `json:"refresh,omitempty"`
	Target  store.Tier `json:"target,omitempty"`
	Reason  string     `json:"reason"`
}

// Decide routes a stimulus against rec through the trigger table. Every
// known trigger maps to exactly one action; an unknown trigger is an
// error, never a silent keep.
func (c Config) Decide(rec *store.Record, s Stimulus, now time.Time) (Decision, error) {
	switch s.Trigger {
	case TriggerManualFreeze:
		return Decision{
			Action: ActionFreeze,
			Reason: "user pinned the record at full fidelity",
		}, nil

	case TriggerManualDelete:
		return Decision{
			Action: ActionDelete,
			Reason: "user asked to forget the record",
		}, nil

	case TriggerUserNegation:
		return Decision{
			Action: ActionMarkNegated,
			Reason: "user contradicted the content",
		}, nil

	case TriggerFrequentReinforce:
		window := c.FrequentWindow
		if window <= 0 {
			window = 24 * time.Hour
		}
		if n := rec.MentionsWithin(window, now); n >= c.FrequentThreshold && c.FrequentThreshold > 0 {
			return Decision{
				Action:  ActionMerge,
				Refresh: true,
				Reason:  fmt.Sprintf("%d mentions inside the reinforce window", n),
			}, nil
		}
		return Decision{
			Action:  ActionKeep,
			Refresh: true,
			Reason:  "reinforced, below the frequent threshold",
		}, nil

	case TriggerUserMention:
		switch {
		case s.Similarity >= c.MentionMergeSim:
			return Decision{
				Action:  ActionMerge,
				Refresh: true,
				Reason:  fmt.Sprintf("similarity %.2f clears the merge bar %.2f", s.Similarity, c.MentionMergeSim),
			}, nil
		case s.Similarity >= c.MentionLinkSim:
			return Decision{
				Action: ActionCreateNew,
				Link:   true,
				Reason: fmt.Sprintf("similarity %.2f is related but distinct", s.Similarity),
			}, nil
		default:
			return Decision{
				Action: ActionCreateNew,
				Reason: fmt.Sprintf("similarity %.2f is unrelated", s.Similarity),
			}, nil
		}

	case TriggerPassiveDecay:
		f, err := c.Weight(rec, now)
		if err != nil {
			return Decision{}, err
		}
		target := TierFor(rec, f.Total)
		// Decay only ever moves a record down the ladder. Promotion is
		// reserved for explicit mention upgrades.
		if target.Rank() < rec.Meta.Tier.Rank() {
			return Decision{
				Action: ActionCompress,
				Target: target,
				Reason: fmt.Sprintf("weight %.3f no longer holds tier %s", f.Total, rec.Meta.Tier),
			}, nil
		}
		return Decision{
			Action: ActionKeep,
			Reason: fmt.Sprintf("weight %.3f still holds tier %s", f.Total, rec.Meta.Tier),
		}, nil

	case TriggerCrossModalUpdate:
		return Decision{
			Action: ActionMerge,
			Reason: fmt.Sprintf("new %s channel for known content", s.Modality),
		}, nil
	}

	return Decision{}, fmt.Errorf("%q: %w", s.Trigger, ErrUnknownTrigger)
}
