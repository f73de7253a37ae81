package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTimestamp reports a record whose activation timestamp is
	// missing. Weight cannot be computed without one.
	ErrInvalidTimestamp = errors.New("invalid activation timestamp")

	// ErrUnknownTrigger reports a stimulus the decision table has no row
	// for. Unknown triggers are never silently mapped to keep.
	ErrUnknownTrigger = errors.New("unknown trigger")
)

// CollaboratorError wraps a failure from an external collaborator such as
// the summarizer or the similarity backend, so callers can tell engine
// bugs apart from upstream outages.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }
