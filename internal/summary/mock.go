package summary

import (
	"context"

	"github.com/engramdb/engram/internal/store"
)

// MockCall records one Summarize invocation.
type MockCall struct {
	Text   string
	Target store.Tier
}

// Mock is a test double for the Summarizer interface.
type Mock struct {
	Response string
	Err      error
	Calls    []MockCall
}

// Summarize records the call and returns the canned response. With no
// canned response and no error, it echoes the input.
func (m *Mock) Summarize(_ context.Context, text string, target store.Tier) (string, error) {
	m.Calls = append(m.Calls, MockCall{Text: text, Target: target})
	if m.Err != nil {
		return "", m.Err
	}
	if m.Response != "" {
		return m.Response, nil
	}
	return text, nil
}
