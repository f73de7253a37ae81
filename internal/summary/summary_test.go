package summary

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/engramdb/engram/internal/config"
	"github.com/engramdb/engram/internal/store"
)

func TestExtractiveFullPassthrough(t *testing.T) {
	s := NewExtractive()
	text := "User prefers oat milk in coffee. Mentioned it twice this week."
	got, err := s.Summarize(context.Background(), text, store.TierFull)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != text {
		t.Errorf("full tier rewrote text: %q", got)
	}
}

func TestExtractiveSummaryBudget(t *testing.T) {
	s := NewExtractive()
	long := strings.Repeat("The user talked about espresso roasting at length. ", 20)
	got, err := s.Summarize(context.Background(), long, store.TierSummary)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(got) > summaryBudget+4 {
		t.Errorf("summary length %d exceeds budget %d", len(got), summaryBudget)
	}
	if !strings.HasPrefix(got, "The user talked about espresso") {
		t.Errorf("summary should keep leading sentences, got %q", got)
	}
}

func TestExtractiveShortTextUntouched(t *testing.T) {
	s := NewExtractive()
	got, _ := s.Summarize(context.Background(), "likes green tea", store.TierSummary)
	if got != "likes green tea" {
		t.Errorf("short text rewritten: %q", got)
	}
}

func TestExtractiveTag(t *testing.T) {
	s := NewExtractive()
	got, err := s.Summarize(context.Background(),
		"coffee coffee coffee espresso espresso latte morning ritual", store.TierTag)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	parts := strings.Split(got, ", ")
	if len(parts) == 0 || len(parts) > tagKeywords {
		t.Fatalf("tag output %q has %d keywords, want 1..%d", got, len(parts), tagKeywords)
	}
	if parts[0] != "coffee" {
		t.Errorf("most frequent keyword should lead, got %q", got)
	}
}

func TestExtractiveTraceAndArchive(t *testing.T) {
	s := NewExtractive()

	trace, _ := s.Summarize(context.Background(), "visited the lisbon aquarium with family", store.TierTrace)
	if !strings.HasPrefix(trace, "faint trace: ") {
		t.Errorf("trace = %q", trace)
	}

	archive, _ := s.Summarize(context.Background(), "0123456789", store.TierArchive)
	if archive != "archived memory (10 chars at full fidelity)" {
		t.Errorf("archive = %q", archive)
	}
}

func TestExtractiveDeterministic(t *testing.T) {
	s := NewExtractive()
	text := "plays piano every tuesday and thursday with the community band"
	for _, tier := range store.Tiers() {
		a, errA := s.Summarize(context.Background(), text, tier)
		b, errB := s.Summarize(context.Background(), text, tier)
		if errA != nil || errB != nil {
			t.Fatalf("Summarize(%s): %v / %v", tier, errA, errB)
		}
		if a != b {
			t.Errorf("tier %s not deterministic: %q vs %q", tier, a, b)
		}
	}
}

func TestMockRecordsCalls(t *testing.T) {
	m := &Mock{Response: "condensed"}
	got, err := m.Summarize(context.Background(), "original", store.TierSummary)
	if err != nil || got != "condensed" {
		t.Fatalf("Summarize = %q, %v", got, err)
	}
	if len(m.Calls) != 1 || m.Calls[0].Target != store.TierSummary {
		t.Errorf("calls = %+v", m.Calls)
	}

	m.Err = errors.New("model offline")
	if _, err := m.Summarize(context.Background(), "x", store.TierTag); err == nil {
		t.Error("expected canned error")
	}
}

func TestOllamaSummarize(t *testing.T) {
	var gotPath string
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req struct {
			Prompt string `json:"prompt"`
		}
		_ = jsonDecode(r, &req)
		gotPrompt = req.Prompt
		w.Write([]byte(`{"response": "  boiled down  "}`))
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "llama3.2", 5*time.Second)
	got, err := o.Summarize(context.Background(), "a long memory", store.TierSummary)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "boiled down" {
		t.Errorf("summary = %q, want trimmed response", got)
	}
	if gotPath != "/api/generate" {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.Contains(gotPrompt, "a long memory") {
		t.Errorf("prompt missing source text: %q", gotPrompt)
	}
}

func TestOllamaErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "llama3.2", 5*time.Second)
	if _, err := o.Summarize(context.Background(), "x", store.TierTag); err == nil {
		t.Error("expected error on 500")
	}

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response": ""}`))
	}))
	defer empty.Close()

	o = NewOllama(empty.URL, "llama3.2", 5*time.Second)
	if _, err := o.Summarize(context.Background(), "x", store.TierTag); err == nil {
		t.Error("expected error on empty response")
	}
}

func TestFactory(t *testing.T) {
	s, err := New(config.SummarizerConfig{Mode: "extractive"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := s.(Extractive); !ok {
		t.Errorf("mode extractive built %T", s)
	}

	s, err = New(config.SummarizerConfig{Mode: "ollama", TimeoutSeconds: 10})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := s.(*Ollama); !ok {
		t.Errorf("mode ollama built %T", s)
	}

	if _, err := New(config.SummarizerConfig{Mode: "telepathy"}); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func jsonDecode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
