// Package mcp exposes the retention engine as MCP tools over stdio, so an
// agent can store, recall, and forget memories mid-conversation.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/engramdb/engram/internal/engine"
	"github.com/engramdb/engram/internal/store"
)

// StoreInput is the input for engram_store.
type StoreInput struct {
	Device   string `json:"device" jsonschema:"Device id of the owner scope."`
	User     string `json:"user" jsonschema:"User id of the owner scope."`
	Content  string `json:"content" jsonschema:"The fact or preference to remember, one statement per call."`
	Category string `json:"category,omitempty" jsonschema:"One of identity, stable_preference, skill, fact, short_preference, event, temporary. Defaults to fact."`
}

// RetrieveInput is the input for engram_retrieve.
type RetrieveInput struct {
	Device string `json:"device" jsonschema:"Device id of the owner scope."`
	User   string `json:"user" jsonschema:"User id of the owner scope."`
	Query  string `json:"query" jsonschema:"What to recall, in natural language."`
	Mode   string `json:"mode,omitempty" jsonschema:"normal (default) for everyday recall; review to resurface compressed or deleted memories."`
	K      int    `json:"k,omitempty" jsonschema:"Maximum number of results."`
}

// ForgetInput is the input for engram_forget.
type ForgetInput struct {
	ID   string `json:"id" jsonschema:"Record id to forget."`
	Hard bool   `json:"hard,omitempty" jsonschema:"Remove immediately instead of soft-deleting."`
}

// ExplainInput is the input for engram_explain.
type ExplainInput struct {
	ID string `json:"id" jsonschema:"Record id to explain."`
}

// StatsInput is the input for engram_stats (empty).
type StatsInput struct{}

// Server wraps the MCP SDK server around an engine.
type Server struct {
	server *sdkmcp.Server
	eng    *engine.Engine
	log    *slog.Logger
}

// New builds the MCP server with its tool set registered.
func New(eng *engine.Engine, version string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{eng: eng, log: log}

	s.server = sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "engram",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: "Engram is tiered long-term memory. Use engram_store to remember " +
			"one fact per call, engram_retrieve to recall relevant memories (mode=review " +
			"for explicit recall-the-past requests), engram_forget to delete, and " +
			"engram_explain to audit why a memory is retained.",
	})

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "engram_store",
		Description: "Store one fact or preference in long-term memory. Near-duplicates of an existing memory are folded into it instead of creating a copy.",
	}, s.handleStore)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "engram_retrieve",
		Description: "Recall the memories most relevant to a query, ranked and explained. Normal mode only surfaces full and summary tiers.",
	}, s.handleRetrieve)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "engram_forget",
		Description: "Forget a memory by id. Soft by default (recoverable until the cleanup grace window passes); hard removes it immediately.",
	}, s.handleForget)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "engram_explain",
		Description: "Show the six-factor retention breakdown for one memory: recency, semantic boost, conflict penalty, importance, personalization, momentum.",
	}, s.handleExplain)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "engram_stats",
		Description: "Corpus statistics: record totals plus per-tier and per-category histograms.",
	}, s.handleStats)

	return s
}

// Run serves MCP over stdio until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &sdkmcp.StdioTransport{})
}

func textResult(text string) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: text}},
	}
}

func errorResult(format string, args ...any) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func (s *Server) handleStore(ctx context.Context, req *sdkmcp.CallToolRequest, input StoreInput) (*sdkmcp.CallToolResult, any, error) {
	if input.Content == "" {
		return errorResult("Error: 'content' is required."), nil, nil
	}
	category := store.CategoryFact
	if input.Category != "" {
		cat, err := store.ParseCategory(input.Category)
		if err != nil {
			return errorResult("Unknown category %q.", input.Category), nil, nil
		}
		category = cat
	}

	res, err := s.eng.Ingest(ctx, engine.IngestRequest{
		Owner:    store.Owner{Device: input.Device, User: input.User},
		Text:     input.Content,
		Category: category,
	})
	if err != nil {
		return errorResult("Failed to store memory: %v", err), nil, nil
	}

	var sb strings.Builder
	if res.Created {
		fmt.Fprintf(&sb, "Memory stored (ID: %s)\n", res.Record.ID)
	} else {
		fmt.Fprintf(&sb, "Folded into existing memory %s (similarity %.2f)\n", res.Record.ID, res.Similarity)
	}
	fmt.Fprintf(&sb, "- Category: %s\n", res.Record.Meta.Category)
	fmt.Fprintf(&sb, "- Tier: %s\n", res.Record.Meta.Tier)
	fmt.Fprintf(&sb, "- Decision: %s (%s)\n", res.Decision.Action, res.Decision.Reason)
	return textResult(sb.String()), nil, nil
}

func (s *Server) handleRetrieve(ctx context.Context, req *sdkmcp.CallToolRequest, input RetrieveInput) (*sdkmcp.CallToolResult, any, error) {
	if input.Query == "" {
		return errorResult("Error: 'query' is required."), nil, nil
	}

	results, err := s.eng.Retrieve(ctx, engine.Query{
		Owner: store.Owner{Device: input.Device, User: input.User},
		Text:  input.Query,
		Mode:  engine.Mode(input.Mode),
		Limit: input.K,
	})
	if err != nil {
		return errorResult("Search failed: %v", err), nil, nil
	}
	if len(results) == 0 {
		return textResult("No memories found matching the query."), nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d memories:\n\n", len(results))
	for i, r := range results {
		fmt.Fprintf(&sb, "### Memory %d (ID: %s, score: %.3f, tier: %s)\n", i+1, r.Record.ID, r.Score, r.Record.Meta.Tier)
		fmt.Fprintf(&sb, "%s\n", r.Record.Text)
		fmt.Fprintf(&sb, "_%s_\n\n", r.Explanation)
	}
	return textResult(sb.String()), nil, nil
}

func (s *Server) handleForget(ctx context.Context, req *sdkmcp.CallToolRequest, input ForgetInput) (*sdkmcp.CallToolResult, any, error) {
	if input.ID == "" {
		return errorResult("Error: 'id' is required."), nil, nil
	}
	rec, err := s.eng.Delete(input.ID, input.Hard)
	if err != nil {
		return errorResult("Failed to forget %s: %v", input.ID, err), nil, nil
	}
	if rec == nil {
		return textResult(fmt.Sprintf("No memory with id %s; nothing to forget.", input.ID)), nil, nil
	}
	if input.Hard {
		return textResult(fmt.Sprintf("Memory %s removed permanently.", input.ID)), nil, nil
	}
	return textResult(fmt.Sprintf("Memory %s soft-deleted; it stays recoverable in review mode until cleanup.", input.ID)), nil, nil
}

func (s *Server) handleExplain(ctx context.Context, req *sdkmcp.CallToolRequest, input ExplainInput) (*sdkmcp.CallToolResult, any, error) {
	if input.ID == "" {
		return errorResult("Error: 'id' is required."), nil, nil
	}
	exp, err := s.eng.ExplainWeight(input.ID)
	if err != nil {
		return errorResult("Explain failed for %s: %v", input.ID, err), nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Memory %s (%s, tier %s)\n", exp.ID, exp.Category, exp.Tier)
	fmt.Fprintf(&sb, "%s\n\n", exp.Text)
	for _, n := range exp.Notes {
		fmt.Fprintf(&sb, "- %s\n", n)
	}
	return textResult(sb.String()), nil, nil
}

func (s *Server) handleStats(ctx context.Context, req *sdkmcp.CallToolRequest, input StatsInput) (*sdkmcp.CallToolResult, any, error) {
	snap := s.eng.Snapshot("", engine.CycleStats{})

	var sb strings.Builder
	fmt.Fprintf(&sb, "Corpus: %d records (%d live)\n\nTiers:\n", snap.Total, snap.Live)
	for _, tier := range store.Tiers() {
		fmt.Fprintf(&sb, "- %s: %d\n", tier, snap.PerTier[tier])
	}
	sb.WriteString("\nCategories:\n")
	for _, cat := range store.Categories() {
		if n := snap.PerCategory[cat]; n > 0 {
			fmt.Fprintf(&sb, "- %s: %d\n", cat, n)
		}
	}
	return textResult(sb.String()), nil, nil
}
