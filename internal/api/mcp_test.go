package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/trackmatch/internal/batch"
	"github.com/kalambet/trackmatch/internal/catalog"
	"github.com/kalambet/trackmatch/internal/cleanup"
	"github.com/kalambet/trackmatch/internal/matching"
	"github.com/kalambet/trackmatch/internal/reconcile"
	"github.com/kalambet/trackmatch/internal/search"
	"github.com/kalambet/trackmatch/internal/storage"
	"github.com/kalambet/trackmatch/internal/worker"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T, m Matcher) (MCPDeps, *storage.Store) {
	t.Helper()
	store := openTestStore(t)
	return MCPDeps{Store: store, Service: m, Version: "test"}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

// stubCatalog serves fixed hits for any query.
type stubCatalog struct {
	hits []matching.CandidateRecord
	err  error
}

func (s stubCatalog) Search(context.Context, catalog.Query) ([]matching.CandidateRecord, error) {
	return s.hits, s.err
}

// --- tests ---

func TestNewMCPServer_Registers(t *testing.T) {
	deps, _ := newTestMCPDeps(t, newFakeMatcher())
	if s := NewMCPServer(deps); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}

func TestMCPTool_SearchCatalog(t *testing.T) {
	m := newFakeMatcher()
	var ranked []matching.ScoredCandidate
	for i := range 15 {
		ranked = append(ranked, matching.ScoredCandidate{
			Candidate:  matching.CandidateRecord{ID: string(rune('a' + i)), Title: "Innuendo"},
			Similarity: 100 - i,
		})
	}
	m.searchRes = search.Result{Ranked: ranked}
	deps, _ := newTestMCPDeps(t, m)

	result, err := mcpSearchCatalog(deps)(context.Background(), makeCallToolRequest("search_catalog", map[string]any{
		"artist": "Queen",
		"title":  "Innuendo",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}

	var got []matching.ScoredCandidate
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if len(got) != maxSearchResults || got[0].Similarity != 100 {
		t.Errorf("got %d results, first = %+v", len(got), got[0])
	}
}

func TestMCPTool_SearchCatalog_RequiresTitle(t *testing.T) {
	deps, _ := newTestMCPDeps(t, newFakeMatcher())
	result, _ := mcpSearchCatalog(deps)(context.Background(), makeCallToolRequest("search_catalog", map[string]any{
		"artist": "Queen",
	}))
	if !result.IsError {
		t.Error("expected tool error without title")
	}
}

func TestMCPTool_MatchTrack_EndToEnd(t *testing.T) {
	store := openTestStore(t)
	svc := reconcile.New(reconcile.Deps{
		Store: store,
		Catalog: stubCatalog{hits: []matching.CandidateRecord{
			{ID: "c1", Title: "Innuendo", Artists: []string{"Queen"}, Album: "Innuendo"},
		}},
		Limiter: batch.Unlimited,
	}, reconcile.Options{})
	addTrack(t, store, storage.Track{ID: "t1", Artist: "Queen", Title: "Innuendo", Album: "Innuendo"})
	deps := MCPDeps{Store: store, Service: svc}

	result, err := mcpMatchTrack(deps)(context.Background(), makeCallToolRequest("match_track", map[string]any{
		"track_id": "t1",
	}))
	if err != nil || result.IsError {
		t.Fatalf("match_track failed: %v %v", err, toolText(t, result))
	}
	var out reconcile.Outcome
	if err := json.Unmarshal([]byte(toolText(t, result)), &out); err != nil {
		t.Fatalf("decoding outcome: %v", err)
	}
	if out.Status != storage.StatusMatched || out.Similarity != 100 || out.Ranked != nil {
		t.Errorf("outcome = %+v", out)
	}

	tr, _ := store.GetTrack(context.Background(), "t1")
	if tr.CatalogID != "c1" {
		t.Errorf("stored catalog id = %q, want c1", tr.CatalogID)
	}
}

func TestMCPTool_MatchTrack_Failure(t *testing.T) {
	m := newFakeMatcher()
	m.err = errors.New("catalog returned HTTP 500")
	deps, _ := newTestMCPDeps(t, m)

	result, _ := mcpMatchTrack(deps)(context.Background(), makeCallToolRequest("match_track", map[string]any{
		"track_id": "t1",
	}))
	if !result.IsError || !strings.Contains(toolText(t, result), "HTTP 500") {
		t.Errorf("result = %+v", result)
	}

	result, _ = mcpMatchTrack(deps)(context.Background(), makeCallToolRequest("match_track", map[string]any{}))
	if !result.IsError {
		t.Error("expected error without track_id")
	}
}

func TestMCPTool_SuggestMetadata(t *testing.T) {
	m := newFakeMatcher()
	deps, _ := newTestMCPDeps(t, m)
	handler := mcpSuggestMetadata(deps)

	result, _ := handler(context.Background(), makeCallToolRequest("suggest_metadata", map[string]any{"track_id": "t1"}))
	if result.IsError || toolText(t, result) != "no suggestion available" {
		t.Errorf("unavailable = %q", toolText(t, result))
	}

	m.sugg = cleanup.Suggestion{Artist: "Queen", Title: "Innuendo", Confidence: 0.9}
	m.suggOK = true
	result, _ = handler(context.Background(), makeCallToolRequest("suggest_metadata", map[string]any{"track_id": "t1"}))
	var sugg cleanup.Suggestion
	if err := json.Unmarshal([]byte(toolText(t, result)), &sugg); err != nil {
		t.Fatalf("decoding suggestion: %v", err)
	}
	if sugg.Title != "Innuendo" || len(m.applied) != 0 {
		t.Errorf("suggestion = %+v, applied = %v", sugg, m.applied)
	}

	m.outcome = reconcile.Outcome{Status: storage.StatusSuggested, Similarity: 70}
	result, _ = handler(context.Background(), makeCallToolRequest("suggest_metadata", map[string]any{
		"track_id": "t1",
		"apply":    true,
	}))
	var resp SuggestResponse
	if err := json.Unmarshal([]byte(toolText(t, result)), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Outcome == nil || resp.Outcome.Similarity != 70 || len(m.applied) != 1 {
		t.Errorf("applied response = %+v", resp)
	}
}

func TestMCPTool_ImportTrack(t *testing.T) {
	deps, store := newTestMCPDeps(t, newFakeMatcher())

	result, err := mcpImportTrack(deps)(context.Background(), makeCallToolRequest("import_track", map[string]any{
		"artist": "Queen",
		"title":  "Innuendo",
		"match":  true,
	}))
	if err != nil || result.IsError {
		t.Fatalf("import_track failed: %v %s", err, toolText(t, result))
	}
	text := toolText(t, result)
	if !strings.HasPrefix(text, "Imported track ") || !strings.Contains(text, "match job") {
		t.Errorf("text = %q", text)
	}

	tracks, _ := store.ListTracks(context.Background(), storage.TrackFilter{})
	if len(tracks) != 1 || tracks[0].Title != "Innuendo" {
		t.Fatalf("tracks = %+v", tracks)
	}
	job, err := store.ClaimNextJob(context.Background(), []string{worker.JobMatchTrack})
	if err != nil || job == nil {
		t.Fatalf("expected queued match job, got %v %v", job, err)
	}

	result, _ = mcpImportTrack(deps)(context.Background(), makeCallToolRequest("import_track", map[string]any{}))
	if !result.IsError {
		t.Error("expected error for empty import")
	}
}

func TestMCPResource_Unmatched(t *testing.T) {
	deps, store := newTestMCPDeps(t, newFakeMatcher())
	ctx := context.Background()
	addTrack(t, store, storage.Track{ID: "open", Artist: "Queen", Title: "Innuendo"})
	addTrack(t, store, storage.Track{ID: "done", Artist: "Queen", Title: "Bicycle Race"})
	if err := store.SaveMatch(ctx, "done", storage.MatchResult{CatalogID: "c", Similarity: 100, Status: storage.StatusMatched}); err != nil {
		t.Fatalf("SaveMatch: %v", err)
	}

	contents, err := mcpResourceUnmatched(deps)(ctx, makeReadResourceRequest(unmatchedResourceURI))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("got %d contents", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.URI != unmatchedResourceURI || tc.MIMEType != "application/json" {
		t.Errorf("uri = %q mime = %q", tc.URI, tc.MIMEType)
	}

	var items []map[string]any
	if err := json.Unmarshal([]byte(tc.Text), &items); err != nil {
		t.Fatalf("decoding resource: %v", err)
	}
	if len(items) != 1 || items[0]["id"] != "open" || items[0]["status"] != storage.StatusUnmatched {
		t.Errorf("items = %v", items)
	}
}
