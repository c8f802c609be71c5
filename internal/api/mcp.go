package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/trackmatch/internal/matching"
	"github.com/kalambet/trackmatch/internal/storage"
)

const (
	unmatchedResourceURI   = "library://unmatched"
	unmatchedResourceLimit = 100
	maxSearchResults       = 10
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store   *storage.Store
	Service Matcher
	Version string
}

// NewMCPServer creates an MCP server with the trackmatch tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"trackmatch",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("trackmatch reconciles a local music library with the streaming catalog."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_catalog",
			mcp.WithDescription("Search the catalog for a recording and return candidates ranked by similarity (0-100)."),
			mcp.WithString("title", mcp.Description("Track title"), mcp.Required()),
			mcp.WithString("artist", mcp.Description("Artist name")),
			mcp.WithString("album", mcp.Description("Album name")),
		),
		mcpSearchCatalog(deps),
	)

	s.AddTool(
		mcp.NewTool("match_track",
			mcp.WithDescription("Match a library track against the catalog and store the outcome."),
			mcp.WithString("track_id", mcp.Description("Library track id"), mcp.Required()),
		),
		mcpMatchTrack(deps),
	)

	s.AddTool(
		mcp.NewTool("suggest_metadata",
			mcp.WithDescription("Ask the local model for corrected artist/title/album for a track with messy tags."),
			mcp.WithString("track_id", mcp.Description("Library track id"), mcp.Required()),
			mcp.WithBoolean("apply", mcp.Description("Re-run matching with the corrected tags")),
		),
		mcpSuggestMetadata(deps),
	)

	s.AddTool(
		mcp.NewTool("import_track",
			mcp.WithDescription("Add a track to the library."),
			mcp.WithString("title", mcp.Description("Track title")),
			mcp.WithString("artist", mcp.Description("Artist name")),
			mcp.WithString("album", mcp.Description("Album name")),
			mcp.WithString("album_artist", mcp.Description("Album artist")),
			mcp.WithBoolean("match", mcp.Description("Queue a background match after import")),
		),
		mcpImportTrack(deps),
	)

	s.AddResource(
		mcp.NewResource(
			unmatchedResourceURI,
			"Unmatched Tracks",
			mcp.WithResourceDescription("Library tracks without a confirmed catalog id"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceUnmatched(deps),
	)

	return s
}

func mcpSearchCatalog(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, err := req.RequireString("title")
		if err != nil || title == "" {
			return mcpError("title is required"), nil
		}
		local := matching.LocalRecord{
			Artist: req.GetString("artist", ""),
			Title:  title,
			Album:  req.GetString("album", ""),
		}

		res, err := deps.Service.Search(ctx, local)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		ranked := res.Ranked
		if len(ranked) > maxSearchResults {
			ranked = ranked[:maxSearchResults]
		}
		if ranked == nil {
			ranked = []matching.ScoredCandidate{}
		}
		return mcpJSON(ranked)
	}
}

func mcpMatchTrack(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("track_id")
		if err != nil {
			return mcpError("track_id is required"), nil
		}
		out, err := deps.Service.MatchTrack(ctx, id)
		if err != nil {
			return mcpError(fmt.Sprintf("match failed: %v", err)), nil
		}
		out.Ranked = nil
		return mcpJSON(out)
	}
}

func mcpSuggestMetadata(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("track_id")
		if err != nil {
			return mcpError("track_id is required"), nil
		}
		sugg, ok, err := deps.Service.Suggest(ctx, id)
		if err != nil {
			return mcpError(fmt.Sprintf("suggest failed: %v", err)), nil
		}
		if !ok {
			return mcpText("no suggestion available"), nil
		}
		if !req.GetBool("apply", false) {
			return mcpJSON(sugg)
		}

		out, err := deps.Service.ApplySuggestion(ctx, id, sugg)
		if err != nil {
			return mcpError(fmt.Sprintf("suggestion generated but matching failed: %v", err)), nil
		}
		out.Ranked = nil
		return mcpJSON(SuggestResponse{Available: true, Suggestion: &sugg, Outcome: &out})
	}
}

func mcpImportTrack(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		in := TrackInput{
			Artist:      req.GetString("artist", ""),
			Title:       req.GetString("title", ""),
			Album:       req.GetString("album", ""),
			AlbumArtist: req.GetString("album_artist", ""),
		}
		resp, err := importTracks(ctx, deps.Store, []TrackInput{in}, req.GetBool("match", false))
		if err != nil {
			return mcpError(fmt.Sprintf("import failed: %v", err)), nil
		}
		msg := fmt.Sprintf("Imported track %s", resp.IDs[0])
		if len(resp.Jobs) > 0 {
			msg += fmt.Sprintf(" (match job %s)", resp.Jobs[0])
		}
		return mcpText(msg), nil
	}
}

func mcpResourceUnmatched(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		tracks, err := deps.Store.ListTracks(ctx, storage.TrackFilter{
			Unresolved: true,
			Limit:      unmatchedResourceLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("listing unmatched tracks: %w", err)
		}

		type trackSummary struct {
			ID         string `json:"id"`
			Artist     string `json:"artist"`
			Title      string `json:"title"`
			Album      string `json:"album"`
			Status     string `json:"status"`
			Similarity int    `json:"similarity,omitempty"`
		}
		summaries := make([]trackSummary, len(tracks))
		for i, t := range tracks {
			summaries[i] = trackSummary{
				ID:         t.ID,
				Artist:     t.Artist,
				Title:      t.Title,
				Album:      t.Album,
				Status:     t.MatchStatus,
				Similarity: t.MatchSimilarity,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("marshalling tracks: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
