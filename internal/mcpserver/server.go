// Package mcpserver exposes title cleaning and industry matching as MCP
// tools.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/cognicore/tradeprep/pkg/tradeprep/crosswalk"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

const defaultCandidates = 10

type tools struct {
	cleaner *crosswalk.Cleaner
	matcher *crosswalk.Matcher
	logger  *zap.Logger
}

// New returns an MCP server with the clean_title, classify_title and
// industry_candidates tools.
func New(cleaner *crosswalk.Cleaner, matcher *crosswalk.Matcher, logger *zap.Logger) *server.MCPServer {
	if cleaner == nil {
		cleaner = crosswalk.DefaultCleaner()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &tools{cleaner: cleaner, matcher: matcher, logger: logger}

	srv := server.NewMCPServer("tradeprep", Version, server.WithToolCapabilities(false))
	srv.AddTool(mcp.NewTool("clean_title",
		mcp.WithDescription("Normalize a trade investigation title for industry matching"),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Raw investigation title"),
		)), t.cleanTitle)
	srv.AddTool(mcp.NewTool("classify_title",
		mcp.WithDescription("Match an investigation title to the closest NAICS industry"),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Raw investigation title; it is cleaned before matching"),
		)), t.classifyTitle)
	srv.AddTool(mcp.NewTool("industry_candidates",
		mcp.WithDescription("List ranked NAICS candidates sharing keywords with an investigation title"),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Raw investigation title"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of candidates (default 10)"),
		)), t.industryCandidates)
	return srv
}

func (t *tools) cleanTitle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(t.cleaner.Clean(title)), nil
}

type classifyResponse struct {
	Title      string `json:"title"`
	CleanTitle string `json:"clean_title"`
	crosswalk.MatchResult
}

func (t *tools) classifyTitle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cleaned := t.cleaner.Clean(title)
	res := classifyResponse{Title: title, CleanTitle: cleaned, MatchResult: t.matcher.Match(cleaned)}
	t.logger.Debug("classify_title", zap.String("title", cleaned), zap.String("naics", res.Code))
	return jsonResult(res)
}

type candidate struct {
	Code             string   `json:"naics"`
	Title            string   `json:"title"`
	IsPrioritySector bool     `json:"is_large"`
	Score            int      `json:"score"`
	Keywords         []string `json:"keywords"`
}

func (t *tools) industryCandidates(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", defaultCandidates)

	cands := t.matcher.Candidates(t.cleaner.Clean(title), limit)
	out := make([]candidate, len(cands))
	for i, c := range cands {
		out[i] = candidate{
			Code:             c.Entry.Code,
			Title:            c.Entry.Title,
			IsPrioritySector: c.Entry.IsPrioritySector,
			Score:            c.Score,
			Keywords:         c.Keywords,
		}
	}
	return jsonResult(out)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}
