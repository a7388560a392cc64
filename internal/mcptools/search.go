package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/curatorapp/curator-server/internal/domain"
	"github.com/curatorapp/curator-server/internal/search"
	"github.com/curatorapp/curator-server/internal/session"
)

// SearchVideosTool handles search_videos.
type SearchVideosTool struct {
	sess *session.Session
}

// Definition returns the MCP tool definition for search_videos.
func (t *SearchVideosTool) Definition() mcp.Tool {
	return mcp.NewTool("search_videos",
		mcp.WithDescription("Search YouTube. The selected category's keywords are appended to the query."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What to search for"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Results per page, 1-50 (default: 25)"),
		),
		mcp.WithString("order",
			mcp.Description("Sort order"),
			mcp.Enum("relevance", "date", "rating", "viewCount", "title"),
		),
		mcp.WithString("video_duration",
			mcp.Description("Duration filter"),
			mcp.Enum("any", "short", "medium", "long"),
		),
	)
}

// Handle processes the search_videos tool call.
func (t *SearchVideosTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := req.GetString("query", "")
	if strings.TrimSpace(q) == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	opts := &domain.SearchOptions{
		MaxResults:    intArg(req, "max_results", 0),
		Order:         req.GetString("order", ""),
		VideoDuration: req.GetString("video_duration", ""),
	}
	if opts.MaxResults < 0 || opts.MaxResults > 50 {
		return mcp.NewToolResultError("'max_results' must be between 1 and 50"), nil
	}

	return stateResult(t.sess.SearchVideos(ctx, q, opts)), nil
}

// PageTool handles next_page and prev_page.
type PageTool struct {
	sess *session.Session
	next bool
}

// Definition returns the MCP tool definition for next_page or prev_page.
func (t *PageTool) Definition() mcp.Tool {
	if t.next {
		return mcp.NewTool("next_page", mcp.WithDescription("Load the next page of the current search."))
	}
	return mcp.NewTool("prev_page", mcp.WithDescription("Load the previous page of the current search."))
}

// Handle processes the paging tool call.
func (t *PageTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	before := t.sess.Search.State()
	token := before.PrevPageToken
	if t.next {
		token = before.NextPageToken
	}
	if before.Search == nil || token == "" {
		return mcp.NewToolResultText("No such page."), nil
	}

	if t.next {
		return stateResult(t.sess.Search.LoadNextPage(ctx)), nil
	}
	return stateResult(t.sess.Search.LoadPrevPage(ctx)), nil
}

// ClearResultsTool handles clear_results.
type ClearResultsTool struct {
	sess *session.Session
}

// Definition returns the MCP tool definition for clear_results.
func (t *ClearResultsTool) Definition() mcp.Tool {
	return mcp.NewTool("clear_results", mcp.WithDescription("Discard the current search and its results."))
}

// Handle processes the clear_results tool call.
func (t *ClearResultsTool) Handle(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t.sess.Search.ClearResults()
	return mcp.NewToolResultText("Results cleared."), nil
}

// stateResult renders a controller state. A failed search is a tool error.
func stateResult(st search.State) *mcp.CallToolResult {
	switch st.Status {
	case search.StatusError:
		return mcp.NewToolResultError(st.Error)
	case search.StatusIdle:
		return mcp.NewToolResultText("No active search.")
	}

	var b strings.Builder
	if st.Search != nil {
		fmt.Fprintf(&b, "Results for %q (page %d, about %d total):\n\n", st.Search.EffectiveQuery, st.Search.Page, st.TotalResults)
	}
	if len(st.Videos) == 0 {
		b.WriteString("No videos found.\n")
	}
	for i, v := range st.Videos {
		fmt.Fprintf(&b, "[%d] %s\n    %s | %s | %d views\n    %s\n", i+1, v.Title, v.ChannelTitle, v.Duration, v.ViewCount, v.URL)
		if v.RelevanceScore != nil {
			fmt.Fprintf(&b, "    relevance: %d/100\n", *v.RelevanceScore)
		}
	}
	if st.NextPageToken != "" || st.PrevPageToken != "" {
		b.WriteString("\nMore pages available; use next_page or prev_page.\n")
	}
	return mcp.NewToolResultText(b.String())
}
