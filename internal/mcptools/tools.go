// Package mcptools exposes one user's application session as MCP tools:
// category lookup, query enhancement, category selection and paged video
// search.
//
// Each tool is a struct holding the session, with Definition returning the
// mcp.Tool schema and Handle processing a call. Failures a caller can fix
// come back as tool errors, not Go errors.
package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/curatorapp/curator-server/internal/domain"
	"github.com/curatorapp/curator-server/internal/session"
)

// Tool is an MCP tool backed by a session.
type Tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// Tools returns every tool bound to sess.
func Tools(sess *session.Session) []Tool {
	return []Tool{
		&ListCategoriesTool{sess: sess},
		&FindCategoryTool{sess: sess},
		&EnhanceQueryTool{sess: sess},
		&SelectCategoryTool{sess: sess},
		&SearchVideosTool{sess: sess},
		&PageTool{sess: sess, next: true},
		&PageTool{sess: sess},
		&ClearResultsTool{sess: sess},
	}
}

// NewServer creates an MCP server with every tool registered.
func NewServer(sess *session.Session, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"curator",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	for _, t := range Tools(sess) {
		s.AddTool(t.Definition(), t.Handle)
	}
	return s
}

const instructions = `Curator searches YouTube through the user's categories.
Call list_categories first. select_category biases every following search with
that category's keywords; search_videos runs a search and next_page/prev_page
page through it. enhance_query previews how a category rewrites a query.`

// intArg extracts an integer argument, returning defaultVal if the key is
// missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// resolveCategory finds a category by exact ID, then by best fuzzy name match.
func resolveCategory(sess *session.Session, ref string) (*domain.Category, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("'category' is required")
	}
	if c, err := sess.Categories.Get(ref); err == nil {
		return c, nil
	}
	if matches := sess.Categories.Find(ref, 1); len(matches) > 0 {
		return matches[0], nil
	}
	return nil, fmt.Errorf("no category matches %q", ref)
}

func writeCategory(b *strings.Builder, c *domain.Category, selected bool) {
	marker := " "
	if selected {
		marker = "*"
	}
	status := ""
	if !c.IsActive {
		status = " (inactive)"
	}
	fmt.Fprintf(b, "%s %s [%s]%s\n", marker, c.Name, c.ID, status)
	if c.Description != "" {
		fmt.Fprintf(b, "    %s\n", c.Description)
	}
	if len(c.Keywords) > 0 {
		fmt.Fprintf(b, "    keywords: %s\n", strings.Join(c.Keywords, ", "))
	}
}
