package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/curatorapp/curator-server/internal/query"
	"github.com/curatorapp/curator-server/internal/session"
)

// ListCategoriesTool handles list_categories.
type ListCategoriesTool struct {
	sess *session.Session
}

// Definition returns the MCP tool definition for list_categories.
func (t *ListCategoriesTool) Definition() mcp.Tool {
	return mcp.NewTool("list_categories",
		mcp.WithDescription("List the user's categories. The selected one is marked with *."),
	)
}

// Handle processes the list_categories tool call.
func (t *ListCategoriesTool) Handle(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := t.sess.Categories.Snapshot()
	if len(snap.Categories) == 0 {
		return mcp.NewToolResultText("No categories yet."), nil
	}

	selectedID := ""
	if snap.Selected != nil {
		selectedID = snap.Selected.ID
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d categories:\n\n", len(snap.Categories))
	for _, c := range snap.Categories {
		writeCategory(&b, c, c.ID == selectedID)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// FindCategoryTool handles find_category.
type FindCategoryTool struct {
	sess *session.Session
}

// Definition returns the MCP tool definition for find_category.
func (t *FindCategoryTool) Definition() mcp.Tool {
	return mcp.NewTool("find_category",
		mcp.WithDescription("Find categories by approximate name, best match first."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Name or fragment, matched case-insensitively"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 5)"),
		),
	)
}

// Handle processes the find_category tool call.
func (t *FindCategoryTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if strings.TrimSpace(name) == "" {
		return mcp.NewToolResultError("'name' is required"), nil
	}

	matches := t.sess.Categories.Find(name, intArg(req, "limit", 5))
	if len(matches) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No category matches %q.", name)), nil
	}

	var b strings.Builder
	for _, c := range matches {
		writeCategory(&b, c, false)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// EnhanceQueryTool handles enhance_query.
type EnhanceQueryTool struct {
	sess *session.Session
}

// Definition returns the MCP tool definition for enhance_query.
func (t *EnhanceQueryTool) Definition() mcp.Tool {
	return mcp.NewTool("enhance_query",
		mcp.WithDescription("Show how a category rewrites a query: up to three keywords are appended and the category name is prepended when missing."),
		mcp.WithString("category",
			mcp.Required(),
			mcp.Description("Category ID or name"),
		),
		mcp.WithString("query",
			mcp.Description("User query; may be empty"),
		),
	)
}

// Handle processes the enhance_query tool call.
func (t *EnhanceQueryTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, err := resolveCategory(t.sess, req.GetString("category", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	e := query.Enhance(c, req.GetString("query", ""))

	var b strings.Builder
	fmt.Fprintf(&b, "Enhanced query: %s\n", e.Query)
	if len(e.AddedKeywords) > 0 {
		fmt.Fprintf(&b, "Added keywords: %s\n", strings.Join(e.AddedKeywords, ", "))
	}
	if e.PrependedName {
		fmt.Fprintf(&b, "Prepended category name %q\n", c.Name)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// SelectCategoryTool handles select_category.
type SelectCategoryTool struct {
	sess *session.Session
}

// Definition returns the MCP tool definition for select_category.
func (t *SelectCategoryTool) Definition() mcp.Tool {
	return mcp.NewTool("select_category",
		mcp.WithDescription("Select the category that biases searches. An empty category clears the selection."),
		mcp.WithString("category",
			mcp.Description("Category ID or name; empty to clear"),
		),
	)
}

// Handle processes the select_category tool call.
func (t *SelectCategoryTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref := strings.TrimSpace(req.GetString("category", ""))
	if ref == "" {
		if err := t.sess.SelectCategory(""); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("Selection cleared."), nil
	}

	c, err := resolveCategory(t.sess, ref)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := t.sess.SelectCategory(c.ID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Selected %q.", c.Name)), nil
}
