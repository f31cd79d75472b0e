package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerNavigationTools() {
	// ── list_pages ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List all pages of the website"),
	), s.handleListPages)

	// ── create_page ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_page",
		mcp.WithDescription("Create a new empty page and open it for editing"),
		mcp.WithString("title", mcp.Description("Page title"), mcp.Required()),
		mcp.WithString("slug", mcp.Description("URL path, e.g. /admissions (optional)")),
	), s.handleCreatePage)

	// ── open_page ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("open_page",
		mcp.WithDescription("Open a page for editing. The new session becomes active; later tools default to it."),
		mcp.WithString("pageId", mcp.Description("ID of the page to open"), mcp.Required()),
	), s.handleOpenPage)

	// ── list_sessions ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List open editing sessions"),
	), s.handleListSessions)

	// ── set_active_session ─────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_active_session",
		mcp.WithDescription("Set the active session for subsequent tool calls"),
		mcp.WithString("sessionId", mcp.Description("ID of the session"), mcp.Required()),
	), s.handleSetActiveSession)
}

func (s *Server) handleListPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pages, err := s.sessions.ListPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return jsonResult(pages)
}

func (s *Server) handleCreatePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	page, err := s.sessions.CreatePage(ctx, title, req.GetString("slug", ""))
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	sess, err := s.sessions.Open(ctx, page.ID)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	// Auto-set as active session
	s.setActive(sess.ID())
	return jsonResult(map[string]any{"page": page, "sessionId": sess.ID()})
}

func (s *Server) handleOpenPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID := req.GetString("pageId", "")
	if pageID == "" {
		return nil, fmt.Errorf("pageId is required")
	}
	sess, err := s.sessions.Open(ctx, pageID)
	if err != nil {
		return nil, err
	}
	s.setActive(sess.ID())
	return jsonResult(map[string]any{
		"sessionId": sess.ID(),
		"pageId":    sess.PageID(),
		"blocks":    sess.Document().Len(),
	})
}

func (s *Server) handleListSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.sessions.List())
}

func (s *Server) handleSetActiveSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("sessionId", "")
	if _, err := s.sessions.Get(id); err != nil {
		return nil, err
	}
	s.setActive(id)
	return textResult(fmt.Sprintf("Active session set to %s", id)), nil
}
