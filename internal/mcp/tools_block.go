package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/editor"
	"pagebuilder/internal/render"
)

func blockTypeList() string {
	names := make([]string, len(domain.BlockTypes))
	for i, t := range domain.BlockTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func (s *Server) registerBlockTools() {
	sessionArg := mcp.WithString("sessionId",
		mcp.Description("Session ID (optional, defaults to active session)"),
	)

	// ── list_blocks ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_blocks",
		mcp.WithDescription("List the blocks of a page in render order, optionally filtered by type"),
		sessionArg,
		mcp.WithString("type", mcp.Description("Filter by block type (optional)")),
	), s.handleListBlocks)

	// ── add_block ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_block",
		mcp.WithDescription("Append a block with default content to the end of the page"),
		mcp.WithString("type",
			mcp.Description("Block type: "+blockTypeList()),
			mcp.Required(),
		),
		sessionArg,
	), s.handleAddBlock)

	// ── remove_block ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("remove_block",
		mcp.WithDescription("Remove a block from the page. Undoable with undo."),
		mcp.WithString("blockId", mcp.Description("Block ID to remove"), mcp.Required()),
		sessionArg,
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRemoveBlock)

	// ── move_block ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("move_block",
		mcp.WithDescription("Swap a block with its neighbour above or below"),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithString("direction", mcp.Description("up or down"), mcp.Required()),
		sessionArg,
	), s.handleMoveBlock)

	// ── reorder_block ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("reorder_block",
		mcp.WithDescription("Move a block directly before or after another block"),
		mcp.WithString("blockId", mcp.Description("Block to move"), mcp.Required()),
		mcp.WithString("targetId", mcp.Description("Block to place it next to"), mcp.Required()),
		mcp.WithString("position", mcp.Description("before or after (default after)")),
		sessionArg,
	), s.handleReorderBlock)

	// ── update_block_data ──────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_block_data",
		mcp.WithDescription("Merge fields into a block's content. Top-level keys replace existing values. Not undoable."),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithString("patch",
			mcp.Description(`JSON object of fields to set, e.g. {"headline":"Open Day"}`),
			mcp.Required(),
		),
		sessionArg,
	), s.handleUpdateBlockData)

	// ── undo / redo ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Undo the last structural change (add, remove, move, reorder)"),
		sessionArg,
	), s.handleUndo)
	s.mcp.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Redo the last undone change"),
		sessionArg,
	), s.handleRedo)

	// ── save_page ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("save_page",
		mcp.WithDescription("Persist the page's full block list to the page store"),
		sessionArg,
	), s.handleSavePage)

	// ── preview_page ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("preview_page",
		mcp.WithDescription("Render a text preview of a page. Uses the session's unsaved document, or a stored page when pageId is given."),
		sessionArg,
		mcp.WithString("pageId", mcp.Description("Stored page to preview instead of a session (optional)")),
	), s.handlePreviewPage)
}

func boolPtr(v bool) *bool { return &v }

func summarizeBlock(i int, b domain.Block) blockSummary {
	return blockSummary{ID: b.ID, Type: b.Type, Index: i, Summary: render.Summary(b)}
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleListBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, err := s.resolveSession(args)
	if err != nil {
		return nil, err
	}
	filterType, _ := args["type"].(string)

	summaries := []blockSummary{}
	for i, b := range sess.Document().Blocks() {
		if filterType != "" && string(b.Type) != filterType {
			continue
		}
		summaries = append(summaries, summarizeBlock(i, b))
	}
	return jsonResult(summaries)
}

func (s *Server) handleAddBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, err := s.resolveSession(args)
	if err != nil {
		return nil, err
	}
	raw, _ := args["type"].(string)
	t, err := domain.ParseBlockType(raw)
	if err != nil {
		return nil, fmt.Errorf("%w (valid: %s)", err, blockTypeList())
	}
	id := sess.AddBlock(t)
	b, _ := sess.Document().Find(id)
	return jsonResult(b)
}

func (s *Server) handleRemoveBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, err := s.resolveSession(args)
	if err != nil {
		return nil, err
	}
	id, err := requireBlock(sess, args)
	if err != nil {
		return nil, err
	}
	sess.RemoveBlock(id)
	return textResult(fmt.Sprintf("Block %s removed", id)), nil
}

func (s *Server) handleMoveBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, err := s.resolveSession(args)
	if err != nil {
		return nil, err
	}
	id, err := requireBlock(sess, args)
	if err != nil {
		return nil, err
	}
	dir := editor.Direction(req.GetString("direction", ""))
	if dir != editor.DirectionUp && dir != editor.DirectionDown {
		return nil, fmt.Errorf("direction must be up or down")
	}
	if !sess.MoveBlock(id, dir) {
		return textResult(fmt.Sprintf("Block %s is already at the %s edge", id, edgeName(dir))), nil
	}
	return textResult(fmt.Sprintf("Block %s moved %s to position %d", id, dir, sess.Document().Index(id)+1)), nil
}

func edgeName(dir editor.Direction) string {
	if dir == editor.DirectionUp {
		return "top"
	}
	return "bottom"
}

func (s *Server) handleReorderBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, err := s.resolveSession(args)
	if err != nil {
		return nil, err
	}
	id, err := requireBlock(sess, args)
	if err != nil {
		return nil, err
	}
	target := req.GetString("targetId", "")
	if _, ok := sess.Document().Find(target); !ok {
		return nil, fmt.Errorf("target block %q not found", target)
	}
	pos := editor.Position(req.GetString("position", string(editor.PositionAfter)))
	if pos != editor.PositionBefore && pos != editor.PositionAfter {
		return nil, fmt.Errorf("position must be before or after")
	}
	if !sess.ReorderBlock(id, target, pos) {
		return textResult("Order unchanged"), nil
	}
	return textResult(fmt.Sprintf("Block %s placed %s %s", id, pos, target)), nil
}

func (s *Server) handleUpdateBlockData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, err := s.resolveSession(args)
	if err != nil {
		return nil, err
	}
	id, err := requireBlock(sess, args)
	if err != nil {
		return nil, err
	}
	var patch map[string]any
	if err := parseJSON(req.GetString("patch", ""), &patch); err != nil {
		return nil, fmt.Errorf("patch must be a JSON object: %w", err)
	}
	if err := sess.UpdateBlockData(id, patch); err != nil {
		return nil, err
	}
	b, _ := sess.Document().Find(id)
	return jsonResult(b)
}

func (s *Server) handleUndo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req.GetArguments())
	if err != nil {
		return nil, err
	}
	if !sess.Undo() {
		return textResult("Nothing to undo"), nil
	}
	return textResult(fmt.Sprintf("Undone; page has %d blocks", sess.Document().Len())), nil
}

func (s *Server) handleRedo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req.GetArguments())
	if err != nil {
		return nil, err
	}
	if !sess.Redo() {
		return textResult("Nothing to redo"), nil
	}
	return textResult(fmt.Sprintf("Redone; page has %d blocks", sess.Document().Len())), nil
}

func (s *Server) handleSavePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req.GetArguments())
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, sess.ID()); err != nil {
		return nil, fmt.Errorf("save page: %w", err)
	}
	return textResult(fmt.Sprintf("Page %s saved (%d blocks)", sess.PageID(), sess.Document().Len())), nil
}

func (s *Server) handlePreviewPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	if pageID := req.GetString("pageId", ""); pageID != "" {
		view, err := s.sessions.PreviewPage(ctx, pageID)
		if err != nil {
			return nil, err
		}
		return textResult(render.Outline(view)), nil
	}
	sess, err := s.resolveSession(args)
	if err != nil {
		return nil, err
	}
	view, err := s.sessions.Preview(sess.ID())
	if err != nil {
		return nil, err
	}
	return textResult(render.Outline(view)), nil
}
