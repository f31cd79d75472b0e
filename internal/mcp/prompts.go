package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("build_landing_page",
		mcp.WithPromptDescription("Guide through building a school landing page from blocks"),
		mcp.WithArgument("schoolName",
			mcp.ArgumentDescription("Name of the school"),
			mcp.RequiredArgument(),
		),
	), s.handleLandingPagePrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("tidy_page",
		mcp.WithPromptDescription("Review an existing page and reorder or trim its blocks"),
		mcp.WithArgument("pageId",
			mcp.ArgumentDescription("ID of the page to review"),
			mcp.RequiredArgument(),
		),
	), s.handleTidyPagePrompt)
}

func (s *Server) handleLandingPagePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := req.Params.Arguments["schoolName"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Build a landing page for %s", name),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Build a landing page for "%s". Follow these steps:

1. Use create_page with the title "%s" to create and open a page
2. Add blocks with add_block in this order: hero, features, stats, testimonials, cta
3. Use update_block_data on the hero to set a headline mentioning %s
4. Fill the other blocks with content that fits a school website
5. Check the result with preview_page, then persist it with save_page

Use move_block or reorder_block if the order needs fixing, and undo if a step goes wrong.`, name, name, name),
				},
			},
		},
	}, nil
}

func (s *Server) handleTidyPagePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	pageID := req.Params.Arguments["pageId"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Tidy page %s", pageID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Review page %s and improve its structure:

1. Open it with open_page and inspect it with list_blocks
2. Make sure a hero block comes first and a cta block comes last
3. Remove duplicate blocks of the same type with remove_block
4. Show the result with preview_page and ask before calling save_page`, pageID),
				},
			},
		},
	}, nil
}
