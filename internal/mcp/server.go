package mcpserver

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"pagebuilder/internal/editor"
	"pagebuilder/internal/service"
)

// Server is the MCP server for the page builder.
// It exposes tools, resources and prompts so AI agents can edit pages.
type Server struct {
	mcp      *server.MCPServer
	sessions *service.SessionService

	// Active session (set by open_page and set_active_session)
	mu              sync.Mutex
	activeSessionID string
}

// Deps holds the dependencies passed from the app layer to the MCP server.
type Deps struct {
	Sessions *service.SessionService
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	s := &Server{sessions: deps.Sessions}

	s.mcp = server.NewMCPServer(
		"pagebuilder-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerNavigationTools()
	s.registerBlockTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	logrus.Info("starting MCP stdio server")
	return server.ServeStdio(s.mcp)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

func (s *Server) setActive(id string) {
	s.mu.Lock()
	s.activeSessionID = id
	s.mu.Unlock()
}

func (s *Server) active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeSessionID
}

// resolveSession returns the session named by the sessionId argument or
// falls back to the active session.
func (s *Server) resolveSession(args map[string]any) (*editor.Session, error) {
	id, _ := args["sessionId"].(string)
	if id == "" {
		id = s.active()
	}
	if id == "" {
		return nil, fmt.Errorf("no sessionId provided and no active session (use open_page first)")
	}
	return s.sessions.Get(id)
}

// requireBlock validates that blockId names a block of the session.
func requireBlock(sess *editor.Session, args map[string]any) (string, error) {
	id, _ := args["blockId"].(string)
	if id == "" {
		return "", fmt.Errorf("blockId is required")
	}
	if _, ok := sess.Document().Find(id); !ok {
		return "", fmt.Errorf("block %s not found", id)
	}
	return id, nil
}
