package app

import (
	"context"

	"github.com/sirupsen/logrus"

	mcpserver "pagebuilder/internal/mcp"
	"pagebuilder/internal/render"
)

// ServeMCP runs the app as a standalone MCP server on stdin/stdout until
// the client disconnects. Logs go to stderr so stdout stays clean for the
// protocol.
func (a *App) ServeMCP(ctx context.Context) error {
	if err := a.StartBackground(ctx); err != nil {
		return err
	}
	mcpSrv := mcpserver.New(mcpserver.Deps{Sessions: a.Sessions})
	logrus.Info("starting standalone MCP server")
	return mcpSrv.ServeStdio()
}

// PreviewPage renders a stored page for the terminal.
func (a *App) PreviewPage(ctx context.Context, pageID string) (string, error) {
	view, err := a.Sessions.PreviewPage(ctx, pageID)
	if err != nil {
		return "", err
	}
	return render.Outline(view), nil
}
