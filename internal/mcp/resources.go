package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"pagebuilder/internal/domain"
)

func (s *Server) registerResources() {
	// ── pagebuilder://block-types ──────────────────────
	s.mcp.AddResource(mcp.NewResource(
		"pagebuilder://block-types",
		"Block Types",
		mcp.WithResourceDescription("Block types with their default content"),
		mcp.WithMIMEType("application/json"),
	), s.handleBlockTypesResource)

	// ── pagebuilder://session/{sessionId}/view ─────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"pagebuilder://session/{sessionId}/view",
			"Session View",
		),
		s.handleSessionViewResource,
	)
}

func (s *Server) handleBlockTypesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	type blockTypeInfo struct {
		Type     domain.BlockType `json:"type"`
		Defaults domain.Payload   `json:"defaults"`
	}
	infos := make([]blockTypeInfo, len(domain.BlockTypes))
	for i, t := range domain.BlockTypes {
		infos[i] = blockTypeInfo{Type: t, Defaults: domain.DefaultPayload(t)}
	}

	data, _ := json.MarshalIndent(infos, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "pagebuilder://block-types",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleSessionViewResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	sessionID := extractSessionIDFromURI(uri)
	if sessionID == "" {
		return nil, fmt.Errorf("could not extract sessionId from URI: %s", uri)
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	data, _ := json.MarshalIndent(sess.View(), "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// extractSessionIDFromURI extracts the ID from "pagebuilder://session/{id}/view".
func extractSessionIDFromURI(uri string) string {
	const prefix = "pagebuilder://session/"
	const suffix = "/view"
	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}
	id := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
