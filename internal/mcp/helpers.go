package mcpserver

import (
	"encoding/json"

	"pagebuilder/internal/domain"
)

// parseJSON parses a JSON string into the target type.
func parseJSON(data string, target any) error {
	return json.Unmarshal([]byte(data), target)
}

type blockSummary struct {
	ID      string           `json:"id"`
	Type    domain.BlockType `json:"type"`
	Index   int              `json:"index"`
	Summary string           `json:"summary,omitempty"`
}
