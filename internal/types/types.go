package types

import (
	"github.com/arcadia-gg/session-server/internal/board"
	"github.com/arcadia-gg/session-server/internal/session"
)

type ClientMessage struct {
	Type    string             `json:"type"`
	Updates []board.CellUpdate `json:"updates,omitempty"`
}

type ServerMessage struct {
	Type           string           `json:"type"` // "StateSnapshot" | "Error"
	Version        int              `json:"version,omitempty"`
	Phase          session.Phase    `json:"phase,omitempty"`
	CompletionRate float64          `json:"completion_rate,omitempty"`
	State          *board.GameState `json:"state,omitempty"`
	Error          string           `json:"error,omitempty"`
}
