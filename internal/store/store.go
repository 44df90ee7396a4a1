package store

import (
	"context"
	"errors"

	"github.com/arcadia-gg/session-server/internal/board"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrExists   = errors.New("session already exists")
	ErrArchived = errors.New("session archived")
	ErrRemote   = errors.New("remote store failure")
)

// Status is the lifecycle a session row persists through. Ended rows are
// archived: they stay readable but refuse writes and joins.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusActive     Status = "active"
	StatusPaused     Status = "paused"
	StatusEnded      Status = "ended"
)

// Store is the durable owner of session state.
//
// Write is a locked read-merge-write at cell-index granularity: the row is
// read under a lock, the given cells are replaced, and Version is bumped by
// exactly one. Concurrent writes to disjoint indices therefore both survive.
type Store interface {
	Create(ctx context.Context, sessionID string, state board.GameState) error
	Read(ctx context.Context, sessionID string) (board.GameState, error)
	ReadStatus(ctx context.Context, sessionID string) (Status, error)
	Write(ctx context.Context, sessionID string, updates []board.CellUpdate) (board.GameState, error)
	SetStatus(ctx context.Context, sessionID string, status Status) error
	// Archive marks the session ended. Further writes fail with ErrArchived.
	Archive(ctx context.Context, sessionID string) error
}
