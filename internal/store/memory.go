package store

import (
	"context"
	"sync"

	"github.com/arcadia-gg/session-server/internal/board"
)

// Memory implements Store with a mutex-guarded map. It backs tests and local
// development when no DATABASE_URL is configured, with the same merge and
// versioning semantics as the Postgres store.
type Memory struct {
	mu   sync.Mutex
	rows map[string]*memoryRow
}

type memoryRow struct {
	state  board.GameState
	status Status
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[string]*memoryRow)}
}

func (m *Memory) Create(ctx context.Context, sessionID string, state board.GameState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[sessionID]; ok {
		return ErrExists
	}
	m.rows[sessionID] = &memoryRow{state: board.Clone(state), status: StatusNotStarted}
	return nil
}

func (m *Memory) Read(ctx context.Context, sessionID string) (board.GameState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[sessionID]
	if !ok {
		return board.GameState{}, ErrNotFound
	}
	return board.Clone(row.state), nil
}

func (m *Memory) ReadStatus(ctx context.Context, sessionID string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[sessionID]
	if !ok {
		return "", ErrNotFound
	}
	return row.status, nil
}

func (m *Memory) Write(ctx context.Context, sessionID string, updates []board.CellUpdate) (board.GameState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[sessionID]
	if !ok {
		return board.GameState{}, ErrNotFound
	}
	if row.status == StatusEnded {
		return board.GameState{}, ErrArchived
	}

	merged, err := board.ApplyUpdates(row.state, updates)
	if err != nil {
		return board.GameState{}, err
	}
	merged.Version = row.state.Version + 1
	row.state = merged
	return board.Clone(merged), nil
}

func (m *Memory) SetStatus(ctx context.Context, sessionID string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[sessionID]
	if !ok {
		return ErrNotFound
	}
	row.status = status
	return nil
}

func (m *Memory) Archive(ctx context.Context, sessionID string) error {
	return m.SetStatus(ctx, sessionID, StatusEnded)
}
