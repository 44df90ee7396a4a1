package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arcadia-gg/session-server/internal/board"
)

func blankCells(n int) []board.Cell {
	return make([]board.Cell, n)
}

func TestMemoryReadNotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.Read(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = m.ReadStatus(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCreateReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Create(ctx, "s1", board.NewGameState(blankCells(4))))

	got, err := m.Read(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got.CurrentState, 4)
	require.Equal(t, 0, got.Version)

	status, err := m.ReadStatus(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, StatusNotStarted, status)

	require.ErrorIs(t, m.Create(ctx, "s1", board.NewGameState(blankCells(4))), ErrExists)
}

func TestMemoryWriteBumpsVersionByOne(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Create(ctx, "s1", board.NewGameState(blankCells(2))))

	first, err := m.Write(ctx, "s1", []board.CellUpdate{{Index: 0, Cell: board.Cell{IsMarked: true}}})
	require.NoError(t, err)
	require.Equal(t, 1, first.Version)

	second, err := m.Write(ctx, "s1", []board.CellUpdate{{Index: 1, Cell: board.Cell{IsMarked: true}}})
	require.NoError(t, err)
	require.Equal(t, 2, second.Version)
}

func TestMemoryOutOfRangeWriteLeavesRowAlone(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Create(ctx, "s1", board.NewGameState(blankCells(1))))

	_, err := m.Write(ctx, "s1", []board.CellUpdate{{Index: 3, Cell: board.Cell{IsMarked: true}}})
	require.ErrorIs(t, err, board.ErrIndexOutOfRange)

	got, err := m.Read(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 0, got.Version)
	require.False(t, got.CurrentState[0].IsMarked)
}

// Two writers hitting disjoint indices must both land: the write is a merge
// at cell granularity, not a blind row overwrite.
func TestMemoryConcurrentDisjointWritesBothSurvive(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Create(ctx, "s1", board.NewGameState(blankCells(2))))

	var wg sync.WaitGroup
	for _, idx := range []int{0, 1} {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := m.Write(ctx, "s1", []board.CellUpdate{{Index: idx, Cell: board.Cell{IsMarked: true}}})
			require.NoError(t, err)
		}(idx)
	}
	wg.Wait()

	got, err := m.Read(ctx, "s1")
	require.NoError(t, err)
	require.True(t, got.CurrentState[0].IsMarked, "lost update at index 0")
	require.True(t, got.CurrentState[1].IsMarked, "lost update at index 1")
	require.Equal(t, 2, got.Version)
}

func TestMemoryArchiveRefusesWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Create(ctx, "s1", board.NewGameState(blankCells(1))))

	require.NoError(t, m.Archive(ctx, "s1"))

	status, err := m.ReadStatus(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, StatusEnded, status)

	_, err = m.Write(ctx, "s1", []board.CellUpdate{{Index: 0, Cell: board.Cell{IsMarked: true}}})
	require.ErrorIs(t, err, ErrArchived)

	// Archived rows stay readable.
	_, err = m.Read(ctx, "s1")
	require.NoError(t, err)
}

func TestMemoryReadReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	cells := blankCells(1)
	cells[0].Colors = []string{"rose"}
	require.NoError(t, m.Create(ctx, "s1", board.NewGameState(cells)))

	got, err := m.Read(ctx, "s1")
	require.NoError(t, err)
	got.CurrentState[0].Colors[0] = "mutated"

	again, err := m.Read(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "rose", again.CurrentState[0].Colors[0])
}
