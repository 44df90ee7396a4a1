package board

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var ErrIndexOutOfRange = errors.New("cell index out of range")

// DefaultSize is the standard 5x5 bingo grid.
const DefaultSize = 25

// Cell is one square of the playable grid. Identity is CellID; everything
// else is mutable game state.
type Cell struct {
	Text        string   `json:"text"`
	Colors      []string `json:"colors"`
	CompletedBy []string `json:"completed_by"`
	Blocked     bool     `json:"blocked"`
	IsMarked    bool     `json:"is_marked"`
	CellID      string   `json:"cell_id"`
}

// GameState mirrors one session row: the fixed-size, index-addressed grid
// plus bookkeeping. Version is owned by the store and increases by exactly
// one per accepted write.
type GameState struct {
	CurrentState  []Cell    `json:"current_state"`
	CurrentPlayer int       `json:"current_player"`
	Version       int       `json:"version"`
	LastUpdate    time.Time `json:"last_update"`
}

type Player struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Color      string `json:"color"`
	HoverColor string `json:"hover_color"`
	Team       int    `json:"team"`
}

// CellUpdate targets one grid index with a full replacement cell.
type CellUpdate struct {
	Index int  `json:"index"`
	Cell  Cell `json:"cell"`
}

func NewGameState(cells []Cell) GameState {
	s := GameState{
		CurrentState: make([]Cell, len(cells)),
		LastUpdate:   time.Now().UTC(),
	}
	for i, c := range cells {
		s.CurrentState[i] = cloneCell(c)
	}
	return s
}

// Clone deep-copies a state. Cells carry slices, so a plain struct copy
// would alias Colors/CompletedBy between the two states.
func Clone(s GameState) GameState {
	out := s
	out.CurrentState = make([]Cell, len(s.CurrentState))
	for i, c := range s.CurrentState {
		out.CurrentState[i] = cloneCell(c)
	}
	return out
}

func cloneCell(c Cell) Cell {
	out := c
	out.Colors = slices.Clone(c.Colors)
	out.CompletedBy = slices.Clone(c.CompletedBy)
	return out
}

// ApplyUpdates returns a copy of s with the updated cells replaced. Every
// index is validated before anything is touched, so a bad update never
// produces a partially applied state.
func ApplyUpdates(s GameState, updates []CellUpdate) (GameState, error) {
	for _, u := range updates {
		if u.Index < 0 || u.Index >= len(s.CurrentState) {
			return GameState{}, fmt.Errorf("%w: index %d, board size %d", ErrIndexOutOfRange, u.Index, len(s.CurrentState))
		}
	}

	next := Clone(s)
	for _, u := range updates {
		next.CurrentState[u.Index] = cloneCell(u.Cell)
	}
	next.LastUpdate = time.Now().UTC()
	return next, nil
}

// CompletionRate is the fraction of marked cells, in [0,1]. An empty board
// counts as 0.
func CompletionRate(s GameState) float64 {
	if len(s.CurrentState) == 0 {
		return 0
	}
	marked := 0
	for _, c := range s.CurrentState {
		if c.IsMarked {
			marked++
		}
	}
	return float64(marked) / float64(len(s.CurrentState))
}
