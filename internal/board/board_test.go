package board

import (
	"errors"
	"testing"
)

func blankState(n int) GameState {
	cells := make([]Cell, n)
	for i := range cells {
		cells[i] = Cell{CellID: string(rune('a' + i))}
	}
	return NewGameState(cells)
}

func TestApplyUpdates(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		updates []CellUpdate
		wantErr error
	}{
		{
			name:    "marks one cell",
			size:    1,
			updates: []CellUpdate{{Index: 0, Cell: Cell{IsMarked: true}}},
		},
		{
			name:    "marks two cells",
			size:    3,
			updates: []CellUpdate{{Index: 0, Cell: Cell{IsMarked: true}}, {Index: 2, Cell: Cell{IsMarked: true}}},
		},
		{
			name:    "index past end",
			size:    2,
			updates: []CellUpdate{{Index: 2, Cell: Cell{IsMarked: true}}},
			wantErr: ErrIndexOutOfRange,
		},
		{
			name:    "negative index",
			size:    2,
			updates: []CellUpdate{{Index: -1, Cell: Cell{IsMarked: true}}},
			wantErr: ErrIndexOutOfRange,
		},
		{
			name: "one bad index fails the whole batch",
			size: 2,
			updates: []CellUpdate{
				{Index: 0, Cell: Cell{IsMarked: true}},
				{Index: 5, Cell: Cell{IsMarked: true}},
			},
			wantErr: ErrIndexOutOfRange,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := blankState(tc.size)
			next, err := ApplyUpdates(s, tc.updates)

			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("want %v, got %v", tc.wantErr, err)
				}
				// The input must stay untouched on failure.
				for i, c := range s.CurrentState {
					if c.IsMarked {
						t.Fatalf("input cell %d mutated on failed update", i)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			for _, u := range tc.updates {
				if !next.CurrentState[u.Index].IsMarked {
					t.Fatalf("cell %d not updated", u.Index)
				}
			}
		})
	}
}

func TestApplyUpdatesDoesNotAliasInput(t *testing.T) {
	s := blankState(1)
	s.CurrentState[0].Colors = []string{"rose"}

	next, err := ApplyUpdates(s, []CellUpdate{{Index: 0, Cell: Cell{Colors: []string{"sky"}, IsMarked: true}}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	next.CurrentState[0].Colors[0] = "mutated"
	if s.CurrentState[0].Colors[0] != "rose" {
		t.Fatalf("update aliased the input state's cell slices")
	}
	if s.CurrentState[0].IsMarked {
		t.Fatalf("input state mutated")
	}
}

func TestCompletionRate(t *testing.T) {
	cases := []struct {
		name   string
		marked []int
		size   int
		want   float64
	}{
		{"empty board", nil, 0, 0},
		{"nothing marked", nil, 4, 0},
		{"half marked", []int{0, 1}, 4, 0.5},
		{"all marked", []int{0, 1, 2, 3}, 4, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := blankState(tc.size)
			for _, i := range tc.marked {
				s.CurrentState[i].IsMarked = true
			}
			if got := CompletionRate(s); got != tc.want {
				t.Fatalf("want %v, got %v", tc.want, got)
			}
		})
	}
}

func TestAvailableColors(t *testing.T) {
	got := AvailableColors([]string{"rose", "sky"})
	for _, c := range got {
		if c == "rose" || c == "sky" {
			t.Fatalf("taken color %q still offered", c)
		}
	}
	if len(got) != len(Palette)-2 {
		t.Fatalf("want %d colors, got %d", len(Palette)-2, len(got))
	}

	if got := AvailableColors(nil); len(got) != len(Palette) {
		t.Fatalf("nothing taken should offer the full palette")
	}
}
