package game

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/arcadia-gg/session-server/internal/board"
	"github.com/arcadia-gg/session-server/internal/store"
)

const writeTimeout = 5 * time.Second

// Outcome tags how an update ultimately resolved against the store.
type Outcome string

const (
	// OutcomeApplied means the store confirmed the write; the visible state
	// now includes the server-confirmed version.
	OutcomeApplied Outcome = "applied"
	// OutcomeReverted means the write failed and its optimistic effect was
	// compensated away from the visible state.
	OutcomeReverted Outcome = "reverted"
)

// WriteResult is the raw completion of one store write, delivered on
// Results. The owner must pass it to Resolve.
type WriteResult struct {
	ID    string
	State board.GameState
	Err   error
}

// WriteDone is the resolved outcome of one update.
type WriteDone struct {
	ID      string
	Outcome Outcome
	// State is the visible state after resolution: confirmed state plus any
	// still-pending optimistic updates.
	State board.GameState
	Err   error
}

type pendingWrite struct {
	id      string
	updates []board.CellUpdate
}

// Syncer keeps a client-visible mirror of one session's board ahead of the
// store. Updates apply to the mirror immediately and drain through a write
// queue with at most one write in flight, so writes from one session never
// race each other.
//
// A Syncer is owned by a single goroutine (the session loop) and is not safe
// for concurrent use; only the spawned write goroutines run elsewhere, and
// they touch nothing but the results channel.
type Syncer struct {
	store     store.Store
	sessionID string

	confirmed board.GameState // last state the store acknowledged
	visible   board.GameState // confirmed plus pending optimistic updates
	queue     []pendingWrite  // queue[0] is in flight when inflight is set
	inflight  bool

	results chan WriteResult
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewSyncer(parent context.Context, st store.Store, sessionID string, initial board.GameState) *Syncer {
	ctx, cancel := context.WithCancel(parent)
	return &Syncer{
		store:     st,
		sessionID: sessionID,
		confirmed: board.Clone(initial),
		visible:   board.Clone(initial),
		results:   make(chan WriteResult, 16),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// State returns the visible (optimistically updated) state.
func (s *Syncer) State() board.GameState {
	return board.Clone(s.visible)
}

// Results delivers write completions. The owner selects on this channel and
// feeds each result to Resolve.
func (s *Syncer) Results() <-chan WriteResult {
	return s.results
}

// Update validates the cell indices, applies the updates to the visible
// state immediately, and queues the write. Out-of-range updates fail with
// board.ErrIndexOutOfRange and leave the visible state untouched.
func (s *Syncer) Update(updates []board.CellUpdate) (string, error) {
	next, err := board.ApplyUpdates(s.visible, updates)
	if err != nil {
		return "", err
	}
	// The store owns the version; optimistic state keeps the confirmed one.
	next.Version = s.visible.Version
	s.visible = next

	w := pendingWrite{id: uuid.NewString(), updates: cloneUpdates(updates)}
	s.queue = append(s.queue, w)
	s.dispatch()
	return w.id, nil
}

// Resolve applies one write completion: on success the server-confirmed
// state is adopted and remaining optimistic updates are rebased on top of
// it; on failure the failed write is dropped and the visible state rebuilt
// without it (the compensating revert).
func (s *Syncer) Resolve(res WriteResult) WriteDone {
	s.inflight = false
	if len(s.queue) > 0 && s.queue[0].id == res.ID {
		s.queue = s.queue[1:]
	}

	done := WriteDone{ID: res.ID, Outcome: OutcomeApplied}
	if res.Err != nil {
		done.Outcome = OutcomeReverted
		done.Err = res.Err
	} else {
		s.confirmed = res.State
	}

	s.rebase()
	s.dispatch()
	done.State = board.Clone(s.visible)
	return done
}

// Reset adopts a freshly fetched server state and discards pending
// optimistic updates. Used on reconnect.
func (s *Syncer) Reset(state board.GameState) {
	s.confirmed = board.Clone(state)
	s.queue = nil
	s.rebase()
}

// Close discards late write completions. In-flight requests are abandoned;
// their responses are dropped rather than applied after the owner is gone.
func (s *Syncer) Close() {
	s.cancel()
}

func (s *Syncer) rebase() {
	v := board.Clone(s.confirmed)
	for _, w := range s.queue {
		next, err := board.ApplyUpdates(v, w.updates)
		if err != nil {
			// Indices were validated at enqueue time against the same board
			// size, so this only trips if the board shrank server-side.
			continue
		}
		next.Version = v.Version
		v = next
	}
	s.visible = v
}

func (s *Syncer) dispatch() {
	if s.inflight || len(s.queue) == 0 {
		return
	}
	s.inflight = true
	w := s.queue[0]

	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
		defer cancel()
		state, err := s.store.Write(ctx, s.sessionID, w.updates)
		select {
		case s.results <- WriteResult{ID: w.id, State: state, Err: err}:
		case <-s.ctx.Done():
			// Owner unmounted; drop the late response.
		}
	}()
}

func cloneUpdates(updates []board.CellUpdate) []board.CellUpdate {
	out := make([]board.CellUpdate, len(updates))
	copy(out, updates)
	return out
}
