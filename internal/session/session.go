package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arcadia-gg/session-server/internal/board"
	"github.com/arcadia-gg/session-server/internal/game"
	"github.com/arcadia-gg/session-server/internal/store"
)

var (
	ErrValidation   = errors.New("invalid request")
	ErrSessionEnded = errors.New("session has ended")
)

// ErrColorTaken wraps ErrValidation so callers can match either.
var ErrColorTaken = fmt.Errorf("%w: player color already taken", ErrValidation)

const storeTimeout = 5 * time.Second

// Phase is the session lifecycle state.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseActive     Phase = "active"
	PhasePaused     Phase = "paused"
	PhaseEnded      Phase = "ended"
	PhaseError      Phase = "error"
)

// PhaseForStatus maps a persisted row status to its lifecycle phase.
func PhaseForStatus(s store.Status) Phase {
	switch s {
	case store.StatusActive:
		return PhaseActive
	case store.StatusPaused:
		return PhasePaused
	case store.StatusEnded:
		return PhaseEnded
	default:
		return PhaseNotStarted
	}
}

type Msg interface{ isSessionMsg() }

// Join registers a player and a snapshot outbox. Rejoining with a known
// player id replaces the outbox.
type Join struct {
	Player board.Player
	Outbox chan Snapshot
	Reply  chan error
}

type Leave struct{ PlayerID string }

// MarkCells applies cell updates optimistically and queues the store write.
type MarkCells struct {
	Updates []board.CellUpdate
	Reply   chan error
}

type StartSession struct{ Reply chan error }
type PauseSession struct{ Reply chan error }
type ResumeSession struct{ Reply chan error }
type EndSession struct{ Reply chan error }

// ClearError leaves the Error phase and returns to the prior phase.
type ClearError struct{}

// Reconnect re-fetches the session row, drops pending optimistic updates,
// and rebroadcasts. The only recovery action; it is caller-triggered.
type Reconnect struct{ Reply chan error }

type GetView struct{ Reply chan View }

type Shutdown struct{}

func (Join) isSessionMsg()          {}
func (Leave) isSessionMsg()         {}
func (MarkCells) isSessionMsg()     {}
func (StartSession) isSessionMsg()  {}
func (PauseSession) isSessionMsg()  {}
func (ResumeSession) isSessionMsg() {}
func (EndSession) isSessionMsg()    {}
func (ClearError) isSessionMsg()    {}
func (Reconnect) isSessionMsg()     {}
func (GetView) isSessionMsg()       {}
func (Shutdown) isSessionMsg()      {}

// Snapshot is one broadcast frame: the visible state at a point in time.
type Snapshot struct {
	Version        int
	Phase          Phase
	State          board.GameState
	CompletionRate float64
	Err            string // set when the snapshot accompanies an Error phase
}

// View is the full derived read model for one session.
type View struct {
	SessionID      string          `json:"session_id"`
	Phase          Phase           `json:"phase"`
	Version        int             `json:"version"`
	State          board.GameState `json:"state"`
	Players        []board.Player  `json:"players"`
	CurrentPlayer  *board.Player   `json:"current_player,omitempty"`
	PlayerCount    int             `json:"player_count"`
	CompletionRate float64         `json:"completion_rate"`
	SessionTime    time.Duration   `json:"session_time"`
	Error          string          `json:"error,omitempty"`
}

// Session owns all state for one live board game: the synced board mirror,
// the lifecycle machine, and the player roster. Everything goes through the
// inbox; nothing here is shared between goroutines.
type Session struct {
	inbox chan Msg
	id    string
	log   *zap.Logger
	store store.Store
	sync  *game.Syncer

	phase     Phase
	prevPhase Phase // restored by ClearError
	lastErr   error

	players   map[string]board.Player
	joinOrder []string
	clients   map[string]chan Snapshot

	activeFor time.Duration // accumulated Active time across pauses
	resumedAt time.Time     // when the phase last became Active

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, log *zap.Logger, st store.Store, id string, initial board.GameState, phase Phase) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		inbox:   make(chan Msg, 64),
		id:      id,
		log:     log.With(zap.String("session_id", id)),
		store:   st,
		sync:    game.NewSyncer(ctx, st, id, initial),
		phase:   phase,
		players: make(map[string]board.Player),
		clients: make(map[string]chan Snapshot),
		ctx:     ctx,
		cancel:  cancel,
	}
	if phase == PhaseActive {
		s.resumedAt = time.Now()
	}
	go s.loop()
	return s
}

// Inbox exposes the message channel to the WS layer and tests.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) ID() string { return s.id }

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case res := <-s.sync.Results():
			done := s.sync.Resolve(res)
			if done.Outcome == game.OutcomeReverted {
				s.fail(fmt.Errorf("board write failed: %w", done.Err))
			}
			s.broadcast(s.snapshot(done.State))

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- s.handleJoin(msg)

			case Leave:
				// Close the outbox so the connection's writer goroutine
				// exits; broadcast/shutdown only reach entries still in the
				// map.
				if ch, ok := s.clients[msg.PlayerID]; ok {
					close(ch)
					delete(s.clients, msg.PlayerID)
				}

			case MarkCells:
				msg.Reply <- s.handleMark(msg)

			case StartSession:
				msg.Reply <- s.transition(PhaseNotStarted, PhaseActive, store.StatusActive)

			case PauseSession:
				msg.Reply <- s.transition(PhaseActive, PhasePaused, store.StatusPaused)

			case ResumeSession:
				msg.Reply <- s.transition(PhasePaused, PhaseActive, store.StatusActive)

			case EndSession:
				msg.Reply <- s.handleEnd()

			case ClearError:
				if s.phase == PhaseError {
					s.phase = s.prevPhase
					s.lastErr = nil
					s.broadcast(s.snapshot(s.sync.State()))
				}

			case Reconnect:
				msg.Reply <- s.handleReconnect()

			case GetView:
				msg.Reply <- s.view()

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) handleJoin(msg Join) error {
	if s.phase == PhaseEnded {
		return ErrSessionEnded
	}
	p := msg.Player
	if p.ID == "" || p.Name == "" {
		return fmt.Errorf("%w: player id and name are required", ErrValidation)
	}
	for id, other := range s.players {
		if id != p.ID && other.Color == p.Color && p.Color != "" {
			return ErrColorTaken
		}
	}

	if _, known := s.players[p.ID]; !known {
		s.joinOrder = append(s.joinOrder, p.ID)
	}
	s.players[p.ID] = p
	if old, ok := s.clients[p.ID]; ok && old != msg.Outbox {
		close(old) // rejoin replaces the previous connection
	}
	s.clients[p.ID] = msg.Outbox

	// New subscribers get the current snapshot immediately.
	msg.Outbox <- s.snapshot(s.sync.State())
	s.log.Info("player joined",
		zap.String("player_id", p.ID),
		zap.String("color", p.Color),
		zap.Int("players", len(s.players)))
	return nil
}

func (s *Session) handleMark(msg MarkCells) error {
	switch s.phase {
	case PhaseEnded:
		return ErrSessionEnded
	case PhaseError:
		return fmt.Errorf("%w: session is in error state, clear it first", ErrValidation)
	}

	if _, err := s.sync.Update(msg.Updates); err != nil {
		return err
	}
	// Broadcast the optimistic state right away; the confirmed state follows
	// when the write resolves.
	s.broadcast(s.snapshot(s.sync.State()))
	return nil
}

func (s *Session) transition(from, to Phase, status store.Status) error {
	if s.phase != from {
		return fmt.Errorf("%w: cannot go %s -> %s from %s", ErrValidation, from, to, s.phase)
	}

	ctx, cancel := context.WithTimeout(s.ctx, storeTimeout)
	defer cancel()
	if err := s.store.SetStatus(ctx, s.id, status); err != nil {
		s.fail(fmt.Errorf("persist status %s: %w", status, err))
		s.broadcast(s.snapshot(s.sync.State()))
		return err
	}

	now := time.Now()
	if from == PhaseActive {
		s.activeFor += now.Sub(s.resumedAt)
	}
	if to == PhaseActive {
		s.resumedAt = now
	}
	s.phase = to
	s.log.Info("session transition", zap.String("from", string(from)), zap.String("to", string(to)))
	s.broadcast(s.snapshot(s.sync.State()))
	return nil
}

func (s *Session) handleEnd() error {
	if s.phase != PhaseActive && s.phase != PhasePaused {
		return fmt.Errorf("%w: cannot end a %s session", ErrValidation, s.phase)
	}

	ctx, cancel := context.WithTimeout(s.ctx, storeTimeout)
	defer cancel()
	if err := s.store.Archive(ctx, s.id); err != nil {
		s.fail(fmt.Errorf("archive session: %w", err))
		s.broadcast(s.snapshot(s.sync.State()))
		return err
	}

	if s.phase == PhaseActive {
		s.activeFor += time.Since(s.resumedAt)
	}
	s.phase = PhaseEnded
	s.log.Info("session ended", zap.Duration("active_for", s.activeFor))
	s.broadcast(s.snapshot(s.sync.State()))
	return nil
}

func (s *Session) handleReconnect() error {
	ctx, cancel := context.WithTimeout(s.ctx, storeTimeout)
	defer cancel()

	state, err := s.store.Read(ctx, s.id)
	if err != nil {
		s.fail(fmt.Errorf("reconnect read: %w", err))
		return err
	}
	status, err := s.store.ReadStatus(ctx, s.id)
	if err != nil {
		s.fail(fmt.Errorf("reconnect status: %w", err))
		return err
	}

	s.sync.Reset(state)
	if s.phase == PhaseError {
		s.lastErr = nil
	}
	s.phase = PhaseForStatus(status)
	s.broadcast(s.snapshot(s.sync.State()))
	return nil
}

// fail records the failure and enters the Error phase, remembering where to
// return on ClearError. Failures are scoped to the session, never fatal.
func (s *Session) fail(err error) {
	if s.phase != PhaseError {
		s.prevPhase = s.phase
		s.phase = PhaseError
	}
	s.lastErr = err
	s.log.Warn("session error", zap.Error(err))
}

func (s *Session) sessionTime() time.Duration {
	t := s.activeFor
	if s.phase == PhaseActive {
		t += time.Since(s.resumedAt)
	}
	return t
}

func (s *Session) snapshot(state board.GameState) Snapshot {
	snap := Snapshot{
		Version:        state.Version,
		Phase:          s.phase,
		State:          state,
		CompletionRate: board.CompletionRate(state),
	}
	if s.lastErr != nil {
		snap.Err = s.lastErr.Error()
	}
	return snap
}

func (s *Session) view() View {
	state := s.sync.State()
	v := View{
		SessionID:      s.id,
		Phase:          s.phase,
		Version:        state.Version,
		State:          state,
		PlayerCount:    len(s.players),
		CompletionRate: board.CompletionRate(state),
		SessionTime:    s.sessionTime(),
	}
	for _, id := range s.joinOrder {
		v.Players = append(v.Players, s.players[id])
	}
	if i := state.CurrentPlayer; i >= 0 && i < len(s.joinOrder) {
		p := s.players[s.joinOrder[i]]
		v.CurrentPlayer = &p
	}
	if s.lastErr != nil {
		v.Error = s.lastErr.Error()
	}
	return v
}

func (s *Session) broadcast(snap Snapshot) {
	for id, ch := range s.clients {
		select {
		case ch <- snap:
		default:
			// Client is slow or full - drop them.
			close(ch)
			delete(s.clients, id)
		}
	}
}

func (s *Session) shutdown() {
	for id, ch := range s.clients {
		close(ch)
		delete(s.clients, id)
	}
	s.sync.Close()
	s.cancel()
}
