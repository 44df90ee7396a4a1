package hub

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/arcadia-gg/session-server/internal/session"
	"github.com/arcadia-gg/session-server/internal/store"
)

const (
	hydrateTimeout = 5 * time.Second
	ensureTimeout  = 10 * time.Second
)

var ErrHubClosed = errors.New("hub is shut down")

type HubMsg interface{ isHubMsg() }

// EnsureSession returns the live session actor for an id, hydrating it from
// the store on first use. Sessions only exist as actors while someone cares
// about them; the store row is the durable owner.
type EnsureSession struct {
	SessionID string
	Reply     chan EnsureReply
}

type EnsureReply struct {
	Session *session.Session
	Err     error
}

type GetSession struct {
	SessionID string
	Reply     chan *session.Session
}

type RemoveSession struct{ SessionID string }

type ShutdownHub struct{}

func (EnsureSession) isHubMsg() {}
func (GetSession) isHubMsg()    {}
func (RemoveSession) isHubMsg() {}
func (ShutdownHub) isHubMsg()   {}

type Hub struct {
	inbox    chan HubMsg
	sessions map[string]*session.Session
	store    store.Store
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context, log *zap.Logger, st store.Store) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[string]*session.Session),
		store:    st,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Ensure is a convenience wrapper over the EnsureSession message. It fails
// instead of hanging when the hub has already shut down.
func (h *Hub) Ensure(sessionID string) (*session.Session, error) {
	reply := make(chan EnsureReply, 1)
	select {
	case h.inbox <- EnsureSession{SessionID: sessionID, Reply: reply}:
	case <-h.ctx.Done():
		return nil, ErrHubClosed
	}

	select {
	case r := <-reply:
		return r.Session, r.Err
	case <-h.ctx.Done():
		return nil, ErrHubClosed
	case <-time.After(ensureTimeout):
		return nil, ErrHubClosed
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureSession:
				if s := h.sessions[msg.SessionID]; s != nil {
					msg.Reply <- EnsureReply{Session: s}
					break
				}
				s, err := h.hydrate(msg.SessionID)
				if err != nil {
					msg.Reply <- EnsureReply{Err: err}
					break
				}
				h.sessions[msg.SessionID] = s
				msg.Reply <- EnsureReply{Session: s}

			case GetSession:
				msg.Reply <- h.sessions[msg.SessionID] // may be nil

			case RemoveSession:
				if s := h.sessions[msg.SessionID]; s != nil {
					s.Inbox() <- session.Shutdown{}
					delete(h.sessions, msg.SessionID)
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) hydrate(sessionID string) (*session.Session, error) {
	ctx, cancel := context.WithTimeout(h.ctx, hydrateTimeout)
	defer cancel()

	state, err := h.store.Read(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	status, err := h.store.ReadStatus(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	h.log.Info("session hydrated",
		zap.String("session_id", sessionID),
		zap.Int("version", state.Version),
		zap.String("status", string(status)))
	return session.New(h.ctx, h.log, h.store, sessionID, state, session.PhaseForStatus(status)), nil
}

func (h *Hub) shutdown() {
	for id, s := range h.sessions {
		s.Inbox() <- session.Shutdown{}
		delete(h.sessions, id)
	}
	h.cancel()
}
