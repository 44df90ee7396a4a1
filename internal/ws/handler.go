package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arcadia-gg/session-server/internal/board"
	"github.com/arcadia-gg/session-server/internal/hub"
	"github.com/arcadia-gg/session-server/internal/presence"
	"github.com/arcadia-gg/session-server/internal/session"
	"github.com/arcadia-gg/session-server/internal/store"
	"github.com/arcadia-gg/session-server/internal/types"
)

const replyTimeout = 10 * time.Second

// Handler upgrades to a websocket, joins the session, and bridges the
// connection to the session actor: snapshots out, client commands in.
func Handler(log *zap.Logger, h *hub.Hub, tracker presence.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		code := q.Get("session")
		if code == "" {
			http.Error(w, "missing session", http.StatusBadRequest)
			return
		}

		player := board.Player{
			ID:         q.Get("player"),
			Name:       q.Get("name"),
			Color:      q.Get("color"),
			HoverColor: q.Get("hover_color"),
		}
		if player.ID == "" {
			player.ID = uuid.NewString()
		}
		if team, err := strconv.Atoi(q.Get("team")); err == nil {
			player.Team = team
		}

		sess, err := h.Ensure(code)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "session not found", http.StatusNotFound)
				return
			}
			http.Error(w, "store unavailable", http.StatusBadGateway)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan session.Snapshot, 8)
		joinReply := make(chan error, 1)
		sess.Inbox() <- session.Join{Player: player, Outbox: out, Reply: joinReply}
		if err := <-joinReply; err != nil {
			payload, _ := json.Marshal(types.ServerMessage{Type: "Error", Error: err.Error()})
			_ = conn.Write(r.Context(), websocket.MessageText, payload)
			return
		}
		defer func() { sess.Inbox() <- session.Leave{PlayerID: player.ID} }()

		if err := tracker.Connect(r.Context(), code, player.ID); err != nil {
			log.Warn("presence connect failed", zap.String("session_id", code), zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := tracker.Disconnect(ctx, code, player.ID); err != nil {
				log.Warn("presence disconnect failed", zap.String("session_id", code), zap.Error(err))
			}
		}()

		// Writer goroutine: snapshots until the session closes the outbox.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for snap := range out {
				msg := types.ServerMessage{
					Type:           "StateSnapshot",
					Version:        snap.Version,
					Phase:          snap.Phase,
					CompletionRate: snap.CompletionRate,
					State:          &snap.State,
					Error:          snap.Err,
				}
				payload, _ := json.Marshal(msg)
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Reader loop.
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(r.Context(), conn, "bad json")
				continue
			}

			if err := dispatch(sess, cm); err != nil {
				writeError(r.Context(), conn, err.Error())
			}
		}
	}
}

// dispatch translates one client message into a session inbox message and
// waits for its reply. Failures come back as Error frames, never as dropped
// connections.
func dispatch(sess *session.Session, cm types.ClientMessage) error {
	reply := make(chan error, 1)
	switch cm.Type {
	case "MarkCells":
		sess.Inbox() <- session.MarkCells{Updates: cm.Updates, Reply: reply}
	case "StartSession":
		sess.Inbox() <- session.StartSession{Reply: reply}
	case "PauseSession":
		sess.Inbox() <- session.PauseSession{Reply: reply}
	case "ResumeSession":
		sess.Inbox() <- session.ResumeSession{Reply: reply}
	case "EndSession":
		sess.Inbox() <- session.EndSession{Reply: reply}
	case "Reconnect":
		sess.Inbox() <- session.Reconnect{Reply: reply}
	case "ClearError":
		sess.Inbox() <- session.ClearError{}
		return nil
	default:
		return errors.New("unknown message type")
	}

	select {
	case err := <-reply:
		return err
	case <-time.After(replyTimeout):
		return errors.New("session did not respond")
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, msg string) {
	payload, _ := json.Marshal(types.ServerMessage{Type: "Error", Error: msg})
	_ = conn.Write(ctx, websocket.MessageText, payload)
}
