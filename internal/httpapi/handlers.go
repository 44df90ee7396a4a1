package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arcadia-gg/session-server/internal/board"
	"github.com/arcadia-gg/session-server/internal/hub"
	"github.com/arcadia-gg/session-server/internal/presence"
	"github.com/arcadia-gg/session-server/internal/session"
	"github.com/arcadia-gg/session-server/internal/store"
)

const replyTimeout = 10 * time.Second

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

type createSessionRequest struct {
	// Cells seeds the board; when empty a blank DefaultSize grid is used.
	Cells []board.Cell `json:"cells"`
}

type sessionResponse struct {
	session.View
	OnlineUsers     []string `json:"online_users"`
	AvailableColors []string `json:"available_colors"`
}

// CreateSession provisions the durable row; the session actor spins up on
// first join.
func CreateSession(log *zap.Logger, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// An empty body is fine; malformed JSON is not.
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}

		cells := req.Cells
		if len(cells) == 0 {
			cells = make([]board.Cell, board.DefaultSize)
		}
		for i := range cells {
			if cells[i].CellID == "" {
				cells[i].CellID = uuid.NewString()
			}
		}

		code := ""
		for {
			c, err := GenerateCode()
			if err != nil {
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}
			err = st.Create(r.Context(), c, board.NewGameState(cells))
			if errors.Is(err, store.ErrExists) {
				log.Debug("session code collision, regenerating", zap.String("code", c))
				continue
			}
			if err != nil {
				http.Error(w, "failed to create session", http.StatusInternalServerError)
				return
			}
			code = c
			break
		}

		log.Info("session created", zap.String("session_id", code), zap.Int("cells", len(cells)))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			Code string `json:"code"`
		}{Code: code})
	}
}

// GetSession returns the derived view plus presence and color availability.
func GetSession(h *hub.Hub, tracker presence.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		sess, err := h.Ensure(code)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		reply := make(chan session.View, 1)
		sess.Inbox() <- session.GetView{Reply: reply}
		var view session.View
		select {
		case view = <-reply:
		case <-time.After(replyTimeout):
			// The actor was shut down between Ensure and now.
			http.Error(w, "session unavailable", http.StatusGatewayTimeout)
			return
		}

		online, err := tracker.Online(r.Context(), code)
		if err != nil {
			online = nil
		}
		taken := make([]string, 0, len(view.Players))
		for _, p := range view.Players {
			taken = append(taken, p.Color)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sessionResponse{
			View:            view,
			OnlineUsers:     online,
			AvailableColors: board.AvailableColors(taken),
		})
	}
}

// EndSession ends and archives the session, then drops the actor.
func EndSession(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		sess, err := h.Ensure(code)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		reply := make(chan error, 1)
		sess.Inbox() <- session.EndSession{Reply: reply}
		var endErr error
		select {
		case endErr = <-reply:
		case <-time.After(replyTimeout):
			http.Error(w, "session unavailable", http.StatusGatewayTimeout)
			return
		}
		if endErr != nil {
			if errors.Is(endErr, session.ErrValidation) {
				http.Error(w, endErr.Error(), http.StatusConflict)
				return
			}
			http.Error(w, endErr.Error(), http.StatusInternalServerError)
			return
		}

		h.Inbox() <- hub.RemoveSession{SessionID: code}
		w.WriteHeader(http.StatusNoContent)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	http.Error(w, "store unavailable", http.StatusBadGateway)
}
