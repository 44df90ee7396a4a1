package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/arcadia-gg/session-server/internal/board"
	"github.com/arcadia-gg/session-server/internal/hub"
	"github.com/arcadia-gg/session-server/internal/presence"
	"github.com/arcadia-gg/session-server/internal/store"
)

// downStore fails every read, standing in for an unreachable database.
type downStore struct{ *store.Memory }

func (downStore) Read(ctx context.Context, sessionID string) (board.GameState, error) {
	return board.GameState{}, store.ErrRemote
}

func wsStatus(t *testing.T, st store.Store, target string) int {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := hub.NewHub(ctx, zap.NewNop(), st)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	Handler(zap.NewNop(), h, presence.NewMemory()).ServeHTTP(rec, req)
	return rec.Code
}

func TestHandler_UnknownSessionIsNotFound(t *testing.T) {
	if got := wsStatus(t, store.NewMemory(), "/ws?session=NOPE"); got != http.StatusNotFound {
		t.Fatalf("want 404 for unknown session, got %d", got)
	}
}

func TestHandler_StoreFailureIsBadGateway(t *testing.T) {
	st := downStore{store.NewMemory()}
	if got := wsStatus(t, st, "/ws?session=ZED123"); got != http.StatusBadGateway {
		t.Fatalf("want 502 when the store is down, got %d", got)
	}
}

func TestHandler_MissingSessionParamIsBadRequest(t *testing.T) {
	if got := wsStatus(t, store.NewMemory(), "/ws"); got != http.StatusBadRequest {
		t.Fatalf("want 400 without a session code, got %d", got)
	}
}
