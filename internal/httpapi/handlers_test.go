package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arcadia-gg/session-server/internal/board"
	"github.com/arcadia-gg/session-server/internal/hub"
	"github.com/arcadia-gg/session-server/internal/presence"
	"github.com/arcadia-gg/session-server/internal/store"
)

func testRouter(t *testing.T) (http.Handler, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := hub.NewHub(ctx, zap.NewNop(), st)
	return SetupRoutes(zap.NewNop(), h, st, presence.NewMemory()), st
}

func TestCreateAndGetSession(t *testing.T) {
	router, st := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Len(t, created.Code, 6)

	// Row exists with a blank default board.
	state, err := st.Read(context.Background(), created.Code)
	require.NoError(t, err)
	require.Len(t, state.CurrentState, board.DefaultSize)
	for _, c := range state.CurrentState {
		require.NotEmpty(t, c.CellID)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/"+created.Code, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, created.Code, got.SessionID)
	require.EqualValues(t, "not_started", got.Phase)
	require.Zero(t, got.CompletionRate)
	require.Equal(t, board.Palette, got.AvailableColors)
}

func TestCreateSessionWithSeededCells(t *testing.T) {
	router, st := testRouter(t)

	body, err := json.Marshal(createSessionRequest{
		Cells: []board.Cell{{Text: "first blood", CellID: "c1"}, {Text: "pentakill"}},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	state, err := st.Read(context.Background(), created.Code)
	require.NoError(t, err)
	require.Len(t, state.CurrentState, 2)
	require.Equal(t, "c1", state.CurrentState[0].CellID)
	require.NotEmpty(t, state.CurrentState[1].CellID, "missing cell ids get generated")
}

func TestGetSessionNotFound(t *testing.T) {
	router, _ := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/NOPE99", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEndSessionBeforeStartConflicts(t *testing.T) {
	router, st := testRouter(t)

	require.NoError(t, st.Create(context.Background(), "ABC123", board.NewGameState(make([]board.Cell, 1))))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/sessions/ABC123", nil))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHealthz(t *testing.T) {
	router, _ := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
