package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/arcadia-gg/session-server/internal/hub"
	"github.com/arcadia-gg/session-server/internal/presence"
	"github.com/arcadia-gg/session-server/internal/store"
	"github.com/arcadia-gg/session-server/internal/ws"
)

func SetupRoutes(log *zap.Logger, h *hub.Hub, st store.Store, tracker presence.Tracker) http.Handler {
	r := chi.NewRouter()

	r.Post("/sessions", CreateSession(log, st))
	r.Get("/sessions/{code}", GetSession(h, tracker))
	r.Delete("/sessions/{code}", EndSession(h))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(log, h, tracker))
	return r
}
