package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chatHandler "github.com/companionlabs/backend/internal/handler/chat"
	personaHandler "github.com/companionlabs/backend/internal/handler/persona"
	middlewarePkg "github.com/companionlabs/backend/internal/middleware"
	personaModel "github.com/companionlabs/backend/internal/model/persona"
	chatService "github.com/companionlabs/backend/internal/service/chat"
	"github.com/companionlabs/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(personas personaModel.Store, chatSvc *chatService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		personaHandler.New(personas).RegisterRoutes(api)
		chatHandler.NewHistoryHandler(chatSvc).RegisterRoutes(api)
		chatHandler.NewWebSocketHandler(chatSvc).RegisterRoutes(api)

		api.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	return r
}
