package main

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"pong-server/internal/config"
	"pong-server/internal/session"
	"pong-server/internal/ws"
)

func newRouter(manager *session.Manager, wsServer *ws.Server, cfg config.ServerConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(apiLogMiddleware()).Get("/healthz", healthHandler(manager))

	r.Route("/api/internal", func(r chi.Router) {
		r.Use(apiLogMiddleware())
		r.Use(serviceAuthMiddleware(cfg.ServiceToken))
		r.Post("/games", createGameHandler(manager))
		r.Get("/games", listGamesHandler(manager))
		r.Get("/games/{room_id}", gameStateHandler(manager))
		r.Delete("/games/{room_id}", forceEndGameHandler(manager))
	})

	// The socket path carries its own lifecycle logging; the request
	// logger would only record the upgrade.
	r.Get("/ws/{room_id}", wsServer.HandleWS)

	return r
}

func serviceAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" && r.Header.Get("x-service-token") != token {
				writeHTTPError(w, http.StatusUnauthorized, "UNAUTHORIZED")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func logRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 16)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
