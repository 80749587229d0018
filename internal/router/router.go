package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"courseta-backend/internal/handlers"
	"courseta-backend/internal/middleware"
	"courseta-backend/internal/websocket"
)

func New(
	chatHandler *handlers.ChatHandler,
	documentHandler *handlers.DocumentHandler,
	jobHandler *handlers.JobHandler,
	wsHub *websocket.Hub,
	frontendURL string,
	staticDir string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Chat rate limiter (30 req/min per IP)
	chatLimiter := middleware.NewRateLimiter(30, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {

		// ──── Chat ────
		r.Group(func(r chi.Router) {
			r.Use(chatLimiter.Middleware)
			r.Post("/chat", chatHandler.Ask)
		})

		// ──── Course Materials ────
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", documentHandler.Upload)
			r.Post("/youtube", documentHandler.RegisterVideo)
			r.Get("/", documentHandler.List)
			r.Delete("/{id}", documentHandler.Delete)
		})

		// ──── Jobs ────
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/{id}", jobHandler.Get)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	// Chat page and assets
	r.Handle("/*", http.FileServer(http.Dir(staticDir)))

	return r
}
