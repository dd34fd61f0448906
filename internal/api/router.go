package api

import (
	"net/http"

	"drawsync/internal/middleware"

	"github.com/gorilla/mux"
)

func SetupRoutes(h *Handler, verifier middleware.TokenVerifier) *mux.Router {
	r := mux.NewRouter()

	// Global middleware: tracing first, then recovery, then CORS
	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.ErrorRecoveryMiddleware)
	r.Use(middleware.CORSMiddleware)

	// REST collaborator endpoints, guarded by the same bearer tokens the
	// socket gateway verifies
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.RequireAuth(verifier))

	api.HandleFunc("/rooms", h.CreateRoom).Methods("POST")
	api.HandleFunc("/rooms", h.ListRooms).Methods("GET")
	api.HandleFunc("/rooms/{id}", h.GetRoom).Methods("GET")
	api.HandleFunc("/rooms/{id}/messages", h.GetRoomMessages).Methods("GET")

	// Health check endpoint
	r.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// WebSocket entrypoint; authentication happens inside the gateway
	// from the connect-time token, not in middleware
	r.HandleFunc("/ws", h.HandleWebSocket)

	return r
}
