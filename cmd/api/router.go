package main

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"

	"github.com/kiitris/kiitris-backend/internal/api/handlers"
	"github.com/kiitris/kiitris-backend/internal/api/middleware"
)

// routerDeps はルーティングに必要なハンドラーをまとめたものです。
type routerDeps struct {
	auth           *middleware.Authenticator
	games          *handlers.GameHandler
	results        *handlers.ResultHandler
	public         *handlers.PublicHandler
	allowedOrigins []string
}

// newRouter はAPIのルーティングを組み立て、CORSを適用したハンドラーを返します。
func newRouter(d routerDeps) http.Handler {
	r := mux.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Logger, chimw.Recoverer)

	// 認証不要な公開エンドポイント
	r.HandleFunc("/api/public", handlers.PublicHandlerFunc).Methods(http.MethodGet)
	r.HandleFunc("/api/health", d.public.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/results", d.results.GetTopResults).Methods(http.MethodGet)
	r.HandleFunc("/api/results/user/{userID}", d.results.GetUserResult).Methods(http.MethodGet)

	// WebSocketは最初のメッセージで認証するため、AuthMiddlewareの外に置く
	r.HandleFunc("/ws/games/{sessionID}", d.games.HandleWebSocketConnection).Methods(http.MethodGet)

	// 認証が必要なルート
	protected := r.PathPrefix("/api/protected").Subrouter()
	protected.Use(d.auth.Middleware)
	protected.HandleFunc("/games", d.games.CreateGame).Methods(http.MethodPost)
	protected.HandleFunc("/games/{sessionID}", d.games.GetGame).Methods(http.MethodGet)
	protected.HandleFunc("/games/{sessionID}", d.games.EndGame).Methods(http.MethodDelete)
	protected.HandleFunc("/results", d.results.PostScore).Methods(http.MethodPost)

	return middleware.CORSHandler(d.allowedOrigins)(r)
}
