package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiitris/kiitris-backend/internal/api/handlers"
	"github.com/kiitris/kiitris-backend/internal/api/middleware"
	"github.com/kiitris/kiitris-backend/internal/config"
	"github.com/kiitris/kiitris-backend/internal/database"
	"github.com/kiitris/kiitris-backend/internal/services/result"
	"github.com/kiitris/kiitris-backend/internal/services/tetris"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("エラー: 設定の読み込みに失敗しました: %v", err)
	}

	// DATABASE_URL がなければランキングなしで起動する
	var dbService *database.DatabaseService
	resultService := result.NewResultService(nil, nil)
	if cfg.DatabaseURL != "" {
		dbService, err = database.NewDatabaseService(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("エラー: データベースに接続できません: %v", err)
		}
		defer dbService.Close()
		if err := dbService.EnsureSchema(); err != nil {
			log.Fatalf("エラー: %v", err)
		}
		resultService = result.NewResultService(dbService.DB, database.NewResultRepository(dbService.DB))
	} else {
		log.Println("warning: DATABASE_URL is not set; game results will only be logged")
	}

	sessionManager := tetris.NewSessionManager(resultService, cfg.MaxSessions)
	auth := middleware.NewAuthenticator(cfg.JWTSecret, cfg.BypassAuth)

	handler := newRouter(routerDeps{
		auth:           auth,
		games:          handlers.NewGameHandler(sessionManager, auth, cfg.AllowedOrigins),
		results:        handlers.NewResultHandler(resultService),
		public:         handlers.NewPublicHandler(dbService, sessionManager),
		allowedOrigins: cfg.AllowedOrigins,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("エラー: サーバーの起動に失敗しました: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("warning: HTTP server shutdown: %v", err)
	}
	sessionManager.Shutdown()
	log.Println("Server stopped")
}
