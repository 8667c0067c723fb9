package handlers

import (
	"fmt"
	"log"
	"net/http"

	"github.com/kiitris/kiitris-backend/internal/database"
	"github.com/kiitris/kiitris-backend/internal/services/tetris"
)

// PublicHandler handles public API endpoints
type PublicHandler struct {
	DatabaseService *database.DatabaseService // nil when running without storage
	SessionManager  *tetris.SessionManager
}

// NewPublicHandler creates a new instance of PublicHandler
func NewPublicHandler(dbService *database.DatabaseService, sm *tetris.SessionManager) *PublicHandler {
	return &PublicHandler{
		DatabaseService: dbService,
		SessionManager:  sm,
	}
}

func PublicHandlerFunc(w http.ResponseWriter, r *http.Request) {
	log.Println("Request to public endpoint: /api/public")
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "Hello, this is public content! (From /api/public)")
}

// HealthHandler reports the number of running sessions and whether the database answers.
// GET /api/health
func (h *PublicHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	dbStatus := "disabled"
	if h.DatabaseService != nil {
		dbStatus = "up"
		if err := h.DatabaseService.DB.PingContext(r.Context()); err != nil {
			log.Printf("HealthHandler: database ping failed: %v", err)
			dbStatus = "down"
			status = http.StatusServiceUnavailable
		}
	}

	WriteJSONResponse(w, status, map[string]interface{}{
		"status":   http.StatusText(status),
		"sessions": h.SessionManager.SessionCount(),
		"database": dbStatus,
	})
}
