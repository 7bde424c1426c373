package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/iwara-dl-go/internal/domain"
)

// Version is reported by /health; release builds set it with -ldflags
var Version = "dev"

// RunStatus reports whether a batch run is active in this process
type RunStatus interface {
	IsRunning() bool
}

// HealthHandler handles health check requests
type HealthHandler struct {
	ledger domain.LedgerRepository
	runs   RunStatus
}

// NewHealthHandler creates a new health handler. runs may be nil when the process only serves the ledger.
func NewHealthHandler(ledger domain.LedgerRepository, runs RunStatus) *HealthHandler {
	return &HealthHandler{
		ledger: ledger,
		runs:   runs,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Run     struct {
		Running bool `json:"running"`
	} `json:"run"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "ok",
		Version: Version,
	}
	if h.runs != nil {
		response.Run.Running = h.runs.IsRunning()
	}

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if _, err := h.ledger.Stats(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "ledger unreadable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
