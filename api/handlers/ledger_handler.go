package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/iwara-dl-go/internal/domain"
	"go.uber.org/zap"
)

// LedgerHandler serves the completion ledger read-only
type LedgerHandler struct {
	ledger domain.LedgerRepository
	logger *zap.Logger
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(ledger domain.LedgerRepository, log *zap.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger: ledger,
		logger: log,
	}
}

// RawLedger handles GET /ecchiData with the ledger file shape the web page expects
func (h *LedgerHandler) RawLedger(c *gin.Context) {
	snapshot, err := h.ledger.Snapshot()
	if err != nil {
		h.logger.Error("Failed to read ledger", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read ledger"})
		return
	}

	data, err := snapshot.MarshalJSON()
	if err != nil {
		h.logger.Error("Failed to encode ledger", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode ledger"})
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// ListRecords handles GET /api/v1/ledger
func (h *LedgerHandler) ListRecords(c *gin.Context) {
	snapshot, err := h.ledger.Snapshot()
	if err != nil {
		h.logger.Error("Failed to read ledger", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read ledger"})
		return
	}

	var filter *bool
	if successStr := c.Query("success"); successStr != "" {
		success, err := strconv.ParseBool(successStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "success must be true or false"})
			return
		}
		filter = &success
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	records := make([]*domain.LedgerRecord, 0)
	for _, record := range snapshot.SortedRecords() {
		if filter != nil && record.Success != *filter {
			continue
		}
		records = append(records, record)
	}

	total := len(records)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records[offset:end],
		"count":   end - offset,
		"total":   total,
		"offset":  offset,
		"limit":   limit,
	})
}

// GetRecord handles GET /api/v1/ledger/:id
func (h *LedgerHandler) GetRecord(c *gin.Context) {
	id := c.Param("id")

	record, err := h.ledger.Get(id)
	if err != nil {
		h.logger.Error("Failed to read ledger record", zap.String("video_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read ledger"})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "video not in ledger"})
		return
	}

	c.JSON(http.StatusOK, record)
}

// GetStats handles GET /api/v1/ledger/stats
func (h *LedgerHandler) GetStats(c *gin.Context) {
	stats, err := h.ledger.Stats()
	if err != nil {
		h.logger.Error("Failed to compute ledger stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read ledger"})
		return
	}

	c.JSON(http.StatusOK, stats)
}
