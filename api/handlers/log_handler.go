package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/iwara-dl-go/pkg/logger"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

// LogHandler serves the categorized run logs written under the logs directory
type LogHandler struct {
	logReader *logger.LogReader
}

// NewLogHandler creates a log handler reading logsDir
func NewLogHandler(logsDir string) *LogHandler {
	return &LogHandler{logReader: logger.NewLogReader(logsDir)}
}

// logQuery is the common addressing of a log request: which file and how many entries
type logQuery struct {
	category logger.LogCategory
	date     time.Time
	limit    int
}

// parseCategory reads and validates the :category path parameter
func parseCategory(c *gin.Context) (logger.LogCategory, bool) {
	category := logger.LogCategory(c.Param("category"))
	if !logger.ValidCategory(category) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category"})
		return "", false
	}
	return category, true
}

// bindLogQuery reads :category, ?date=YYYY-MM-DD (default today) and ?limit (capped).
// It writes the 400 response itself and reports false on bad input.
func bindLogQuery(c *gin.Context) (logQuery, bool) {
	category, ok := parseCategory(c)
	if !ok {
		return logQuery{}, false
	}

	query := logQuery{category: category, date: time.Now(), limit: defaultLogLimit}
	if raw := c.Query("date"); raw != "" {
		date, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date format, use YYYY-MM-DD"})
			return logQuery{}, false
		}
		query.date = date
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit >= 0 {
		query.limit = min(limit, maxLogLimit)
	}
	return query, true
}

// GetLogs handles GET /api/v1/logs/:category
func (h *LogHandler) GetLogs(c *gin.Context) {
	query, ok := bindLogQuery(c)
	if !ok {
		return
	}

	entries, err := h.logReader.ReadLogs(query.category, query.date, query.limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category": query.category,
		"date":     query.date.Format("2006-01-02"),
		"count":    len(entries),
		"entries":  entries,
	})
}

// SearchLogs handles GET /api/v1/logs/:category/search?q=
func (h *LogHandler) SearchLogs(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
		return
	}
	query, ok := bindLogQuery(c)
	if !ok {
		return
	}

	entries, err := h.logReader.SearchLogs(query.category, query.date, q, query.limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category": query.category,
		"query":    q,
		"count":    len(entries),
		"entries":  entries,
	})
}

// GetCategories handles GET /api/v1/logs/categories
func (h *LogHandler) GetCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": logger.Categories})
}

// ExportLogs handles GET /api/v1/logs/:category/export, sending the raw day file
func (h *LogHandler) ExportLogs(c *gin.Context) {
	query, ok := bindLogQuery(c)
	if !ok {
		return
	}
	c.FileAttachment(h.logReader.GetLogPath(query.category, query.date), logger.LogFileName(query.category, query.date))
}
