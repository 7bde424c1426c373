package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yourusername/iwara-dl-go/api/handlers"
	"github.com/yourusername/iwara-dl-go/api/middleware"
	"github.com/yourusername/iwara-dl-go/internal/domain"
	"github.com/yourusername/iwara-dl-go/pkg/logger"
)

// RouterOptions carries what the ledger view server exposes
type RouterOptions struct {
	Ledger   domain.LedgerRepository
	Runs     handlers.RunStatus // optional
	LogsDir  string
	Gatherer prometheus.Gatherer // defaults to the global registry
	IPLookup func() (string, error)
}

// SetupRouter sets up the read-only HTTP router over the ledger and run logs
func SetupRouter(opts RouterOptions, logAdapter *logger.LoggerAdapter) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if logAdapter == nil {
		logAdapter = logger.NewNopAdapter()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	router := gin.New()

	router.Use(middleware.LoggerWithAdapter(logAdapter))
	router.Use(middleware.Recovery(logAdapter))
	router.Use(middleware.CORS())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(opts.Ledger, opts.Runs)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))

	ledgerHandler := handlers.NewLedgerHandler(opts.Ledger, logAdapter.Base())

	// Path read by the existing ledger web page
	router.GET("/ecchiData", ledgerHandler.RawLedger)

	v1 := router.Group("/api/v1")
	{
		ledger := v1.Group("/ledger")
		{
			ledger.GET("", ledgerHandler.ListRecords)
			ledger.GET("/stats", ledgerHandler.GetStats)
			ledger.GET("/:id", ledgerHandler.GetRecord)
		}

		ipHandler := handlers.NewIPHandler(opts.IPLookup, logAdapter.Base())
		v1.GET("/ip", ipHandler.GetIP)

		if opts.LogsDir != "" {
			logHandler := handlers.NewLogHandler(opts.LogsDir)
			wsHandler := handlers.NewLogWebSocketHandler(opts.LogsDir, logAdapter.Base())
			logs := v1.Group("/logs")
			{
				logs.GET("/categories", logHandler.GetCategories)
				logs.GET("/:category", logHandler.GetLogs)
				logs.GET("/:category/search", logHandler.SearchLogs)
				logs.GET("/:category/export", logHandler.ExportLogs)
				logs.GET("/:category/stream", wsHandler.HandleWebSocket)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
