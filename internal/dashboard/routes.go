package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/healthz", handleHealth(opts))

	api := router.Group("/api")
	api.GET("/watches", handleWatches(opts))
	api.GET("/locks", handleLocks(opts))
	api.GET("/events", handleSSE(opts))
}

func handleHealth(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if opts.Active != nil {
			body["active_watches"] = opts.Active()
		}
		if err := opts.Store.DB().Exec("SELECT 1").Error; err != nil {
			body["status"] = "degraded"
			body["error"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		c.JSON(http.StatusOK, body)
	}
}

func handleWatches(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := WatchSummary(opts.Store)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"watches": rows, "count": len(rows)})
	}
}

func handleLocks(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts.Locks == nil {
			c.JSON(http.StatusOK, gin.H{"locks": []LockRow{}})
			return
		}
		rows, err := LockSummary(opts.Locks)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"locks": rows})
	}
}
