package api

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const apiKeyHeader = "X-API-Key"

// NewServer builds the engine with the public read routes and, when
// apiAccessKey is set, the authenticated /api group.
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: accessLogLine,
		SkipPaths: []string{"/health"},
	}))
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	setupRoutes(r, handler, apiAccessKey)

	return r
}

func accessLogLine(p gin.LogFormatterParams) string {
	return fmt.Sprintf("%s [%s] %s %s %d %s %q %s\n",
		p.ClientIP,
		p.TimeStamp.Format(time.RFC3339),
		p.Method,
		p.Path,
		p.StatusCode,
		p.Latency,
		p.Request.UserAgent(),
		p.ErrorMessage,
	)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, "+apiKeyHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	apiEnabled := apiAccessKey != ""

	r.GET("/feeds/opportunities", handler.GetOpportunitiesFeed)
	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	// The admin surface stays off without a key.
	if apiEnabled {
		admin := r.Group("/api", authMiddleware(apiAccessKey))
		admin.GET("/sources", handler.APIListSources)
		admin.POST("/fetch", handler.APITriggerFetch)
		admin.GET("/fetch/logs", handler.APIGetFetchLogs)
		admin.POST("/reclassify", handler.APIReclassify)
		slog.Info("Admin API enabled", "auth_header", apiKeyHeader)
	} else {
		slog.Info("Admin API disabled, API_ACCESS_KEY not set")
	}

	r.GET("/", func(c *gin.Context) {
		routes := gin.H{
			"feed":   "GET /feeds/opportunities",
			"health": "GET /health",
			"stats":  "GET /stats",
		}
		if apiEnabled {
			routes["sources"] = "GET /api/sources"
			routes["fetch"] = "POST /api/fetch"
			routes["fetch_logs"] = "GET /api/fetch/logs"
			routes["reclassify"] = "POST /api/reclassify"
		}

		c.JSON(http.StatusOK, gin.H{
			"service":     "Campus Climb Opportunity Fetcher",
			"description": "Fetches, classifies and deduplicates student opportunities from job boards and feeds",
			"endpoints":   routes,
			"admin_api":   apiEnabled,
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

// requestKey reads the key from X-API-Key, else from a Bearer token.
func requestKey(c *gin.Context) string {
	if key := c.GetHeader(apiKeyHeader); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	expected := []byte(apiAccessKey)

	return func(c *gin.Context) {
		key := requestKey(c)
		switch {
		case key == "":
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "API key required in " + apiKeyHeader + " header or Authorization: Bearer <key>",
			})
		case subtle.ConstantTimeCompare([]byte(key), expected) != 1:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
		default:
			c.Next()
		}
	}
}
