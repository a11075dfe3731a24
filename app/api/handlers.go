package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campusclimb/opportunity-fetcher/app/database"
	"github.com/campusclimb/opportunity-fetcher/app/lock"
	"github.com/campusclimb/opportunity-fetcher/app/source"
	"github.com/campusclimb/opportunity-fetcher/app/tasks"
)

func NewHandler(configCache *source.ConfigCache, oppRepo database.OpportunityRepository,
	runRepo database.FetchRunRepository, generator GeneratorInterface,
	scheduler tasks.TaskSchedulerInterface, fetch FetchFunc, newReclassify ReclassifyFunc) *Handler {
	return &Handler{
		configCache:   configCache,
		oppRepo:       oppRepo,
		runRepo:       runRepo,
		generator:     generator,
		scheduler:     scheduler,
		fetch:         fetch,
		newReclassify: newReclassify,
	}
}

func (h *Handler) GetOpportunitiesFeed(c *gin.Context) {
	limit := queryInt(c, "limit", defaultFeedLimit)
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}

	opportunities, err := h.oppRepo.ListActive(c.Request.Context(), database.ListFilter{Limit: limit})
	if err != nil {
		slog.Error("Database error", "operation", "list_active", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(opportunities)
	if err != nil {
		slog.Error("RSS generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(opportunities)))
	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp":      time.Now().In(time.Local).Format(time.RFC3339),
		"loaded_sources": h.configCache.GetConfigCount(),
	}

	if stats, err := h.oppRepo.GetStats(c.Request.Context()); err == nil {
		health["opportunities"] = stats
	} else {
		slog.Warn("Failed to get opportunity stats", "error", err)
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := h.oppRepo.GetStats(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "get_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := gin.H{
		"opportunities":   stats,
		"sources":         h.configCache.GetConfigCount(),
		"enabled_sources": len(h.configCache.GetEnabledNames()),
		"last_run":        nil,
	}

	runs, err := h.runRepo.GetRecentRuns(ctx, 1)
	if err != nil {
		slog.Warn("Failed to get last fetch run", "error", err)
	} else if len(runs) > 0 {
		response["last_run"] = runResponse(runs[0])
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) APIListSources(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	sources := make([]map[string]interface{}, 0, len(configs))
	for _, config := range configs {
		sources = append(sources, map[string]interface{}{
			"name":            config.Name,
			"kind":            config.Kind,
			"enabled":         config.Settings.Enabled,
			"max_items":       config.Settings.MaxItems,
			"max_pages":       config.Settings.MaxPages,
			"timeout":         (time.Duration(config.Settings.Timeout) * time.Second).String(),
			"rate_limit":      config.Settings.RateLimit,
			"default_type":    config.Settings.DefaultType,
			"extract_content": config.Settings.ExtractContent,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": sources,
		"total":   len(sources),
	})
}

// APITriggerFetch runs a cycle under the request context. A client that
// disconnects cancels the remaining work; committed writes stay.
func (h *Handler) APITriggerFetch(c *gin.Context) {
	var req fetchRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	report, err := h.fetch(c.Request.Context(), req.Sources)
	switch {
	case errors.Is(err, lock.ErrLocked):
		c.JSON(http.StatusConflict, gin.H{"error": "A fetch cycle is already running"})
		return
	case errors.Is(err, tasks.ErrNoSources):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No sources to fetch"})
		return
	case err != nil:
		slog.Error("Manual fetch failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Fetch cycle failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) APIGetFetchLogs(c *gin.Context) {
	limit := queryInt(c, "limit", defaultLogLimit)

	runs, err := h.runRepo.GetRecentRuns(c.Request.Context(), limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_recent_runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	logs := make([]gin.H, 0, len(runs))
	for _, run := range runs {
		logs = append(logs, runResponse(run))
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  logs,
		"total": len(logs),
	})
}

func (h *Handler) APIReclassify(c *gin.Context) {
	var req reclassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.Limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must not be negative"})
		return
	}

	task := h.newReclassify(req.Source, req.Limit, req.DryRun)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Error enqueueing reclassify task", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue reclassify task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Reclassify task enqueued",
		"task": gin.H{
			"id":   task.GetID(),
			"type": task.GetType(),
		},
		"dry_run": req.DryRun,
	})
}

func runResponse(run database.FetchRun) gin.H {
	response := gin.H{
		"run_id":      run.RunID,
		"state":       run.State,
		"started_at":  run.StartedAt,
		"finished_at": run.FinishedAt,
		"fetched":     run.Fetched,
		"inserted":    run.Inserted,
		"updated":     run.Updated,
		"skipped":     run.Skipped,
		"rejected":    run.Rejected,
		"errors":      run.Errors,
	}
	if json.Valid([]byte(run.Sources)) {
		response["sources"] = json.RawMessage(run.Sources)
	}
	return response
}

func queryInt(c *gin.Context, key string, fallback int) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
