package main

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campusclimb/opportunity-fetcher/app/api"
	"github.com/campusclimb/opportunity-fetcher/app/cfg"
	"github.com/campusclimb/opportunity-fetcher/app/classify"
	"github.com/campusclimb/opportunity-fetcher/app/database"
	"github.com/campusclimb/opportunity-fetcher/app/dedup"
	"github.com/campusclimb/opportunity-fetcher/app/feed"
	"github.com/campusclimb/opportunity-fetcher/app/lock"
	"github.com/campusclimb/opportunity-fetcher/app/logging"
	"github.com/campusclimb/opportunity-fetcher/app/source"
	"github.com/campusclimb/opportunity-fetcher/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	if err := logging.Setup(os.Stderr, appCfg.LogFormat, appCfg.Debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	if err := run(appCfg); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting Campus Climb opportunity fetcher", "version", appCfg.Version)

	db, err := database.Open(appCfg.DBDriver, appCfg.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return err
	}
	slog.Info("Database ready", "driver", appCfg.DBDriver, "schema_version", version, "dirty", dirty)

	configCache := source.NewConfigCache(appCfg.SourcesDir)
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load source configurations: %w", err)
	}
	for _, feedURL := range appCfg.RSSFeeds {
		config, err := source.FeedConfigFromURL(feedURL)
		if err == nil {
			err = configCache.Add(config)
		}
		if err != nil {
			slog.Warn("Skipping RSS feed", "url", feedURL, "error", err)
			continue
		}
	}
	slog.Info("Source configurations loaded", "count", configCache.GetConfigCount(), "dir", appCfg.SourcesDir)

	httpClient := &http.Client{}
	extractor := source.NewContentExtractor(httpClient, appCfg.UserAgent, 30*time.Second)
	registry := source.BuildRegistry(configCache, httpClient, extractor, appCfg.UserAgent)

	var classifier classify.Classifier = classify.NewRuleBased()
	if appCfg.AIFilterEnabled {
		ollama := classify.NewOllamaClient(appCfg.OllamaBaseURL, appCfg.AIFilterModel, httpClient)
		classifier = classify.NewGenerative(ollama, appCfg.AIFilterTimeout, appCfg.AIFilterMinConfidence)
		slog.Info("AI classification enabled", "base_url", appCfg.OllamaBaseURL, "model", appCfg.AIFilterModel, "timeout", appCfg.AIFilterTimeout)
	}

	policy, err := dedup.ParsePolicy(appCfg.AmbiguousMatchPolicy)
	if err != nil {
		return err
	}

	oppRepo := database.NewOpportunityRepository(db)
	runRepo := database.NewFetchRunRepository(db)
	resolver := dedup.NewResolver(oppRepo, appCfg.FuzzyThreshold, policy)
	orchestrator := tasks.NewOrchestrator(registry, classifier, resolver, appCfg.ParallelSources)

	var locker lock.Locker = lock.NewLocalLocker()
	if appCfg.RedisURL != "" {
		redisLocker, err := lock.NewRedisLocker(context.Background(), appCfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisLocker.Close()
		locker = redisLocker
		slog.Info("Using Redis run lock")
	}

	sourcesFor := func(requested []string) []string {
		if len(requested) > 0 {
			return requested
		}
		if len(appCfg.EnabledSources) > 0 {
			return appCfg.EnabledSources
		}
		return configCache.GetEnabledNames()
	}
	newFetchTask := func(requested []string) *tasks.FetchCycleTask {
		return tasks.NewFetchCycleTask(orchestrator, locker, runRepo, sourcesFor(requested))
	}

	if appCfg.Once {
		return runOnce(newFetchTask(nil))
	}

	scheduler := tasks.NewScheduler(appCfg.FetchInterval, appCfg.WorkerCount, appCfg.RunOnStart,
		func() tasks.TaskInterface { return newFetchTask(nil) })
	scheduler.Start()
	defer scheduler.Stop()

	gin.SetMode(gin.ReleaseMode)

	baseURL := cmp.Or(appCfg.BaseUrl, fmt.Sprintf("http://localhost:%s", appCfg.Port))
	handler := api.NewHandler(configCache, oppRepo, runRepo, feed.NewGenerator(baseURL, appCfg.Version), scheduler,
		func(ctx context.Context, sources []string) (*tasks.Report, error) {
			return newFetchTask(sources).Run(ctx)
		},
		func(sourceFilter string, limit int, dryRun bool) tasks.TaskInterface {
			return tasks.NewReclassifyTask(oppRepo, classifier, sourceFilter, limit, dryRun)
		})

	// Manual fetches answer synchronously, so writes get a long deadline.
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port, "base_url", baseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
	return nil
}

// runOnce runs a single cycle and prints the report as JSON on stdout.
func runOnce(task *tasks.FetchCycleTask) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	task.Start()
	report, err := task.Run(ctx)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
