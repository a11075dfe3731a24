package cfg

import (
	"cmp"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBDriver string `long:"db-driver" env:"DB_DRIVER" default:"sqlite" choice:"sqlite" choice:"postgres" description:"Database driver"`
	DBDSN    string `long:"db-dsn" env:"DB_DSN" default:"file:campusclimb.db?_pragma=busy_timeout(5000)&_time_format=sqlite" description:"Database connection string"`

	// Sources and scheduling
	SourcesDir         string   `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	EnabledSources     []string `long:"enabled-source" env:"ENABLED_SOURCES" env-delim:"," description:"Sources to fetch (default: every enabled source)"`
	RSSFeeds           []string `long:"rss-feed" env:"RSS_FEEDS" env-delim:"," description:"Additional RSS or Reddit feed URLs"`
	FetchIntervalHours int      `long:"fetch-interval-hours" env:"FETCH_INTERVAL_HOURS" default:"24" description:"Hours between scheduled fetch cycles (0 disables the schedule)"`
	RunOnStart         bool     `long:"run-on-start" env:"RUN_ON_START" description:"Run a fetch cycle at startup"`
	ParallelSources    int      `long:"parallel-sources" env:"PARALLEL_SOURCES" default:"1" description:"Sources fetched concurrently within a cycle"`
	WorkerCount        int      `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background task workers"`

	// Deduplication
	FuzzyThreshold       float64 `long:"fuzzy-threshold" env:"FUZZY_THRESHOLD" default:"0.85" description:"Title and company similarity required for a fuzzy match"`
	AmbiguousMatchPolicy string  `long:"ambiguous-match-policy" env:"AMBIGUOUS_MATCH_POLICY" default:"prefer_recent" choice:"prefer_recent" choice:"skip" description:"What to do when several records fuzzy-match"`

	// Generative classifier
	AIFilterEnabled       bool    `long:"ai-filter" env:"AI_FILTER_ENABLED" description:"Classify postings with an Ollama model"`
	OllamaBaseURL         string  `long:"ollama-base-url" env:"OLLAMA_BASE_URL" default:"http://localhost:11434" description:"Ollama API base URL"`
	AIFilterModel         string  `long:"ai-filter-model" env:"AI_FILTER_MODEL" description:"Model used for classification (default: OLLAMA_MODEL)"`
	OllamaModel           string  `long:"ollama-model" env:"OLLAMA_MODEL" default:"llama2" description:"Default Ollama model"`
	AIFilterTimeout       int     `long:"ai-filter-timeout" env:"AI_FILTER_TIMEOUT" default:"120" description:"Classification timeout in seconds"`
	AIFilterMinConfidence float64 `long:"ai-filter-min-confidence" env:"AI_FILTER_MIN_CONFIDENCE" default:"0.7" description:"Minimum confidence for an AI acceptance"`

	// Run lock
	RedisURL string `long:"redis-url" env:"REDIS_URL" description:"Redis URL for the shared run lock (default: in-process lock)"`

	// HTTP
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl      string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://jobs.example.edu)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"CampusClimb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
	LogFormat string `long:"log-format" env:"LOG_FORMAT" default:"text" choice:"text" choice:"json" description:"Log output format"`

	Once bool `long:"once" description:"Run a single fetch cycle, print the report and exit"`
}

// Load parses command line flags and environment. It returns nil, nil when
// help was requested.
func Load() (*Cfg, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.FuzzyThreshold <= 0 || raw.FuzzyThreshold > 1 {
		return nil, fmt.Errorf("fuzzy threshold must be in (0, 1], got %v", raw.FuzzyThreshold)
	}
	if raw.AIFilterMinConfidence < 0 || raw.AIFilterMinConfidence > 1 {
		return nil, fmt.Errorf("ai filter min confidence must be in [0, 1], got %v", raw.AIFilterMinConfidence)
	}
	if raw.AIFilterTimeout <= 0 {
		return nil, fmt.Errorf("ai filter timeout must be positive, got %d", raw.AIFilterTimeout)
	}

	cfg := &Cfg{
		DBDriver:              raw.DBDriver,
		DBDSN:                 raw.DBDSN,
		SourcesDir:            raw.SourcesDir,
		EnabledSources:        splitList(raw.EnabledSources),
		RSSFeeds:              splitList(raw.RSSFeeds),
		FetchInterval:         time.Duration(raw.FetchIntervalHours) * time.Hour,
		RunOnStart:            raw.RunOnStart,
		ParallelSources:       max(raw.ParallelSources, 1),
		WorkerCount:           max(raw.WorkerCount, 1),
		FuzzyThreshold:        raw.FuzzyThreshold,
		AmbiguousMatchPolicy:  raw.AmbiguousMatchPolicy,
		AIFilterEnabled:       raw.AIFilterEnabled,
		OllamaBaseURL:         raw.OllamaBaseURL,
		AIFilterModel:         cmp.Or(raw.AIFilterModel, raw.OllamaModel),
		AIFilterTimeout:       time.Duration(raw.AIFilterTimeout) * time.Second,
		AIFilterMinConfidence: raw.AIFilterMinConfidence,
		RedisURL:              raw.RedisURL,
		Port:                  raw.Port,
		BaseUrl:               strings.TrimRight(raw.BaseUrl, "/"),
		APIAccessKey:          raw.APIAccessKey,
		UserAgent:             raw.UserAgent,
		Timezone:              raw.Timezone,
		Debug:                 raw.Debug,
		LogFormat:             raw.LogFormat,
		Once:                  raw.Once,
		Version:               GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

// splitList trims entries and drops empty ones. Flags may also carry comma
// separated values.
func splitList(values []string) []string {
	var list []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				list = append(list, part)
			}
		}
	}
	return list
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
