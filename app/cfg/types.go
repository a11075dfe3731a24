package cfg

import "time"

type Cfg struct {
	// Database configuration
	DBDriver string
	DBDSN    string

	// Sources and scheduling
	SourcesDir      string
	EnabledSources  []string // empty means every enabled source
	RSSFeeds        []string
	FetchInterval   time.Duration
	RunOnStart      bool
	ParallelSources int
	WorkerCount     int

	// Deduplication
	FuzzyThreshold       float64
	AmbiguousMatchPolicy string

	// Generative classifier
	AIFilterEnabled       bool
	OllamaBaseURL         string
	AIFilterModel         string
	AIFilterTimeout       time.Duration
	AIFilterMinConfidence float64

	RedisURL string

	// HTTP
	Port         string
	BaseUrl      string
	APIAccessKey string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	LogFormat string
	Once      bool
	Version   string
}
