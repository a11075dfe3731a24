package source

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/campusclimb/opportunity-fetcher/app/database"
)

type ConfigCache struct {
	sourcesDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

func NewConfigCache(sourcesDir string) *ConfigCache {
	return &ConfigCache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		fileName := filepath.Base(file)
		sourceName := strings.TrimSuffix(fileName, ".yml")

		config, err := cc.LoadConfig(sourceName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Configuration loaded", "source", sourceName, "kind", config.Kind, "enabled", config.Settings.Enabled)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(sourceName string) (*Config, error) {
	configFile := filepath.Join(cc.sourcesDir, sourceName+".yml")

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.Name = sourceName
	if err := cc.Add(&config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	return &config, nil
}

// Add validates a config built elsewhere (for example from RSS_FEEDS) and caches it.
func (cc *ConfigCache) Add(config *Config) error {
	applyDefaults(config)

	if err := validateConfig(config); err != nil {
		return err
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[config.Name] = config

	return nil
}

func (cc *ConfigCache) GetConfig(sourceName string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	config, ok := cc.cache[sourceName]
	if !ok {
		return nil, fmt.Errorf("source config with name '%s' not found", sourceName)
	}
	return config, nil
}

// GetConfigs returns every cached config ordered by name.
func (cc *ConfigCache) GetConfigs() []*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configs := make([]*Config, 0, len(cc.cache))
	for _, config := range cc.cache {
		configs = append(configs, config)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Name < configs[j].Name })

	return configs
}

func (cc *ConfigCache) GetEnabledNames() []string {
	var names []string
	for _, config := range cc.GetConfigs() {
		if config.Settings.Enabled {
			names = append(names, config.Name)
		}
	}
	return names
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func applyDefaults(config *Config) {
	if config.Kind == "" {
		config.Kind = KindRSS
	}

	config.URL = os.ExpandEnv(config.URL)
	config.APIKey = os.ExpandEnv(config.APIKey)
	config.AppID = os.ExpandEnv(config.AppID)
	for key, value := range config.Params {
		config.Params[key] = os.ExpandEnv(value)
	}

	if config.Settings.MaxItems == 0 {
		config.Settings.MaxItems = 100
	}
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = 30
	}
	if config.Settings.MaxPages == 0 {
		config.Settings.MaxPages = 3
	}
}

func validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	requiredFields := map[string]string{
		"source name": config.Name,
		"source URL":  config.URL,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	switch config.Kind {
	case KindRSS, KindReddit, KindAdzuna, KindJooble, KindJSON:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKind, config.Kind)
	}

	nonNegativeFields := map[string]int{
		"max items": config.Settings.MaxItems,
		"timeout":   config.Settings.Timeout,
		"max pages": config.Settings.MaxPages,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	if config.Settings.DefaultType != "" {
		if _, ok := database.ParseOpportunityType(config.Settings.DefaultType); !ok {
			return fmt.Errorf("invalid default_type: %s", config.Settings.DefaultType)
		}
	}

	if config.Kind == KindJSON && config.Mapping.Items == "" {
		return fmt.Errorf("mapping.items is required for json sources")
	}

	switch strings.ToUpper(config.Method) {
	case "", http.MethodGet, http.MethodPost:
	default:
		return fmt.Errorf("unsupported method: %s", config.Method)
	}

	return nil
}

// FeedConfigFromURL builds an enabled feed source for a bare URL. Reddit
// listings become reddit_<subreddit>; other feeds are named after the host.
func FeedConfigFromURL(rawURL string) (*Config, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid feed URL: %q", rawURL)
	}

	config := &Config{
		Kind:     KindRSS,
		URL:      u.String(),
		Settings: ConfigSettings{Enabled: true},
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	if strings.HasSuffix(host, "reddit.com") && len(segments) >= 2 && segments[0] == "r" {
		config.Kind = KindReddit
		config.Name = "reddit_" + strings.ToLower(segments[1])
		return config, nil
	}

	config.Name = strings.ReplaceAll(Slugify(host), "-", "_")
	return config, nil
}
