package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"kptv-catalog/work/types"
)

// DefaultPath is where LoadConfig looks for the configuration file when the
// KPTV_CONFIG environment variable is not set.
const DefaultPath = "/settings/config.json"

// Config holds all application configuration for the catalog service.
type Config struct {
	ListenAddr      string            // HTTP listen address for the presentation API
	LogLevel        string            // DEBUG, INFO, WARN or ERROR
	Debug           bool              // Enables verbose per-item logging
	ObfuscateUrls   bool              // Obfuscate URLs in logs (they embed credentials)
	CacheDuration   time.Duration     // TTL for raw playlist text caching
	EpgCacheTTL     time.Duration     // TTL for per-channel EPG entries
	RefreshInterval time.Duration     // Interval between automatic re-ingests
	WorkerThreads   int               // Size of the shared worker pool
	DatabasePath    string            // SQLite path for playlist persistence, empty disables it
	Preferences     types.Preferences // Variant selection and catalog filtering preferences
	Sources         []SourceConfig    // Configured playlist sources
	Metadata        MetadataConfig    // External enrichment providers
}

// Source type values for SourceConfig.Type.
const (
	SourceTypeM3U    = "m3u"
	SourceTypeXtream = "xtream"
)

// SourceConfig describes one playlist source. Type selects the ingestion
// path: "m3u" sources are fetched (or read from FilePath) and parsed as
// playlist text, "xtream" sources go through the Xtream Codes API with
// Username/Password credentials.
type SourceConfig struct {
	Name     string
	Type     string // "m3u" or "xtream"
	URL      string
	FilePath string // For local playlist files; takes precedence over URL
	Order    int

	Username string // Xtream credentials
	Password string

	UserAgent   string
	ReqOrigin   string
	ReqReferrer string

	// Per-class include/exclude filters applied to raw records before
	// grouping. Invalid patterns are logged and ignored.
	LiveIncludeRegex   string
	LiveExcludeRegex   string
	SeriesIncludeRegex string
	SeriesExcludeRegex string
	VodIncludeRegex    string
	VodExcludeRegex    string
}

// MetadataConfig configures the best-effort enrichment providers. Both are
// optional; leaving BaseURL empty disables the provider.
type MetadataConfig struct {
	Enabled       bool
	BaseURL       string // Movie/TV metadata lookup service
	APIKey        string
	AwardsBaseURL string // Awards lookup service
	AwardsAPIKey  string
}

// configFile mirrors Config for the JSON file, with durations as strings
// ("5m", "12h") and the quality preference by tier name.
type configFile struct {
	ListenAddr      string             `json:"listenAddr"`
	LogLevel        string             `json:"logLevel"`
	Debug           bool               `json:"debug"`
	ObfuscateUrls   bool               `json:"obfuscateUrls"`
	CacheDuration   string             `json:"cacheDuration"`
	EpgCacheTTL     string             `json:"epgCacheTTL"`
	RefreshInterval string             `json:"refreshInterval"`
	WorkerThreads   int                `json:"workerThreads"`
	DatabasePath    string             `json:"databasePath"`
	Preferences     preferencesFile    `json:"preferences"`
	Sources         []sourceConfigFile `json:"sources"`
	Metadata        metadataFile       `json:"metadata"`
}

type preferencesFile struct {
	PreferredQuality  string   `json:"preferredQuality"`
	PreferredLanguage string   `json:"preferredLanguage"`
	Countries         []string `json:"countries"`
	Groups            []string `json:"groups"`
}

type sourceConfigFile struct {
	Name               string `json:"name"`
	Type               string `json:"type"`
	URL                string `json:"url"`
	FilePath           string `json:"filePath,omitempty"`
	Order              int    `json:"order"`
	Username           string `json:"username,omitempty"`
	Password           string `json:"password,omitempty"`
	UserAgent          string `json:"userAgent,omitempty"`
	ReqOrigin          string `json:"reqOrigin,omitempty"`
	ReqReferrer        string `json:"reqReferrer,omitempty"`
	LiveIncludeRegex   string `json:"liveIncludeRegex,omitempty"`
	LiveExcludeRegex   string `json:"liveExcludeRegex,omitempty"`
	SeriesIncludeRegex string `json:"seriesIncludeRegex,omitempty"`
	SeriesExcludeRegex string `json:"seriesExcludeRegex,omitempty"`
	VodIncludeRegex    string `json:"vodIncludeRegex,omitempty"`
	VodExcludeRegex    string `json:"vodExcludeRegex,omitempty"`
}

type metadataFile struct {
	Enabled       bool   `json:"enabled"`
	BaseURL       string `json:"baseURL,omitempty"`
	APIKey        string `json:"apiKey,omitempty"`
	AwardsBaseURL string `json:"awardsBaseURL,omitempty"`
	AwardsAPIKey  string `json:"awardsAPIKey,omitempty"`
}

var (
	configCache *Config
	configMutex sync.RWMutex
)

// LoadConfig loads the configuration from file or returns the cached
// instance. Falls back to defaults when the file is missing or invalid.
func LoadConfig() *Config {
	configMutex.RLock()
	if configCache != nil {
		defer configMutex.RUnlock()
		return configCache
	}
	configMutex.RUnlock()

	configMutex.Lock()
	defer configMutex.Unlock()

	if configCache != nil {
		return configCache
	}

	path := os.Getenv("KPTV_CONFIG")
	if path == "" {
		path = DefaultPath
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config from %s: %v; using defaults\n", path, err)
		cfg = defaultConfig()
	}

	validateAndSetDefaults(cfg)
	configCache = cfg
	return cfg
}

// ClearConfigCache forces the next LoadConfig call to reload from disk.
func ClearConfigCache() {
	configMutex.Lock()
	defer configMutex.Unlock()
	configCache = nil
}

// LoadFromFile reads and parses the configuration from a JSON file. The
// result still needs validateAndSetDefaults when called outside LoadConfig;
// it is applied here so direct callers get a usable config too.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cf configFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	cfg, err := convertFromFile(&cf)
	if err != nil {
		return nil, err
	}
	validateAndSetDefaults(cfg)
	return cfg, nil
}

func convertFromFile(cf *configFile) (*Config, error) {
	cfg := &Config{
		ListenAddr:    cf.ListenAddr,
		LogLevel:      cf.LogLevel,
		Debug:         cf.Debug,
		ObfuscateUrls: cf.ObfuscateUrls,
		WorkerThreads: cf.WorkerThreads,
		DatabasePath:  cf.DatabasePath,
		Preferences: types.Preferences{
			PreferredQuality:  types.ParseQualityTier(cf.Preferences.PreferredQuality),
			PreferredLanguage: cf.Preferences.PreferredLanguage,
			Countries:         cf.Preferences.Countries,
			Groups:            cf.Preferences.Groups,
		},
		Metadata: MetadataConfig{
			Enabled:       cf.Metadata.Enabled,
			BaseURL:       cf.Metadata.BaseURL,
			APIKey:        cf.Metadata.APIKey,
			AwardsBaseURL: cf.Metadata.AwardsBaseURL,
			AwardsAPIKey:  cf.Metadata.AwardsAPIKey,
		},
	}

	var err error
	if cf.CacheDuration != "" {
		if cfg.CacheDuration, err = time.ParseDuration(cf.CacheDuration); err != nil {
			return nil, fmt.Errorf("invalid cacheDuration: %w", err)
		}
	}
	if cf.EpgCacheTTL != "" {
		if cfg.EpgCacheTTL, err = time.ParseDuration(cf.EpgCacheTTL); err != nil {
			return nil, fmt.Errorf("invalid epgCacheTTL: %w", err)
		}
	}
	if cf.RefreshInterval != "" {
		if cfg.RefreshInterval, err = time.ParseDuration(cf.RefreshInterval); err != nil {
			return nil, fmt.Errorf("invalid refreshInterval: %w", err)
		}
	}

	cfg.Sources = make([]SourceConfig, len(cf.Sources))
	for i, sf := range cf.Sources {
		cfg.Sources[i] = SourceConfig{
			Name:               sf.Name,
			Type:               sf.Type,
			URL:                sf.URL,
			FilePath:           sf.FilePath,
			Order:              sf.Order,
			Username:           sf.Username,
			Password:           sf.Password,
			UserAgent:          sf.UserAgent,
			ReqOrigin:          sf.ReqOrigin,
			ReqReferrer:        sf.ReqReferrer,
			LiveIncludeRegex:   sf.LiveIncludeRegex,
			LiveExcludeRegex:   sf.LiveExcludeRegex,
			SeriesIncludeRegex: sf.SeriesIncludeRegex,
			SeriesExcludeRegex: sf.SeriesExcludeRegex,
			VodIncludeRegex:    sf.VodIncludeRegex,
			VodExcludeRegex:    sf.VodExcludeRegex,
		}
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ListenAddr:      ":8080",
		LogLevel:        "INFO",
		CacheDuration:   30 * time.Minute,
		EpgCacheTTL:     5 * time.Minute,
		RefreshInterval: 12 * time.Hour,
		WorkerThreads:   8,
		Preferences: types.Preferences{
			PreferredQuality: types.QualityFHD,
		},
	}
}

func validateAndSetDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "INFO"
	}
	if cfg.CacheDuration <= 0 {
		cfg.CacheDuration = 30 * time.Minute
	}
	if cfg.EpgCacheTTL <= 0 {
		cfg.EpgCacheTTL = 5 * time.Minute
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 12 * time.Hour
	}
	if cfg.WorkerThreads <= 0 {
		cfg.WorkerThreads = 8
	}
	if cfg.Preferences.PreferredQuality == types.QualityUnknown {
		cfg.Preferences.PreferredQuality = types.QualityFHD
	}

	for i := range cfg.Sources {
		src := &cfg.Sources[i]
		if src.Name == "" {
			src.Name = fmt.Sprintf("Source_%d", i+1)
		}
		if src.Type == "" {
			if src.Username != "" && src.Password != "" {
				src.Type = SourceTypeXtream
			} else {
				src.Type = SourceTypeM3U
			}
		}
		if src.Order <= 0 {
			src.Order = i + 1
		}
		if src.UserAgent == "" {
			src.UserAgent = "VLC/3.0.18 LibVLC/3.0.18"
		}
	}
}

// SourcesByOrder returns a copy of the sources sorted by their Order field.
func (c *Config) SourcesByOrder() []SourceConfig {
	sources := make([]SourceConfig, len(c.Sources))
	copy(sources, c.Sources)
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Order < sources[j].Order
	})
	return sources
}

// CreateExampleConfig writes a commented-by-example config file to path.
func CreateExampleConfig(path string) error {
	example := configFile{
		ListenAddr:      ":8080",
		LogLevel:        "INFO",
		ObfuscateUrls:   true,
		CacheDuration:   "30m",
		EpgCacheTTL:     "5m",
		RefreshInterval: "12h",
		WorkerThreads:   8,
		DatabasePath:    "/settings/catalog.db",
		Preferences: preferencesFile{
			PreferredQuality:  "FHD",
			PreferredLanguage: "VF",
			Countries:         []string{"FR", "UK"},
		},
		Sources: []sourceConfigFile{
			{
				Name:  "Primary M3U Source",
				Type:  SourceTypeM3U,
				URL:   "http://example.com/playlist.m3u",
				Order: 1,
			},
			{
				Name:     "Xtream Account",
				Type:     SourceTypeXtream,
				URL:      "http://provider.example.com:8000",
				Username: "user",
				Password: "pass",
				Order:    2,
			},
		},
		Metadata: metadataFile{
			Enabled: false,
			BaseURL: "https://api.themoviedb.org/3",
		},
	}

	data, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
