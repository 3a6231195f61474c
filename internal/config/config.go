package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

// Config holds the search service configuration. It is loaded once at startup
// and passed by value to every component constructor.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Logging     LoggingConfig     `yaml:"logging"`
	Search      SearchConfig      `yaml:"search"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	Facets      FacetsConfig      `yaml:"facets"`
	Suggestions SuggestionsConfig `yaml:"suggestions"`
	Analytics   AnalyticsConfig   `yaml:"analytics"`
	Indexer     IndexerConfig     `yaml:"indexer"`
	Sources     []SourceConfig    `yaml:"sources"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`

	// APIKeys guard the index, analytics and unpublished-search surfaces. Empty disables the check.
	APIKeys []string `yaml:"api_keys"`
}

// DatabaseConfig holds the index store location.
type DatabaseConfig struct {
	Path string `yaml:"path"` // file path or ":memory:"
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// SearchConfig holds query planner and executor settings.
type SearchConfig struct {
	Enabled            *bool               `yaml:"enabled"`
	FacetsEnabled      *bool               `yaml:"facets_enabled"`
	SuggestionsEnabled *bool               `yaml:"suggestions_enabled"`
	MaxQueryLength     int                 `yaml:"max_query_length"`
	DefaultPerPage     int                 `yaml:"default_per_page"`
	MaxPerPage         int                 `yaml:"max_per_page"`
	QueryTimeoutMs     int                 `yaml:"query_timeout_ms"`
	MaxScan            int                 `yaml:"max_scan"`
	CacheSize          int                 `yaml:"cache_size"` // 0 disables the result cache
	CacheTTLSec        int                 `yaml:"cache_ttl_sec"`
	Synonyms           map[string][]string `yaml:"synonyms"`
}

// Weights are the composite relevance weights. They are not required to sum to 1.
type Weights struct {
	Text       float64 `yaml:"text"`
	Type       float64 `yaml:"type"`
	Freshness  float64 `yaml:"freshness"`
	Author     float64 `yaml:"author"`
	Manual     float64 `yaml:"manual"`
	Engagement float64 `yaml:"engagement"`
}

// ScoringConfig holds relevance scorer settings.
type ScoringConfig struct {
	Weights          *Weights           `yaml:"weights"`
	DecayDays        float64            `yaml:"decay_days"`
	NeutralFreshness *float64           `yaml:"neutral_freshness"`
	TypeWeights      map[string]float64 `yaml:"type_weights"`
}

// FacetsConfig holds facet aggregator settings.
type FacetsConfig struct {
	MetadataKeys []string `yaml:"metadata_keys"`
	MaxValues    int      `yaml:"max_values"`
}

// SuggestionsConfig holds suggestion generator settings.
type SuggestionsConfig struct {
	MinLength    int `yaml:"min_length"`
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// AnalyticsConfig holds query log settings.
type AnalyticsConfig struct {
	Enabled            *bool  `yaml:"enabled"`
	RetentionDays      int    `yaml:"retention_days"`
	IPSalt             string `yaml:"ip_salt"`
	BufferSize         int    `yaml:"buffer_size"`
	MaxQueryLength     int    `yaml:"max_query_length"`
	MaxUserAgentLength int    `yaml:"max_user_agent_length"`
	PruneIntervalMin   int    `yaml:"prune_interval_min"`
}

// IndexerConfig holds reindex settings.
type IndexerConfig struct {
	BatchSize int `yaml:"batch_size"`
	Workers   int `yaml:"workers"`
}

// SourceConfig points a source kind at a JSON-lines export used by full reindexing.
type SourceConfig struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit YAML file path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, applies defaults and validates it.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Default returns a validated configuration with every default applied.
func Default() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// DefaultWeights returns the stock composite relevance weights.
func DefaultWeights() Weights {
	return Weights{
		Text:       0.4,
		Type:       0.2,
		Freshness:  0.15,
		Author:     0.1,
		Manual:     0.1,
		Engagement: 0.05,
	}
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/search.db"
	}

	c.Search.Enabled = defaultBool(c.Search.Enabled, true)
	c.Search.FacetsEnabled = defaultBool(c.Search.FacetsEnabled, true)
	c.Search.SuggestionsEnabled = defaultBool(c.Search.SuggestionsEnabled, true)
	if c.Search.MaxQueryLength <= 0 {
		c.Search.MaxQueryLength = 255
	}
	if c.Search.DefaultPerPage <= 0 {
		c.Search.DefaultPerPage = 20
	}
	if c.Search.MaxPerPage == 0 {
		c.Search.MaxPerPage = 100
	}
	if c.Search.QueryTimeoutMs <= 0 {
		c.Search.QueryTimeoutMs = 2000
	}
	if c.Search.MaxScan <= 0 {
		c.Search.MaxScan = 5000
	}
	if c.Search.CacheTTLSec <= 0 {
		c.Search.CacheTTLSec = 60
	}

	if c.Scoring.Weights == nil {
		w := DefaultWeights()
		c.Scoring.Weights = &w
	}
	if c.Scoring.DecayDays == 0 {
		c.Scoring.DecayDays = 365
	}
	if c.Scoring.NeutralFreshness == nil {
		n := 0.5
		c.Scoring.NeutralFreshness = &n
	}

	if c.Facets.MaxValues <= 0 {
		c.Facets.MaxValues = 50
	}

	if c.Suggestions.MinLength <= 0 {
		c.Suggestions.MinLength = 2
	}
	if c.Suggestions.DefaultLimit <= 0 {
		c.Suggestions.DefaultLimit = 5
	}
	if c.Suggestions.MaxLimit <= 0 {
		c.Suggestions.MaxLimit = 10
	}

	c.Analytics.Enabled = defaultBool(c.Analytics.Enabled, true)
	if c.Analytics.RetentionDays <= 0 {
		c.Analytics.RetentionDays = 90
	}
	if c.Analytics.BufferSize <= 0 {
		c.Analytics.BufferSize = 256
	}
	if c.Analytics.MaxQueryLength <= 0 {
		c.Analytics.MaxQueryLength = 255
	}
	if c.Analytics.MaxUserAgentLength <= 0 {
		c.Analytics.MaxUserAgentLength = 500
	}
	if c.Analytics.PruneIntervalMin <= 0 {
		c.Analytics.PruneIntervalMin = 60
	}

	if c.Indexer.BatchSize <= 0 {
		c.Indexer.BatchSize = 100
	}
	if c.Indexer.Workers <= 0 {
		c.Indexer.Workers = 4
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Search.MaxPerPage < 1 {
		return fmt.Errorf("search.max_per_page must be at least 1, got %d", c.Search.MaxPerPage)
	}
	if c.Search.DefaultPerPage > c.Search.MaxPerPage {
		return fmt.Errorf("search.default_per_page (%d) exceeds search.max_per_page (%d)",
			c.Search.DefaultPerPage, c.Search.MaxPerPage)
	}
	if c.Search.CacheSize < 0 {
		return fmt.Errorf("search.cache_size must not be negative, got %d", c.Search.CacheSize)
	}

	w := c.Scoring.Weights
	for name, v := range map[string]float64{
		"text": w.Text, "type": w.Type, "freshness": w.Freshness,
		"author": w.Author, "manual": w.Manual, "engagement": w.Engagement,
	} {
		if v < 0 {
			return fmt.Errorf("scoring.weights.%s must not be negative, got %v", name, v)
		}
	}
	if c.Scoring.DecayDays <= 0 {
		return fmt.Errorf("scoring.decay_days must be positive, got %v", c.Scoring.DecayDays)
	}
	if n := *c.Scoring.NeutralFreshness; n < 0 || n > 1 {
		return fmt.Errorf("scoring.neutral_freshness must be within [0, 1], got %v", n)
	}
	for category, v := range c.Scoring.TypeWeights {
		if v < 0 {
			return fmt.Errorf("scoring.type_weights.%s must not be negative, got %v", category, v)
		}
	}

	if c.Suggestions.DefaultLimit > c.Suggestions.MaxLimit {
		return fmt.Errorf("suggestions.default_limit (%d) exceeds suggestions.max_limit (%d)",
			c.Suggestions.DefaultLimit, c.Suggestions.MaxLimit)
	}

	for i, src := range c.Sources {
		if _, err := types.ParseSourceKind(src.Kind); err != nil {
			return fmt.Errorf("sources[%d].kind: %w", i, err)
		}
		if src.Path == "" {
			return fmt.Errorf("sources[%d].path is required", i)
		}
	}
	return nil
}

func defaultBool(v *bool, def bool) *bool {
	if v != nil {
		return v
	}
	return &def
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
