package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.True(t, *cfg.Search.Enabled)
	assert.True(t, *cfg.Search.FacetsEnabled)
	assert.True(t, *cfg.Search.SuggestionsEnabled)
	assert.True(t, *cfg.Analytics.Enabled)
	assert.Equal(t, 100, cfg.Search.MaxPerPage)
	assert.Equal(t, 20, cfg.Search.DefaultPerPage)
	assert.Equal(t, 255, cfg.Search.MaxQueryLength)
	assert.Equal(t, 365.0, cfg.Scoring.DecayDays)
	assert.Equal(t, 0.5, *cfg.Scoring.NeutralFreshness)
	assert.Equal(t, DefaultWeights(), *cfg.Scoring.Weights)
	assert.Equal(t, 2, cfg.Suggestions.MinLength)
	assert.Equal(t, 10, cfg.Suggestions.MaxLimit)
	assert.Equal(t, 90, cfg.Analytics.RetentionDays)
}

func TestParse_OverridesAndEnvExpansion(t *testing.T) {
	t.Setenv("CMSSEARCH_SALT", "pepper")

	data := []byte(`
http:
  port: 9090
database:
  path: ${CMSSEARCH_DB:-/tmp/idx.db}
search:
  enabled: false
  max_per_page: 50
  synonyms:
    car: [automobile, vehicle]
scoring:
  decay_days: 30
  weights:
    text: 1
  type_weights:
    page: 1.5
analytics:
  ip_salt: ${CMSSEARCH_SALT}
sources:
  - kind: content
    path: exports/content.jsonl
`)

	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "/tmp/idx.db", cfg.Database.Path)
	assert.False(t, *cfg.Search.Enabled)
	assert.True(t, *cfg.Search.FacetsEnabled, "unset flags keep their default")
	assert.Equal(t, 50, cfg.Search.MaxPerPage)
	assert.Equal(t, []string{"automobile", "vehicle"}, cfg.Search.Synonyms["car"])
	assert.Equal(t, 30.0, cfg.Scoring.DecayDays)
	assert.Equal(t, 1.0, cfg.Scoring.Weights.Text)
	assert.Equal(t, 0.0, cfg.Scoring.Weights.Type, "explicit weights replace the defaults as a whole")
	assert.Equal(t, 1.5, cfg.Scoring.TypeWeights["page"])
	assert.Equal(t, "pepper", cfg.Analytics.IPSalt)
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "content", cfg.Sources[0].Kind)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{
			name:   "InvalidPort",
			mutate: func(c *Config) { c.HTTP.Port = 70000 },
			want:   "http.port",
		},
		{
			name:   "NegativeWeight",
			mutate: func(c *Config) { c.Scoring.Weights.Freshness = -0.1 },
			want:   "scoring.weights.freshness",
		},
		{
			name:   "NonPositiveDecay",
			mutate: func(c *Config) { c.Scoring.DecayDays = -1 },
			want:   "scoring.decay_days",
		},
		{
			name: "NeutralFreshnessOutOfRange",
			mutate: func(c *Config) {
				n := 1.5
				c.Scoring.NeutralFreshness = &n
			},
			want: "scoring.neutral_freshness",
		},
		{
			name:   "MaxPerPageTooSmall",
			mutate: func(c *Config) { c.Search.MaxPerPage = -1 },
			want:   "search.max_per_page",
		},
		{
			name:   "UnknownSourceKind",
			mutate: func(c *Config) { c.Sources = []SourceConfig{{Kind: "widget", Path: "x.jsonl"}} },
			want:   "sources[0].kind",
		},
		{
			name:   "SourceWithoutPath",
			mutate: func(c *Config) { c.Sources = []SourceConfig{{Kind: "term"}} },
			want:   "sources[0].path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), "error %q should mention %q", err, tt.want)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  port: 8181\n"), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 8181, cfg.HTTP.Port)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("CMSSEARCH_SET", "value")

	out := expandEnvVars([]byte("a: ${CMSSEARCH_SET}\nb: ${CMSSEARCH_UNSET:-fallback}\nc: ${CMSSEARCH_UNSET}"))
	assert.Equal(t, "a: value\nb: fallback\nc: ", string(out))
}
