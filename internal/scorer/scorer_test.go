package scorer

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/config"
	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func publishedDaysAgo(days float64) *time.Time {
	t := now.Add(-time.Duration(days * 24 * float64(time.Hour)))
	return &t
}

func TestFreshness_Bounds(t *testing.T) {
	assert.InDelta(t, 1.0, Freshness(0, 365), 1e-9)
	assert.InDelta(t, 0.5, Freshness(365, 365), 1e-9)
	assert.InDelta(t, 0.25, Freshness(730, 365), 1e-9)
	assert.Equal(t, 1.0, Freshness(-10, 365))
}

func TestFreshness_NonIncreasing(t *testing.T) {
	prev := Freshness(0, 365)
	for age := 1.0; age <= 5000; age += 7 {
		f := Freshness(age, 365)
		assert.LessOrEqual(t, f, prev, "age %v", age)
		assert.GreaterOrEqual(t, f, 0.0)
		assert.LessOrEqual(t, f, 1.0)
		prev = f
	}
}

func TestScorer_FreshnessNeutralWithoutDate(t *testing.T) {
	neutral := 0.3
	s := New(Options{NeutralFreshness: &neutral})
	assert.Equal(t, 0.3, s.Freshness(nil, now))

	s = New(Options{})
	assert.Equal(t, DefaultNeutralFreshness, s.Freshness(nil, now))
}

func TestScorer_TypeWeight(t *testing.T) {
	s := New(Options{TypeWeights: map[string]float64{"page": 1.5}})
	assert.Equal(t, 1.5, s.TypeWeight("page"))
	assert.Equal(t, DefaultTypeWeight, s.TypeWeight("post"))
}

func TestScore_DefaultWeights(t *testing.T) {
	s := New(Options{})
	entry := &types.Entry{Category: "post", PublishedAt: publishedDaysAgo(0), RelevanceBoost: 1}

	// Every component is 1 at full text relevance on a fresh entry
	got := s.Score(entry, 1.0, config.DefaultWeights(), now)
	assert.InDelta(t, 1.0, got, 1e-9)

	got = s.Score(entry, 0, config.DefaultWeights(), now)
	assert.InDelta(t, 0.6, got, 1e-9)
}

func TestScore_HigherBoostScoresStrictlyHigher(t *testing.T) {
	s := New(Options{})
	a := &types.Entry{Category: "post", PublishedAt: publishedDaysAgo(30), RelevanceBoost: 1.0}
	b := &types.Entry{Category: "post", PublishedAt: publishedDaysAgo(30), RelevanceBoost: 2.0}

	for _, text := range []float64{0, 0.3, 1} {
		sa := s.Score(a, text, config.DefaultWeights(), now)
		sb := s.Score(b, text, config.DefaultWeights(), now)
		assert.Greater(t, sb, sa)
	}
}

func TestScore_FresherScoresHigher(t *testing.T) {
	s := New(Options{})
	older := &types.Entry{PublishedAt: publishedDaysAgo(400), RelevanceBoost: 1}
	newer := &types.Entry{PublishedAt: publishedDaysAgo(4), RelevanceBoost: 1}
	w := config.DefaultWeights()
	assert.Greater(t, s.Score(newer, 0.5, w, now), s.Score(older, 0.5, w, now))
}

func TestScore_WeightsNeedNotSumToOne(t *testing.T) {
	s := New(Options{})
	entry := &types.Entry{PublishedAt: publishedDaysAgo(0), RelevanceBoost: 1}
	w := config.Weights{Text: 2, Type: 2}
	assert.InDelta(t, 4.0, s.Score(entry, 1, w, now), 1e-9)
}

type fixedSignals struct{ authority, engagement float64 }

func (f fixedSignals) AuthorAuthority(*types.Entry) float64 { return f.authority }
func (f fixedSignals) Engagement(*types.Entry) float64      { return f.engagement }

func TestScore_PluggableSignals(t *testing.T) {
	s := New(Options{Signals: fixedSignals{authority: 0, engagement: 0}})
	entry := &types.Entry{PublishedAt: publishedDaysAgo(0), RelevanceBoost: 1}
	c := s.Components(entry, 1, now)
	assert.Zero(t, c.AuthorAuthority)
	assert.Zero(t, c.Engagement)
	assert.InDelta(t, 0.85, Combine(c, config.DefaultWeights()), 1e-9)
}

func TestComponents_ClampsTextRelevance(t *testing.T) {
	s := New(Options{})
	entry := &types.Entry{}
	assert.Equal(t, 1.0, s.Components(entry, 3, now).TextRelevance)
	assert.Equal(t, 0.0, s.Components(entry, -1, now).TextRelevance)
	assert.Equal(t, 0.0, s.Components(entry, math.NaN(), now).TextRelevance)
	require.Equal(t, types.DefaultRelevanceBoost, s.Components(entry, 0, now).RelevanceBoost)
}

func TestOptionsFromConfig(t *testing.T) {
	neutral := 0.2
	opts := OptionsFromConfig(config.ScoringConfig{DecayDays: 30, NeutralFreshness: &neutral})
	assert.Equal(t, 30.0, opts.DecayDays)
	require.NotNil(t, opts.NeutralFreshness)
	assert.Equal(t, 0.2, *opts.NeutralFreshness)
}
