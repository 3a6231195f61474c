package scorer

import (
	"math"
	"time"

	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/config"
	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

const (
	// DefaultDecayDays is the age at which freshness halves
	DefaultDecayDays = 365.0

	// DefaultNeutralFreshness applies to entries without a publication date
	DefaultNeutralFreshness = 0.5

	// DefaultTypeWeight applies to categories missing from the type weight map
	DefaultTypeWeight = 1.0

	// ManualBoostUnit is the manual signal term. The entry's relevance boost
	// multiplies the whole composite, so the additive term stays at one unit.
	ManualBoostUnit = 1.0
)

// Signals supplies the pluggable authority and engagement inputs
type Signals interface {
	AuthorAuthority(entry *types.Entry) float64
	Engagement(entry *types.Entry) float64
}

// NeutralSignals reports 1.0 for every entry
type NeutralSignals struct{}

func (NeutralSignals) AuthorAuthority(*types.Entry) float64 { return 1.0 }
func (NeutralSignals) Engagement(*types.Entry) float64      { return 1.0 }

// Options configures a Scorer
type Options struct {
	DecayDays        float64
	NeutralFreshness *float64 // nil means DefaultNeutralFreshness
	TypeWeights      map[string]float64
	Signals          Signals
}

// OptionsFromConfig builds scorer options from the scoring configuration
func OptionsFromConfig(cfg config.ScoringConfig) Options {
	return Options{
		DecayDays:        cfg.DecayDays,
		NeutralFreshness: cfg.NeutralFreshness,
		TypeWeights:      cfg.TypeWeights,
	}
}

// Components is the per-signal breakdown of a composite score
type Components struct {
	TextRelevance   float64 `json:"text_relevance"`
	TypeWeight      float64 `json:"type_weight"`
	Freshness       float64 `json:"freshness"`
	AuthorAuthority float64 `json:"author_authority"`
	ManualBoost     float64 `json:"manual_boost"`
	Engagement      float64 `json:"engagement"`
	RelevanceBoost  float64 `json:"relevance_boost"`
}

// Scorer computes composite relevance scores. It holds no mutable state and is safe for concurrent use.
type Scorer struct {
	decayDays        float64
	neutralFreshness float64
	typeWeights      map[string]float64
	signals          Signals
}

// New creates a scorer, filling unset options with defaults
func New(opts Options) *Scorer {
	s := &Scorer{
		decayDays:        opts.DecayDays,
		neutralFreshness: DefaultNeutralFreshness,
		typeWeights:      make(map[string]float64, len(opts.TypeWeights)),
		signals:          opts.Signals,
	}
	if s.decayDays <= 0 {
		s.decayDays = DefaultDecayDays
	}
	if n := opts.NeutralFreshness; n != nil && *n >= 0 && *n <= 1 {
		s.neutralFreshness = *n
	}
	if s.signals == nil {
		s.signals = NeutralSignals{}
	}
	for k, v := range opts.TypeWeights {
		s.typeWeights[k] = v
	}
	return s
}

// Score returns the composite relevance of entry at time now:
//
//	(text*w_text + type*w_type + freshness*w_freshness + author*w_author
//	 + manual*w_manual + engagement*w_engagement) * relevanceBoost
func (s *Scorer) Score(entry *types.Entry, textRelevance float64, weights config.Weights, now time.Time) float64 {
	c := s.Components(entry, textRelevance, now)
	return Combine(c, weights)
}

// Components computes every signal for entry without applying weights
func (s *Scorer) Components(entry *types.Entry, textRelevance float64, now time.Time) Components {
	boost := entry.RelevanceBoost
	if boost <= 0 {
		boost = types.DefaultRelevanceBoost
	}
	return Components{
		TextRelevance:   clamp01(textRelevance),
		TypeWeight:      s.TypeWeight(entry.Category),
		Freshness:       s.Freshness(entry.PublishedAt, now),
		AuthorAuthority: s.signals.AuthorAuthority(entry),
		ManualBoost:     ManualBoostUnit,
		Engagement:      s.signals.Engagement(entry),
		RelevanceBoost:  boost,
	}
}

// Combine applies weights to precomputed components
func Combine(c Components, w config.Weights) float64 {
	sum := c.TextRelevance*w.Text +
		c.TypeWeight*w.Type +
		c.Freshness*w.Freshness +
		c.AuthorAuthority*w.Author +
		c.ManualBoost*w.Manual +
		c.Engagement*w.Engagement
	return sum * c.RelevanceBoost
}

// TypeWeight returns the configured multiplier for category, or 1.0
func (s *Scorer) TypeWeight(category string) float64 {
	if w, ok := s.typeWeights[category]; ok {
		return w
	}
	return DefaultTypeWeight
}

// Freshness returns the decayed freshness of an entry published at publishedAt.
// Entries without a publication date get the neutral freshness.
func (s *Scorer) Freshness(publishedAt *time.Time, now time.Time) float64 {
	if publishedAt == nil {
		return s.neutralFreshness
	}
	ageDays := now.Sub(*publishedAt).Hours() / 24
	return Freshness(ageDays, s.decayDays)
}

// Freshness is min(1, e^(-ageDays/k)) with k = decayDays/ln(2).
// Negative ages (scheduled entries) clamp to 1.
func Freshness(ageDays, decayDays float64) float64 {
	if decayDays <= 0 {
		decayDays = DefaultDecayDays
	}
	k := decayDays / math.Ln2
	return math.Min(1, math.Exp(-ageDays/k))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
