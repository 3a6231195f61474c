package searcher

import (
	"context"

	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/config"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/scorer"
	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

// ScoreInput is what a BeforeScore hook may adjust for one candidate.
// Entry is shared with the response and must not be modified.
type ScoreInput struct {
	Entry      *types.Entry
	Components scorer.Components
	Weights    config.Weights
}

// BeforeScoreFunc runs for every candidate before its composite score is computed
type BeforeScoreFunc func(ctx context.Context, in *ScoreInput)

// AfterSearchFunc runs once per executed search before the response is returned
type AfterSearchFunc func(ctx context.Context, req *SearchRequest, resp *SearchResponse)

// Hooks are the extension points registered at construction time. Hooks run in order.
type Hooks struct {
	BeforeScore []BeforeScoreFunc
	AfterSearch []AfterSearchFunc
}
