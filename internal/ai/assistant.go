package ai

import (
	"context"
	"errors"

	"github.com/spigell/job-matcher/internal/jobs"
	"github.com/spigell/job-matcher/internal/profile"
)

// ErrMalformedResponse is returned when a model reply cannot be parsed into
// the requested shape even after a reformat request.
var ErrMalformedResponse = errors.New("malformed model response")

// Reasoner scores a single job against a candidate profile.
type Reasoner interface {
	Score(ctx context.Context, job jobs.Record, p *profile.Profile, prefs map[string]any) (*jobs.Breakdown, error)
}

// ProfileExtractor turns free résumé text into a structured profile.
type ProfileExtractor interface {
	ExtractProfile(ctx context.Context, text string) (*profile.Profile, error)
}

// Refiner suggests search adjustments from the preferences and current top results.
type Refiner interface {
	SuggestRefinements(ctx context.Context, prefs map[string]any, top []jobs.Scored) (string, error)
}
