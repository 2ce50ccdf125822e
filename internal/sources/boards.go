package sources

import (
	"context"

	"github.com/spigell/job-matcher/internal/jobs"
)

const (
	DefaultLinkedInActor = "apimaestro/linkedin-jobs-scraper-api"
	DefaultIndeedActor   = "misceres/indeed-scraper"

	indeedCountry        = "US"
	indeedMaxConcurrency = 5
)

type actorRunner interface {
	RunActor(ctx context.Context, actorID string, input any) ([]jobs.Raw, error)
}

// LinkedIn searches LinkedIn through an Apify actor.
type LinkedIn struct {
	runner actorRunner
	actor  string
}

func NewLinkedIn(runner actorRunner, actor string) *LinkedIn {
	if actor == "" {
		actor = DefaultLinkedInActor
	}
	return &LinkedIn{runner: runner, actor: actor}
}

func (l *LinkedIn) Name() jobs.Source {
	return jobs.SourceLinkedIn
}

func (l *LinkedIn) Search(ctx context.Context, query Query) ([]jobs.Raw, error) {
	input := map[string]any{
		"keywords":    query.Keywords,
		"location":    query.Location,
		"page_number": 1,
		"sort":        "relevant",
		"limit":       query.Limit,
	}
	return l.runner.RunActor(ctx, l.actor, input)
}

// Indeed searches Indeed through an Apify actor.
type Indeed struct {
	runner actorRunner
	actor  string
}

func NewIndeed(runner actorRunner, actor string) *Indeed {
	if actor == "" {
		actor = DefaultIndeedActor
	}
	return &Indeed{runner: runner, actor: actor}
}

func (i *Indeed) Name() jobs.Source {
	return jobs.SourceIndeed
}

func (i *Indeed) Search(ctx context.Context, query Query) ([]jobs.Raw, error) {
	input := map[string]any{
		"position":             query.Keywords,
		"country":              indeedCountry,
		"location":             query.Location,
		"maxItems":             query.Limit,
		"parseCompanyDetails":  false,
		"saveOnlyUniqueItems":  true,
		"followApplyRedirects": false,
		"maxConcurrency":       indeedMaxConcurrency,
	}
	return i.runner.RunActor(ctx, i.actor, input)
}
