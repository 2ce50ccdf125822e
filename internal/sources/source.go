package sources

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/job-matcher/internal/jobs"
	"github.com/spigell/job-matcher/internal/logger"
)

// ErrSourceUnavailable wraps any failure of a single job source.
var ErrSourceUnavailable = errors.New("job source unavailable")

// Source searches one job board.
type Source interface {
	Name() jobs.Source
	Search(ctx context.Context, query Query) ([]jobs.Raw, error)
}

// Query is what every source is asked for.
type Query struct {
	Keywords string
	Location string
	Limit    int
}

// Batch is the outcome of one source. Err is set when the source failed.
type Batch struct {
	Source jobs.Source
	Raws   []jobs.Raw
	Err    error
}

// SearchAll queries every source concurrently. A failing source never
// aborts the others; its Batch carries the error instead. Batches keep the
// order of sources.
func SearchAll(ctx context.Context, sources []Source, query Query, log *zap.Logger) []Batch {
	if log == nil {
		log = zap.NewNop()
	}

	batches := make([]Batch, len(sources))

	var g errgroup.Group
	for i, source := range sources {
		g.Go(func() error {
			name := source.Name()
			raws, err := source.Search(ctx, query)
			if err != nil {
				log.Warn("job source failed", zap.String(logger.FieldSource, string(name)), zap.Error(err))
				batches[i] = Batch{Source: name, Err: fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, name, err)}
				return nil
			}

			if len(raws) == 0 {
				log.Warn("job source returned no jobs", zap.String(logger.FieldSource, string(name)))
			} else {
				log.Info("got jobs from source", zap.String(logger.FieldSource, string(name)), zap.Int("count", len(raws)))
			}
			batches[i] = Batch{Source: name, Raws: raws}
			return nil
		})
	}
	_ = g.Wait()

	return batches
}
