package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/jobs"
)

// Filter represents a single filtering step applied to candidates.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate() error
	Apply(ctx context.Context, c Candidates) (Candidates, Step, error)
}

// Candidate is a normalized job with its pre-score.
type Candidate struct {
	jobs.Record
	PreScore float64
}

// Candidates is an ordered list of candidates. Filters return new slices.
type Candidates []Candidate

func (c Candidates) Len() int {
	return len(c)
}

func (c Candidates) Records() jobs.Records {
	records := make(jobs.Records, 0, len(c))
	for _, candidate := range c {
		records = append(records, candidate.Record)
	}
	return records
}

// PreScores maps job id to pre-score.
func (c Candidates) PreScores() map[string]float64 {
	scores := make(map[string]float64, len(c))
	for _, candidate := range c {
		scores[candidate.ID] = candidate.PreScore
	}
	return scores
}

// Without returns the candidates for which drop is false and the ids of the
// dropped ones.
func (c Candidates) Without(drop func(Candidate) bool) (Candidates, []string) {
	kept := make(Candidates, 0, len(c))
	var dropped []string
	for _, candidate := range c {
		if drop(candidate) {
			dropped = append(dropped, candidate.ID)
			continue
		}
		kept = append(kept, candidate)
	}
	return kept, dropped
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

func newStep(initial int, left Candidates) Step {
	return Step{Initial: initial, Dropped: initial - left.Len(), Left: left.Len()}
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

type statusProvider interface {
	Status() Status
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run validates every enabled filter and then applies them in order.
func Run(ctx context.Context, logger *zap.Logger, steps []Filter, c Candidates) (Candidates, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			logger.Info("filter disabled", zap.String("name", step.Name()))
			continue
		}
		if err := ctx.Err(); err != nil {
			return c, err
		}

		next, info, err := step.Apply(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		c = next
	}

	return c, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}
