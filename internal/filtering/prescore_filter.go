package filtering

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
)

const (
	DefaultPreScoreThreshold = 0.6
	DefaultMaxShortlist      = 10
)

type preScoreFilter struct {
	disabled  bool
	reason    string
	threshold float64
	max       int
}

// NewPreScore keeps candidates whose pre-score reaches threshold, at most max
// of them, highest first. Equal scores keep their input order.
func NewPreScore(threshold float64, max int) Filter {
	return &preScoreFilter{threshold: threshold, max: max}
}

func (f *preScoreFilter) Name() string { return "pre_score" }

func (f *preScoreFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *preScoreFilter) IsEnabled() bool { return !f.disabled }

func (f *preScoreFilter) Validate() error {
	if f.threshold < 0 || f.threshold > 1 {
		return fmt.Errorf("threshold %v must be within [0,1]", f.threshold)
	}
	if f.max <= 0 {
		return fmt.Errorf("max shortlist size must be positive, got %d", f.max)
	}
	return nil
}

func (f *preScoreFilter) Apply(_ context.Context, c Candidates) (Candidates, Step, error) {
	initial := c.Len()

	left, _ := c.Without(func(candidate Candidate) bool {
		return candidate.PreScore < f.threshold
	})

	slices.SortStableFunc(left, func(a, b Candidate) int {
		return cmp.Compare(b.PreScore, a.PreScore)
	})
	if len(left) > f.max {
		left = left[:f.max]
	}

	return left, newStep(initial, left), nil
}

func (f *preScoreFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{
			"threshold": strconv.FormatFloat(f.threshold, 'f', -1, 64),
			"max":       strconv.Itoa(f.max),
		},
	}
}
