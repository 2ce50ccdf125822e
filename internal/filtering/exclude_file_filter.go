package filtering

import (
	"context"
	"fmt"
	"slices"
)

type excludeFileFilter struct {
	path string
}

// NewExcludeFile creates a filter that removes jobs listed in the exclude file.
func NewExcludeFile(path string) Filter {
	return &excludeFileFilter{
		path: path,
	}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(string) {}

func (f *excludeFileFilter) IsEnabled() bool { return true }

func (f *excludeFileFilter) Validate() error { return nil }

func (f *excludeFileFilter) Apply(_ context.Context, c Candidates) (Candidates, Step, error) {
	initial := c.Len()
	if f.path == "" {
		return c, newStep(initial, c), nil
	}

	excluded, err := LoadExcluded(f.path)
	if err != nil {
		return c, Step{}, fmt.Errorf("getting excluded jobs from file: %w", err)
	}

	ids := excluded.IDs()
	left, _ := c.Without(func(candidate Candidate) bool {
		return slices.Contains(ids, candidate.ID)
	})

	return left, newStep(initial, left), nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
