package ranking

import (
	"slices"

	"github.com/spigell/job-matcher/internal/jobs"
)

// Rank returns a copy of scored ordered by total score, highest first. Jobs
// with equal totals keep their input order.
func Rank(scored []jobs.Scored) []jobs.Scored {
	ranked := slices.Clone(scored)
	slices.SortStableFunc(ranked, func(a, b jobs.Scored) int {
		switch {
		case a.Breakdown.TotalScore > b.Breakdown.TotalScore:
			return -1
		case a.Breakdown.TotalScore < b.Breakdown.TotalScore:
			return 1
		default:
			return 0
		}
	})
	return ranked
}
