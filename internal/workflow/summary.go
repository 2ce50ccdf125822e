package workflow

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/jobs"
	"github.com/spigell/job-matcher/internal/ranking"
)

const noMatches = "No matching jobs found."

// RenderSummary renders the markdown results summary for the given top
// results.
func RenderSummary(top []jobs.Scored, stats ranking.Statistics, now time.Time) string {
	if len(top) == 0 {
		return noMatches
	}

	var b strings.Builder
	b.WriteString("## Job Search Results Summary\n\n")
	fmt.Fprintf(&b, "Search completed: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Total matches found: %d\n\n", stats.TotalJobsFound)

	b.WriteString("### Top Matches\n\n")
	for i, job := range top {
		fmt.Fprintf(&b, "%d. **%s** at %s\n", i+1, job.Title, job.Company)
		fmt.Fprintf(&b, "   - Location: %s\n", job.Location)
		fmt.Fprintf(&b, "   - Match Score: %.1f%%\n", job.Breakdown.TotalScore)
		if job.ApplicationURL != "" {
			fmt.Fprintf(&b, "   - [Apply Now](%s)\n", job.ApplicationURL)
		}
		b.WriteString("\n")
	}

	if len(stats.TopSkillsRequested) > 0 {
		b.WriteString("### Most Requested Skills\n\n")
		for _, skill := range stats.TopSkillsRequested {
			fmt.Fprintf(&b, "- %s: mentioned in %d jobs\n", skill.Skill, skill.Count)
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// FileNotifier writes the summary to a file.
type FileNotifier struct {
	Path string
}

func (n FileNotifier) Notify(_ context.Context, summary string) error {
	if err := os.WriteFile(n.Path, []byte(summary), 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// LogNotifier logs the summary.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, summary string) error {
	n.Logger.Info("results summary", zap.String("summary", summary))
	return nil
}
