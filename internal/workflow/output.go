package workflow

import (
	"time"

	"github.com/spigell/job-matcher/internal/jobs"
	"github.com/spigell/job-matcher/internal/profile"
	"github.com/spigell/job-matcher/internal/ranking"
)

// Output is the document a run produces.
type Output struct {
	Query       Query        `json:"query" yaml:"query"`
	Results     []Result     `json:"results" yaml:"results"`
	Statistics  Statistics   `json:"statistics" yaml:"statistics"`
	Refinements string       `json:"refinementSuggestions,omitempty" yaml:"refinementSuggestions,omitempty"`
	Warnings    []StageError `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Errors      []StageError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

type Query struct {
	ResumeSummary    string           `json:"resumeSummary" yaml:"resumeSummary"`
	Profile          *profile.Profile `json:"profile,omitempty" yaml:"profile,omitempty"`
	SearchParameters SearchParameters `json:"searchParameters" yaml:"searchParameters"`
}

type SearchParameters struct {
	Keywords     string  `json:"keywords" yaml:"keywords"`
	Location     string  `json:"location" yaml:"location"`
	WorkMode     string  `json:"workMode" yaml:"workMode"`
	SearchRadius int     `json:"searchRadius" yaml:"searchRadius"`
	MinSalary    float64 `json:"minSalary" yaml:"minSalary"`
}

type Result struct {
	JobID          string                        `json:"jobId" yaml:"jobId"`
	Position       string                        `json:"position" yaml:"position"`
	Company        string                        `json:"company" yaml:"company"`
	Location       string                        `json:"location" yaml:"location"`
	MatchScore     float64                       `json:"matchScore" yaml:"matchScore"`
	MatchDetails   map[string]jobs.CategoryScore `json:"matchDetails" yaml:"matchDetails"`
	ApplicationURL string                        `json:"applicationUrl" yaml:"applicationUrl"`
	Source         jobs.Source                   `json:"source" yaml:"source"`
	Strategy       string                        `json:"strategy" yaml:"strategy"`
}

type Statistics struct {
	ranking.Statistics `yaml:",inline"`
	Timestamp          string `json:"timestamp" yaml:"timestamp"`
}

// BuildOutput renders the output document for s. Results are capped at limit
// and never exceed DefaultMaxResults.
func BuildOutput(s State, limit int, now time.Time) Output {
	if limit <= 0 || limit > DefaultMaxResults {
		limit = DefaultMaxResults
	}

	location := s.Input.LocationPreference
	if location == "" && s.Profile != nil {
		location = s.Profile.LocationPreference
	}

	top := s.Top(limit)
	results := make([]Result, 0, len(top))
	for _, scored := range top {
		results = append(results, Result{
			JobID:          scored.ID,
			Position:       scored.Title,
			Company:        scored.Company,
			Location:       scored.Location,
			MatchScore:     scored.Breakdown.TotalScore,
			MatchDetails:   scored.Breakdown.Categories,
			ApplicationURL: scored.ApplicationURL,
			Source:         scored.Source,
			Strategy:       scored.Strategy,
		})
	}

	stats := s.Stats
	if stats.TopSkillsRequested == nil {
		stats.TopSkillsRequested = []ranking.SkillCount{}
	}

	return Output{
		Query: Query{
			ResumeSummary: s.ResumeSummary,
			Profile:       s.Profile,
			SearchParameters: SearchParameters{
				Keywords:     s.Keywords,
				Location:     location,
				WorkMode:     string(s.Input.WorkMode),
				SearchRadius: s.Input.SearchRadius,
				MinSalary:    s.Input.MinSalary,
			},
		},
		Results:     results,
		Statistics:  Statistics{Statistics: stats, Timestamp: now.UTC().Format(time.RFC3339)},
		Refinements: s.Refinements,
		Warnings:    s.Warnings,
		Errors:      s.Errors,
	}
}
