package workflow

import (
	"maps"
	"slices"

	"github.com/spigell/job-matcher/internal/filtering"
	"github.com/spigell/job-matcher/internal/jobs"
	"github.com/spigell/job-matcher/internal/profile"
	"github.com/spigell/job-matcher/internal/ranking"
)

// Phase is a position of the workflow cursor.
type Phase string

const (
	PhaseInit              Phase = "init"
	PhaseResumeParsed      Phase = "resume_parsed"
	PhaseJobsScraped       Phase = "jobs_scraped"
	PhaseAnalysisComplete  Phase = "analysis_complete"
	PhaseFeedbackProcessed Phase = "feedback_processed"
	PhaseNotificationSent  Phase = "notification_sent"
	PhaseComplete          Phase = "complete"
)

// Preference keys shared with the reasoning service.
const (
	PrefWorkMode     = profile.PreferenceWorkMode
	PrefLocation     = "location_preference"
	PrefSearchRadius = "search_radius"
	PrefMinSalary    = "min_salary"
)

// StageError is one entry of the error log.
type StageError struct {
	Stage   Phase  `json:"stage" yaml:"stage"`
	JobID   string `json:"jobId,omitempty" yaml:"jobId,omitempty"`
	Message string `json:"message" yaml:"message"`
}

// State is the record threaded through the pipeline. Stages receive it by
// value and return an updated copy; they never modify slices or maps they
// were given, so any earlier snapshot stays valid for resuming.
type State struct {
	RunID string
	Input Input

	Profile       *profile.Profile
	ResumeSummary string
	Keywords      string

	Jobs      jobs.Records
	Shortlist filtering.Candidates
	Scored    []jobs.Scored
	Stats     ranking.Statistics

	ResumeParsed      bool
	JobsScraped       bool
	AnalysisComplete  bool
	FeedbackProcessed bool
	NotificationSent  bool

	Preferences    map[string]any
	Refinements    string
	ResultsSummary string

	Errors   []StageError
	Warnings []StageError

	CurrentPhase Phase
}

// NewState builds the initial state for a validated input.
func NewState(runID string, input Input) State {
	prefs := map[string]any{
		PrefWorkMode:     string(input.WorkMode),
		PrefSearchRadius: input.SearchRadius,
		PrefMinSalary:    input.MinSalary,
	}
	if input.LocationPreference != "" {
		prefs[PrefLocation] = input.LocationPreference
	}

	return State{
		RunID:        runID,
		Input:        input,
		Preferences:  prefs,
		CurrentPhase: PhaseInit,
	}
}

// NextStep returns the phase the next stage will reach. A non-empty error
// log ends the run regardless of the flags.
func NextStep(s State) Phase {
	if len(s.Errors) > 0 {
		return PhaseComplete
	}

	switch {
	case !s.ResumeParsed:
		return PhaseResumeParsed
	case !s.JobsScraped:
		return PhaseJobsScraped
	case !s.AnalysisComplete:
		return PhaseAnalysisComplete
	case !s.FeedbackProcessed:
		return PhaseFeedbackProcessed
	case !s.NotificationSent:
		return PhaseNotificationSent
	default:
		return PhaseComplete
	}
}

func (s State) withError(stage Phase, jobID, message string) State {
	s.Errors = append(slices.Clip(s.Errors), StageError{Stage: stage, JobID: jobID, Message: message})
	return s
}

func (s State) withWarning(stage Phase, jobID, message string) State {
	s.Warnings = append(slices.Clip(s.Warnings), StageError{Stage: stage, JobID: jobID, Message: message})
	return s
}

func (s State) withPreference(key string, value any) State {
	prefs := maps.Clone(s.Preferences)
	if prefs == nil {
		prefs = map[string]any{}
	}
	prefs[key] = value
	s.Preferences = prefs
	return s
}

// Top returns at most n ranked results.
func (s State) Top(n int) []jobs.Scored {
	if n < 0 || n > len(s.Scored) {
		n = len(s.Scored)
	}
	return s.Scored[:n:n]
}
