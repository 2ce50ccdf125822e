package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/ai"
	"github.com/spigell/job-matcher/internal/filtering"
	"github.com/spigell/job-matcher/internal/jobs"
	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/profile"
	"github.com/spigell/job-matcher/internal/ranking"
	"github.com/spigell/job-matcher/internal/scoring"
	"github.com/spigell/job-matcher/internal/sources"
)

const (
	DefaultResultsPerSource = 5
	DefaultMaxResults       = 10
	DefaultSummaryTop       = 5
	DefaultAICallTimeout    = 60 * time.Second
	refineTop               = 3
)

// FatalError is returned when a run ended with a non-empty error log. The
// state returned next to it still carries the partial results.
type FatalError struct {
	Errors []StageError
}

func (e *FatalError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, entry := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", entry.Stage, entry.Message))
	}
	return "workflow failed: " + strings.Join(msgs, "; ")
}

// Stage is a single pipeline step.
type Stage func(ctx context.Context, s State) State

// Notifier receives the rendered results summary.
type Notifier interface {
	Notify(ctx context.Context, summary string) error
}

// Config holds the run limits.
type Config struct {
	ResultsPerSource int `mapstructure:"results-per-source"`
	MaxResults       int `mapstructure:"max-results"`
	SummaryTop       int `mapstructure:"summary-top"`
	// AICallTimeout bounds a single profile extraction or refinement call.
	AICallTimeout time.Duration `mapstructure:"ai-call-timeout"`
}

func DefaultConfig() Config {
	return Config{
		ResultsPerSource: DefaultResultsPerSource,
		MaxResults:       DefaultMaxResults,
		SummaryTop:       DefaultSummaryTop,
		AICallTimeout:    DefaultAICallTimeout,
	}
}

// Deps are the collaborators of a Coordinator. Extractor, Refiner and
// Notifier are optional.
type Deps struct {
	Extractor  ai.ProfileExtractor
	Refiner    ai.Refiner
	Notifier   Notifier
	Sources    []sources.Source
	Normalizer *jobs.Normalizer
	PreScorer  *scoring.PreScorer
	Filters    []filtering.Filter
	Scorer     *scoring.DetailScorer
	Aggregator *ranking.Aggregator
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Coordinator drives a State through the pipeline stages.
type Coordinator struct {
	cfg    Config
	deps   Deps
	stages map[Phase]Stage
	logger *zap.Logger
}

func NewCoordinator(cfg Config, deps Deps) (*Coordinator, error) {
	switch {
	case deps.Normalizer == nil:
		return nil, errors.New("normalizer is required")
	case deps.PreScorer == nil:
		return nil, errors.New("pre-scorer is required")
	case deps.Scorer == nil:
		return nil, errors.New("detail scorer is required")
	case deps.Aggregator == nil:
		return nil, errors.New("aggregator is required")
	}

	defaults := DefaultConfig()
	if cfg.ResultsPerSource <= 0 {
		cfg.ResultsPerSource = defaults.ResultsPerSource
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaults.MaxResults
	}
	if cfg.SummaryTop <= 0 {
		cfg.SummaryTop = defaults.SummaryTop
	}
	if cfg.AICallTimeout <= 0 {
		cfg.AICallTimeout = defaults.AICallTimeout
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	c := &Coordinator{cfg: cfg, deps: deps, logger: deps.Logger}
	c.stages = map[Phase]Stage{
		PhaseResumeParsed:      c.parseResume,
		PhaseJobsScraped:       c.scrapeJobs,
		PhaseAnalysisComplete:  c.scoreJobs,
		PhaseFeedbackProcessed: c.refineFeedback,
		PhaseNotificationSent:  c.notify,
	}
	return c, nil
}

// Start validates input and runs a new workflow.
func (c *Coordinator) Start(ctx context.Context, input Input) (State, error) {
	if err := input.Validate(); err != nil {
		return State{}, err
	}
	return c.Run(ctx, NewState(uuid.NewString(), input))
}

// Run advances s until it is complete. It accepts any snapshot produced by an
// earlier run, so an interrupted run can be resumed.
func (c *Coordinator) Run(ctx context.Context, s State) (State, error) {
	if s.RunID == "" {
		s.RunID = uuid.NewString()
	}

	for {
		next := NextStep(s)
		if next == PhaseComplete {
			break
		}

		log := logger.WithStage(c.logger, s.RunID, string(next))
		if err := ctx.Err(); err != nil {
			log.Warn("workflow cancelled", zap.Error(err))
			s = s.withError(next, "", fmt.Sprintf("cancelled: %v", err))
			break
		}

		log.Info("stage started")
		s = c.stages[next](ctx, s)

		if len(s.Errors) == 0 && NextStep(s) == next {
			s = s.withError(next, "", "stage did not complete")
		}
		if len(s.Errors) > 0 {
			log.Error("stage failed", zap.Any("errors", s.Errors))
			break
		}
		s.CurrentPhase = next
	}

	if len(s.Errors) > 0 {
		return s, &FatalError{Errors: s.Errors}
	}

	s.CurrentPhase = PhaseComplete
	return s, nil
}

func (c *Coordinator) stageLogger(s State, stage Phase) *zap.Logger {
	return logger.WithStage(c.logger, s.RunID, string(stage))
}

func (c *Coordinator) parseResume(ctx context.Context, s State) State {
	log := c.stageLogger(s, PhaseResumeParsed)

	p := s.Input.Profile
	if p == nil {
		if c.deps.Extractor == nil {
			return s.withError(PhaseResumeParsed, "", "no profile extractor configured")
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.AICallTimeout)
		extracted, err := c.deps.Extractor.ExtractProfile(callCtx, s.Input.ResumeText)
		cancel()
		if err != nil {
			return s.withError(PhaseResumeParsed, "", fmt.Sprintf("extract profile: %v", err))
		}
		p = extracted
	}

	parsed := *p
	if s.Input.LocationPreference != "" {
		parsed.LocationPreference = s.Input.LocationPreference
	}

	s.Profile = &parsed
	s.ResumeSummary = parsed.Summary()
	if _, ok := s.Preferences[PrefLocation]; !ok && parsed.LocationPreference != "" {
		s = s.withPreference(PrefLocation, parsed.LocationPreference)
	}
	s.ResumeParsed = true

	log.Info("resume parsed",
		zap.String("desired_role", parsed.DesiredRole),
		zap.Int("skills", len(parsed.Skills)),
	)
	return s
}

func (c *Coordinator) scrapeJobs(ctx context.Context, s State) State {
	log := c.stageLogger(s, PhaseJobsScraped)

	if s.Profile == nil {
		log.Warn("no candidate profile, skipping job search")
		s.Jobs = nil
		s.Shortlist = filtering.Candidates{}
		s.JobsScraped = true
		return s.withWarning(PhaseJobsScraped, "", "no candidate profile, job search skipped")
	}

	s.Keywords = Keywords(s.Profile.DesiredRole, s.Input.WorkMode)
	query := sources.Query{
		Keywords: s.Keywords,
		Location: s.Profile.LocationPreference,
		Limit:    c.cfg.ResultsPerSource,
	}
	log.Info("searching jobs", zap.String("keywords", query.Keywords), zap.String("location", query.Location))

	var records jobs.Records
	seen := map[string]bool{}
	for _, batch := range sources.SearchAll(ctx, c.deps.Sources, query, log) {
		if batch.Err != nil {
			s = s.withWarning(PhaseJobsScraped, "", batch.Err.Error())
			continue
		}
		if len(batch.Raws) == 0 {
			s = s.withWarning(PhaseJobsScraped, "", fmt.Sprintf("%s: %s returned no jobs", sources.ErrSourceUnavailable, batch.Source))
			continue
		}

		normalized, dropped := c.deps.Normalizer.Normalize(batch.Raws, batch.Source)
		if dropped > 0 {
			log.Info("dropped incomplete job records",
				zap.String(logger.FieldSource, string(batch.Source)),
				zap.Int("dropped", dropped),
			)
		}
		for _, record := range normalized {
			if seen[record.ID] {
				continue
			}
			seen[record.ID] = true
			records = append(records, record)
		}
	}

	candidates := make(filtering.Candidates, 0, len(records))
	for _, record := range records {
		candidates = append(candidates, filtering.Candidate{
			Record:   record,
			PreScore: c.deps.PreScorer.Score(record, s.Profile),
		})
	}

	shortlist, err := filtering.Run(ctx, log, c.deps.Filters, candidates)
	if err != nil {
		return s.withError(PhaseJobsScraped, "", fmt.Sprintf("filter jobs: %v", err))
	}

	s.Jobs = records
	s.Shortlist = shortlist
	s.JobsScraped = true

	log.Info("jobs collected", zap.Int("found", len(records)), zap.Int("shortlisted", shortlist.Len()))
	return s
}

func (c *Coordinator) scoreJobs(ctx context.Context, s State) State {
	log := c.stageLogger(s, PhaseAnalysisComplete)

	scored, err := c.deps.Scorer.ScoreBatch(ctx, s.Shortlist.Records(), s.Profile, s.Preferences)

	preScores := s.Shortlist.PreScores()
	for i := range scored {
		scored[i].PreScore = preScores[scored[i].ID]
		if scored[i].Fallback {
			s = s.withWarning(PhaseAnalysisComplete, scored[i].ID, scored[i].FallbackReason)
		}
	}

	s.Scored = ranking.Rank(scored)
	s.Stats = c.deps.Aggregator.Statistics(s.Scored)

	if err != nil {
		return s.withError(PhaseAnalysisComplete, "", err.Error())
	}

	s.AnalysisComplete = true
	log.Info("jobs scored",
		zap.Int("scored", len(s.Scored)),
		zap.Float64("average_score", s.Stats.AverageMatchScore),
	)
	return s
}

func (c *Coordinator) refineFeedback(ctx context.Context, s State) State {
	log := c.stageLogger(s, PhaseFeedbackProcessed)

	s.FeedbackProcessed = true
	if c.deps.Refiner == nil || len(s.Scored) == 0 {
		log.Debug("refinement skipped")
		return s
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.AICallTimeout)
	defer cancel()

	suggestions, err := c.deps.Refiner.SuggestRefinements(callCtx, s.Preferences, s.Top(refineTop))
	if err != nil {
		log.Warn("refinement failed", zap.Error(err))
		return s.withWarning(PhaseFeedbackProcessed, "", fmt.Sprintf("refine search: %v", err))
	}

	s.Refinements = suggestions
	return s
}

func (c *Coordinator) notify(ctx context.Context, s State) State {
	log := c.stageLogger(s, PhaseNotificationSent)

	s.ResultsSummary = RenderSummary(s.Top(c.cfg.SummaryTop), s.Stats, c.deps.Clock())
	s.NotificationSent = true

	if c.deps.Notifier == nil {
		return s
	}
	if err := c.deps.Notifier.Notify(ctx, s.ResultsSummary); err != nil {
		log.Warn("notification failed", zap.Error(err))
		return s.withWarning(PhaseNotificationSent, "", fmt.Sprintf("notify: %v", err))
	}
	return s
}

// Keywords builds the search keywords from the desired role: the first "|"
// separated part, lowercased, followed by the work mode unless it is Any.
func Keywords(role string, mode profile.WorkMode) string {
	role, _, _ = strings.Cut(role, "|")
	keywords := strings.ToLower(strings.TrimSpace(role))
	if mode != "" && mode != profile.WorkModeAny {
		keywords = strings.TrimSpace(keywords + " " + string(mode))
	}
	return keywords
}
