package workflow

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/job-matcher/internal/filtering"
	"github.com/spigell/job-matcher/internal/jobs"
	"github.com/spigell/job-matcher/internal/profile"
	"github.com/spigell/job-matcher/internal/ranking"
	"github.com/spigell/job-matcher/internal/scoring"
	"github.com/spigell/job-matcher/internal/sources"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type stubSource struct {
	name  jobs.Source
	raws  []jobs.Raw
	err   error
	calls atomic.Int32
}

func (s *stubSource) Name() jobs.Source { return s.name }

func (s *stubSource) Search(context.Context, sources.Query) ([]jobs.Raw, error) {
	s.calls.Add(1)
	return s.raws, s.err
}

type stubExtractor struct {
	profile *profile.Profile
	err     error
	calls   int
}

func (s *stubExtractor) ExtractProfile(context.Context, string) (*profile.Profile, error) {
	s.calls++
	return s.profile, s.err
}

type stubRefiner struct {
	top []jobs.Scored
}

func (s *stubRefiner) SuggestRefinements(_ context.Context, _ map[string]any, top []jobs.Scored) (string, error) {
	s.top = top
	return "widen the search radius", nil
}

type recordingNotifier struct {
	summary string
}

func (n *recordingNotifier) Notify(_ context.Context, summary string) error {
	n.summary = summary
	return nil
}

func sampleProfile() *profile.Profile {
	return &profile.Profile{
		DesiredRole:        "Software Engineer",
		Skills:             []string{"Python", "SQL"},
		LocationPreference: "New York, NY",
	}
}

func sampleRaws() []jobs.Raw {
	return []jobs.Raw{
		{"job_id": "b", "title": "Barista", "company": "Cafe", "location": "Remote", "required_skills": []any{}},
		{"job_id": "a", "title": "Software Engineer", "company": "Acme", "location": "New York, NY", "required_skills": []any{"Python"}},
		{"job_id": "c", "title": "", "company": "Nameless"},
	}
}

func newTestDeps(t *testing.T) Deps {
	t.Helper()

	preScorer, err := scoring.NewPreScorer(scoring.DefaultPreScoreWeights(), clock, nil)
	if err != nil {
		t.Fatalf("pre-scorer: %v", err)
	}
	scorer, err := scoring.NewDetailScorer(scoring.DefaultConfig(), nil, zap.NewNop())
	if err != nil {
		t.Fatalf("detail scorer: %v", err)
	}

	return Deps{
		Normalizer: jobs.NewNormalizer(clock),
		PreScorer:  preScorer,
		Filters:    []filtering.Filter{filtering.NewPreScore(filtering.DefaultPreScoreThreshold, filtering.DefaultMaxShortlist)},
		Scorer:     scorer,
		Aggregator: ranking.NewAggregator(ranking.DefaultTopSkills, nil),
		Clock:      clock,
		Logger:     zap.NewNop(),
	}
}

func newTestCoordinator(t *testing.T, deps Deps) *Coordinator {
	t.Helper()

	c, err := NewCoordinator(DefaultConfig(), deps)
	if err != nil {
		t.Fatalf("coordinator: %v", err)
	}
	return c
}

func scoredIDs(scored []jobs.Scored) []string {
	ids := make([]string, 0, len(scored))
	for _, s := range scored {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestNextStep(t *testing.T) {
	cases := []struct {
		name  string
		state State
		want  Phase
	}{
		{name: "fresh", state: State{}, want: PhaseResumeParsed},
		{name: "parsed", state: State{ResumeParsed: true}, want: PhaseJobsScraped},
		{name: "scraped", state: State{ResumeParsed: true, JobsScraped: true}, want: PhaseAnalysisComplete},
		{name: "analysed", state: State{ResumeParsed: true, JobsScraped: true, AnalysisComplete: true}, want: PhaseFeedbackProcessed},
		{name: "refined", state: State{ResumeParsed: true, JobsScraped: true, AnalysisComplete: true, FeedbackProcessed: true}, want: PhaseNotificationSent},
		{name: "done", state: State{ResumeParsed: true, JobsScraped: true, AnalysisComplete: true, FeedbackProcessed: true, NotificationSent: true}, want: PhaseComplete},
		{name: "errors first", state: State{Errors: []StageError{{Stage: PhaseResumeParsed, Message: "boom"}}}, want: PhaseComplete},
		{name: "flags out of order", state: State{JobsScraped: true}, want: PhaseResumeParsed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NextStep(tc.state); got != tc.want {
				t.Fatalf("NextStep() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestRunEndToEnd(t *testing.T) {
	linkedIn := &stubSource{name: jobs.SourceLinkedIn, raws: sampleRaws()}
	indeed := &stubSource{name: jobs.SourceIndeed, err: errors.New("actor timed out")}
	refiner := &stubRefiner{}
	notifier := &recordingNotifier{}

	deps := newTestDeps(t)
	deps.Sources = []sources.Source{linkedIn, indeed}
	deps.Refiner = refiner
	deps.Notifier = notifier

	state, err := newTestCoordinator(t, deps).Start(context.Background(), Input{
		ResumeText: "resume",
		Profile:    sampleProfile(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.CurrentPhase != PhaseComplete {
		t.Fatalf("expected complete phase, got %s", state.CurrentPhase)
	}
	if state.RunID == "" {
		t.Fatal("expected a run id")
	}
	if state.Keywords != "software engineer" {
		t.Fatalf("unexpected keywords %q", state.Keywords)
	}
	if got := scoredIDs(state.Scored); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("expected A ranked above B, got %v", got)
	}

	a := state.Scored[0]
	if a.Breakdown.Categories[jobs.CategoryPosition].Score != 100 || a.Breakdown.Categories[jobs.CategorySkills].Score != 100 {
		t.Fatalf("unexpected breakdown for A: %+v", a.Breakdown)
	}
	if a.PreScore <= 0 {
		t.Fatalf("expected pre-score to be carried, got %v", a.PreScore)
	}

	if len(state.Warnings) != 1 || !strings.Contains(state.Warnings[0].Message, "Indeed") {
		t.Fatalf("expected one source warning, got %+v", state.Warnings)
	}
	if state.Refinements != "widen the search radius" || len(refiner.top) != 2 {
		t.Fatalf("unexpected refinement %q with %d jobs", state.Refinements, len(refiner.top))
	}
	if notifier.summary != state.ResultsSummary || !strings.Contains(notifier.summary, "1. **Software Engineer** at Acme") {
		t.Fatalf("unexpected summary %q", notifier.summary)
	}

	out := BuildOutput(state, DefaultMaxResults, fixedNow)
	if len(out.Results) != 2 || out.Results[0].Position != "Software Engineer" || out.Results[0].MatchScore != 90 {
		t.Fatalf("unexpected results %+v", out.Results)
	}
	if out.Statistics.TotalJobsFound != 2 || out.Statistics.Timestamp != "2025-03-10T12:00:00Z" {
		t.Fatalf("unexpected statistics %+v", out.Statistics)
	}
	if out.Query.SearchParameters.Location != "New York, NY" || out.Query.SearchParameters.WorkMode != "Any" {
		t.Fatalf("unexpected search parameters %+v", out.Query.SearchParameters)
	}
}

func TestRunWithoutJobsProducesEmptyResult(t *testing.T) {
	deps := newTestDeps(t)
	deps.Sources = []sources.Source{&stubSource{name: jobs.SourceLinkedIn}}

	state, err := newTestCoordinator(t, deps).Start(context.Background(), Input{Profile: sampleProfile()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := ranking.Statistics{TopSkillsRequested: []ranking.SkillCount{}}
	if !reflect.DeepEqual(state.Stats, expected) {
		t.Fatalf("unexpected statistics %+v", state.Stats)
	}
	if state.ResultsSummary != "No matching jobs found." {
		t.Fatalf("unexpected summary %q", state.ResultsSummary)
	}
	if len(state.Warnings) != 1 || !strings.Contains(state.Warnings[0].Message, "LinkedIn returned no jobs") {
		t.Fatalf("expected an empty source warning, got %+v", state.Warnings)
	}

	out := BuildOutput(state, DefaultMaxResults, fixedNow)
	if out.Results == nil || len(out.Results) != 0 {
		t.Fatalf("expected empty results, got %+v", out.Results)
	}
}

func TestStartValidatesInput(t *testing.T) {
	cases := map[string]Input{
		"missing resume":    {},
		"bad work mode":     {ResumeText: "cv", WorkMode: "Sometimes"},
		"negative radius":   {ResumeText: "cv", SearchRadius: -1},
		"negative salary":   {ResumeText: "cv", MinSalary: -10},
		"bad profile years": {Profile: &profile.Profile{TotalYearsExperience: -1}},
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			source := &stubSource{name: jobs.SourceLinkedIn}
			extractor := &stubExtractor{profile: sampleProfile()}

			deps := newTestDeps(t)
			deps.Sources = []sources.Source{source}
			deps.Extractor = extractor

			_, err := newTestCoordinator(t, deps).Start(context.Background(), input)

			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if extractor.calls != 0 || source.calls.Load() != 0 {
				t.Fatal("expected no external calls on invalid input")
			}
		})
	}
}

func TestRunStopsAtFirstStageError(t *testing.T) {
	source := &stubSource{name: jobs.SourceLinkedIn, raws: sampleRaws()}
	deps := newTestDeps(t)
	deps.Sources = []sources.Source{source}
	deps.Extractor = &stubExtractor{err: errors.New("model unavailable")}

	state, err := newTestCoordinator(t, deps).Start(context.Background(), Input{ResumeText: "cv"})

	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError, got %v", err)
	}
	if len(fatal.Errors) != 1 || fatal.Errors[0].Stage != PhaseResumeParsed {
		t.Fatalf("unexpected error log %+v", fatal.Errors)
	}
	if state.JobsScraped || source.calls.Load() != 0 {
		t.Fatal("expected the run to stop before scraping")
	}
	if NextStep(state) != PhaseComplete {
		t.Fatal("expected the error log to complete the run")
	}
}

func TestRunRecordsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state, err := newTestCoordinator(t, newTestDeps(t)).Start(ctx, Input{Profile: sampleProfile()})

	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError, got %v", err)
	}
	if state.Errors[0].Stage != PhaseResumeParsed || !strings.Contains(state.Errors[0].Message, "cancel") {
		t.Fatalf("unexpected error log %+v", state.Errors)
	}
}

func TestRunResumesFromSnapshot(t *testing.T) {
	extractor := &stubExtractor{profile: sampleProfile()}
	deps := newTestDeps(t)
	deps.Extractor = extractor
	deps.Sources = []sources.Source{&stubSource{name: jobs.SourceLinkedIn, raws: sampleRaws()}}
	c := newTestCoordinator(t, deps)

	input := Input{ResumeText: "cv", LocationPreference: "Remote"}
	if err := input.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	snapshot := c.parseResume(context.Background(), NewState("run-1", input))
	if !snapshot.ResumeParsed || snapshot.Profile.LocationPreference != "Remote" {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}

	first, err := c.Run(context.Background(), snapshot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := c.Run(context.Background(), snapshot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if extractor.calls != 1 {
		t.Fatalf("expected extraction to run once, got %d", extractor.calls)
	}
	if snapshot.JobsScraped || snapshot.Scored != nil {
		t.Fatal("snapshot was modified by a later run")
	}
	if !reflect.DeepEqual(scoredIDs(first.Scored), scoredIDs(second.Scored)) {
		t.Fatalf("runs from the same snapshot differ: %v vs %v", scoredIDs(first.Scored), scoredIDs(second.Scored))
	}
	if sampleProfile().LocationPreference != "New York, NY" || extractor.profile.LocationPreference != "New York, NY" {
		t.Fatal("extracted profile was modified by the location override")
	}
}

func TestKeywords(t *testing.T) {
	cases := []struct {
		role string
		mode profile.WorkMode
		want string
	}{
		{"Software Engineer", profile.WorkModeAny, "software engineer"},
		{"Backend Engineer | Go Developer", profile.WorkModeRemote, "backend engineer Remote"},
		{" SRE ", profile.WorkModeHybrid, "sre Hybrid"},
		{"", profile.WorkModeOnSite, "On-site"},
	}

	for _, tc := range cases {
		if got := Keywords(tc.role, tc.mode); got != tc.want {
			t.Fatalf("Keywords(%q, %q) = %q, want %q", tc.role, tc.mode, got, tc.want)
		}
	}
}

func TestRenderSummary(t *testing.T) {
	top := []jobs.Scored{{
		Record:    jobs.Record{Title: "Go Developer", Company: "Acme", Location: "Remote", ApplicationURL: "https://example.com/1"},
		Breakdown: jobs.Breakdown{TotalScore: 87.34},
	}}
	stats := ranking.Statistics{TotalJobsFound: 3, TopSkillsRequested: []ranking.SkillCount{{Skill: "Go", Count: 2}}}

	want := `## Job Search Results Summary

Search completed: 2025-03-10 12:00:00
Total matches found: 3

### Top Matches

1. **Go Developer** at Acme
   - Location: Remote
   - Match Score: 87.3%
   - [Apply Now](https://example.com/1)

### Most Requested Skills

- Go: mentioned in 2 jobs
`
	if got := RenderSummary(top, stats, fixedNow); got != want {
		t.Fatalf("unexpected summary:\n%s", got)
	}
}

func TestRunWithoutProfileSkipsSearch(t *testing.T) {
	source := &stubSource{name: jobs.SourceLinkedIn, raws: sampleRaws()}
	deps := newTestDeps(t)
	deps.Sources = []sources.Source{source}

	state, err := newTestCoordinator(t, deps).Run(context.Background(), State{RunID: "resumed", ResumeParsed: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls := source.calls.Load(); calls != 0 {
		t.Fatalf("expected no search without a profile, got %d calls", calls)
	}
	if len(state.Scored) != 0 || state.Stats.TotalJobsFound != 0 {
		t.Fatalf("expected empty results, got %+v", state.Scored)
	}
	if len(state.Warnings) != 1 || state.Warnings[0].Stage != PhaseJobsScraped {
		t.Fatalf("expected a single job search warning, got %+v", state.Warnings)
	}
	if state.ResultsSummary != noMatches {
		t.Fatalf("unexpected summary %q", state.ResultsSummary)
	}
}

type blockingExtractor struct{}

func (blockingExtractor) ExtractProfile(ctx context.Context, _ string) (*profile.Profile, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestExtractorCallTimesOut(t *testing.T) {
	deps := newTestDeps(t)
	deps.Extractor = blockingExtractor{}

	cfg := DefaultConfig()
	cfg.AICallTimeout = 20 * time.Millisecond
	c, err := NewCoordinator(cfg, deps)
	if err != nil {
		t.Fatalf("coordinator: %v", err)
	}

	_, err = c.Start(context.Background(), Input{ResumeText: "Go developer"})
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError, got %v", err)
	}
	if fatal.Errors[0].Stage != PhaseResumeParsed || !strings.Contains(fatal.Errors[0].Message, context.DeadlineExceeded.Error()) {
		t.Fatalf("unexpected errors %+v", fatal.Errors)
	}
}

func TestBuildOutputCapsResults(t *testing.T) {
	var state State
	for i := range 12 {
		state.Scored = append(state.Scored, jobs.Scored{Record: jobs.Record{ID: string(rune('a' + i))}})
	}

	cases := map[string]int{"configured above cap": 25, "unset": 0, "below cap": 3}
	want := map[string]int{"configured above cap": DefaultMaxResults, "unset": DefaultMaxResults, "below cap": 3}
	for name, limit := range cases {
		t.Run(name, func(t *testing.T) {
			if got := len(BuildOutput(state, limit, fixedNow).Results); got != want[name] {
				t.Fatalf("got %d results, want %d", got, want[name])
			}
		})
	}
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	if err := (LogNotifier{Logger: zap.New(core)}).Notify(context.Background(), noMatches); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries := logs.FilterMessage("results summary").All()
	if len(entries) != 1 || entries[0].ContextMap()["summary"] != noMatches {
		t.Fatalf("expected the summary to be logged once, got %+v", entries)
	}
}
