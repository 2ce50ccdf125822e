package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/spigell/job-matcher/internal/jobs"
	"github.com/spigell/job-matcher/internal/profile"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func TestPreScorerScore(t *testing.T) {
	scorer, err := NewPreScorer(DefaultPreScoreWeights(), clock, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := &profile.Profile{DesiredRole: "Software Engineer", LocationPreference: "New York, NY"}

	tests := []struct {
		name   string
		job    jobs.Record
		expect float64
	}{
		{
			name:   "exact title and location, fresh",
			job:    jobs.Record{Title: "Software Engineer", Location: "New York, NY", PostedDate: now.Add(-2 * 24 * time.Hour)},
			expect: 0.4*1 + 0.3*1 + 0.2*0.7 + 0.1*1,
		},
		{
			name:   "substring title, remote, two weeks old",
			job:    jobs.Record{Title: "Senior Software Engineer", Location: "Remote", PostedDate: now.Add(-10 * 24 * time.Hour)},
			expect: 0.4*0.8 + 0.3*1 + 0.2*0.7 + 0.1*0.8,
		},
		{
			name:   "unrelated, elsewhere, old",
			job:    jobs.Record{Title: "Barista", Location: "Paris", PostedDate: now.Add(-40 * 24 * time.Hour)},
			expect: 0.4*0.4 + 0.3*0.5 + 0.2*0.7 + 0.1*0.4,
		},
		{
			name:   "future date counts as fresh",
			job:    jobs.Record{Title: "Barista", PostedDate: now.Add(48 * time.Hour)},
			expect: 0.4*0.4 + 0.3*0.5 + 0.2*0.7 + 0.1*1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := scorer.Score(tc.job, p)
			if math.Abs(got-tc.expect) > 1e-9 {
				t.Fatalf("expected %v, got %v", tc.expect, got)
			}
		})
	}
}

func TestPreScorerStaysInUnitRange(t *testing.T) {
	heavy := PreScoreWeights{TitleMatch: 5, LocationMatch: 5, CompanyRelevance: 5, PostingDate: 5}
	scorer, err := NewPreScorer(heavy, clock, ConstantCompanyRelevance(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records := []jobs.Record{
		{},
		{Title: "Software Engineer", Location: "Remote", PostedDate: now},
		{Title: "x", Location: "y", PostedDate: time.Time{}},
	}
	for _, p := range []*profile.Profile{nil, {}, {DesiredRole: "Software Engineer"}} {
		for _, job := range records {
			if got := scorer.Score(job, p); got < 0 || got > 1 {
				t.Fatalf("pre-score out of range: %v", got)
			}
		}
	}
}

func TestNewPreScorerRejectsNegativeWeights(t *testing.T) {
	w := DefaultPreScoreWeights()
	w.PostingDate = -0.1
	if _, err := NewPreScorer(w, clock, nil); err == nil {
		t.Fatal("expected negative weight to be rejected")
	}
}

func TestPostingDateScore(t *testing.T) {
	cases := map[int]float64{0: 1, 7: 1, 8: 0.8, 14: 0.8, 15: 0.6, 21: 0.6, 22: 0.4, 365: 0.4}
	for days, want := range cases {
		posted := now.Add(-time.Duration(days) * 24 * time.Hour)
		if got := postingDateScore(now, posted); got != want {
			t.Fatalf("%d days old: expected %v, got %v", days, want, got)
		}
	}
}
