package scoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/spigell/job-matcher/internal/jobs"
	"github.com/spigell/job-matcher/internal/profile"
)

const defaultCompanyRelevance = 0.7

// PreScoreWeights weighs the cheap heuristics used before detail scoring.
// They need not sum to one; the result is clamped to [0,1].
type PreScoreWeights struct {
	TitleMatch       float64 `mapstructure:"title-match"`
	LocationMatch    float64 `mapstructure:"location-match"`
	CompanyRelevance float64 `mapstructure:"company-relevance"`
	PostingDate      float64 `mapstructure:"posting-date"`
}

func DefaultPreScoreWeights() PreScoreWeights {
	return PreScoreWeights{
		TitleMatch:       0.4,
		LocationMatch:    0.3,
		CompanyRelevance: 0.2,
		PostingDate:      0.1,
	}
}

func (w PreScoreWeights) validate() error {
	for name, value := range map[string]float64{
		"title-match":       w.TitleMatch,
		"location-match":    w.LocationMatch,
		"company-relevance": w.CompanyRelevance,
		"posting-date":      w.PostingDate,
	} {
		if value < 0 {
			return fmt.Errorf("pre-score weight %s must not be negative, got %v", name, value)
		}
	}
	return nil
}

// CompanyRelevanceFunc rates a company against the candidate in [0,1].
type CompanyRelevanceFunc func(company string, p *profile.Profile) float64

// ConstantCompanyRelevance rates every company the same.
func ConstantCompanyRelevance(value float64) CompanyRelevanceFunc {
	return func(string, *profile.Profile) float64 { return value }
}

// PreScorer computes the cheap relevance estimate used to shortlist jobs.
type PreScorer struct {
	weights PreScoreWeights
	now     func() time.Time
	company CompanyRelevanceFunc
}

func NewPreScorer(weights PreScoreWeights, clock func() time.Time, company CompanyRelevanceFunc) (*PreScorer, error) {
	if err := weights.validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = time.Now
	}
	if company == nil {
		company = ConstantCompanyRelevance(defaultCompanyRelevance)
	}
	return &PreScorer{weights: weights, now: clock, company: company}, nil
}

// Score returns the pre-score of job for p in [0,1].
func (s *PreScorer) Score(job jobs.Record, p *profile.Profile) float64 {
	var role, preferred string
	if p != nil {
		role = p.DesiredRole
		preferred = p.LocationPreference
	}

	total := s.weights.TitleMatch*titleMatch(job.Title, role) +
		s.weights.LocationMatch*preLocationMatch(job.Location, preferred) +
		s.weights.CompanyRelevance*clampUnit(s.company(job.Company, p)) +
		s.weights.PostingDate*postingDateScore(s.now(), job.PostedDate)

	return clampUnit(total)
}

func titleMatch(title, role string) float64 {
	title = strings.ToLower(strings.TrimSpace(title))
	role = strings.ToLower(strings.TrimSpace(role))
	switch {
	case title == "" || role == "":
		return 0.4
	case title == role:
		return 1.0
	case strings.Contains(title, role) || strings.Contains(role, title):
		return 0.8
	default:
		return 0.4
	}
}

func preLocationMatch(location, preferred string) float64 {
	location = strings.ToLower(strings.TrimSpace(location))
	preferred = strings.ToLower(strings.TrimSpace(preferred))
	switch {
	case location == "" || preferred == "":
		return 0.5
	case strings.Contains(location, "remote"):
		return 1.0
	case strings.Contains(location, preferred):
		return 1.0
	default:
		return 0.5
	}
}

// postingDateScore rewards recent postings. Future dates count as fresh.
func postingDateScore(now, posted time.Time) float64 {
	days := int(now.Sub(posted).Hours() / 24)
	switch {
	case days <= 7:
		return 1.0
	case days <= 14:
		return 0.8
	case days <= 21:
		return 0.6
	default:
		return 0.4
	}
}

func clampUnit(v float64) float64 {
	switch {
	case v != v, v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
