package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/spigell/job-matcher/internal/jobs"
	"github.com/spigell/job-matcher/internal/profile"
)

// Placeholder scores for categories the deterministic strategy has no
// signal for.
const (
	deterministicCompanyScore  = 70
	deterministicSalaryScore   = 65
	deterministicBenefitsScore = 60
)

const weightTolerance = 1e-6

// Weights maps every detail category to its share of the total.
type Weights struct {
	PositionMatch    float64 `mapstructure:"position-match"`
	SkillsExperience float64 `mapstructure:"skills-experience"`
	Location         float64 `mapstructure:"location"`
	CompanyMatch     float64 `mapstructure:"company-match"`
	SalaryMatch      float64 `mapstructure:"salary-match"`
	Benefits         float64 `mapstructure:"benefits"`
}

func DefaultWeights() Weights {
	return Weights{
		PositionMatch:    0.25,
		SkillsExperience: 0.30,
		Location:         0.15,
		CompanyMatch:     0.15,
		SalaryMatch:      0.10,
		Benefits:         0.05,
	}
}

// ByCategory returns the weights keyed by category name.
func (w Weights) ByCategory() map[string]float64 {
	return map[string]float64{
		jobs.CategoryPosition: w.PositionMatch,
		jobs.CategorySkills:   w.SkillsExperience,
		jobs.CategoryLocation: w.Location,
		jobs.CategoryCompany:  w.CompanyMatch,
		jobs.CategorySalary:   w.SalaryMatch,
		jobs.CategoryBenefits: w.Benefits,
	}
}

// Validate requires non-negative weights summing to one.
func (w Weights) Validate() error {
	weights := w.ByCategory()
	sum := 0.0
	for _, category := range jobs.Categories {
		value := weights[category]
		if value < 0 || math.IsNaN(value) {
			return fmt.Errorf("weight %s must not be negative, got %v", category, value)
		}
		sum += value
	}
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("category weights must sum to 1, got %v", sum)
	}
	return nil
}

// Total combines 0-100 category scores into a 0-100 total with one decimal.
func (w Weights) Total(categories map[string]jobs.CategoryScore) float64 {
	weights := w.ByCategory()
	total := 0.0
	for _, category := range jobs.Categories {
		total += categories[category].Score * weights[category]
	}
	return jobs.RoundTenth(jobs.ClampScore(total))
}

// Deterministic scores jobs with simple text heuristics. It needs no
// external service and never fails.
type Deterministic struct {
	weights Weights
}

func NewDeterministic(weights Weights) *Deterministic {
	return &Deterministic{weights: weights}
}

func (d *Deterministic) Score(job jobs.Record, p *profile.Profile, mode profile.WorkMode) jobs.Breakdown {
	if p == nil {
		p = &profile.Profile{}
	}

	position := positionMatch(job.Title, p.DesiredRole)
	skills := skillsMatch(job.RequiredSkills, p.Skills)
	location := locationMatch(job.Location, p.LocationPreference, mode)

	categories := map[string]jobs.CategoryScore{
		jobs.CategoryPosition: {
			Score:       position * 100,
			Explanation: fmt.Sprintf("The job title '%s' is a %.0f%% match with desired role '%s'", job.Title, position*100, p.DesiredRole),
		},
		jobs.CategorySkills: {
			Score:       skills * 100,
			Explanation: fmt.Sprintf("Matched %.0f%% of required skills", skills*100),
		},
		jobs.CategoryLocation: {
			Score:       location * 100,
			Explanation: fmt.Sprintf("Location match: %.0f%%", location*100),
		},
		jobs.CategoryCompany: {
			Score:       deterministicCompanyScore,
			Explanation: "Company appears to be a reasonable match",
		},
		jobs.CategorySalary: {
			Score:       deterministicSalaryScore,
			Explanation: "Salary information limited",
		},
		jobs.CategoryBenefits: {
			Score:       deterministicBenefitsScore,
			Explanation: "Benefits information limited",
		},
	}

	return jobs.Breakdown{
		Categories: categories,
		TotalScore: d.weights.Total(categories),
	}
}

func positionMatch(title, role string) float64 {
	title = strings.ToLower(strings.TrimSpace(title))
	role = strings.ToLower(strings.TrimSpace(role))

	switch {
	case title == "" || role == "":
		return 0.5
	case title == role:
		return 1.0
	case strings.Contains(title, role):
		return 0.9
	case strings.Contains(role, title):
		return 0.8
	}

	titleWords := wordSet(title)
	roleWords := wordSet(role)
	common := 0
	for word := range titleWords {
		if roleWords[word] {
			common++
		}
	}
	if common == 0 {
		return 0.4
	}
	return 0.7 * float64(common) / float64(max(len(titleWords), len(roleWords)))
}

func skillsMatch(required, candidate []string) float64 {
	if len(required) == 0 {
		return 0.7
	}
	if len(candidate) == 0 {
		return 0.3
	}

	have := make([]string, 0, len(candidate))
	for _, skill := range candidate {
		have = append(have, strings.ToLower(skill))
	}

	matches := 0
	for _, skill := range required {
		skill = strings.ToLower(skill)
		for _, c := range have {
			if c != "" && (strings.Contains(skill, c) || strings.Contains(c, skill)) {
				matches++
				break
			}
		}
	}
	return min(1.0, float64(matches)/float64(len(required)))
}

func locationMatch(location, preferred string, mode profile.WorkMode) float64 {
	location = strings.ToLower(strings.TrimSpace(location))
	preferred = strings.ToLower(strings.TrimSpace(preferred))

	if location == "" {
		return 0.5
	}

	switch mode {
	case profile.WorkModeRemote:
		if strings.Contains(location, "remote") {
			return 1.0
		}
	case profile.WorkModeOnSite, profile.WorkModeHybrid:
		if preferred != "" {
			if score, ok := placeMatch(location, preferred); ok {
				return score
			}
		}
	case profile.WorkModeAny, "":
		if preferred == "" {
			return 0.5
		}
		if score, ok := placeMatch(location, preferred); ok {
			return score
		}
	}
	return 0.4
}

// placeMatch reports 1.0 when the preference appears in the job location and
// 0.8 when one of its comma-separated parts does.
func placeMatch(location, preferred string) (float64, bool) {
	if strings.Contains(location, preferred) {
		return 1.0, true
	}
	for _, part := range strings.Split(preferred, ",") {
		if part = strings.TrimSpace(part); part != "" && strings.Contains(location, part) {
			return 0.8, true
		}
	}
	return 0, false
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, word := range strings.Fields(s) {
		set[word] = true
	}
	return set
}
