package jobs

import "math"

// Detail scoring categories in their fixed reporting order.
const (
	CategoryPosition = "position_match"
	CategorySkills   = "skills_experience"
	CategoryLocation = "location"
	CategoryCompany  = "company_match"
	CategorySalary   = "salary_match"
	CategoryBenefits = "benefits"
)

// Categories lists every detail scoring category.
var Categories = []string{
	CategoryPosition,
	CategorySkills,
	CategoryLocation,
	CategoryCompany,
	CategorySalary,
	CategoryBenefits,
}

// CategoryScore is a 0-100 score with its human-readable reason.
type CategoryScore struct {
	Score       float64 `json:"score" yaml:"score"`
	Explanation string  `json:"explanation" yaml:"explanation"`
}

// Breakdown is the per-category result of detail scoring.
type Breakdown struct {
	Categories map[string]CategoryScore `json:"categories" yaml:"categories"`
	TotalScore float64                  `json:"total_score" yaml:"total_score"`
}

// Scored is a record after detail scoring.
type Scored struct {
	Record    `yaml:",inline"`
	Breakdown Breakdown `json:"breakdown" yaml:"breakdown"`
	PreScore  float64   `json:"pre_score" yaml:"pre_score"`

	// Strategy names the scorer that produced Breakdown.
	Strategy string `json:"strategy" yaml:"strategy"`
	// Fallback is set when the semantic strategy failed and the
	// deterministic strategy produced Breakdown instead.
	Fallback       bool   `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	FallbackReason string `json:"fallback_reason,omitempty" yaml:"fallback_reason,omitempty"`
}

// ClampScore limits v to [0,100]; NaN becomes 0.
func ClampScore(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// RoundTenth rounds v to one decimal place.
func RoundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
