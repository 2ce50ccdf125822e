package profile

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	summarySkills      = 10
	summaryExperiences = 2
	summaryEducation   = 1
)

// Profile is the structured candidate profile extracted from a résumé.
type Profile struct {
	DesiredRole          string           `json:"desired_role" yaml:"desired_role" mapstructure:"desired_role"`
	Skills               []string         `json:"skills" yaml:"skills" mapstructure:"skills"`
	Experience           []WorkExperience `json:"experience" yaml:"experience" mapstructure:"experience"`
	Education            []Education      `json:"education" yaml:"education" mapstructure:"education"`
	LocationPreference   string           `json:"location_preference" yaml:"location_preference" mapstructure:"location_preference"`
	IndustryExperience   []string         `json:"industry_experience" yaml:"industry_experience" mapstructure:"industry_experience"`
	TotalYearsExperience float64          `json:"total_years_experience" yaml:"total_years_experience" mapstructure:"total_years_experience"`
}

type WorkExperience struct {
	Title       string `json:"title" yaml:"title" mapstructure:"title"`
	Company     string `json:"company" yaml:"company" mapstructure:"company"`
	Duration    string `json:"duration" yaml:"duration" mapstructure:"duration"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
}

type Education struct {
	Degree      string `json:"degree" yaml:"degree" mapstructure:"degree"`
	Institution string `json:"institution" yaml:"institution" mapstructure:"institution"`
	Year        string `json:"year" yaml:"year" mapstructure:"year"`
	Field       string `json:"field,omitempty" yaml:"field,omitempty" mapstructure:"field"`
}

// Validate checks the invariants every scorer relies on.
func (p *Profile) Validate() error {
	if p == nil {
		return fmt.Errorf("profile is nil")
	}
	if p.TotalYearsExperience < 0 {
		return fmt.Errorf("total years of experience must not be negative, got %v", p.TotalYearsExperience)
	}
	return nil
}

// Clean trims every text field and drops empty skills and industries.
func (p *Profile) Clean() {
	p.DesiredRole = strings.TrimSpace(p.DesiredRole)
	p.LocationPreference = strings.TrimSpace(p.LocationPreference)
	p.Skills = compact(p.Skills)
	p.IndustryExperience = compact(p.IndustryExperience)
	for i := range p.Experience {
		e := &p.Experience[i]
		e.Title = strings.TrimSpace(e.Title)
		e.Company = strings.TrimSpace(e.Company)
		e.Duration = strings.TrimSpace(e.Duration)
		e.Description = strings.TrimSpace(e.Description)
	}
	for i := range p.Education {
		e := &p.Education[i]
		e.Degree = strings.TrimSpace(e.Degree)
		e.Institution = strings.TrimSpace(e.Institution)
		e.Year = strings.TrimSpace(e.Year)
		e.Field = strings.TrimSpace(e.Field)
	}
}

// Summary renders the short résumé digest used in prompts and in the output.
func (p *Profile) Summary() string {
	if p == nil {
		return ""
	}

	experiences := make([]string, 0, summaryExperiences)
	for _, exp := range head(p.Experience, summaryExperiences) {
		experiences = append(experiences, fmt.Sprintf("%s at %s (%s)", exp.Title, exp.Company, exp.Duration))
	}

	education := make([]string, 0, summaryEducation)
	for _, edu := range head(p.Education, summaryEducation) {
		line := edu.Degree
		if edu.Field != "" {
			line += " in " + edu.Field
		}
		line += fmt.Sprintf(" from %s (%s)", edu.Institution, edu.Year)
		education = append(education, line)
	}

	lines := []string{
		"Role: " + p.DesiredRole,
		fmt.Sprintf("Experience: %s years total - %s",
			strconv.FormatFloat(p.TotalYearsExperience, 'f', -1, 64),
			strings.Join(experiences, "; ")),
		"Education: " + strings.Join(education, "; "),
		"Skills: " + strings.Join(head(p.Skills, summarySkills), ", "),
		"Location: " + p.LocationPreference,
		"Industries: " + strings.Join(p.IndustryExperience, ", "),
	}
	return strings.Join(lines, "\n")
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
