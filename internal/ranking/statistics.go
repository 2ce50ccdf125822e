package ranking

import (
	"regexp"
	"sort"
	"strings"

	"github.com/spigell/job-matcher/internal/jobs"
)

const DefaultTopSkills = 5

// DefaultVocabulary lists skills looked up in job descriptions.
var DefaultVocabulary = []string{
	"Python", "JavaScript", "Java", "C++", "React", "Angular", "Node.js",
	"AWS", "Azure", "SQL", "NoSQL", "Docker", "Kubernetes", "Machine Learning",
}

// SkillCount is a skill with the number of jobs requesting it.
type SkillCount struct {
	Skill string `json:"skill" yaml:"skill"`
	Count int    `json:"count" yaml:"count"`
}

// Statistics summarizes a scored result list.
type Statistics struct {
	TotalJobsFound     int          `json:"totalJobsFound" yaml:"totalJobsFound"`
	AverageMatchScore  float64      `json:"averageMatchScore" yaml:"averageMatchScore"`
	TopSkillsRequested []SkillCount `json:"topSkillsRequested" yaml:"topSkillsRequested"`
}

type vocabularyTerm struct {
	skill   string
	pattern *regexp.Regexp
}

// Aggregator computes Statistics over scored jobs.
type Aggregator struct {
	topN       int
	vocabulary []vocabularyTerm
}

// NewAggregator builds an aggregator reporting at most topN skills. A nil
// vocabulary uses DefaultVocabulary.
func NewAggregator(topN int, vocabulary []string) *Aggregator {
	if topN <= 0 {
		topN = DefaultTopSkills
	}
	if vocabulary == nil {
		vocabulary = DefaultVocabulary
	}

	terms := make([]vocabularyTerm, 0, len(vocabulary))
	for _, skill := range vocabulary {
		skill = strings.TrimSpace(skill)
		if skill == "" {
			continue
		}
		terms = append(terms, vocabularyTerm{skill: skill, pattern: wordPattern(skill)})
	}

	return &Aggregator{topN: topN, vocabulary: terms}
}

// wordPattern matches skill case-insensitively as a whole word. \b cannot be
// used since skills like "C++" and "Node.js" end in non-word characters.
func wordPattern(skill string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(^|[^\w])` + regexp.QuoteMeta(skill) + `($|[^\w])`)
}

func (a *Aggregator) Statistics(scored []jobs.Scored) Statistics {
	stats := Statistics{
		TotalJobsFound:     len(scored),
		TopSkillsRequested: []SkillCount{},
	}
	if len(scored) == 0 {
		return stats
	}

	sum := 0.0
	for _, s := range scored {
		sum += s.Breakdown.TotalScore
	}
	stats.AverageMatchScore = jobs.RoundTenth(sum / float64(len(scored)))
	stats.TopSkillsRequested = a.topSkills(scored)

	return stats
}

func (a *Aggregator) topSkills(scored []jobs.Scored) []SkillCount {
	counts := make(map[string]int)
	spelling := make(map[string]string)

	for _, s := range scored {
		for key, skill := range a.jobSkills(s.Record) {
			if _, ok := spelling[key]; !ok {
				spelling[key] = skill
			}
			counts[key]++
		}
	}

	result := make([]SkillCount, 0, len(counts))
	for key, count := range counts {
		result = append(result, SkillCount{Skill: spelling[key], Count: count})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return strings.ToLower(result[i].Skill) < strings.ToLower(result[j].Skill)
	})

	if len(result) > a.topN {
		result = result[:a.topN]
	}
	return result
}

// jobSkills returns the distinct skills a job asks for, keyed by their
// lowercased name. Required skills win over vocabulary spelling.
func (a *Aggregator) jobSkills(record jobs.Record) map[string]string {
	skills := make(map[string]string)
	for _, skill := range record.RequiredSkills {
		skill = strings.TrimSpace(skill)
		key := strings.ToLower(skill)
		if skill == "" {
			continue
		}
		if _, ok := skills[key]; !ok {
			skills[key] = skill
		}
	}

	if record.Description == "" {
		return skills
	}
	for _, term := range a.vocabulary {
		key := strings.ToLower(term.skill)
		if _, ok := skills[key]; ok {
			continue
		}
		if term.pattern.MatchString(record.Description) {
			skills[key] = term.skill
		}
	}
	return skills
}
