package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/ai"
	"github.com/spigell/job-matcher/internal/jobs"
	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/profile"
	"github.com/spigell/job-matcher/internal/scoring"
	"github.com/spigell/job-matcher/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	PlainText(ctx context.Context, system, message string) (string, error)
}

var (
	_ ai.Reasoner         = (*Matcher)(nil)
	_ ai.ProfileExtractor = (*Matcher)(nil)
	_ ai.Refiner          = (*Matcher)(nil)
)

// Matcher implements the reasoning services on top of a Gemini generator.
type Matcher struct {
	generator contentGenerator
	weights   scoring.Weights
	logger    *zap.Logger
	maxLogLen int
}

var (
	//go:embed score_system.md
	scoreSystemPrompt string
	//go:embed score.md
	scorePromptTemplate string
	//go:embed profile_system.md
	profileSystemPrompt string
	//go:embed refine_system.md
	refineSystemPrompt string
	//go:embed reformat.md
	reformatPromptTemplate string
)

const (
	defaultMaxLogLength = 200
	refineTopResults    = 3
)

func NewMatcher(generator contentGenerator, weights scoring.Weights, maxLogLength int, logger *zap.Logger) *Matcher {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Matcher{
		generator: generator,
		weights:   weights,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Score asks the model for a category breakdown of job.
func (m *Matcher) Score(ctx context.Context, job jobs.Record, p *profile.Profile, prefs map[string]any) (*jobs.Breakdown, error) {
	if p == nil {
		return nil, errors.New("profile is required")
	}

	jobJSON, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}
	profileJSON, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal profile payload: %w", err)
	}
	if prefs == nil {
		prefs = map[string]any{}
	}
	prefsJSON, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal preferences payload: %w", err)
	}

	prompt := fillTemplate(scorePromptTemplate, map[string]string{
		"{{JOB_JSON}}":         string(jobJSON),
		"{{PROFILE_JSON}}":     string(profileJSON),
		"{{PREFERENCES_JSON}}": string(prefsJSON),
	})

	var breakdown *jobs.Breakdown
	err = m.generateJSON(ctx, job.ID, scoreSystemPrompt, prompt, func(raw string) error {
		parsed, err := parseBreakdown(raw, m.weights)
		if err != nil {
			return err
		}
		breakdown = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return breakdown, nil
}

// ExtractProfile asks the model to structure résumé text.
func (m *Matcher) ExtractProfile(ctx context.Context, text string) (*profile.Profile, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("resume text is empty")
	}

	var extracted *profile.Profile
	err := m.generateJSON(ctx, "", profileSystemPrompt, "Parse the following resume:\n\n"+text, func(raw string) error {
		parsed, err := parseProfile(raw)
		if err != nil {
			return err
		}
		extracted = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return extracted, nil
}

// SuggestRefinements returns free text advice on improving the search.
func (m *Matcher) SuggestRefinements(ctx context.Context, prefs map[string]any, top []jobs.Scored) (string, error) {
	keys := make([]string, 0, len(prefs))
	for key := range prefs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Based on the user's preferences and the current search results, suggest refinements to improve matches.\n\nUSER PREFERENCES:\n")
	for _, key := range keys {
		fmt.Fprintf(&b, "%s: %v\n", key, prefs[key])
	}
	b.WriteString("\nCURRENT TOP RESULTS:\n")
	for i, s := range top {
		if i == refineTopResults {
			break
		}
		fmt.Fprintf(&b, "Job %d: %s at %s - Score: %.1f\n", i+1, s.Title, s.Company, s.Breakdown.TotalScore)
	}
	b.WriteString("\nWhat adjustments should be made to get better matches?")

	prompt := b.String()
	m.logRequest("", prompt)

	raw, err := m.generator.PlainText(ctx, refineSystemPrompt, prompt)
	if err != nil {
		return "", err
	}
	m.logResponse("", raw)
	return strings.TrimSpace(raw), nil
}

// generateJSON sends prompt and hands the reply to parse. A reply parse
// rejects gets exactly one reformat request.
func (m *Matcher) generateJSON(ctx context.Context, jobID, system, prompt string, parse func(raw string) error) error {
	m.logRequest(jobID, prompt)

	raw, err := m.generator.GenerateContent(ctx, system, prompt)
	if err != nil {
		return err
	}
	m.logResponse(jobID, raw)

	parseErr := parse(raw)
	if parseErr == nil {
		return nil
	}

	m.logger.Debug("gemini reply rejected, requesting reformat",
		zap.String(logger.FieldJobID, jobID),
		zap.Error(parseErr),
	)

	reformat := fillTemplate(reformatPromptTemplate, map[string]string{
		"{{ERROR}}": parseErr.Error(),
		"{{REPLY}}": raw,
	})

	raw, err = m.generator.GenerateContent(ctx, system, prompt+"\n\n"+reformat)
	if err != nil {
		return err
	}
	m.logResponse(jobID, raw)

	if err := parse(raw); err != nil {
		return fmt.Errorf("%w: %v", ai.ErrMalformedResponse, err)
	}
	return nil
}

func (m *Matcher) logRequest(jobID, prompt string) {
	m.logger.Debug("gemini generate content request",
		zap.String(logger.FieldJobID, jobID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, m.maxLogLen)),
	)
}

func (m *Matcher) logResponse(jobID, raw string) {
	m.logger.Debug("gemini generate content response",
		zap.String(logger.FieldJobID, jobID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, m.maxLogLen)),
	)
}

func fillTemplate(template string, values map[string]string) string {
	for placeholder, value := range values {
		template = strings.ReplaceAll(template, placeholder, value)
	}
	return template
}

// parseBreakdown accepts the six categories at the top level or under
// "categories". A missing total is computed from weights.
func parseBreakdown(raw string, weights scoring.Weights) (*jobs.Breakdown, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	source := data
	if nested, ok := data["categories"].(map[string]any); ok {
		source = nested
	}

	categories := make(map[string]jobs.CategoryScore, len(jobs.Categories))
	for _, category := range jobs.Categories {
		entry, ok := source[category].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("category %s is missing", category)
		}

		score := coerceFloat(entry["score"])
		if math.IsNaN(score) || score < 0 || score > 100 {
			return nil, fmt.Errorf("category %s has invalid score %v", category, entry["score"])
		}

		explanation := coerceString(entry["explanation"])
		if explanation == "" {
			return nil, fmt.Errorf("category %s has no explanation", category)
		}

		categories[category] = jobs.CategoryScore{Score: score, Explanation: explanation}
	}

	total := coerceFloat(data["total_score"])
	switch {
	case math.IsNaN(total):
		total = weights.Total(categories)
	case total < 0 || total > 100:
		return nil, fmt.Errorf("total score %v is out of range", total)
	}

	return &jobs.Breakdown{Categories: categories, TotalScore: jobs.RoundTenth(total)}, nil
}

func parseProfile(raw string) (*profile.Profile, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	var p profile.Profile
	if err := mapstructure.WeakDecode(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}

	p.Clean()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSuffix(strings.TrimSpace(val), "%")
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
