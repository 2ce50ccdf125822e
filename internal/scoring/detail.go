package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/spigell/job-matcher/internal/ai"
	"github.com/spigell/job-matcher/internal/jobs"
	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/profile"
)

const (
	StrategySemantic      = "semantic"
	StrategyDeterministic = "deterministic"
)

const (
	defaultConcurrency   = 4
	defaultRatePerSecond = 2
	defaultCallTimeout   = 60 * time.Second
)

// Config controls detail scoring.
type Config struct {
	Weights Weights `mapstructure:"weights"`
	// Concurrency bounds in-flight reasoner calls.
	Concurrency int `mapstructure:"concurrency"`
	// RatePerSecond paces reasoner calls. Zero or less disables pacing.
	RatePerSecond float64       `mapstructure:"rate-per-second"`
	CallTimeout   time.Duration `mapstructure:"call-timeout"`
}

func DefaultConfig() Config {
	return Config{
		Weights:       DefaultWeights(),
		Concurrency:   defaultConcurrency,
		RatePerSecond: defaultRatePerSecond,
		CallTimeout:   defaultCallTimeout,
	}
}

// DetailScorer produces the per-category breakdown for shortlisted jobs. It
// asks the reasoner first and falls back to the deterministic strategy.
type DetailScorer struct {
	cfg           Config
	reasoner      ai.Reasoner
	deterministic *Deterministic
	limiter       *rate.Limiter
	logger        *zap.Logger
}

// NewDetailScorer fails when the weights are invalid. A nil reasoner means
// offline mode: every job is scored deterministically.
func NewDetailScorer(cfg Config, reasoner ai.Reasoner, log *zap.Logger) (*DetailScorer, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	return &DetailScorer{
		cfg:           cfg,
		reasoner:      reasoner,
		deterministic: NewDeterministic(cfg.Weights),
		limiter:       rate.NewLimiter(limit, cfg.Concurrency),
		logger:        logger.WithFields(log),
	}, nil
}

// ScoreBatch scores every job, at most Concurrency at a time, and waits for
// all calls. A failing job never affects the others. When ctx is cancelled
// the jobs scored so far are returned in input order with ctx's error.
func (s *DetailScorer) ScoreBatch(ctx context.Context, records jobs.Records, p *profile.Profile, prefs map[string]any) ([]jobs.Scored, error) {
	if p == nil || len(records) == 0 {
		s.logger.Info("nothing to score",
			zap.Int("jobs", len(records)),
			zap.Bool("profile", p != nil),
		)
		return []jobs.Scored{}, nil
	}

	results := make([]*jobs.Scored, len(records))

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)

	for i, job := range records {
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			scored, err := s.ScoreOne(ctx, job, p, prefs)
			if err != nil {
				s.logger.Debug("job left unscored",
					zap.String(logger.FieldJobID, job.ID),
					zap.Error(err),
				)
				return nil
			}
			results[i] = &scored
			return nil
		})
	}

	_ = g.Wait()

	out := make([]jobs.Scored, 0, len(records))
	for _, scored := range results {
		if scored != nil {
			out = append(out, *scored)
		}
	}

	if err := ctx.Err(); err != nil {
		return out, fmt.Errorf("scoring interrupted after %d of %d jobs: %w", len(out), len(records), err)
	}
	return out, nil
}

// ScoreOne scores a single job. It only fails when ctx is done.
func (s *DetailScorer) ScoreOne(ctx context.Context, job jobs.Record, p *profile.Profile, prefs map[string]any) (jobs.Scored, error) {
	mode := profile.WorkModeFrom(prefs)

	if s.reasoner == nil {
		return jobs.Scored{
			Record:    job,
			Breakdown: s.deterministic.Score(job, p, mode),
			Strategy:  StrategyDeterministic,
		}, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return jobs.Scored{}, err
	}

	breakdown, err := s.semantic(ctx, job, p, prefs)
	if err == nil {
		return jobs.Scored{Record: job, Breakdown: *breakdown, Strategy: StrategySemantic}, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return jobs.Scored{}, ctxErr
	}

	s.logger.Warn("semantic scoring failed, using deterministic strategy",
		zap.String(logger.FieldJobID, job.ID),
		zap.Bool("malformed", errors.Is(err, ai.ErrMalformedResponse)),
		zap.Error(err),
	)

	return jobs.Scored{
		Record:         job,
		Breakdown:      s.deterministic.Score(job, p, mode),
		Strategy:       StrategyDeterministic,
		Fallback:       true,
		FallbackReason: err.Error(),
	}, nil
}

func (s *DetailScorer) semantic(ctx context.Context, job jobs.Record, p *profile.Profile, prefs map[string]any) (*jobs.Breakdown, error) {
	callCtx := ctx
	if s.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()
	}

	breakdown, err := s.reasoner.Score(callCtx, job, p, prefs)
	if err != nil {
		return nil, err
	}
	return s.sanitize(breakdown)
}

// sanitize rejects incomplete breakdowns and brings every score into range.
func (s *DetailScorer) sanitize(b *jobs.Breakdown) (*jobs.Breakdown, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: empty breakdown", ai.ErrMalformedResponse)
	}

	categories := make(map[string]jobs.CategoryScore, len(jobs.Categories))
	for _, category := range jobs.Categories {
		score, ok := b.Categories[category]
		if !ok {
			return nil, fmt.Errorf("%w: category %s is missing", ai.ErrMalformedResponse, category)
		}
		if score.Explanation == "" {
			return nil, fmt.Errorf("%w: category %s has no explanation", ai.ErrMalformedResponse, category)
		}
		score.Score = jobs.ClampScore(score.Score)
		categories[category] = score
	}

	return &jobs.Breakdown{
		Categories: categories,
		TotalScore: jobs.RoundTenth(jobs.ClampScore(b.TotalScore)),
	}, nil
}
