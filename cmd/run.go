package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spigell/job-matcher/internal/ai"
	"github.com/spigell/job-matcher/internal/ai/gemini"
	"github.com/spigell/job-matcher/internal/filtering"
	"github.com/spigell/job-matcher/internal/jobs"
	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/profile"
	"github.com/spigell/job-matcher/internal/ranking"
	"github.com/spigell/job-matcher/internal/scoring"
	"github.com/spigell/job-matcher/internal/secrets"
	"github.com/spigell/job-matcher/internal/sources"
	"github.com/spigell/job-matcher/internal/workflow"
)

const (
	PromptShowResults         = "Show results"
	PromptShowSummary         = "Show summary"
	PromptShowRefinements     = "Show refinement suggestions"
	PromptResultsToFile       = "Dump results to file"
	PromptAppendToExcludeFile = "Append results to exclude file"
	PromptExit                = "Exit"

	sourceLinkedIn = "linkedin"
	sourceIndeed   = "indeed"

	formatJSON = "json"
	formatYAML = "yaml"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{
		PromptShowResults,
		PromptShowSummary,
		PromptShowRefinements,
		PromptResultsToFile,
		PromptAppendToExcludeFile,
		PromptExit,
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search jobs and rank them against a resume",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("resume", "r", "", "file with the resume text")
	runCmd.Flags().StringP("profile", "p", "", "yaml or json file with a parsed candidate profile, skips resume extraction")
	runCmd.Flags().StringP("location", "l", "", "preferred location, overrides the one from the resume")
	runCmd.Flags().StringP("work-mode", "w", string(profile.WorkModeAny), "work mode: Remote, On-site, Hybrid or Any")
	runCmd.Flags().Int("radius", 0, "search radius")
	runCmd.Flags().Float64("min-salary", 0, "minimum salary")
	runCmd.Flags().StringP("format", "o", formatJSON, "output format: json or yaml")
	runCmd.Flags().String("summary-file", "", "write the markdown results summary to this file")
	runCmd.Flags().Bool("offline", false, "do not call the AI provider, score deterministically (requires --profile)")
	runCmd.Flags().BoolP("auto-approve", "y", false, "print the results and exit without asking")
	runCmd.Flags().StringP("exclude-file", "e", "", "special file with jobs to exclude. Default is unset.")

	viper.BindPFlag("exclude-file", runCmd.Flags().Lookup("exclude-file"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the job-matcher", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	format := strings.ToLower(cmd.Flag("format").Value.String())
	if format != formatJSON && format != formatYAML {
		logger.Fatal("unsupported output format", zap.String("format", format))
	}

	input, err := buildInput(cmd)
	if err != nil {
		logger.Fatal("reading input", zap.Error(err))
	}

	offline, _ := cmd.Flags().GetBool("offline")
	deps, err := buildDeps(ctx, config, offline, logger)
	if err != nil {
		logger.Fatal("preparing the pipeline", zap.Error(err))
	}

	if path := cmd.Flag("summary-file").Value.String(); path != "" {
		deps.Notifier = workflow.FileNotifier{Path: path}
	} else {
		deps.Notifier = workflow.LogNotifier{Logger: logger}
	}

	coordinator, err := workflow.NewCoordinator(config.Workflow, deps)
	if err != nil {
		logger.Fatal("creating the coordinator", zap.Error(err))
	}

	state, err := coordinator.Start(ctx, input)
	var validationErr *workflow.ValidationError
	var fatalErr *workflow.FatalError
	switch {
	case errors.As(err, &validationErr):
		logger.Fatal("invalid input", zap.Error(err))
	case errors.As(err, &fatalErr):
		logger.Error("workflow finished with errors, results are partial", zap.Error(err))
	case err != nil:
		logger.Fatal("running the workflow", zap.Error(err))
	}

	output := workflow.BuildOutput(state, config.Workflow.MaxResults, time.Now())

	if len(output.Results) == 0 {
		logger.Info("no matching jobs found")
	}

	action := PromptShowResults
	for {
		if cmd.Flag("auto-approve").Value.String() == "false" {
			_, action, err = prompt.Run()
			if err != nil {
				logger.Fatal("exiting", zap.Error(err))
			}
		}

		if err := handleAction(action, logger, config, state, output, format); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}

		if cmd.Flag("auto-approve").Value.String() == "true" {
			return
		}
	}
}

func handleAction(action string, logger *zap.Logger, config *Config, state workflow.State, output workflow.Output, format string) error {
	switch action {
	case PromptShowResults:
		return writeOutput(os.Stdout, output, format)
	case PromptShowSummary:
		fmt.Println(state.ResultsSummary)
		return nil
	case PromptShowRefinements:
		if state.Refinements == "" {
			logger.Info("no refinement suggestions")
			return nil
		}
		fmt.Println(state.Refinements)
		return nil
	case PromptResultsToFile:
		path, err := dumpToTmpFile(output, format)
		if err != nil {
			return err
		}
		logger.Info("results dumped to file", zap.String("path", path))
		return nil
	case PromptAppendToExcludeFile:
		if config.ExcludeFile == "" {
			logger.Warn("exclude file is not set", zap.String("hint", "use --exclude-file or exclude-file in the config"))
			return nil
		}
		shown := jobs.Records{}
		for _, scored := range state.Top(config.Workflow.MaxResults) {
			shown = append(shown, scored.Record)
		}
		if err := filtering.AppendToFile(config.ExcludeFile, filtering.ToExcluded(shown, time.Now())); err != nil {
			return err
		}
		logger.Info("results appended to exclude file", zap.String("path", config.ExcludeFile), zap.Int("count", len(shown)))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

func buildInput(cmd *cobra.Command) (workflow.Input, error) {
	var input workflow.Input

	if path := cmd.Flag("resume").Value.String(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return input, fmt.Errorf("read resume: %w", err)
		}
		input.ResumeText = string(data)
	}

	if path := cmd.Flag("profile").Value.String(); path != "" {
		p, err := profile.LoadFile(path)
		if err != nil {
			return input, fmt.Errorf("load profile: %w", err)
		}
		input.Profile = p
	}

	input.LocationPreference = cmd.Flag("location").Value.String()
	input.WorkMode = profile.WorkMode(cmd.Flag("work-mode").Value.String())

	var err error
	if input.SearchRadius, err = cmd.Flags().GetInt("radius"); err != nil {
		return input, err
	}
	if input.MinSalary, err = cmd.Flags().GetFloat64("min-salary"); err != nil {
		return input, err
	}

	return input, nil
}

func buildDeps(ctx context.Context, config *Config, offline bool, logger *zap.Logger) (workflow.Deps, error) {
	deps := workflow.Deps{
		Normalizer: jobs.NewNormalizer(time.Now),
		Aggregator: ranking.NewAggregator(ranking.DefaultTopSkills, nil),
		Logger:     logger,
	}

	var company scoring.CompanyRelevanceFunc
	if config.PreScore.CompanyRelevance > 0 {
		company = scoring.ConstantCompanyRelevance(config.PreScore.CompanyRelevance)
	}
	preScorer, err := scoring.NewPreScorer(config.PreScore.Weights, time.Now, company)
	if err != nil {
		return deps, fmt.Errorf("pre-score weights: %w", err)
	}
	deps.PreScorer = preScorer

	deps.Filters = []filtering.Filter{
		filtering.NewExcludeFile(config.ExcludeFile),
		filtering.NewExcludedCompanies(config.ExcludeCompanies),
		filtering.NewPreScore(config.PreScore.Threshold, config.PreScore.MaxShortlist),
	}

	var matcher *gemini.Matcher
	if !offline && config.AI != nil && config.AI.Enabled {
		matcher, err = newAIMatcher(ctx, config.AI, config.Scoring.Weights, logger)
		if err != nil {
			return deps, fmt.Errorf("building ai matcher: %w", err)
		}
		deps.Extractor = matcher
		deps.Refiner = matcher
	} else {
		logger.Info("ai provider is disabled, scoring deterministically")
	}

	var reasoner ai.Reasoner
	if matcher != nil {
		reasoner = matcher
	}
	deps.Scorer, err = scoring.NewDetailScorer(config.Scoring, reasoner, logger)
	if err != nil {
		return deps, fmt.Errorf("scoring config: %w", err)
	}

	deps.Sources, err = buildSources(config.Sources, logger)
	if err != nil {
		return deps, err
	}

	return deps, nil
}

func buildSources(cfg SourcesConfig, logger *zap.Logger) ([]sources.Source, error) {
	if cfg.Apify == nil {
		return nil, errors.New("sources.apify configuration is required")
	}

	token, err := secrets.Load(secrets.Source{
		Name:  "apify token",
		Value: cfg.Apify.Token,
		File:  cfg.Apify.TokenFile,
		Env:   "APIFY_TOKEN",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set sources.apify.token-file or APIFY_TOKEN_FILE)", err)
	}

	client := sources.NewApifyClient(logger.With(zap.String("client", "apify")), token, cfg.Apify.Retry)
	if cfg.Apify.UserAgent != "" {
		client.UserAgent = cfg.Apify.UserAgent
	}

	var list []sources.Source
	for _, name := range cfg.Enabled {
		switch jobs.ParseSource(name) {
		case jobs.SourceLinkedIn:
			list = append(list, sources.NewLinkedIn(client, cfg.Apify.LinkedInActor))
		case jobs.SourceIndeed:
			list = append(list, sources.NewIndeed(client, cfg.Apify.IndeedActor))
		default:
			return nil, fmt.Errorf("unsupported job source: %s", name)
		}
	}
	return list, nil
}

func newAIMatcher(ctx context.Context, cfg *AIConfig, weights scoring.Weights, log *zap.Logger) (*gemini.Matcher, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
	if cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required when ai is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	aiLogger := logger.WithCommonFields(log, "gemini", cfg.Gemini.Model)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.Retry, aiLogger)
	if err != nil {
		return nil, err
	}

	return gemini.NewMatcher(generator, weights, cfg.Gemini.MaxLogLength, aiLogger), nil
}

func writeOutput(w io.Writer, output workflow.Output, format string) error {
	if format == formatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(output); err != nil {
			return err
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func dumpToTmpFile(output workflow.Output, format string) (string, error) {
	file, err := os.CreateTemp("", "jobs_*."+format)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := writeOutput(file, output, format); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// redacted returns a copy of config without inline secrets, for logging.
func redacted(config *Config) Config {
	c := *config
	if c.Sources.Apify != nil && c.Sources.Apify.Token != "" {
		apify := *c.Sources.Apify
		apify.Token = "***"
		c.Sources.Apify = &apify
	}
	if c.AI != nil && c.AI.Gemini != nil && c.AI.Gemini.APIKey != "" {
		aiCfg := *c.AI
		geminiCfg := *c.AI.Gemini
		geminiCfg.APIKey = "***"
		aiCfg.Gemini = &geminiCfg
		c.AI = &aiCfg
	}
	return c
}
