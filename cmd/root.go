package cmd

import (
	"errors"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/job-matcher/internal/filtering"
	"github.com/spigell/job-matcher/internal/scoring"
	"github.com/spigell/job-matcher/internal/sources"
	"github.com/spigell/job-matcher/internal/utils"
	"github.com/spigell/job-matcher/internal/workflow"
)

const (
	app = "job-matcher"
)

type Config struct {
	ExcludeFile      string          `mapstructure:"exclude-file"`
	ExcludeCompanies []string        `mapstructure:"exclude-companies"`
	Workflow         workflow.Config `mapstructure:"workflow"`
	PreScore         PreScoreConfig  `mapstructure:"pre-score"`
	Scoring          scoring.Config  `mapstructure:"scoring"`
	Sources          SourcesConfig   `mapstructure:"sources"`
	AI               *AIConfig       `mapstructure:"ai"`
}

type PreScoreConfig struct {
	Weights          scoring.PreScoreWeights `mapstructure:"weights"`
	Threshold        float64                 `mapstructure:"threshold"`
	MaxShortlist     int                     `mapstructure:"max-shortlist"`
	CompanyRelevance float64                 `mapstructure:"company-relevance"`
}

type SourcesConfig struct {
	Enabled []string     `mapstructure:"enabled"`
	Apify   *ApifyConfig `mapstructure:"apify"`
}

type ApifyConfig struct {
	Token         string            `mapstructure:"token"`
	TokenFile     string            `mapstructure:"token-file"`
	UserAgent     string            `mapstructure:"user-agent"`
	LinkedInActor string            `mapstructure:"linkedin-actor"`
	IndeedActor   string            `mapstructure:"indeed-actor"`
	Retry         utils.RetryPolicy `mapstructure:"retry"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string            `mapstructure:"api-key"`
	APIKeyFile   string            `mapstructure:"api-key-file"`
	Model        string            `mapstructure:"model"`
	Retry        utils.RetryPolicy `mapstructure:"retry"`
	MaxLogLength int               `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "job-matcher searches job boards and ranks the postings against your resume",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("sources.apify.token-file", "APIFY_TOKEN_FILE"); err != nil {
		log.Fatalf("binding APIFY_TOKEN_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is job-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for run command now. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Every setting has a default, so only an explicitly given config must exist.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		Workflow: workflow.DefaultConfig(),
		PreScore: PreScoreConfig{
			Weights:      scoring.DefaultPreScoreWeights(),
			Threshold:    filtering.DefaultPreScoreThreshold,
			MaxShortlist: filtering.DefaultMaxShortlist,
		},
		Scoring: scoring.DefaultConfig(),
		Sources: SourcesConfig{
			Enabled: []string{sourceLinkedIn, sourceIndeed},
			Apify: &ApifyConfig{
				LinkedInActor: sources.DefaultLinkedInActor,
				IndeedActor:   sources.DefaultIndeedActor,
				Retry:         utils.DefaultRetryPolicy(),
			},
		},
	}
}

func getConfig() (*Config, error) {
	config := defaultConfig()
	err := viper.Unmarshal(config)
	if err != nil {
		return config, err
	}

	return config, nil
}
