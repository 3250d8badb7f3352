package cmd

import (
	"errors"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "title-classifier"
)

type Config struct {
	Server     *ServerConfig     `mapstructure:"server"`
	Classifier *ClassifierConfig `mapstructure:"classifier"`
	Mappings   *MappingsConfig   `mapstructure:"mappings"`
	AI         *AIConfig         `mapstructure:"ai"`
}

type ServerConfig struct {
	Port                int     `mapstructure:"port"`
	MaxTitlesPerRequest int     `mapstructure:"max-titles-per-request"`
	RateLimit           float64 `mapstructure:"rate-limit"`
	RateBurst           int     `mapstructure:"rate-burst"`
}

type ClassifierConfig struct {
	MinConfidence  float64 `mapstructure:"min-confidence"`
	MinFuzzyScore  int     `mapstructure:"min-fuzzy-score"`
	CacheSize      int     `mapstructure:"cache-size"`
	Workers        int     `mapstructure:"workers"`
	AsyncThreshold int     `mapstructure:"async-threshold"`
}

type MappingsConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

type AIConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Provider     string        `mapstructure:"provider"`
	MinimumScore float64       `mapstructure:"minimum-score"`
	Gemini       *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "title-classifier maps raw job titles to business functions and seniority levels",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("mappings.path", "TC_MAPPINGS_PATH"); err != nil {
		log.Fatalf("binding TC_MAPPINGS_PATH environment variable: %v", err)
	}

	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is title-classifier.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// The service runs fine on defaults, so a missing config file is not an
	// error. A present but unparseable one is.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config == nil {
		config = &Config{}
	}

	applyDefaults(config)

	return config, nil
}

func applyDefaults(config *Config) {
	if config.Server == nil {
		config.Server = &ServerConfig{}
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8000
	}
	if config.Server.MaxTitlesPerRequest == 0 {
		config.Server.MaxTitlesPerRequest = 100
	}
	if config.Server.RateLimit == 0 {
		config.Server.RateLimit = 5
	}
	if config.Server.RateBurst == 0 {
		config.Server.RateBurst = 10
	}

	if config.Classifier == nil {
		config.Classifier = &ClassifierConfig{}
	}
	if config.Classifier.MinConfidence == 0 {
		config.Classifier.MinConfidence = 0.7
	}
	if config.Classifier.MinFuzzyScore == 0 {
		config.Classifier.MinFuzzyScore = 70
	}
	if config.Classifier.CacheSize == 0 {
		config.Classifier.CacheSize = 1024
	}
	if config.Classifier.Workers == 0 {
		config.Classifier.Workers = 4
	}
	if config.Classifier.AsyncThreshold == 0 {
		config.Classifier.AsyncThreshold = 10
	}

	if config.Mappings == nil {
		config.Mappings = &MappingsConfig{}
	}
	if config.Mappings.Path == "" {
		config.Mappings.Path = "config/mappings.yaml"
	}
}
