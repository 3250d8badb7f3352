package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"title-classifier/internal/ai"
	"title-classifier/internal/ai/gemini"
	"title-classifier/internal/logger"
	"title-classifier/internal/mappings"
	"title-classifier/internal/pipeline"
	"title-classifier/internal/secrets"
	"title-classifier/internal/taxonomy"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [titles...]",
	Short: "Classify job titles from the command line",
	Long: `Classify one or more job titles given as arguments. Without arguments an
interactive prompt reads titles until interrupted.`,
	Run: func(cmd *cobra.Command, args []string) {
		classify(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().BoolP("raw", "r", false, "print raw json records instead of formatted output")
	classifyCmd.Flags().BoolP("suggest", "s", false, "ask the configured ai provider for suggestions on unmatched titles")
}

func classify(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	store := mappings.NewStore(config.Mappings.Path, logger)

	classifier := taxonomy.NewClassifier(config.Classifier.MinConfidence, config.Classifier.MinFuzzyScore)

	processor, err := pipeline.NewProcessor(classifier, store, logger, pipeline.Options{
		Workers:        config.Classifier.Workers,
		AsyncThreshold: config.Classifier.AsyncThreshold,
		CacheSize:      config.Classifier.CacheSize,
	})
	if err != nil {
		logger.Fatal("building the processor", zap.Error(err))
	}

	var suggester ai.Suggester
	if cmd.Flag("suggest").Value.String() == "true" {
		suggester = newSuggester(ctx, config, logger)
	}
	raw := cmd.Flag("raw").Value.String() == "true"

	if len(args) > 0 {
		for _, result := range processor.Process(ctx, args) {
			printResult(result, raw)
			maybeSuggest(ctx, suggester, store, result)
		}
		return
	}

	titlePrompt := promptui.Prompt{Label: "Job title"}
	for {
		title, err := titlePrompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return
			}
			logger.Fatal("reading a title", zap.Error(err))
		}

		if strings.TrimSpace(title) == "" {
			continue
		}

		result := processor.ProcessOne(title)
		printResult(result, raw)
		maybeSuggest(ctx, suggester, store, result)
	}
}

func printResult(result *taxonomy.Result, raw bool) {
	if raw {
		record, _ := json.Marshal(result)
		fmt.Println(string(record))
		return
	}

	if result.Error != "" {
		color.Red("%s: error: %s", result.OriginalTitle, result.Error)
		return
	}

	verdict := color.New(color.FgGreen)
	if !result.Matched {
		verdict = color.New(color.FgYellow)
	}

	verdict.Printf("%s\n", result.OriginalTitle)
	fmt.Printf("  function:     %s\n", orDash(result.Function))
	fmt.Printf("  sub-function: %s\n", orDash(result.SubFunction))
	fmt.Printf("  seniority:    %s\n", orDash(result.Seniority))
	fmt.Printf("  confidence:   %.2f\n", result.Confidence)

	for _, warning := range result.Warnings {
		color.Yellow("  warning: %s", warning)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// maybeSuggest asks the configured model for a proposal when the engine did
// not find a confident match for the title.
func maybeSuggest(ctx context.Context, suggester ai.Suggester, store *mappings.Store, result *taxonomy.Result) {
	if suggester == nil || result.Matched || result.Error != "" {
		return
	}

	confirm := promptui.Select{
		Label: fmt.Sprintf("Ask the model for a suggestion for %q?", result.OriginalTitle),
		Items: []string{PromptYes, PromptNo},
	}

	_, answer, err := confirm.Run()
	if err != nil || answer != PromptYes {
		return
	}

	suggestion, err := suggester.Suggest(ctx, result.OriginalTitle, store.Snapshot())
	if err != nil {
		color.Red("  suggestion failed: %s", err)
		return
	}

	marker := color.New(color.FgCyan)
	if !suggestion.Confident {
		marker = color.New(color.FgYellow)
	}

	marker.Printf("  suggested: %s / %s / %s (score %.2f)\n",
		orDash(suggestion.Function), orDash(suggestion.SubFunction), orDash(suggestion.Seniority), suggestion.Score,
	)
	if suggestion.Reason != "" {
		fmt.Printf("  reason: %s\n", suggestion.Reason)
	}
}

func newSuggester(ctx context.Context, config *Config, logger *zap.Logger) ai.Suggester {
	if config.AI == nil || !config.AI.Enabled {
		logger.Warn("suggestions requested but ai is not enabled in the configuration")
		return nil
	}

	suggester, err := buildSuggester(ctx, config.AI, logger)
	if err != nil {
		logger.Warn("skipping ai suggestions", zap.Error(err))
		return nil
	}

	return suggester
}

func buildSuggester(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Suggester, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	if cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required when ai suggestions are enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	minScore := cfg.MinimumScore
	if minScore < 0 {
		minScore = 0
	}

	return gemini.NewSuggester(generator, minScore, cfg.Gemini.MaxLogLength, genLogger), nil
}
