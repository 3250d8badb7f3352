package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"title-classifier/internal/logger"
	"title-classifier/internal/mappings"
	"title-classifier/internal/pipeline"
	"title-classifier/internal/server"
	"title-classifier/internal/taxonomy"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the classification HTTP service",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 0, "port to listen on (overrides the config file)")
	serveCmd.Flags().BoolP("watch", "w", false, "reload the mappings file when it changes on disk")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("mappings.watch", serveCmd.Flags().Lookup("watch"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the title-classifier", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	store := mappings.NewStore(config.Mappings.Path, logger)

	if config.Mappings.Watch {
		go func() {
			if err := store.Watch(ctx); err != nil {
				logger.Warn("mappings watcher stopped", zap.Error(err))
			}
		}()
	}

	classifier := taxonomy.NewClassifier(config.Classifier.MinConfidence, config.Classifier.MinFuzzyScore)

	processor, err := pipeline.NewProcessor(classifier, store, logger, pipeline.Options{
		Workers:        config.Classifier.Workers,
		AsyncThreshold: config.Classifier.AsyncThreshold,
		CacheSize:      config.Classifier.CacheSize,
	})
	if err != nil {
		logger.Fatal("building the processor", zap.Error(err))
	}

	srv := server.New(server.Config{
		Port:                config.Server.Port,
		MaxTitlesPerRequest: config.Server.MaxTitlesPerRequest,
		RateLimit:           config.Server.RateLimit,
		RateBurst:           config.Server.RateBurst,
	}, processor, store, logger)

	if err := srv.Start(ctx); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
