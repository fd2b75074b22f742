package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wordbridge/src/contentfilter"
	"wordbridge/src/log"
	"wordbridge/src/openai"
	"wordbridge/src/recommendation"
	"wordbridge/src/storage/minioctrl"
	"wordbridge/src/storage/postgres/profilectrl"
	"wordbridge/src/storage/postgres/recommendationctrl"
	"wordbridge/src/storage/postgres/uploadctrl"
	"wordbridge/src/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the upload processing worker",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	db, err := newDatabase()
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %v", err)
	}
	defer sqlDB.Close()

	jobQueue, err := newJobQueue()
	if err != nil {
		return err
	}
	defer jobQueue.Close()

	minioService, err := minioctrl.NewMinioService(
		viper.GetString("minio.endpoint"),
		viper.GetString("minio.access_key"),
		viper.GetString("minio.secret_key"),
		viper.GetBool("minio.use_ssl"),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize minio service: %v", err)
	}

	uploadService, err := uploadctrl.NewUploadService(db)
	if err != nil {
		return fmt.Errorf("failed to initialize upload service: %v", err)
	}
	profileService, err := profilectrl.NewProfileService(db)
	if err != nil {
		return fmt.Errorf("failed to initialize profile service: %v", err)
	}
	recommendationService, err := recommendationctrl.NewRecommendationService(db)
	if err != nil {
		return fmt.Errorf("failed to initialize recommendation service: %v", err)
	}

	modelClient := openai.NewClient(
		viper.GetString("openai.api_key"),
		viper.GetString("openai.base_url"),
		viper.GetString("openai.model"),
		&http.Client{Timeout: 60 * time.Second},
	)
	generator := recommendation.NewGenerator(
		modelClient,
		recommendation.WithTargetBatchSize(viper.GetInt("analysis.target_batch_size")),
	)

	filter := contentfilter.New(
		viper.GetBool("content_filter.enabled"),
		viper.GetString("content_filter.extra_words_path"),
	)

	cfg := worker.DefaultConfig()
	cfg.PollInterval = viper.GetDuration("analysis.poll_interval")
	cfg.MinInitialWords = viper.GetInt("analysis.min_initial_words")
	cfg.MinUpdateWords = viper.GetInt("analysis.min_update_words")
	cfg.MinRecommendations = viper.GetInt("analysis.min_recommendations")
	cfg.Retry.MaxAttempts = viper.GetInt("analysis.max_retries")
	cfg.Retry.BaseDelay = viper.GetDuration("analysis.backoff_base")
	cfg.Retry.CapDelay = viper.GetDuration("analysis.backoff_cap")

	w := worker.New(
		jobQueue,
		uploadService,
		profileService,
		recommendationService,
		minioService,
		generator,
		filter,
		cfg,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown: finish the in-flight job, then stop polling.
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		log.Info("shutdown signal received")
		cancel()
	}()

	log.Info("starting upload processing worker")
	return w.Run(ctx)
}
