package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	httpHdlr "wordbridge/handler/http"
	"wordbridge/src/log"
	"wordbridge/src/storage/minioctrl"
	"wordbridge/src/storage/postgres/recommendationctrl"
	"wordbridge/src/storage/postgres/uploadctrl"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the upload submission API",
	Long:  `The serve command starts the HTTP server that accepts document uploads and enqueues processing jobs.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	db, err := newDatabase()
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %v", err)
	}
	defer sqlDB.Close()

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
	recommendationService, err := recommendationctrl.NewRecommendationService(db)
	if err != nil {
		return fmt.Errorf("failed to initialize recommendation service: %v", err)
	}

	jobQueue, err := newJobQueue()
	if err != nil {
		return err
	}
	defer jobQueue.Close()

	uploadHandler, err := httpHdlr.NewUploadHandler(
		minioService,
		viper.GetString("minio.uploads_bucket"),
		uploadService,
		recommendationService,
		jobQueue,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize upload handler: %v", err)
	}

	// Setup gin router
	r := gin.Default()

	// Register routes
	r.POST("/uploads", uploadHandler.Submit)
	r.GET("/uploads/:id", uploadHandler.Get)
	r.GET("/uploads/:id/recommendations", uploadHandler.Recommendations)

	srv := &http.Server{
		Addr:    ":" + viper.GetString("server.port"),
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "failed to start server")
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	timeout, err := time.ParseDuration(viper.GetString("server.shutdown_timeout"))
	if err != nil {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error(err, "server forced to shutdown")
	}

	log.Info("server exited")
	return nil
}
