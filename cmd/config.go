package cmd

import "github.com/spf13/viper"

func settingDefaultConfig() {
	// Enable automatic environment variable binding
	viper.AutomaticEnv()

	// Map environment variables to Viper keys for PostgreSQL
	viper.BindEnv("postgres.host", "POSTGRES_HOST")
	viper.BindEnv("postgres.port", "POSTGRES_PORT")
	viper.BindEnv("postgres.user", "POSTGRES_USER")
	viper.BindEnv("postgres.password", "POSTGRES_PASSWORD")
	viper.BindEnv("postgres.db", "POSTGRES_DB")

	// Map environment variables to Viper keys for MinIO and Server
	viper.BindEnv("minio.endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("minio.access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("minio.secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("minio.use_ssl", "MINIO_USE_SSL")
	viper.BindEnv("minio.uploads_bucket", "MINIO_UPLOADS_BUCKET")
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.shutdown_timeout", "SERVER_SHUTDOWN_TIMEOUT")

	// Queue backend selection: explicit provider wins; otherwise a set SQS
	// queue URL selects sqs, a set AMQP URL selects amqp, and the in-process
	// backend is the fallback for development.
	viper.BindEnv("queue.provider", "JOB_QUEUE_PROVIDER")
	viper.BindEnv("sqs.queue_url", "AWS_SQS_QUEUE_URL")
	viper.BindEnv("sqs.region", "AWS_REGION")
	viper.BindEnv("sqs.access_key_id", "AWS_ACCESS_KEY_ID")
	viper.BindEnv("sqs.secret_access_key", "AWS_SECRET_ACCESS_KEY")
	viper.BindEnv("sqs.visibility_timeout", "AWS_SQS_VISIBILITY_TIMEOUT")
	viper.BindEnv("amqp.url", "AMQP_URL")

	// Model provider
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	viper.BindEnv("openai.model", "OPENAI_MODEL")

	// Analysis pipeline tuning
	viper.BindEnv("analysis.poll_interval", "JOB_POLL_INTERVAL")
	viper.BindEnv("analysis.max_retries", "AI_MAX_RETRIES")
	viper.BindEnv("analysis.backoff_base", "AI_RETRY_BACKOFF_BASE")
	viper.BindEnv("analysis.backoff_cap", "AI_RETRY_BACKOFF_CAP")
	viper.BindEnv("analysis.min_initial_words", "MIN_INITIAL_ANALYSIS_WORDS")
	viper.BindEnv("analysis.min_update_words", "MIN_UPDATE_ANALYSIS_WORDS")
	viper.BindEnv("analysis.min_recommendations", "MIN_RECOMMENDATIONS")
	viper.BindEnv("analysis.target_batch_size", "TARGET_BATCH_SIZE")
	viper.BindEnv("content_filter.enabled", "CONTENT_FILTER_ENABLED")
	viper.BindEnv("content_filter.extra_words_path", "CONTENT_FILTER_EXTRA_WORDS_PATH")

	// Set default values for PostgreSQL
	viper.SetDefault("postgres.host", "localhost")
	viper.SetDefault("postgres.port", "5432")
	viper.SetDefault("postgres.user", "postgres")
	viper.SetDefault("postgres.password", "postgres")
	viper.SetDefault("postgres.db", "wordbridge")

	// Set default values for MinIO and Server
	viper.SetDefault("minio.endpoint", "localhost:9000")
	viper.SetDefault("minio.access_key", "minioadmin")
	viper.SetDefault("minio.secret_key", "minioadmin")
	viper.SetDefault("minio.use_ssl", false)
	viper.SetDefault("minio.uploads_bucket", "uploads")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.shutdown_timeout", "5s")

	// Set default values for the queue and visibility window
	viper.SetDefault("queue.provider", "")
	viper.SetDefault("sqs.visibility_timeout", "5m")

	// Set default values for the model provider
	viper.SetDefault("openai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("openai.model", "gpt-4o-mini")

	// Set default values for the analysis pipeline
	viper.SetDefault("analysis.poll_interval", "3s")
	viper.SetDefault("analysis.max_retries", 3)
	viper.SetDefault("analysis.backoff_base", "1500ms")
	viper.SetDefault("analysis.backoff_cap", "30s")
	viper.SetDefault("analysis.min_initial_words", 200)
	viper.SetDefault("analysis.min_update_words", 100)
	viper.SetDefault("analysis.min_recommendations", 5)
	viper.SetDefault("analysis.target_batch_size", 5)
	viper.SetDefault("content_filter.enabled", true)
	viper.SetDefault("content_filter.extra_words_path", "")
}
