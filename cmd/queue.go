package cmd

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/spf13/viper"

	"wordbridge/src/log"
	"wordbridge/src/queue"
)

// newJobQueue builds the configured queue backend. Selection happens once at
// startup; everything downstream sees only the queue contract.
func newJobQueue() (queue.Queue, error) {
	provider := viper.GetString("queue.provider")
	if provider == "" {
		switch {
		case viper.GetString("sqs.queue_url") != "":
			provider = "sqs"
		case viper.GetString("amqp.url") != "":
			provider = "amqp"
		default:
			provider = "memory"
		}
	}

	logger := watermill.NewStdLogger(false, false)

	switch provider {
	case "sqs":
		return queue.NewSQS(queue.SQSConfig{
			QueueURL:          viper.GetString("sqs.queue_url"),
			Region:            viper.GetString("sqs.region"),
			AccessKeyID:       viper.GetString("sqs.access_key_id"),
			SecretAccessKey:   viper.GetString("sqs.secret_access_key"),
			VisibilityTimeout: viper.GetDuration("sqs.visibility_timeout"),
		})
	case "amqp":
		return queue.NewAMQP(viper.GetString("amqp.url"), logger)
	case "memory":
		log.Info("no managed queue configured, using in-process queue (single instance only)")
		return queue.NewInMemory(logger)
	default:
		return nil, fmt.Errorf("unknown queue provider: %s", provider)
	}
}
