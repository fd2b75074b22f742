package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"wordbridge/src/log"
)

const jobsTopic = "upload_jobs"

// subscriberQueue adapts a Watermill publisher/subscriber pair to the
// polling contract. The subscription is opened once at construction; Dequeue
// just waits on its channel.
type subscriberQueue struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	messages   <-chan *message.Message
}

// NewAMQP builds the broker-backed backend on a durable RabbitMQ queue.
// Unacked deliveries are returned to the queue when the consumer dies.
func NewAMQP(amqpURL string, logger watermill.LoggerAdapter) (Queue, error) {
	cfg := amqp.NewDurableQueueConfig(amqpURL)

	publisher, err := amqp.NewPublisher(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create amqp publisher: %w", err)
	}
	subscriber, err := amqp.NewSubscriber(cfg, logger)
	if err != nil {
		publisher.Close()
		return nil, fmt.Errorf("failed to create amqp subscriber: %w", err)
	}

	return newSubscriberQueue(publisher, subscriber)
}

// NewInMemory builds the in-process backend. FIFO within one process, no
// durability across restarts, and no cross-process redelivery guarantee:
// development and tests only.
func NewInMemory(logger watermill.LoggerAdapter) (Queue, error) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
	return newSubscriberQueue(pubsub, pubsub)
}

func newSubscriberQueue(publisher message.Publisher, subscriber message.Subscriber) (Queue, error) {
	messages, err := subscriber.Subscribe(context.Background(), jobsTopic)
	if err != nil {
		publisher.Close()
		subscriber.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", jobsTopic, err)
	}
	return &subscriberQueue{
		publisher:  publisher,
		subscriber: subscriber,
		messages:   messages,
	}, nil
}

func (q *subscriberQueue) Enqueue(ctx context.Context, uploadID int64) error {
	payload, err := encodeJobPayload(uploadID)
	if err != nil {
		return fmt.Errorf("failed to encode job payload: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := q.publisher.Publish(jobsTopic, msg); err != nil {
		return fmt.Errorf("failed to enqueue upload %d: %w", uploadID, err)
	}
	log.Info("enqueued upload job", "upload_id", uploadID, "message_id", msg.UUID)
	return nil
}

func (q *subscriberQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	case msg, ok := <-q.messages:
		if !ok {
			return nil, fmt.Errorf("job subscription closed")
		}
		uploadID, err := decodeJobPayload(msg.Payload)
		if err != nil || uploadID == 0 {
			log.Info("discarding malformed queue message", "message_id", msg.UUID)
			msg.Ack()
			return nil, nil
		}
		return &Job{UploadID: uploadID, ack: func() { msg.Ack() }}, nil
	}
}

func (q *subscriberQueue) Ack(ctx context.Context, job *Job) error {
	if job != nil && job.ack != nil {
		job.ack()
	}
	return nil
}

func (q *subscriberQueue) Close() error {
	if err := q.publisher.Close(); err != nil {
		return err
	}
	return q.subscriber.Close()
}
