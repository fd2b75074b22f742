package queue

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/google/uuid"

	"wordbridge/src/log"
)

const fifoMessageGroup = "upload-jobs"

// SQSConfig configures the managed queue backend.
type SQSConfig struct {
	QueueURL        string
	Region          string // inferred from the queue URL when empty
	AccessKeyID     string
	SecretAccessKey string

	// VisibilityTimeout must exceed the worst-case job processing time
	// (extraction + model round-trip + retries), otherwise a second worker
	// instance can receive the same job while the first is still on it.
	VisibilityTimeout time.Duration
}

// SQSQueue is the managed, durable backend. Delivery is at-least-once; a
// message received but never deleted reappears after the visibility timeout.
type SQSQueue struct {
	client            sqsiface.SQSAPI
	queueURL          string
	visibilityTimeout time.Duration
}

func NewSQS(cfg SQSConfig) (*SQSQueue, error) {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		return nil, fmt.Errorf("sqs queue url must be set")
	}

	awsCfg := aws.NewConfig()
	region := cfg.Region
	if region == "" {
		region = regionFromQueueURL(cfg.QueueURL)
	}
	if region != "" {
		awsCfg = awsCfg.WithRegion(region)
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg = awsCfg.WithCredentials(
			credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}

	return &SQSQueue{
		client:            sqs.New(sess),
		queueURL:          cfg.QueueURL,
		visibilityTimeout: cfg.VisibilityTimeout,
	}, nil
}

func (q *SQSQueue) Enqueue(ctx context.Context, uploadID int64) error {
	body, err := encodeJobPayload(uploadID)
	if err != nil {
		return fmt.Errorf("failed to encode job payload: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]*sqs.MessageAttributeValue{
			"upload_id": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.FormatInt(uploadID, 10)),
			},
		},
	}
	if strings.Contains(q.queueURL, ".fifo") {
		// A fresh UUID per enqueue so re-uploading the same file after a
		// deletion is not swallowed by FIFO deduplication.
		input.MessageDeduplicationId = aws.String(fmt.Sprintf("upload-%d-%s", uploadID, uuid.NewString()))
		input.MessageGroupId = aws.String(fifoMessageGroup)
	}

	out, err := q.client.SendMessageWithContext(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to enqueue upload %d: %w", uploadID, err)
	}
	log.Info("enqueued upload job", "upload_id", uploadID, "message_id", aws.StringValue(out.MessageId))
	return nil
}

func (q *SQSQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	// SQS long polling caps at 20 seconds per receive call.
	wait := int64(timeout.Seconds())
	if wait < 0 {
		wait = 0
	}
	if wait > 20 {
		wait = 20
	}

	input := &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(q.queueURL),
		MaxNumberOfMessages:   aws.Int64(1),
		WaitTimeSeconds:       aws.Int64(wait),
		MessageAttributeNames: []*string{aws.String("All")},
	}
	if q.visibilityTimeout > 0 {
		input.VisibilityTimeout = aws.Int64(int64(q.visibilityTimeout.Seconds()))
	}

	out, err := q.client.ReceiveMessageWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to poll sqs for jobs: %w", err)
	}
	if len(out.Messages) == 0 {
		return nil, nil
	}

	msg := out.Messages[0]
	receipt := aws.StringValue(msg.ReceiptHandle)

	uploadID := uploadIDFromMessage(msg)
	if uploadID == 0 {
		log.Info("discarding malformed queue message", "message_id", aws.StringValue(msg.MessageId))
		q.deleteMessage(ctx, receipt)
		return nil, nil
	}

	return &Job{UploadID: uploadID, receipt: receipt}, nil
}

func (q *SQSQueue) Ack(ctx context.Context, job *Job) error {
	if job == nil || job.receipt == "" {
		return nil
	}
	return q.deleteMessage(ctx, job.receipt)
}

func (q *SQSQueue) Close() error {
	return nil
}

func (q *SQSQueue) deleteMessage(ctx context.Context, receipt string) error {
	_, err := q.client.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		log.Error(err, "failed to delete sqs message")
		return err
	}
	return nil
}

func uploadIDFromMessage(msg *sqs.Message) int64 {
	if attr, ok := msg.MessageAttributes["upload_id"]; ok {
		if id, err := strconv.ParseInt(aws.StringValue(attr.StringValue), 10, 64); err == nil {
			return id
		}
	}
	if id, err := decodeJobPayload([]byte(aws.StringValue(msg.Body))); err == nil {
		return id
	}
	return 0
}

// regionFromQueueURL pulls the region out of a standard queue URL hostname,
// e.g. sqs.us-east-1.amazonaws.com.
func regionFromQueueURL(queueURL string) string {
	parsed, err := url.Parse(queueURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(parsed.Hostname(), ".")
	if len(parts) >= 2 && parts[0] == "sqs" {
		return parts[1]
	}
	return ""
}
