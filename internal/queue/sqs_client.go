package queue

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const defaultSQSRegion = "us-east-1"

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSClient publishes job messages to an SQS queue. Queues whose URL ends in ".fifo" get the
// job id as both group and deduplication id.
type SQSClient struct {
	api      sqsAPI
	queueURL string
	fifo     bool
}

// NewSQSClient loads the default AWS credential chain for region.
func NewSQSClient(ctx context.Context, region, queueURL string) (*SQSClient, error) {
	queueURL = strings.TrimSpace(queueURL)
	if queueURL == "" {
		return nil, fmt.Errorf("SQS_QUEUE_URL is required")
	}
	if strings.TrimSpace(region) == "" {
		region = defaultSQSRegion
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newSQSClient(sqs.NewFromConfig(cfg), queueURL), nil
}

func newSQSClient(api sqsAPI, queueURL string) *SQSClient {
	return &SQSClient{
		api:      api,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
	}
}

// Send publishes msg.
func (s *SQSClient) Send(ctx context.Context, msg Message) error {
	body, err := Encode(msg)
	if err != nil {
		return fmt.Errorf("encode job message: %w", err)
	}

	version := msg.Version
	if version == 0 {
		version = MessageVersion
	}
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"job_id":  {DataType: aws.String("String"), StringValue: aws.String(msg.JobID)},
			"version": {DataType: aws.String("Number"), StringValue: aws.String(strconv.Itoa(version))},
		},
	}
	if s.fifo {
		input.MessageGroupId = aws.String(msg.JobID)
		input.MessageDeduplicationId = aws.String(msg.JobID)
	}

	if _, err := s.api.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("sqs send job %s: %w", msg.JobID, err)
	}
	return nil
}

var _ Client = (*SQSClient)(nil)
