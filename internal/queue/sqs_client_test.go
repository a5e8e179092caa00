package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	return &sqs.SendMessageOutput{}, f.err
}

func TestSQSClientSend(t *testing.T) {
	fake := &fakeSQS{}
	c := newSQSClient(fake, "https://sqs.example/q")

	if err := c.Send(context.Background(), Message{JobID: "job-1"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if aws.ToString(fake.input.QueueUrl) != "https://sqs.example/q" {
		t.Fatalf("unexpected queue url %q", aws.ToString(fake.input.QueueUrl))
	}
	msg, err := Decode([]byte(aws.ToString(fake.input.MessageBody)))
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if msg.JobID != "job-1" || msg.Version != MessageVersion {
		t.Fatalf("unexpected message %+v", msg)
	}
	if got := aws.ToString(fake.input.MessageAttributes["job_id"].StringValue); got != "job-1" {
		t.Fatalf("expected job_id attribute, got %q", got)
	}
	if fake.input.MessageGroupId != nil {
		t.Fatalf("standard queue must not set a group id")
	}
}

func TestSQSClientFIFOGroupsByJob(t *testing.T) {
	fake := &fakeSQS{}
	c := newSQSClient(fake, "https://sqs.example/jobs.fifo")

	if err := c.Send(context.Background(), Message{JobID: "job-9"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if aws.ToString(fake.input.MessageGroupId) != "job-9" || aws.ToString(fake.input.MessageDeduplicationId) != "job-9" {
		t.Fatalf("expected fifo ids, got %+v", fake.input)
	}
}

func TestSQSClientSendWrapsErrors(t *testing.T) {
	boom := errors.New("throttled")
	c := newSQSClient(&fakeSQS{err: boom}, "q")
	if err := c.Send(context.Background(), Message{JobID: "job-1"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestNewSQSClientRequiresURL(t *testing.T) {
	if _, err := NewSQSClient(context.Background(), "", " "); err == nil {
		t.Fatalf("expected error for empty queue url")
	}
}
