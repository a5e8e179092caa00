package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"findoc-backend/internal/bootstrap"
	"findoc-backend/internal/shared/config"
	"findoc-backend/internal/shared/metrics"
	"findoc-backend/internal/shared/telemetry"
	"findoc-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	built, err := bootstrap.Build(context.Background(), cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		return events.SQSEventResponse{BatchItemFailures: allFailed(event)}, initErr
	}
	return processBatch(ctx, app.Jobs, event), nil
}

// processBatch reports only retryable failures; a payload that can never be processed is
// dropped so it does not cycle through the queue.
func processBatch(ctx context.Context, proc workerproc.Processor, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		metrics.IncWorkerMessage("received")
		err := workerproc.Handle(ctx, proc, record.Body)
		switch {
		case err == nil:
			metrics.IncWorkerMessage("completed")
		case workerproc.Unrecoverable(err):
			telemetry.Error("worker.job.bad_message", map[string]any{"sqs_message_id": record.MessageId, "error": err})
			metrics.IncWorkerMessage("deleted_unrecoverable")
		default:
			telemetry.Error("worker.job.failed", map[string]any{"sqs_message_id": record.MessageId, "error": err})
			metrics.IncWorkerMessage("failed")
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func allFailed(event events.SQSEvent) []events.SQSBatchItemFailure {
	failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
	for _, record := range event.Records {
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
	return failures
}

func main() {
	lambda.Start(handler)
}
