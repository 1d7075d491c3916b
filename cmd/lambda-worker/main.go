package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"docanalysis-backend/internal/bootstrap"
	"docanalysis-backend/internal/shared/config"
	"docanalysis-backend/internal/shared/metrics"
	"docanalysis-backend/internal/shared/telemetry"
	"docanalysis-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	if _, err := telemetry.Setup(telemetry.Options{Level: cfg.LogLevel}); err != nil {
		initErr = err
		return
	}
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("bootstrap.failed", map[string]any{"error": initErr})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return handleBatch(ctx, app.Processor, event), nil
}

// handleBatch reports retryable failures only. Malformed messages are
// acknowledged so they do not cycle back through the queue.
func handleBatch(ctx context.Context, processor workerproc.Processor, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		metrics.IncJobsReceived()
		err := workerproc.HandleMessage(ctx, processor, record.Body, record.MessageId)
		switch {
		case err == nil:
			metrics.IncJobsCompleted()
		case workerproc.Unrecoverable(err):
			metrics.IncJobsDeletedUnrecoverable()
			meta := workerproc.ComputeMeta(record.Body)
			telemetry.Warn("worker.message.unrecoverable", map[string]any{
				"message_id": record.MessageId,
				"body_len":   meta.BodyLen,
				"body_sha":   meta.BodySHA,
				"error":      err,
			})
		default:
			metrics.IncJobsFailed()
			telemetry.Error("worker.message.failed", map[string]any{
				"message_id": record.MessageId,
				"error":      err,
			})
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
