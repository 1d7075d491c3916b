package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-query-results

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"docanalysis-backend/internal/bootstrap"
	"docanalysis-backend/internal/queryresults"
	"docanalysis-backend/internal/queue"
	"docanalysis-backend/internal/shared/config"
	"docanalysis-backend/internal/shared/telemetry"
)

type stage interface {
	Handle(ctx context.Context, msg queue.IDMessage) (queue.IDMessage, error)
}

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

func handler(ctx context.Context, msg queue.IDMessage) (queue.IDMessage, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("bootstrap.failed", map[string]any{"error": initErr})
		return queue.IDMessage{}, initErr
	}
	return run(ctx, app.Processor, msg)
}

// run tags the context with the Lambda request id before invoking the stage.
func run(ctx context.Context, s stage, msg queue.IDMessage) (queue.IDMessage, error) {
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		ctx = queryresults.WithRequestID(ctx, lc.AwsRequestID)
	}
	return s.Handle(ctx, msg)
}

func main() {
	lambda.Start(handler)
}
