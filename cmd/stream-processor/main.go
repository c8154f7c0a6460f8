// Package main implements the DynamoDB stream fanout Lambda. It turns
// interaction rows (likes, comments, follows) arriving on the table's
// stream into inbox notifications.
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"pulse-backend/application/fanout"
	"pulse-backend/infrastructure/config"
	"pulse-backend/infrastructure/di"
)

var container *di.Container

func init() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
}

// Handler fans a stream batch out into notifications. Failed records
// were already logged with their event IDs by the processor; the batch
// is acknowledged in full, never re-driven, because redelivering a
// partially delivered record would duplicate its successful
// notifications.
func Handler(ctx context.Context, event events.DynamoDBEvent) (events.DynamoDBEventResponse, error) {
	var outcomes []fanout.RecordOutcome
	run := func(ctx context.Context) error {
		outcomes = container.FanoutProcessor.ProcessBatch(ctx, event)
		return nil
	}
	if container.Config.EnableTracing {
		_ = container.Tracer.TraceFanout(ctx, run)
	} else {
		_ = run(ctx)
	}

	summary := fanout.Summarize(outcomes)
	container.Logger.Info("Stream batch processed",
		zap.Int("records", summary.Records),
		zap.Int("notificationsCreated", summary.Created),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped))

	container.Metrics.CountMetric(ctx, "NotificationsCreated", float64(summary.Created), nil)
	if summary.Failed > 0 {
		container.Metrics.CountMetric(ctx, "FanoutFailures", float64(summary.Failed), nil)
	}

	return events.DynamoDBEventResponse{}, nil
}

func main() {
	lambda.Start(Handler)
}
