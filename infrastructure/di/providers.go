package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"pulse-backend/application/fanout"
	"pulse-backend/application/ports"
	"pulse-backend/application/services"
	"pulse-backend/infrastructure/config"
	"pulse-backend/infrastructure/messaging/eventbridge"
	dynamostore "pulse-backend/infrastructure/persistence/dynamodb"
	"pulse-backend/pkg/auth"
	"pulse-backend/pkg/observability"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	if cfg.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		return nil, err
	}

	return logger, nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideBatchWriter creates the shared batch writer for fanout deletes
func ProvideBatchWriter(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) *dynamostore.BatchWriter {
	return dynamostore.NewBatchWriter(client, cfg.DynamoDBTable, dynamostore.DefaultRetryPolicy(), logger)
}

// ProvideFeedStore creates the materialized feed store
func ProvideFeedStore(client *awsdynamodb.Client, writer *dynamostore.BatchWriter, cfg *config.Config, logger *zap.Logger) ports.FeedStore {
	return dynamostore.NewFeedStore(client, cfg.DynamoDBTable, writer, logger)
}

// ProvideNotificationStore creates the notification store wrapped in the
// unread count cache
func ProvideNotificationStore(client *awsdynamodb.Client, cache ports.Cache, cfg *config.Config, logger *zap.Logger) ports.NotificationStore {
	store := dynamostore.NewNotificationStore(client, cfg.DynamoDBTable, logger)
	return services.NewCachedNotificationStore(store, cache, logger)
}

// ProvideLikeStore creates the like store
func ProvideLikeStore(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.LikeStore {
	return dynamostore.NewLikeStore(client, cfg.DynamoDBTable, logger)
}

// ProvideHandleResolver creates the handle resolver for mention fanout
func ProvideHandleResolver(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.HandleResolver {
	return dynamostore.NewHandleStore(client, cfg.DynamoDBTable, logger)
}

// ProvideNotificationPublisher creates the EventBridge publisher
func ProvideNotificationPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.NotificationPublisher {
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideFanoutProcessor creates the stream fanout processor
func ProvideFanoutProcessor(
	notifications ports.NotificationStore,
	handles ports.HandleResolver,
	publisher ports.NotificationPublisher,
	logger *zap.Logger,
) *fanout.Processor {
	return fanout.NewProcessor(notifications, handles, publisher, logger)
}

// ProvideMetrics creates metrics instance. With metrics disabled the
// publisher gets no client and every publish is a no-op.
func ProvideMetrics(client *awscloudwatch.Client, cfg *config.Config) *observability.Metrics {
	namespace := fmt.Sprintf("Pulse/%s", cfg.Environment)
	if !cfg.EnableMetrics {
		return observability.NewMetrics(namespace, nil)
	}
	return observability.NewMetrics(namespace, client)
}

// ProvideTracer creates a tracer instance
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer("pulse-backend")
}

// ProvideDistributedRateLimiter creates a distributed rate limiter
func ProvideDistributedRateLimiter(client *awsdynamodb.Client, cfg *config.Config) *auth.DistributedRateLimiter {
	return auth.NewDistributedRateLimiter(
		client,
		cfg.DynamoDBTable,
		100,           // 100 requests
		1*time.Minute, // per minute
		"API",         // key prefix for API rate limiting
	)
}

// ProvideInMemoryCache creates a simple in-memory cache
// In production, this would be Redis or similar
func ProvideInMemoryCache() ports.Cache {
	return NewInMemoryCache()
}
