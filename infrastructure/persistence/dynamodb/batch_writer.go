package dynamodb

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

const (
	// DynamoDB caps BatchWriteItem at 25 requests.
	batchWriteChunkSize = 25
	// Chunks processed simultaneously; bounded to respect table throughput.
	maxInFlightChunks = 10
)

// RetryPolicy controls how partially-applied batch writes are retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy retries three times with a doubling backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond}
}

// Delay returns the backoff before the given retry attempt (0-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.BaseDelay << attempt
}

// itemKey is a composite table key.
type itemKey struct {
	pk string
	sk string
}

func (k itemKey) attributeValues() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: k.pk},
		"SK": &types.AttributeValueMemberS{Value: k.sk},
	}
}

// BatchWriter executes chunked batch mutations with bounded concurrency
// and retries for unprocessed items. Partial failure is reported in the
// return values, never as an error.
type BatchWriter struct {
	client    DynamoAPI
	tableName string
	policy    RetryPolicy
	logger    *zap.Logger
}

// NewBatchWriter creates a batch writer for the given table.
func NewBatchWriter(client DynamoAPI, tableName string, policy RetryPolicy, logger *zap.Logger) *BatchWriter {
	return &BatchWriter{
		client:    client,
		tableName: tableName,
		policy:    policy,
		logger:    logger,
	}
}

// DeleteKeys deletes the given keys in chunks of 25 and returns how many
// were actually deleted. Keys that remain unprocessed after the retry
// budget are logged and subtracted from the count.
func (w *BatchWriter) DeleteKeys(ctx context.Context, keys []itemKey) int {
	requests := make([]types.WriteRequest, len(keys))
	for i, key := range keys {
		requests[i] = types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: key.attributeValues()},
		}
	}
	processed, _ := w.run(ctx, requests)
	return processed
}

// PutItems writes the given items in chunks of 25. It returns the number
// of items written and the items that could not be processed.
func (w *BatchWriter) PutItems(ctx context.Context, items []map[string]types.AttributeValue) (int, []map[string]types.AttributeValue) {
	requests := make([]types.WriteRequest, len(items))
	for i, item := range items {
		requests[i] = types.WriteRequest{
			PutRequest: &types.PutRequest{Item: item},
		}
	}

	processed, failed := w.run(ctx, requests)

	var failedItems []map[string]types.AttributeValue
	for _, req := range failed {
		if req.PutRequest != nil {
			failedItems = append(failedItems, req.PutRequest.Item)
		}
	}
	return processed, failedItems
}

// run splits requests into chunks and processes at most maxInFlightChunks
// simultaneously. It returns the number of requests applied and the ones
// that exhausted their retries.
func (w *BatchWriter) run(ctx context.Context, requests []types.WriteRequest) (int, []types.WriteRequest) {
	if len(requests) == 0 {
		return 0, nil
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		processed int
		failed    []types.WriteRequest
	)
	sem := make(chan struct{}, maxInFlightChunks)

	for start := 0; start < len(requests); start += batchWriteChunkSize {
		end := start + batchWriteChunkSize
		if end > len(requests) {
			end = len(requests)
		}
		chunk := requests[start:end]

		wg.Add(1)
		sem <- struct{}{}
		go func(chunk []types.WriteRequest) {
			defer wg.Done()
			defer func() { <-sem }()

			ok, leftover := w.writeChunk(ctx, chunk)
			mu.Lock()
			processed += ok
			failed = append(failed, leftover...)
			mu.Unlock()
		}(chunk)
	}
	wg.Wait()

	if len(failed) > 0 {
		w.logger.Warn("Batch write completed with unprocessed requests",
			zap.Int("requested", len(requests)),
			zap.Int("processed", processed),
			zap.Int("failed", len(failed)),
		)
	}
	return processed, failed
}

// writeChunk submits one chunk, retrying unprocessed items per the
// policy. It returns how many requests were applied and the requests
// still unprocessed after the final attempt.
func (w *BatchWriter) writeChunk(ctx context.Context, chunk []types.WriteRequest) (int, []types.WriteRequest) {
	pending := chunk

	for attempt := 0; attempt < w.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(w.policy.Delay(attempt - 1)):
			case <-ctx.Done():
				return len(chunk) - len(pending), pending
			}
		}

		out, err := w.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{w.tableName: pending},
		})
		if err != nil {
			w.logger.Warn("BatchWriteItem attempt failed",
				zap.Int("attempt", attempt+1),
				zap.Int("requests", len(pending)),
				zap.Error(err),
			)
			continue
		}

		unprocessed := out.UnprocessedItems[w.tableName]
		if len(unprocessed) == 0 {
			return len(chunk), nil
		}
		w.logger.Debug("BatchWriteItem returned unprocessed requests",
			zap.Int("attempt", attempt+1),
			zap.Int("unprocessed", len(unprocessed)),
		)
		pending = unprocessed
	}

	w.logger.Warn("Batch chunk exhausted retries",
		zap.Int("maxAttempts", w.policy.MaxAttempts),
		zap.Int("unprocessed", len(pending)),
		zap.String("table", w.tableName),
	)
	return len(chunk) - len(pending), pending
}
