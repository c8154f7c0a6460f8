// Package main implements the notification push Lambda. It receives
// NotificationCreated events from EventBridge and delivers them to the
// owner's open WebSocket connections.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwTypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Global AWS clients for Lambda performance optimization
var (
	dynamoClient *dynamodb.Client
	apigwClient  *apigatewaymanagementapi.Client
)

// pushMessage is the frame sent to WebSocket clients
type pushMessage struct {
	Type      string                 `json:"type"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

func connectionsTable() string {
	if name := os.Getenv("CONNECTIONS_TABLE"); name != "" {
		return name
	}
	return "pulse-connections"
}

func init() {
	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	dynamoClient = dynamodb.NewFromConfig(cfg)

	if endpoint := os.Getenv("WEBSOCKET_ENDPOINT"); endpoint != "" {
		apigwClient = apigatewaymanagementapi.NewFromConfig(cfg, func(o *apigatewaymanagementapi.Options) {
			o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s", endpoint))
		})
	}
}

// connectionsForUser returns the active connection IDs for a user
func connectionsForUser(ctx context.Context, userID string) ([]string, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(connectionsTable()),
		IndexName:              aws.String("user-index"),
		KeyConditionExpression: aws.String("GSI1PK = :userpk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":userpk": &types.AttributeValueMemberS{Value: fmt.Sprintf("USER#%s", userID)},
		},
	}

	result, err := dynamoClient.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}

	var connectionIDs []string
	for _, item := range result.Items {
		if connID, ok := item["ConnectionID"].(*types.AttributeValueMemberS); ok {
			connectionIDs = append(connectionIDs, connID.Value)
		}
	}
	return connectionIDs, nil
}

// pushToConnection posts a frame to one connection, cleaning up stale ones
func pushToConnection(ctx context.Context, connectionID string, message []byte) error {
	_, err := apigwClient.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         message,
	})
	if err != nil {
		var goneErr *apigwTypes.GoneException
		if errors.As(err, &goneErr) {
			removeStaleConnection(ctx, connectionID)
			return nil
		}
		return fmt.Errorf("failed to push to connection: %w", err)
	}
	return nil
}

// removeStaleConnection deletes a connection row whose socket is gone
func removeStaleConnection(ctx context.Context, connectionID string) {
	_, err := dynamoClient.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(connectionsTable()),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("CONNECTION#%s", connectionID)},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
	})
	if err != nil {
		log.Printf("Failed to remove stale connection %s: %v", connectionID, err)
	}
}

// handler pushes one NotificationCreated event to its owner's sockets
func handler(ctx context.Context, event events.CloudWatchEvent) error {
	if apigwClient == nil {
		log.Println("WEBSOCKET_ENDPOINT not configured, skipping push")
		return nil
	}

	var detail map[string]interface{}
	if err := json.Unmarshal(event.Detail, &detail); err != nil {
		return fmt.Errorf("failed to parse event detail: %w", err)
	}

	userID, _ := detail["userId"].(string)
	if userID == "" {
		return fmt.Errorf("event detail has no userId")
	}

	frame, err := json.Marshal(pushMessage{
		Type:      event.DetailType,
		Timestamp: time.Now().Unix(),
		Data:      detail,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal push frame: %w", err)
	}

	connectionIDs, err := connectionsForUser(ctx, userID)
	if err != nil {
		return err
	}

	successCount, failCount := 0, 0
	for _, connID := range connectionIDs {
		if err := pushToConnection(ctx, connID, frame); err != nil {
			log.Printf("Failed to push to connection %s: %v", connID, err)
			failCount++
		} else {
			successCount++
		}
	}

	log.Printf("Push complete: %d delivered, %d failed", successCount, failCount)

	if failCount > 0 && successCount == 0 && len(connectionIDs) > 0 {
		return fmt.Errorf("all pushes failed")
	}
	return nil
}

func main() {
	lambda.Start(handler)
}
