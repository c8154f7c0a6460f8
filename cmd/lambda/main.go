package main

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pulse-backend/infrastructure/config"
	"pulse-backend/infrastructure/di"
	"pulse-backend/interfaces/http/rest"
)

// Global variables for Lambda lifecycle management
var (
	// chiLambda wraps the Chi router for AWS Lambda integration
	chiLambda *chiadapter.ChiLambdaV2

	// container holds the dependency injection container
	container *di.Container

	// coldStart tracks whether this is a cold start invocation
	coldStart = true

	// coldStartTime records when the cold start began
	coldStartTime time.Time
)

// init runs during cold start
func init() {
	coldStartTime = time.Now()

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	router := rest.NewRouter(
		container.FeedStore,
		container.NotificationStore,
		container.LikeStore,
		container.Logger,
	)
	handler := router.Setup()

	chiRouter, ok := handler.(*chi.Mux)
	if !ok {
		log.Fatal("Failed to cast handler to chi.Mux")
	}
	chiLambda = chiadapter.NewV2(chiRouter)

	container.Logger.Info("Lambda cold start completed",
		zap.Duration("duration", time.Since(coldStartTime)))
}

// Handler is the Lambda function handler. The API Gateway JWT authorizer
// has already validated the token, so the handler forwards the authorizer
// claims as trusted headers for the auth middleware to pick up.
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if req.Headers == nil {
		req.Headers = make(map[string]string)
	}

	if auth := req.RequestContext.Authorizer; auth != nil && auth.JWT != nil {
		req.Headers["X-API-Gateway-Authorized"] = "true"
		if sub, ok := auth.JWT.Claims["sub"]; ok {
			req.Headers["X-User-ID"] = sub
		}
		if handle, ok := auth.JWT.Claims["handle"]; ok {
			req.Headers["X-User-Handle"] = handle
		}
		if email, ok := auth.JWT.Claims["email"]; ok {
			req.Headers["X-User-Email"] = email
		}
	}

	response, err := chiLambda.ProxyWithContextV2(ctx, req)

	if response.Headers == nil {
		response.Headers = make(map[string]string)
	}
	if coldStart {
		response.Headers["X-Cold-Start"] = "true"
		coldStart = false
	}
	if req.RequestContext.RequestID != "" {
		response.Headers["X-Request-ID"] = req.RequestContext.RequestID
	}

	if err != nil || response.StatusCode >= 500 {
		container.Logger.Error("Lambda request failed",
			zap.String("method", req.RequestContext.HTTP.Method),
			zap.String("path", req.RequestContext.HTTP.Path),
			zap.Int("status", response.StatusCode),
			zap.Error(err))
	}

	return response, err
}

func main() {
	lambda.Start(Handler)
}
