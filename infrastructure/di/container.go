package di

import (
	"go.uber.org/zap"

	"pulse-backend/application/fanout"
	"pulse-backend/application/ports"
	"pulse-backend/infrastructure/config"
	"pulse-backend/pkg/auth"
	"pulse-backend/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config            *config.Config
	Logger            *zap.Logger
	FeedStore         ports.FeedStore
	NotificationStore ports.NotificationStore
	LikeStore         ports.LikeStore
	HandleResolver    ports.HandleResolver
	Publisher         ports.NotificationPublisher
	FanoutProcessor   *fanout.Processor
	Cache             ports.Cache
	Metrics           *observability.Metrics
	Tracer            *observability.Tracer
	RateLimiter       *auth.DistributedRateLimiter
}
