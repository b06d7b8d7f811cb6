// Package grpc exposes the standard gRPC health service, backed by the
// database's reachability.
package grpc

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name clients pass to Check for this service.
const ServiceName = "shop.ShopService"

type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthServer struct {
	health   *health.Server
	db       Pinger
	interval time.Duration
	logger   *zap.Logger
}

// NewHealthServer reports SERVING while db answers pings. A nil db is
// always healthy.
func NewHealthServer(db Pinger, interval time.Duration, logger *zap.Logger) *HealthServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HealthServer{
		health:   health.NewServer(),
		db:       db,
		interval: interval,
		logger:   logger,
	}
}

func NewServer(hs *HealthServer) *grpc.Server {
	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	healthpb.RegisterHealthServer(server, hs.health)
	return server
}

// Run refreshes the serving status until ctx is done, then marks every
// service NOT_SERVING.
func (h *HealthServer) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.check(ctx)
	for {
		select {
		case <-ctx.Done():
			h.health.Shutdown()
			return nil
		case <-ticker.C:
			h.check(ctx)
		}
	}
}

func (h *HealthServer) check(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if h.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := h.db.PingContext(pingCtx)
		cancel()
		if err != nil {
			h.logger.Warn("Database ping failed", zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
}
