package server

import (
	"context"
	"time"

	"github.com/fekuna/evaluation-portal/internal/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// ServiceName is the health-check service name reported for the portal.
const ServiceName = "evaluation.portal.v1"

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// NewGRPCServer serves the standard health protocol and reflection.
func NewGRPCServer(log logger.ZapLogger) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(log)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return srv, hs
}

func LoggingInterceptor(log logger.ZapLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Debug("grpc request",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		)
		return resp, err
	}
}

// WatchHealth flips the portal's serving status with the database ping
// until ctx is done.
func WatchHealth(ctx context.Context, hs *health.Server, db Pinger, interval time.Duration, log logger.ZapLogger) error {
	check := func() {
		pctx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()
		st := healthpb.HealthCheckResponse_SERVING
		if err := db.PingContext(pctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("Database ping failed", zap.Error(err))
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus(ServiceName, st)
		hs.SetServingStatus("", st)
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return nil
		case <-ticker.C:
			check()
		}
	}
}
