package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthServiceName is the service name reported alongside the overall ("")
// status.
const HealthServiceName = "receipts.v1.Receipts"

// HealthServer exposes the standard gRPC health protocol, driven by periodic
// database pings.
type HealthServer struct {
	addr     string
	db       Pinger
	interval time.Duration
	logger   *slog.Logger

	lis    net.Listener
	health *health.Server
	Server *grpc.Server
}

func NewHealthServer(addr string, db Pinger, interval time.Duration, logger *slog.Logger) *HealthServer {
	s := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	// Reflection for grpcurl
	reflection.Register(s)

	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HealthServer{
		addr:     addr,
		db:       db,
		interval: interval,
		logger:   logger,
		health:   hs,
		Server:   s,
	}
}

// Check pings the database once and publishes the result.
func (s *HealthServer) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Warn("database health check failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(HealthServiceName, status)
	return status
}

// Start listens on addr and blocks serving until Stop is called. Health is
// re-checked every interval until ctx is done.
func (s *HealthServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.lis = lis

	s.Check(ctx)
	go s.watch(ctx)

	s.logger.Info("grpc health listening", "addr", s.addr)
	if err := s.Server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (s *HealthServer) watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.Server.GracefulStop()
	if s.lis != nil {
		_ = s.lis.Close()
	}
}
