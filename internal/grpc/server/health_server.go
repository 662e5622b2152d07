// Package server реализует gRPC-сервер маркетплейса.
//
// HealthServer отвечает по протоколу grpc.health.v1 и перед ответом SERVING
// проверяет доступность PostgreSQL и Redis.
package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/magabrotheeeer/marketplace-backend/internal/lib/sl"
)

// ServiceName имя сервиса в запросах Check.
const ServiceName = "marketplace"

// Pinger зависимость, доступность которой проверяется.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer реализует grpc.health.v1.Health поверх health.Server.
type HealthServer struct {
	*health.Server
	deps    map[string]Pinger
	timeout time.Duration
	log     *slog.Logger
}

// NewHealthServer создает новый экземпляр HealthServer. Пока не вызван
// SetServing, сервер отвечает NOT_SERVING.
func NewHealthServer(deps map[string]Pinger, logger *slog.Logger) *HealthServer {
	hs := &HealthServer{
		Server:  health.NewServer(),
		deps:    deps,
		timeout: 2 * time.Second,
		log:     logger,
	}
	hs.setAll(healthpb.HealthCheckResponse_NOT_SERVING)
	return hs
}

// SetServing переводит сервер в SERVING после старта приложения.
func (s *HealthServer) SetServing() {
	s.setAll(healthpb.HealthCheckResponse_SERVING)
}

func (s *HealthServer) setAll(st healthpb.HealthCheckResponse_ServingStatus) {
	s.SetServingStatus("", st)
	s.SetServingStatus(ServiceName, st)
}

// Check возвращает статус сервиса. SERVING подтверждается пингом зависимостей.
func (s *HealthServer) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	const op = "server.HealthServer.Check"
	resp, err := s.Server.Check(ctx, req)
	if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return resp, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	for name, dep := range s.deps {
		if err := dep.Ping(ctx); err != nil {
			s.log.Warn("health check failed", sl.Op(op), slog.String("dependency", name), sl.Err(err))
			return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
		}
	}
	return resp, nil
}

// Server gRPC-сервер с сервисом здоровья.
type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	health     *HealthServer
	logger     *slog.Logger
}

// New открывает listener и регистрирует сервис здоровья.
func New(address string, hs *HealthServer, logger *slog.Logger) (*Server, error) {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	return &Server{grpcServer: grpcServer, listener: lis, health: hs, logger: logger}, nil
}

// Addr адрес, на котором слушает сервер.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Run обслуживает запросы до отмены ctx, затем останавливается штатно.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("gRPC health service listening on", slog.String("address", s.Addr()))
		errCh <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}
