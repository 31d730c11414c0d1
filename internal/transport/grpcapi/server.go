package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Limiter throttles pulls per account. The HTTP rate limiter satisfies it,
// so both transports can share one budget.
type Limiter interface {
	Allow(key string) bool
}

// Server hosts the TarotHouse gRPC API and its health service.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	logger     *slog.Logger
}

// New listens on addr and registers svc. limiter may be nil.
func New(addr string, svc TarotHouseServer, limiter Limiter, logger *slog.Logger) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return NewWithListener(listener, svc, limiter, logger), nil
}

// NewWithListener registers svc on an existing listener.
func NewWithListener(listener net.Listener, svc TarotHouseServer, limiter Limiter, logger *slog.Logger) *Server {
	logger = logger.With("component", "grpc")
	interceptors := []grpc.UnaryServerInterceptor{loggingInterceptor(logger)}
	if limiter != nil {
		interceptors = append(interceptors, pullLimitInterceptor(limiter))
	}
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	healthServer := health.NewServer()
	RegisterTarotHouseServer(grpcServer, svc)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
		logger:     logger,
	}
}

// Addr returns the listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve runs until ctx is cancelled, then drains in-flight calls.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	defer s.Close()

	s.logger.Info("grpc server listening", "addr", s.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		err := <-serveErr
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
}

// Close stops the server immediately.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("rpc",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(start),
		)
		return resp, err
	}
}

func pullLimitInterceptor(limiter Limiter) grpc.UnaryServerInterceptor {
	pullMethod := "/" + ServiceName + "/Pull"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if info.FullMethod == pullMethod {
			if in, ok := req.(*structpb.Struct); ok {
				// same bucket key as the HTTP pull route
				if !limiter.Allow("account:" + in.GetFields()["account_id"].GetStringValue()) {
					return nil, status.Error(codes.ResourceExhausted, "too many requests")
				}
			}
		}
		return handler(ctx, req)
	}
}
