package transport

import (
	"context"
	"fmt"
	"net"
	"path"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"pointconv/internal/logging"
	"pointconv/internal/telemetry"
)

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	lis    net.Listener
}

// NewServer registers the conversion and health services; call Serve with a listener.
func NewServer(svc ConversionServer, opts ...grpc.ServerOption) *Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(observe)}, opts...)
	s := &Server{
		grpc:   grpc.NewServer(opts...),
		health: health.NewServer(),
	}
	s.grpc.RegisterService(&conversionServiceDesc, svc)
	healthgrpc.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(ServiceName, healthgrpc.HealthCheckResponse_SERVING)
	return s
}

// StartServer listens on port and returns a server ready for Serve.
func StartServer(port int, svc ConversionServer) (*Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	s := NewServer(svc)
	s.lis = lis
	return s, nil
}

func (s *Server) Addr() net.Addr {
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

func (s *Server) Serve() error {
	logging.L().Info("transport: serving", "addr", s.lis.Addr().String())
	return s.grpc.Serve(s.lis)
}

func (s *Server) ServeListener(lis net.Listener) error {
	s.lis = lis
	return s.grpc.Serve(lis)
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
	if s.lis != nil {
		_ = s.lis.Close() // not yet served
	}
}

func observe(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)
	telemetry.RPCs.WithLabelValues(path.Base(info.FullMethod), code.String()).Inc()
	logging.L().Debug("transport: call", "method", info.FullMethod, "code", code.String(), "elapsed", time.Since(start))
	return resp, err
}
