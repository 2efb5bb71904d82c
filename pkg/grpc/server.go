// Package grpc runs the operational gRPC listener: the standard health
// service (grpc.health.v1.Health) whose status follows a readiness probe,
// plus reflection for grpcurl.
//
//	srv := grpc.NewServer(database.Ping)
//	lis, err := grpc.Start(srv, config.GRPCPort())
//	...
//	grpc.Stop(srv)
package grpc

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
)

// ServiceName is the health-check service reported alongside "".
const ServiceName = "storefront.Checkout"

var (
	grpcRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "grpc",
		Name:      "handled_total",
		Help:      "Total number of gRPC calls completed by method and code.",
	}, []string{"grpc_method", "grpc_code"})

	grpcRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storefront",
		Subsystem: "grpc",
		Name:      "handling_seconds",
		Help:      "gRPC response latency in seconds.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"grpc_method"})
)

func init() {
	metrics.MustRegister(grpcRequestsTotal, grpcRequestDuration)
}

// Probe reports readiness; a non-nil error marks the server NOT_SERVING.
type Probe func(ctx context.Context) error

// Server is a gRPC server with a probe-driven health service.
type Server struct {
	*grpc.Server
	health   *health.Server
	probe    Probe
	interval time.Duration
	stop     chan struct{}
}

// ─── Interceptors ─────────────────────────────────────────────────────────────

func recoveryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("grpc: panic recovered",
				"method", info.FullMethod,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = status.Errorf(codes.Internal, "internal server error")
		}
	}()
	return handler(ctx, req)
}

func observeInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	dur := time.Since(start)
	code := status.Code(err)

	grpcRequestsTotal.WithLabelValues(info.FullMethod, code.String()).Inc()
	grpcRequestDuration.WithLabelValues(info.FullMethod).Observe(dur.Seconds())
	logger.Debug("grpc: request",
		"method", info.FullMethod,
		"duration_ms", dur.Milliseconds(),
		"code", code.String(),
	)
	return resp, err
}

// ─── Public API ───────────────────────────────────────────────────────────────

// NewServer builds the server. probe may be nil (always SERVING).
func NewServer(probe Probe) *Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(recoveryInterceptor, observeInterceptor),
		grpc.MaxRecvMsgSize(1<<20),
	)
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	s := &Server{Server: srv, health: hs, probe: probe, interval: 5 * time.Second, stop: make(chan struct{})}
	s.Refresh(context.Background())
	return s
}

// Refresh runs the probe once and publishes the result.
func (s *Server) Refresh(ctx context.Context) {
	st := grpc_health_v1.HealthCheckResponse_SERVING
	if s.probe != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.probe(ctx); err != nil {
			logger.Warn("grpc: readiness probe failed", "error", err)
			st = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Serve serves on lis and refreshes health until Stop.
func (s *Server) Serve(lis net.Listener) error {
	go s.watch()
	return s.Server.Serve(lis)
}

func (s *Server) watch() {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.Refresh(context.Background())
		}
	}
}

// Start listens on port and serves in the background.
func Start(s *Server, port string) (net.Listener, error) {
	addr := ":" + port
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc: listen on %s: %w", addr, err)
	}

	logger.Info("gRPC server starting", "addr", addr)
	go func() {
		if err := s.Serve(lis); err != nil {
			logger.Error("grpc: serve error", "error", err)
		}
	}()
	return lis, nil
}

// Stop marks the service NOT_SERVING and drains in-flight RPCs.
func Stop(s *Server) {
	if s == nil {
		return
	}
	logger.Info("gRPC server shutting down")
	close(s.stop)
	s.health.Shutdown()
	s.GracefulStop()
}
