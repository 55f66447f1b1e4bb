// Package grpcserver runs the admin gRPC listener that answers grpc.health.v1 probes.
package grpcserver

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported next to the overall ("") status.
const ServiceName = "whosfree"

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Admin is the admin gRPC server.
type Admin struct {
	srv    *grpc.Server
	health *health.Server
	log    *zap.Logger
}

// NewAdmin builds the admin server. It starts NOT_SERVING until SetServing or Watch says otherwise.
func NewAdmin(log *zap.Logger) *Admin {
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log)),
		grpc.ChainStreamInterceptor(RecoverStream(log), LoggingStream(log)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	a := &Admin{srv: gs, health: hs, log: log}
	a.SetServing(false)
	return a
}

// SetServing flips both the overall and the named service status.
func (a *Admin) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	a.health.SetServingStatus("", st)
	a.health.SetServingStatus(ServiceName, st)
}

// Watch pings p every interval until ctx is done and mirrors the result into the health status.
func (a *Admin) Watch(ctx context.Context, p Pinger, interval time.Duration) {
	var last *bool
	check := func() {
		pctx, cancel := context.WithTimeout(ctx, interval)
		err := p.Ping(pctx)
		cancel()
		ok := err == nil
		if last == nil || *last != ok {
			if ok {
				a.log.Info("dependency healthy")
			} else {
				a.log.Warn("dependency unhealthy", zap.Error(err))
			}
		}
		a.SetServing(ok)
		last = &ok
	}

	check()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			check()
		}
	}
}

// Serve blocks serving on lis.
func (a *Admin) Serve(lis net.Listener) error { return a.srv.Serve(lis) }

// Stop marks everything NOT_SERVING and drains in-flight calls.
func (a *Admin) Stop() {
	a.health.Shutdown()
	a.srv.GracefulStop()
}
