// Package health publishes link status through the standard gRPC health
// service, so load balancers and probes can watch the simulated network.
//
// Service names:
//
//	""                   always SERVING while the simulator runs
//	"network"            SERVING while the network is reachable
//	"isl/<a>-<b>"        SERVING while the inter-satellite link is up
//	"satellite/<id>"     SERVING unless the satellite is FAILED
package health

import (
	"net/http"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/signalsfoundry/orbitlink-sim/core"
	"github.com/signalsfoundry/orbitlink-sim/model"
)

// ServiceNetwork is the health service name for overall reachability.
const ServiceNetwork = "network"

// ISLService returns the health service name for the link a-b.
func ISLService(a, b string) string { return "isl/" + a + "-" + b }

// SatelliteService returns the health service name for a satellite.
func SatelliteService(id string) string { return "satellite/" + id }

// Reporter mirrors snapshots into a gRPC health server. Statuses are only
// pushed when they change so Watch streams see transitions, not frames.
type Reporter struct {
	server *grpchealth.Server

	mu   sync.Mutex
	last map[string]healthpb.HealthCheckResponse_ServingStatus
}

// NewReporter creates a reporter with the overall service SERVING.
func NewReporter() *Reporter {
	r := &Reporter{
		server: grpchealth.NewServer(),
		last:   make(map[string]healthpb.HealthCheckResponse_ServingStatus),
	}
	r.set("", healthpb.HealthCheckResponse_SERVING)
	return r
}

// Register attaches the health service to a gRPC server.
func (r *Reporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, r.server)
}

// NewServer builds a traced gRPC server with the health service
// registered.
func (r *Reporter) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	s := grpc.NewServer(opts...)
	r.Register(s)
	return s
}

// Server exposes the underlying health server.
func (r *Reporter) Server() healthpb.HealthServer {
	return r.server
}

// Update publishes the statuses derived from snap.
func (r *Reporter) Update(snap core.Snapshot) {
	r.set(ServiceNetwork, serving(snap.NetworkReachable))
	for _, l := range snap.ISLs {
		r.set(ISLService(l.A, l.B), serving(l.Up))
	}
	for _, s := range snap.Satellites {
		r.set(SatelliteService(s.ID), serving(s.State != model.StateFailed))
	}
}

// Shutdown marks every service NOT_SERVING.
func (r *Reporter) Shutdown() {
	r.server.Shutdown()
}

func (r *Reporter) set(service string, status healthpb.HealthCheckResponse_ServingStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.last[service]; ok && prev == status {
		return
	}
	r.last[service] = status
	r.server.SetServingStatus(service, status)
}

func serving(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}
