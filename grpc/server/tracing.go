package server

import (
	grpctrace "github.com/DataDog/dd-trace-go/contrib/google.golang.org/grpc/v2"
	"google.golang.org/grpc"
)

const healthCheckMethod = "/grpc.health.v1.Health/Check"

// tracingInterceptors open a span per call using the service name the tracer was
// started with. They are chained before recovery so a panic can tag the span.
// Without a running tracer the spans are no-ops.
func tracingInterceptors() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpctrace.UnaryServerInterceptor(
			grpctrace.WithAnalytics(true),
			grpctrace.WithUntracedMethods(healthCheckMethod),
		)),
		grpc.ChainStreamInterceptor(grpctrace.StreamServerInterceptor(
			grpctrace.WithAnalytics(true),
			grpctrace.WithUntracedMethods(healthCheckMethod),
		)),
	}
}
