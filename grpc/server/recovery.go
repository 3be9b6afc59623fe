package server

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/DataDog/dd-trace-go/v2/ddtrace/ext"
	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"
	grpcrecovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rainbow-me/platform-shutdown/common/env"
	"github.com/rainbow-me/platform-shutdown/common/logger"
)

// recoveryHandler converts a handler panic into codes.Internal so one bad request
// cannot take the process down outside of the shutdown sequence.
func recoveryHandler(log func() *logger.Logger) grpcrecovery.Option {
	return grpcrecovery.WithRecoveryHandlerContext(func(ctx context.Context, panicValue any) error {
		log().Error("Recovered from panic in gRPC handler", logger.String("panic", fmt.Sprintf("%+v", panicValue)))
		if env.IsLocalApplicationEnv() {
			// pretty print the stack trace to the local console to make it human-readable
			_, _ = fmt.Fprintf(os.Stderr, "%s\n", debug.Stack())
		}

		if span, ok := tracer.SpanFromContext(ctx); ok {
			span.SetTag(ext.Error, true)
			span.SetTag(ext.ErrorType, "panic")
			span.SetTag(ext.ErrorMsg, codes.Internal.String())
		}

		// don't expose internal panic details
		return status.Error(codes.Internal, "Internal server error occurred")
	})
}

func recoveryInterceptors(log func() *logger.Logger) []grpc.ServerOption {
	handler := recoveryHandler(log)
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpcrecovery.UnaryServerInterceptor(handler)),
		grpc.ChainStreamInterceptor(grpcrecovery.StreamServerInterceptor(handler)),
	}
}
