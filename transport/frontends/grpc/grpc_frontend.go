// Package grpc serves the map service over gRPC. Messages
// are encoded with the JSON codec registered by this package.
package grpc

import (
	"context"
	"fmt"
	"net"

	"github.com/jrife/murre/transport/frontends"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// TracerName is the name of the tracer call spans are recorded by
const TracerName = "murre/grpc"

var _ frontends.Frontend = (*Frontend)(nil)

// Frontend is an implementation of
// Frontend for the gRPC protocol
type Frontend struct {
	logger     *zap.Logger
	grpcServer *grpc.Server
}

// Init initializes the frontend
func (frontend *Frontend) Init(options frontends.Options) error {
	if options.Server == nil {
		return fmt.Errorf("\"Server\" is required")
	}

	options = options.WithDefaults()
	frontend.logger = options.Logger.With(zap.String("frontend", "grpc"))
	frontend.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(
		tracingInterceptor(options.TracerProvider),
		loggingInterceptor(frontend.logger),
	))

	RegisterMapServiceServer(frontend.grpcServer, &MapServer{server: options.Server})

	return nil
}

// Listen accepts connections from this listener
func (frontend *Frontend) Listen(listener net.Listener) error {
	frontend.logger.Info("listening", zap.String("address", listener.Addr().String()))

	if err := frontend.grpcServer.Serve(listener); err != nil && err != grpc.ErrServerStopped {
		return err
	}

	return nil
}

// Stop stops accepting connections from listeners and causes
// all calls to Listen to return
func (frontend *Frontend) Stop() error {
	frontend.grpcServer.GracefulStop()

	return nil
}

func tracingInterceptor(provider trace.TracerProvider) grpc.UnaryServerInterceptor {
	tracer := provider.Tracer(TracerName)

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx, span := tracer.Start(ctx, info.FullMethod, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		resp, err := handler(ctx, req)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.SetAttributes(attribute.String("rpc.grpc.status_code", status.Code(err).String()))

		return resp, err
	}
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		logger.Debug("start call", zap.String("method", info.FullMethod))
		resp, err := handler(ctx, req)
		logger.Debug("return from call", zap.String("method", info.FullMethod), zap.Error(err))

		return resp, err
	}
}
