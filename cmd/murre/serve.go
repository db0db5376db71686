package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/jrife/murre/config"
	"github.com/jrife/murre/service"
	"github.com/jrife/murre/transport/frontends"
	"github.com/jrife/murre/transport/frontends/grpc"
	"github.com/jrife/murre/transport/frontends/rest"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	configPath string
	restAddr   string
	grpcAddr   string
	logLevel   string
	// jaegerEndpoint is the collector spans are exported to.
	// Spans are not exported when it is empty.
	jaegerEndpoint string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a node",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)

		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration file")
	serveCmd.Flags().StringVar(&restAddr, "rest-addr", "", "Address of the REST frontend. Overrides the configuration")
	serveCmd.Flags().StringVar(&grpcAddr, "grpc-addr", "", "Address of the gRPC frontend. Overrides the configuration")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level. Overrides the configuration")
	serveCmd.Flags().StringVar(&jaegerEndpoint, "jaeger-endpoint", "", "Jaeger collector endpoint, e.g. http://localhost:14268/api/traces")
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()

	if configPath != "" {
		var err error

		if cfg, err = config.Load(configPath); err != nil {
			return config.Config{}, err
		}
	}

	if cmd.Flags().Changed("rest-addr") {
		cfg.RESTAddr = restAddr
	}

	if cmd.Flags().Changed("grpc-addr") {
		cfg.GRPCAddr = grpcAddr
	}

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	return cfg, cfg.Validate()
}

func newTracerProvider(endpoint string) (*sdktrace.TracerProvider, error) {
	options := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("murre"),
			semconv.ServiceVersionKey.String(version),
		)),
	}

	if endpoint != "" {
		exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)))

		if err != nil {
			return nil, err
		}

		options = append(options, sdktrace.WithBatcher(exporter))
	}

	return sdktrace.NewTracerProvider(options...), nil
}

type listenedFrontend struct {
	frontend frontends.Frontend
	listener net.Listener
}

// serve runs a node until ctx is done or a frontend fails
func serve(ctx context.Context, cfg config.Config) error {
	logger, err := cfg.Logger()

	if err != nil {
		return err
	}

	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	tracerProvider, err := newTracerProvider(jaegerEndpoint)

	if err != nil {
		return err
	}

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	defer tracerProvider.Shutdown(context.Background())

	mapService, err := service.New(service.Config{Node: cfg, Logger: logger, TracerProvider: tracerProvider})

	if err != nil {
		return err
	}

	defer mapService.Shutdown()

	options := frontends.Options{Server: mapService, Logger: logger, TracerProvider: tracerProvider}
	listened := []listenedFrontend{}
	addrs := map[frontends.Frontend]string{&rest.Frontend{}: cfg.RESTAddr, &grpc.Frontend{}: cfg.GRPCAddr}

	for frontend, addr := range addrs {
		if err := frontend.Init(options); err != nil {
			return err
		}

		listener, err := net.Listen("tcp", addr)

		if err != nil {
			for _, l := range listened {
				l.listener.Close()
			}

			return err
		}

		listened = append(listened, listenedFrontend{frontend: frontend, listener: listener})
	}

	logger.Info("node started", zap.String("member", cfg.MemberID), zap.Ints("owned_partitions", cfg.OwnedPartitions))

	group, ctx := errgroup.WithContext(ctx)

	for _, l := range listened {
		l := l

		group.Go(func() error {
			return l.frontend.Listen(l.listener)
		})
	}

	group.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		for _, l := range listened {
			if err := l.frontend.Stop(); err != nil {
				logger.Warn("could not stop frontend", zap.Error(err))
			}
		}

		return nil
	})

	return group.Wait()
}
