package frontends

import (
	"net"

	"github.com/jrife/murre/transport"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Options define standard options
// passed to frontends during initialization
type Options struct {
	Server transport.MapServer
	Logger *zap.Logger
	// Registerer receives request metrics. Defaults to
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	// Gatherer is exposed by frontends serving metrics.
	// Defaults to prometheus.DefaultGatherer.
	Gatherer       prometheus.Gatherer
	TracerProvider trace.TracerProvider
}

// WithDefaults returns a copy of options with
// every unset field defaulted
func (options Options) WithDefaults() Options {
	if options.Logger == nil {
		options.Logger = zap.L()
	}

	if options.Registerer == nil {
		options.Registerer = prometheus.DefaultRegisterer
	}

	if options.Gatherer == nil {
		options.Gatherer = prometheus.DefaultGatherer
	}

	if options.TracerProvider == nil {
		options.TracerProvider = otel.GetTracerProvider()
	}

	return options
}

// Frontend describes an interface that every
// murre frontend must implement.
type Frontend interface {
	// Init initializes the frontend. Use this
	// to pass configuration options to the frontend
	Init(options Options) error
	// Listen tells this frontend to start listening
	// using this listener. A frontend may be asked
	// to listen on different interfaces, such as a TCP
	// socket and a Unix socket. It must accept
	// one or more calls to Listen. Listen must block
	// as long as it is actively accepting connections
	// from this listener. If the listener returns an
	// error Listen must return an error and return. If
	// Listen returns as a result of Stop being called it
	// must return nil.
	Listen(listener net.Listener) error
	// Stop tells this frontend to stop processing all
	// requests and stop listening to all listeners.
	Stop() error
}
