// Package rest serves the map service over HTTP
package rest

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jrife/murre/transport"
	"github.com/jrife/murre/transport/frontends"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

var _ frontends.Frontend = (*Frontend)(nil)

// Frontend is an implementation of
// Frontend for REST
type Frontend struct {
	server     transport.MapServer
	logger     *zap.Logger
	httpServer *http.Server
}

// Init initializes the frontend
func (frontend *Frontend) Init(options frontends.Options) error {
	if options.Server == nil {
		return fmt.Errorf("\"Server\" is required")
	}

	options = options.WithDefaults()
	frontend.server = options.Server
	frontend.logger = options.Logger.With(zap.String("frontend", "rest"))
	frontend.httpServer = &http.Server{Handler: Router(options)}

	return nil
}

// Handler returns the frontend's HTTP handler
func (frontend *Frontend) Handler() http.Handler {
	return frontend.httpServer.Handler
}

// Listen accepts connections from this listener
func (frontend *Frontend) Listen(listener net.Listener) error {
	frontend.logger.Info("listening", zap.String("address", listener.Addr().String()))

	if err := frontend.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Stop stops accepting connections from listeners and causes
// all calls to Listen to return
func (frontend *Frontend) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return frontend.httpServer.Shutdown(ctx)
}
