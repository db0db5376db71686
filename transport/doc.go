// Package transport contains descriptions of the services
// exposed by a murre node and the implementations of clients
// and servers for different protocols. Some clients prefer
// gRPC and others REST. Every frontend serves the same
// MapServer so adding a protocol doesn't touch the service.
package transport
