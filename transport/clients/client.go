// Package clients contains clients of a murre node
package clients

import (
	"context"
	"time"

	"github.com/jrife/murre/transport"
	murregrpc "github.com/jrife/murre/transport/frontends/grpc"
	"github.com/jrife/murre/transport/services"
	"google.golang.org/grpc"
)

var _ transport.MapClient = (*GRPCClient)(nil)

// GRPCClient is a MapClient talking to
// the gRPC frontend of a node
type GRPCClient struct {
	conn grpc.ClientConnInterface
}

// NewGRPCClient creates a client using conn
func NewGRPCClient(conn grpc.ClientConnInterface) *GRPCClient {
	return &GRPCClient{conn: conn}
}

func (client *GRPCClient) invoke(ctx context.Context, method string, req interface{}, resp interface{}) error {
	return client.conn.Invoke(ctx, services.FullMethod(method), req, resp, grpc.CallContentSubtype(murregrpc.CodecName))
}

// Put implements transport.MapClient.Put
func (client *GRPCClient) Put(ctx context.Context, mapName string, key []byte, value []byte, ttl time.Duration) (bool, error) {
	var resp services.PutResponse

	if err := client.invoke(ctx, services.PutMethod, &services.PutRequest{Map: mapName, Key: key, Value: value, TTLMillis: ttl.Milliseconds()}, &resp); err != nil {
		return false, err
	}

	return resp.Replaced, nil
}

// Get implements transport.MapClient.Get
func (client *GRPCClient) Get(ctx context.Context, mapName string, key []byte) ([]byte, bool, error) {
	var resp services.GetResponse

	if err := client.invoke(ctx, services.GetMethod, &services.GetRequest{Map: mapName, Key: key}, &resp); err != nil {
		return nil, false, err
	}

	return resp.Value, resp.Found, nil
}

// Remove implements transport.MapClient.Remove
func (client *GRPCClient) Remove(ctx context.Context, mapName string, key []byte) (bool, error) {
	var resp services.RemoveResponse

	if err := client.invoke(ctx, services.RemoveMethod, &services.RemoveRequest{Map: mapName, Key: key}, &resp); err != nil {
		return false, err
	}

	return resp.Removed, nil
}

// TriggerLoad implements transport.MapClient.TriggerLoad
func (client *GRPCClient) TriggerLoad(ctx context.Context, mapName string) (bool, error) {
	var resp services.TriggerLoadResponse

	if err := client.invoke(ctx, services.TriggerLoadMethod, &services.TriggerLoadRequest{Map: mapName}, &resp); err != nil {
		return false, err
	}

	return resp.AlreadyLoaded, nil
}
