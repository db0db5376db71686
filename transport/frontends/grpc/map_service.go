package grpc

import (
	"context"
	"time"

	"github.com/jrife/murre/transport"
	"github.com/jrife/murre/transport/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// MapServiceServer is the server API of the map service
type MapServiceServer interface {
	Put(ctx context.Context, req *services.PutRequest) (*services.PutResponse, error)
	Get(ctx context.Context, req *services.GetRequest) (*services.GetResponse, error)
	Remove(ctx context.Context, req *services.RemoveRequest) (*services.RemoveResponse, error)
	TriggerLoad(ctx context.Context, req *services.TriggerLoadRequest) (*services.TriggerLoadResponse, error)
}

var _ MapServiceServer = (*MapServer)(nil)

// MapServer implements the gRPC map service.
// It forwards requests on to the map server.
type MapServer struct {
	server transport.MapServer
}

func statusOf(err error) error {
	return status.Error(transport.Code(err), err.Error())
}

func (mapServer *MapServer) Put(ctx context.Context, req *services.PutRequest) (*services.PutResponse, error) {
	replaced, err := transport.Put(ctx, mapServer.server, req.Map, req.Key, req.Value, time.Duration(req.TTLMillis)*time.Millisecond)

	if err != nil {
		return nil, statusOf(err)
	}

	return &services.PutResponse{Replaced: replaced}, nil
}

func (mapServer *MapServer) Get(ctx context.Context, req *services.GetRequest) (*services.GetResponse, error) {
	value, found, err := transport.Get(ctx, mapServer.server, req.Map, req.Key)

	if err != nil {
		return nil, statusOf(err)
	}

	return &services.GetResponse{Value: value, Found: found}, nil
}

func (mapServer *MapServer) Remove(ctx context.Context, req *services.RemoveRequest) (*services.RemoveResponse, error) {
	removed, err := transport.Remove(ctx, mapServer.server, req.Map, req.Key)

	if err != nil {
		return nil, statusOf(err)
	}

	return &services.RemoveResponse{Removed: removed}, nil
}

func (mapServer *MapServer) TriggerLoad(ctx context.Context, req *services.TriggerLoadRequest) (*services.TriggerLoadResponse, error) {
	alreadyLoaded, err := mapServer.server.TriggerLoad(ctx, req.Map)

	if err != nil {
		return nil, statusOf(err)
	}

	return &services.TriggerLoadResponse{AlreadyLoaded: alreadyLoaded}, nil
}

// RegisterMapServiceServer registers srv with s
func RegisterMapServiceServer(s *grpc.Server, srv MapServiceServer) {
	s.RegisterService(&MapServiceDesc, srv)
}

func unaryHandler[Req any](method string, call func(srv MapServiceServer, ctx context.Context, req *Req) (interface{}, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		req := new(Req)

		if err := dec(req); err != nil {
			return nil, err
		}

		if interceptor == nil {
			return call(srv.(MapServiceServer), ctx, req)
		}

		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: services.FullMethod(method)}

		return interceptor(ctx, req, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(MapServiceServer), ctx, req.(*Req))
		})
	}
}

// MapServiceDesc describes the map service
var MapServiceDesc = grpc.ServiceDesc{
	ServiceName: services.MapServiceName,
	HandlerType: (*MapServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: services.PutMethod,
			Handler: unaryHandler(services.PutMethod, func(srv MapServiceServer, ctx context.Context, req *services.PutRequest) (interface{}, error) {
				return srv.Put(ctx, req)
			}),
		},
		{
			MethodName: services.GetMethod,
			Handler: unaryHandler(services.GetMethod, func(srv MapServiceServer, ctx context.Context, req *services.GetRequest) (interface{}, error) {
				return srv.Get(ctx, req)
			}),
		},
		{
			MethodName: services.RemoveMethod,
			Handler: unaryHandler(services.RemoveMethod, func(srv MapServiceServer, ctx context.Context, req *services.RemoveRequest) (interface{}, error) {
				return srv.Remove(ctx, req)
			}),
		},
		{
			MethodName: services.TriggerLoadMethod,
			Handler: unaryHandler(services.TriggerLoadMethod, func(srv MapServiceServer, ctx context.Context, req *services.TriggerLoadRequest) (interface{}, error) {
				return srv.TriggerLoad(ctx, req)
			}),
		},
	},
	Streams: []grpc.StreamDesc{},
}
