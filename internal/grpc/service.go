package server

// The service is described by hand over google.protobuf.Struct messages, so
// no generated code is needed on either side.

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "gridfeed.v1.GridService"

const (
	MethodGetLMP          = "/" + ServiceName + "/GetLMP"
	MethodGetLoad         = "/" + ServiceName + "/GetLoad"
	MethodListAuthorities = "/" + ServiceName + "/ListAuthorities"
	MethodQuerySeries     = "/" + ServiceName + "/QuerySeries"
)

// GridServiceServer is the server API for gridfeed.v1.GridService.
type GridServiceServer interface {
	GetLMP(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetLoad(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAuthorities(context.Context, *structpb.Struct) (*structpb.Struct, error)
	QuerySeries(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(GridServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func handler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(GridServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(GridServiceServer), ctx, req.(*structpb.Struct))
		})
	}
}

// GridServiceDesc is the grpc.ServiceDesc for gridfeed.v1.GridService.
var GridServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GridServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetLMP", Handler: handler(MethodGetLMP, GridServiceServer.GetLMP)},
		{MethodName: "GetLoad", Handler: handler(MethodGetLoad, GridServiceServer.GetLoad)},
		{MethodName: "ListAuthorities", Handler: handler(MethodListAuthorities, GridServiceServer.ListAuthorities)},
		{MethodName: "QuerySeries", Handler: handler(MethodQuerySeries, GridServiceServer.QuerySeries)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gridfeed/v1/grid.proto",
}

// RegisterGridServiceServer registers srv on s.
func RegisterGridServiceServer(s grpc.ServiceRegistrar, srv GridServiceServer) {
	s.RegisterService(&GridServiceDesc, srv)
}

// GridServiceClient is the client API for gridfeed.v1.GridService.
type GridServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewGridServiceClient(cc grpc.ClientConnInterface) *GridServiceClient {
	return &GridServiceClient{cc: cc}
}

func (c *GridServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *GridServiceClient) GetLMP(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetLMP, in, opts...)
}

func (c *GridServiceClient) GetLoad(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetLoad, in, opts...)
}

func (c *GridServiceClient) ListAuthorities(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodListAuthorities, in, opts...)
}

func (c *GridServiceClient) QuerySeries(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodQuerySeries, in, opts...)
}
