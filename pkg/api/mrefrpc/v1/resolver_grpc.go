// Package mrefrpc 定义 mediaref.v1.ResolverService 的 gRPC 契约。
//
// 消息体全部使用 protobuf 的 well-known types，因此无需 protoc 生成代码：
//
//	Resolve:      google.protobuf.StringValue -> google.protobuf.StringValue
//	ResolveBatch: google.protobuf.ListValue   -> google.protobuf.ListValue
//
// ResolveBatch 的请求元素只能是 string 或 null (null 视为空引用)。
// 调用方身份通过 metadata "x-viewer-id" 传递，缺省为匿名。
package mrefrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ViewerMetadataKey 是携带调用方身份的 gRPC metadata key
const ViewerMetadataKey = "x-viewer-id"

const (
	ResolverService_ServiceName                 = "mediaref.v1.ResolverService"
	ResolverService_Resolve_FullMethodName      = "/mediaref.v1.ResolverService/Resolve"
	ResolverService_ResolveBatch_FullMethodName = "/mediaref.v1.ResolverService/ResolveBatch"
)

// ResolverServiceClient 是客户端 API
type ResolverServiceClient interface {
	Resolve(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	ResolveBatch(ctx context.Context, in *structpb.ListValue, opts ...grpc.CallOption) (*structpb.ListValue, error)
}

type resolverServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewResolverServiceClient(cc grpc.ClientConnInterface) ResolverServiceClient {
	return &resolverServiceClient{cc}
}

func (c *resolverServiceClient) Resolve(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, ResolverService_Resolve_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *resolverServiceClient) ResolveBatch(ctx context.Context, in *structpb.ListValue, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, ResolverService_ResolveBatch_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolverServiceServer 是服务端 API
type ResolverServiceServer interface {
	Resolve(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	ResolveBatch(context.Context, *structpb.ListValue) (*structpb.ListValue, error)
}

// UnimplementedResolverServiceServer 可以嵌入实现中以保持向前兼容
type UnimplementedResolverServiceServer struct{}

func (UnimplementedResolverServiceServer) Resolve(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Resolve not implemented")
}

func (UnimplementedResolverServiceServer) ResolveBatch(context.Context, *structpb.ListValue) (*structpb.ListValue, error) {
	return nil, status.Error(codes.Unimplemented, "method ResolveBatch not implemented")
}

func RegisterResolverServiceServer(s grpc.ServiceRegistrar, srv ResolverServiceServer) {
	s.RegisterService(&ResolverService_ServiceDesc, srv)
}

func _ResolverService_Resolve_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ResolverServiceServer).Resolve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ResolverService_Resolve_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ResolverServiceServer).Resolve(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _ResolverService_ResolveBatch_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.ListValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ResolverServiceServer).ResolveBatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ResolverService_ResolveBatch_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ResolverServiceServer).ResolveBatch(ctx, req.(*structpb.ListValue))
	}
	return interceptor(ctx, in, info, handler)
}

// ResolverService_ServiceDesc 是 ResolverService 的 grpc.ServiceDesc
var ResolverService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ResolverService_ServiceName,
	HandlerType: (*ResolverServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Resolve",
			Handler:    _ResolverService_Resolve_Handler,
		},
		{
			MethodName: "ResolveBatch",
			Handler:    _ResolverService_ResolveBatch_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mediaref/v1/resolver.proto",
}
