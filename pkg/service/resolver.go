package service

import (
	"context"
	"fmt"

	mrefrpc "mediaref/pkg/api/mrefrpc/v1"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// MaxBatchSize 单次 ResolveBatch 允许的最大引用数
const MaxBatchSize = 1000

// Resolver 是服务依赖的解析能力，*media.Service 满足它
// 私有媒体只为其所有者签名，其余调用方拿到原引用
type Resolver interface {
	ResolveFor(ctx context.Context, viewerID string, refs []string) []string
}

type ResolverService struct {
	mrefrpc.UnimplementedResolverServiceServer
	resolver Resolver
}

func NewResolverService(r Resolver) *ResolverService {
	return &ResolverService{resolver: r}
}

// Resolve 把一个存储引用换成可访问的 URL
// 解析本身从不失败：无法解析或签名失败时原样返回引用
func (s *ResolverService) Resolve(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	urls := s.resolver.ResolveFor(ctx, viewerFromContext(ctx), []string{req.GetValue()})
	return wrapperspb.String(urls[0]), nil
}

// ResolveBatch 批量解析，输出与输入等长且顺序一致
func (s *ResolverService) ResolveBatch(ctx context.Context, req *structpb.ListValue) (*structpb.ListValue, error) {
	// 1. 校验
	values := req.GetValues()
	if len(values) > MaxBatchSize {
		return nil, status.Errorf(codes.InvalidArgument, "batch too large: %d > %d", len(values), MaxBatchSize)
	}

	// 2. DTO -> []string
	refs := make([]string, len(values))
	for i, v := range values {
		switch kind := v.GetKind().(type) {
		case *structpb.Value_StringValue:
			refs[i] = kind.StringValue
		case *structpb.Value_NullValue, nil:
			// null 视为空引用
		default:
			return nil, status.Error(codes.InvalidArgument, fmt.Sprintf("values[%d]: expected string or null", i))
		}
	}

	// 3. 解析
	urls := s.resolver.ResolveFor(ctx, viewerFromContext(ctx), refs)

	out := &structpb.ListValue{Values: make([]*structpb.Value, len(urls))}
	for i, u := range urls {
		out.Values[i] = structpb.NewStringValue(u)
	}
	return out, nil
}

// viewerFromContext 读取调用方身份，没有则为匿名 ("")
func viewerFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(mrefrpc.ViewerMetadataKey); len(v) > 0 {
		return v[0]
	}
	return ""
}
