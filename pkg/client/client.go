package client

import (
	"context"
	"fmt"
	"time"

	mrefrpc "mediaref/pkg/api/mrefrpc/v1"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ResolverClient 封装了与 mref-server 的连接
type ResolverClient struct {
	conn *grpc.ClientConn

	// 公开底层 Service Client，方便需要 CallOption 的调用方
	RPC mrefrpc.ResolverServiceClient

	// Viewer 是随每次请求发送的调用方身份，为空表示匿名
	Viewer string
}

// NewResolverClient 创建客户端
// 不需要 context：它只负责创建对象，不等待连接就绪
func NewResolverClient(addr string, extra ...grpc.DialOption) (*ResolverClient, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		// 保持连接活跃
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             20 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	opts = append(opts, extra...)

	// NewClient 立即返回，连接在后台进行；网络不通不会在这里报错
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", addr, err)
	}

	return &ResolverClient{
		conn: conn,
		RPC:  mrefrpc.NewResolverServiceClient(conn),
	}, nil
}

// Resolve 远程解析单个引用
func (c *ResolverClient) Resolve(ctx context.Context, ref string) (string, error) {
	resp, err := c.RPC.Resolve(c.withViewer(ctx), wrapperspb.String(ref))
	if err != nil {
		return "", err
	}
	return resp.GetValue(), nil
}

// ResolveBatch 远程批量解析，返回值与 refs 等长同序
func (c *ResolverClient) ResolveBatch(ctx context.Context, refs []string) ([]string, error) {
	req := &structpb.ListValue{Values: make([]*structpb.Value, len(refs))}
	for i, r := range refs {
		req.Values[i] = structpb.NewStringValue(r)
	}

	resp, err := c.RPC.ResolveBatch(c.withViewer(ctx), req)
	if err != nil {
		return nil, err
	}
	if len(resp.GetValues()) != len(refs) {
		return nil, fmt.Errorf("server returned %d urls for %d refs", len(resp.GetValues()), len(refs))
	}

	out := make([]string, len(refs))
	for i, v := range resp.GetValues() {
		out[i] = v.GetStringValue()
	}
	return out, nil
}

func (c *ResolverClient) withViewer(ctx context.Context) context.Context {
	if c.Viewer == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, mrefrpc.ViewerMetadataKey, c.Viewer)
}

// Close 关闭底层连接
func (c *ResolverClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
