package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"mediaref/pkg/types"
)

var (
	ErrNotFound = errors.New("object not found")
	// ErrEmptySignedURL 表示签名接口"成功"返回了，但没有给出 URL
	ErrEmptySignedURL = errors.New("signing backend returned an empty url")
	ErrBadSignature   = errors.New("invalid or expired signature")
)

// Signer 是解析层唯一依赖的外部协作者：为 (bucket, path) 签发一个限时可访问的 URL。
// 实现可以是 S3 预签名、本地 HMAC 签名，或者带缓存的装饰器。
type Signer interface {
	// SignURL 返回一个在大约 ttl 时间内有效的 URL
	// 对象不存在、权限不足、Bucket 配置错误等情况一律返回 error
	SignURL(ctx context.Context, loc types.Location, ttl time.Duration) (string, error)
}

// ObjectStore 定义了上传路径所需的对象读写能力
type ObjectStore interface {
	// Put 写入对象。size < 0 表示长度未知
	Put(ctx context.Context, loc types.Location, r io.Reader, size int64, contentType string) error

	// Get 读取对象内容
	// 返回 io.ReadCloser，调用方负责 Close
	Get(ctx context.Context, loc types.Location) (io.ReadCloser, error)

	// Has 检查对象是否存在
	Has(ctx context.Context, loc types.Location) (bool, error)
}

// Backend 同时具备存储和签名能力 (disk / s3 都实现了它)
type Backend interface {
	Signer
	ObjectStore
}

// SignerFunc 让普通函数也能当作 Signer 使用 (主要用于测试和装饰)
type SignerFunc func(ctx context.Context, loc types.Location, ttl time.Duration) (string, error)

func (f SignerFunc) SignURL(ctx context.Context, loc types.Location, ttl time.Duration) (string, error) {
	return f(ctx, loc, ttl)
}
