package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mediaref/pkg/storage"
	"mediaref/pkg/types"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedSigner 是一个装饰器，它为底层的 storage.Signer 添加 Redis 缓存层
// 同一个 (bucket, path, ttl) 在有效期的前一部分时间内复用同一个签名 URL，
// 避免每个 UI 绑定都去打一次签名接口。
type CachedSigner struct {
	backend  storage.Signer // 被装饰的底层签名器 (如 S3 Presign)
	client   *redis.Client
	fraction float64 // 缓存时长占签名有效期的比例，保证取出来的 URL 还有足够的剩余寿命
	log      *zap.Logger
	now      func() time.Time
}

type Config struct {
	RedisURL string  // 标准连接字符串: redis://<user>:<password>@<host>:<port>/<db>
	Fraction float64 // (0, 1]，默认 0.5
	Logger   *zap.Logger
}

// entry 是写入 Redis 的缓存条目 (CBOR 编码，比 JSON 更紧凑)
type entry struct {
	URL       string `cbor:"1,keyasint"`
	ExpiresAt int64  `cbor:"2,keyasint"` // 签名 URL 本身的过期时间 (Unix 秒)
}

func NewCachedSigner(backend storage.Signer, cfg Config) (*CachedSigner, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithClient(backend, client, cfg.Fraction, cfg.Logger), nil
}

// NewWithClient 复用已有的 Redis 客户端
func NewWithClient(backend storage.Signer, client *redis.Client, fraction float64, log *zap.Logger) *CachedSigner {
	if fraction <= 0 || fraction > 1 {
		fraction = 0.5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedSigner{
		backend:  backend,
		client:   client,
		fraction: fraction,
		log:      log,
		now:      time.Now,
	}
}

// cacheKey 生成 Redis Key，添加前缀防止冲突
// ttl 也是 key 的一部分：不同有效期的请求不能互相复用
func (s *CachedSigner) cacheKey(loc types.Location, ttl time.Duration) string {
	return fmt.Sprintf("mref:sig:%d:%s:%s", int64(ttl.Seconds()), loc.Bucket, loc.Path)
}

// SignURL 优先查 Redis，未命中再穿透到底层签名器
func (s *CachedSigner) SignURL(ctx context.Context, loc types.Location, ttl time.Duration) (string, error) {
	key := s.cacheKey(loc, ttl)

	// 1. 查 Redis
	raw, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var e entry
		// 缓存的 URL 至少要还剩 (1 - fraction) * ttl 的寿命，否则视为未命中
		if cbor.Unmarshal(raw, &e) == nil && e.URL != "" && s.now().Unix() < e.ExpiresAt-s.minRemaining(ttl) {
			return e.URL, nil
		}
	case err != redis.Nil:
		// 缓存故障降级：Redis 挂了就退化为无缓存模式，直接查底层
		s.log.Warn("redis get failed, bypassing cache", zap.String("key", key), zap.Error(err))
	}

	// 2. 缓存未命中，走底层签名
	signed, err := s.backend.SignURL(ctx, loc, ttl)
	if err != nil {
		return "", err
	}
	if signed == "" {
		// 空 URL 不缓存，交给上层走降级逻辑
		return "", storage.ErrEmptySignedURL
	}

	// 3. 缓存回填
	hold := time.Duration(float64(ttl) * s.fraction)
	if hold > 0 {
		data, err := cbor.Marshal(entry{URL: signed, ExpiresAt: s.now().Add(ttl).Unix()})
		if err == nil {
			// 这里的 Set 错误可以忽略，不影响主流程
			s.client.Set(ctx, key, data, hold)
		}
	}

	return signed, nil
}

func (s *CachedSigner) minRemaining(ttl time.Duration) int64 {
	return int64((float64(ttl) * (1 - s.fraction)) / float64(time.Second))
}

// Invalidate 删除某个对象的全部缓存签名 (对象被替换或删除时调用)
func (s *CachedSigner) Invalidate(ctx context.Context, loc types.Location) error {
	pattern := fmt.Sprintf("mref:sig:*:%s:%s", globEscaper.Replace(loc.Bucket), globEscaper.Replace(loc.Path))
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// globEscaper 转义 Redis SCAN MATCH 的通配符
var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// Close 关闭 Redis 连接
func (s *CachedSigner) Close() error {
	return s.client.Close()
}
