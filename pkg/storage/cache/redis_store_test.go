package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"mediaref/pkg/storage"
	"mediaref/pkg/types"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// SpySigner (间谍签名器)
// 用于统计底层方法被调用的次数，验证请求是否穿透了缓存
// -----------------------------------------------------------------------------
type SpySigner struct {
	signCount int32
	url       string
	err       error
}

func (s *SpySigner) SignURL(ctx context.Context, loc types.Location, ttl time.Duration) (string, error) {
	n := atomic.AddInt32(&s.signCount, 1)
	if s.err != nil {
		return "", s.err
	}
	if s.url == "" {
		return "", nil
	}
	return fmt.Sprintf("%s/%s?n=%d", s.url, loc.String(), n), nil
}

func TestCachedSigner_RedisDown(t *testing.T) {
	// 指向一个不可能有 Redis 的端口：所有缓存操作都会失败，但签名不能失败
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	spy := &SpySigner{url: "https://signed.example"}
	signer := NewWithClient(spy, client, 0.5, nil)
	loc := types.Location{Bucket: "photos", Path: "u1/a.png"}

	got, err := signer.SignURL(context.Background(), loc, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/photos/u1/a.png?n=1", got)

	got, err = signer.SignURL(context.Background(), loc, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/photos/u1/a.png?n=2", got, "没有缓存时每次都应穿透")
}

func TestCachedSigner_BackendErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	loc := types.Location{Bucket: "photos", Path: "u1/a.png"}

	boom := errors.New("boom")
	_, err := NewWithClient(&SpySigner{err: boom}, client, 0.5, nil).SignURL(context.Background(), loc, time.Hour)
	assert.ErrorIs(t, err, boom)

	_, err = NewWithClient(&SpySigner{}, client, 0.5, nil).SignURL(context.Background(), loc, time.Hour)
	assert.ErrorIs(t, err, storage.ErrEmptySignedURL)
}

func TestCachedSigner_Integration(t *testing.T) {
	// A. 环境检查: 确保 Redis 在运行
	redisAddr := "localhost:6379"
	conn, err := net.DialTimeout("tcp", redisAddr, 1*time.Second)
	if err != nil {
		t.Skipf("Skipping Redis integration test: %v", err)
	}
	conn.Close()

	// B. 初始化
	ctx := context.Background()
	spy := &SpySigner{url: "https://signed.example"}
	signer, err := NewCachedSigner(spy, Config{RedisURL: fmt.Sprintf("redis://%s/0", redisAddr)})
	require.NoError(t, err)
	defer signer.Close()

	loc := types.Location{Bucket: "photos", Path: "it/[x]*.png"}
	require.NoError(t, signer.Invalidate(ctx, loc))

	// --- Step 1: Cache Miss ---
	first, err := signer.SignURL(ctx, loc, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&spy.signCount), "Backend should be called on miss")

	// --- Step 2: Cache Hit ---
	second, err := signer.SignURL(ctx, loc, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&spy.signCount), "Backend should NOT be called on hit")

	// --- Step 3: 不同 TTL 不共享缓存 ---
	_, err = signer.SignURL(ctx, loc, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&spy.signCount))

	// --- Step 4: Invalidate ---
	require.NoError(t, signer.Invalidate(ctx, loc))
	third, err := signer.SignURL(ctx, loc, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
	assert.Equal(t, int32(3), atomic.LoadInt32(&spy.signCount))
}
