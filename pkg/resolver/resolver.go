// Package resolver 把存储引用解析成可以直接访问的 URL。
//
// 解析永远不会返回 error：无法解析的引用原样返回，签名失败时降级为原引用。
// 展示媒体的一端总能拿到"某个"可渲染的字符串，宁可过期也不要报错。
package resolver

import (
	"context"
	"fmt"
	"time"

	"mediaref/pkg/refcodec"
	"mediaref/pkg/storage"
	"mediaref/pkg/types"

	"golang.org/x/sync/errgroup"
)

// DefaultTTL 是签名 URL 的默认有效期
const DefaultTTL = 3600 * time.Second

// Resolver 持有注入的签名后端，本身无状态，可被多个 goroutine 共享
type Resolver struct {
	signer   storage.Signer
	ttl      time.Duration
	timeout  time.Duration // 单次签名调用的超时，0 表示不设超时
	limit    int           // 批量解析的并发上限，0 表示不限
	observer Observer
}

type Option func(*Resolver)

// WithTTL 修改默认有效期
func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithSignTimeout 为每次签名调用设置超时
// 超时按签名失败处理 (降级为原引用)
func WithSignTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// WithMaxConcurrency 限制 ResolveAll 同时在途的签名请求数
func WithMaxConcurrency(n int) Option {
	return func(r *Resolver) { r.limit = n }
}

// WithObserver 注册观测钩子 (日志、指标)
func WithObserver(obs Observer) Option {
	return func(r *Resolver) {
		if obs != nil {
			r.observer = obs
		}
	}
}

// New 创建 Resolver。signer 是唯一的外部依赖，由调用方注入。
func New(signer storage.Signer, opts ...Option) *Resolver {
	r := &Resolver{
		signer:   signer,
		ttl:      DefaultTTL,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TTL 返回默认有效期
func (r *Resolver) TTL() time.Duration { return r.ttl }

// Resolve 使用默认有效期解析单个引用
func (r *Resolver) Resolve(ctx context.Context, ref string) string {
	return r.ResolveTTL(ctx, ref, r.ttl)
}

// ResolveOr 在引用为空时返回 fallback，其余行为与 Resolve 相同
func (r *Resolver) ResolveOr(ctx context.Context, ref, fallback string) string {
	if ref == "" {
		return fallback
	}
	return r.Resolve(ctx, ref)
}

// ResolveTTL 解析单个引用
//   - 空引用 -> ""，不发请求
//   - 无法解码 -> 原样返回，不发请求
//   - 解码成功 -> 请求一次签名；成功返回签名 URL，失败返回原引用
func (r *Resolver) ResolveTTL(ctx context.Context, ref string, ttl time.Duration) string {
	if ref == "" {
		r.observer.Observe(Event{Outcome: OutcomeEmpty})
		return ""
	}

	loc, ok := refcodec.Decode(ref)
	if !ok {
		r.observer.Observe(Event{Ref: ref, Outcome: OutcomePassThrough})
		return ref
	}

	start := time.Now()
	signed, err := r.sign(ctx, loc, ttl)
	ev := Event{Ref: ref, Location: loc, Duration: time.Since(start)}

	switch {
	case err == nil:
		ev.Outcome = OutcomeSigned
		r.observer.Observe(ev)
		return signed
	case ctx.Err() != nil:
		// 调用方已经不要这个结果了 (绑定被替换或卸载)
		ev.Outcome, ev.Err = OutcomeCanceled, err
	default:
		ev.Outcome, ev.Err = OutcomeFallback, err
	}
	r.observer.Observe(ev)
	return ref
}

// sign 包一层超时与 panic 保护，保证任何后端异常都变成 error
func (r *Resolver) sign(ctx context.Context, loc types.Location, ttl time.Duration) (signed string, err error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			signed, err = "", fmt.Errorf("signer panicked: %v", p)
		}
	}()

	signed, err = r.signer.SignURL(ctx, loc, ttl)
	if err != nil {
		return "", err
	}
	if signed == "" {
		return "", storage.ErrEmptySignedURL
	}
	return signed, nil
}

// ResolveAll 并发解析一组引用，结果与输入一一对应 (顺序、长度均不变)
// 所有条目都结束后才返回
func (r *Resolver) ResolveAll(ctx context.Context, refs []string) []string {
	return r.ResolveAllTTL(ctx, refs, r.ttl)
}

// ResolveAllTTL 同 ResolveAll，但使用指定的有效期
func (r *Resolver) ResolveAllTTL(ctx context.Context, refs []string, ttl time.Duration) []string {
	out := make([]string, len(refs))

	var g errgroup.Group
	if r.limit > 0 {
		g.SetLimit(r.limit)
	}
	for i, ref := range refs {
		if ref == "" {
			// 空条目直接是 ""，不占用并发名额
			continue
		}
		i, ref := i, ref
		g.Go(func() error {
			out[i] = r.ResolveTTL(ctx, ref, ttl)
			return nil
		})
	}
	// ResolveTTL 从不返回错误，Wait 只用来等待
	_ = g.Wait()

	return out
}
