package binding

import (
	"context"
	"encoding/json"
	"slices"
)

// Resolver 是绑定层需要的解析能力 (*resolver.Resolver 满足该接口)
type Resolver interface {
	Resolve(ctx context.Context, ref string) string
	ResolveAll(ctx context.Context, refs []string) []string
}

// URL 绑定单个存储引用，输出其最新的可访问 URL (初始为 "")
type URL struct {
	t *Tracker[string, string]
}

// NewURL 创建单引用绑定。onChange 可以为 nil。
func NewURL(r Resolver, onChange func(string)) *URL {
	return NewURLWithFallback(r, "", onChange)
}

// NewURLWithFallback 在引用为空时输出 fallback (例如占位图)
func NewURLWithFallback(r Resolver, fallback string, onChange func(string)) *URL {
	return &URL{t: NewTracker(Spec[string, string]{
		Resolve: r.Resolve,
		Key:     func(ref string) string { return ref },
		Immediate: func(ref string) (string, bool) {
			if ref == "" {
				return fallback, true
			}
			return "", false
		},
		Initial:  fallback,
		OnChange: onChange,
	})}
}

// Set 更新绑定的引用；与当前引用相同则不做任何事
func (b *URL) Set(ref string) { b.t.Set(ref) }

// Value 返回最近一次提交的 URL
func (b *URL) Value() string { return b.t.Value() }

// Close 卸载绑定
func (b *URL) Close() { b.t.Close() }

// Wait 等待所有在途解析退出
func (b *URL) Wait() { b.t.Wait() }

// URLs 绑定一组存储引用，输出与输入顺序、长度一致的 URL 列表
type URLs struct {
	t *Tracker[[]string, []string]
}

// NewURLs 创建多引用绑定。onChange 可以为 nil。
func NewURLs(r Resolver, onChange func([]string)) *URLs {
	// 回调拿到的是副本，修改它不会影响 Value()
	var notify func([]string)
	if onChange != nil {
		notify = func(urls []string) { onChange(slices.Clone(urls)) }
	}
	return &URLs{t: NewTracker(Spec[[]string, []string]{
		Resolve: r.ResolveAll,
		// 按内容 (序列化后的值) 判定是否变化，而不是按切片地址
		Key: serializeRefs,
		Immediate: func(refs []string) ([]string, bool) {
			for _, ref := range refs {
				if ref != "" {
					return nil, false
				}
			}
			return make([]string, len(refs)), true
		},
		Initial:  []string{},
		OnChange: notify,
	})}
}

// Set 更新引用列表；内容没变则不重新解析
func (b *URLs) Set(refs []string) {
	// 拷贝一份，调用方之后修改自己的切片不影响在途解析
	b.t.Set(slices.Clone(refs))
}

// Value 返回最近一次提交的 URL 列表 (副本)
func (b *URLs) Value() []string { return slices.Clone(b.t.Value()) }

// Close 卸载绑定
func (b *URLs) Close() { b.t.Close() }

// Wait 等待所有在途解析退出
func (b *URLs) Wait() { b.t.Wait() }

func serializeRefs(refs []string) string {
	if refs == nil {
		refs = []string{}
	}
	data, _ := json.Marshal(refs)
	return string(data)
}
