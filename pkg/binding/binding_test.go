package binding

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mediaref/pkg/resolver"
	"mediaref/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedSigner 让测试精确控制每个对象的签名何时完成
type gatedSigner struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	calls int32
}

func newGatedSigner(paths ...string) *gatedSigner {
	g := &gatedSigner{gates: make(map[string]chan struct{})}
	for _, p := range paths {
		g.gates[p] = make(chan struct{})
	}
	return g
}

func (g *gatedSigner) SignURL(ctx context.Context, loc types.Location, _ time.Duration) (string, error) {
	atomic.AddInt32(&g.calls, 1)
	g.mu.Lock()
	gate := g.gates[loc.Path]
	g.mu.Unlock()
	if gate != nil {
		// 注意：故意不监听 ctx，模拟无法被硬取消的网络请求
		<-gate
	}
	return "signed-" + loc.Path, nil
}

func (g *gatedSigner) release(path string) { close(g.gates[path]) }

func (g *gatedSigner) Calls() int { return int(atomic.LoadInt32(&g.calls)) }

// changes 收集 OnChange 通知
type changes[T any] struct {
	mu   sync.Mutex
	seen []T
}

func (c *changes[T]) add(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, v)
}

func (c *changes[T]) all() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.seen...)
}

func TestURL_InitialAndEmpty(t *testing.T) {
	signer := newGatedSigner()
	b := NewURL(resolver.New(signer), nil)
	defer b.Close()

	assert.Equal(t, "", b.Value())

	b.Set("")
	assert.Equal(t, "", b.Value())
	assert.Equal(t, 0, signer.Calls())
}

func TestURL_ResolvesOnSet(t *testing.T) {
	signer := newGatedSigner()
	seen := &changes[string]{}
	b := NewURL(resolver.New(signer), seen.add)
	defer b.Close()

	b.Set("photos:a")
	b.Wait()
	assert.Equal(t, "signed-a", b.Value())

	// 相同引用不会重新触发
	b.Set("photos:a")
	b.Wait()
	assert.Equal(t, 1, signer.Calls())

	// 变为空引用：立即清空，不发请求
	b.Set("")
	assert.Equal(t, "", b.Value())
	assert.Equal(t, 1, signer.Calls())
	assert.Equal(t, []string{"signed-a", ""}, seen.all())

	// 不可解析的引用原样输出
	b.Set("https://cdn.example.com/a.png")
	b.Wait()
	assert.Equal(t, "https://cdn.example.com/a.png", b.Value())
}

func TestURL_LastRequestWins(t *testing.T) {
	// A 先发出但后完成，B 后发出先完成：最终输出必须是 B
	signer := newGatedSigner("a", "b")
	seen := &changes[string]{}
	b := NewURL(resolver.New(signer), seen.add)
	defer b.Close()

	b.Set("photos:a")
	b.Set("photos:b")
	require.Eventually(t, func() bool { return signer.Calls() == 2 }, time.Second, time.Millisecond)

	signer.release("b")
	require.Eventually(t, func() bool { return b.Value() == "signed-b" }, time.Second, time.Millisecond)

	signer.release("a")
	b.Wait()

	assert.Equal(t, "signed-b", b.Value())
	assert.Equal(t, []string{"signed-b"}, seen.all(), "过期的结果不能被提交")
}

func TestURL_EmptyAfterPendingDiscardsStale(t *testing.T) {
	signer := newGatedSigner("a")
	b := NewURL(resolver.New(signer), nil)
	defer b.Close()

	b.Set("photos:a")
	b.Set("")
	signer.release("a")
	b.Wait()

	assert.Equal(t, "", b.Value())
}

func TestURL_CloseBeforeCompletion(t *testing.T) {
	signer := newGatedSigner("a")
	seen := &changes[string]{}
	b := NewURL(resolver.New(signer), seen.add)

	b.Set("photos:a")
	require.Eventually(t, func() bool { return signer.Calls() == 1 }, time.Second, time.Millisecond)

	b.Close()
	signer.release("a")
	b.Wait()

	assert.Equal(t, "", b.Value(), "卸载后不能再有输出变化")
	assert.Empty(t, seen.all())

	// 卸载后的 Set 是 no-op
	b.Set("photos:c")
	b.Wait()
	assert.Equal(t, "", b.Value())
	assert.Equal(t, 1, signer.Calls())
}

func TestURL_Fallback(t *testing.T) {
	b := NewURLWithFallback(resolver.New(newGatedSigner()), "placeholder.png", nil)
	defer b.Close()

	assert.Equal(t, "placeholder.png", b.Value())
	b.Set("photos:a")
	b.Wait()
	assert.Equal(t, "signed-a", b.Value())
	b.Set("")
	assert.Equal(t, "placeholder.png", b.Value())
}

func TestURLs_PreservesOrder(t *testing.T) {
	// b 先于 a 完成，输出仍然按输入顺序排列
	signer := newGatedSigner("a", "b")
	seen := &changes[[]string]{}
	b := NewURLs(resolver.New(signer), seen.add)
	defer b.Close()

	assert.Equal(t, []string{}, b.Value())

	b.Set([]string{"", "photos:a", "photos:b"})
	require.Eventually(t, func() bool { return signer.Calls() == 2 }, time.Second, time.Millisecond)

	signer.release("b")
	// 批次没有全部结束之前不能发布
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, []string{}, b.Value())

	signer.release("a")
	b.Wait()

	assert.Equal(t, []string{"", "signed-a", "signed-b"}, b.Value())
	assert.Equal(t, [][]string{{"", "signed-a", "signed-b"}}, seen.all())
}

func TestURLs_ValueEqualityDedup(t *testing.T) {
	signer := newGatedSigner()
	b := NewURLs(resolver.New(signer), nil)
	defer b.Close()

	refs := []string{"photos:a", "photos:b"}
	b.Set(refs)
	b.Wait()
	assert.Equal(t, 2, signer.Calls())

	// 新的切片实例、相同的内容：不重新解析
	b.Set([]string{"photos:a", "photos:b"})
	b.Wait()
	assert.Equal(t, 2, signer.Calls())

	// 调用方修改原切片不影响已提交的结果
	refs[0] = "photos:z"
	assert.Equal(t, []string{"signed-a", "signed-b"}, b.Value())

	// 顺序变化是内容变化
	b.Set([]string{"photos:b", "photos:a"})
	b.Wait()
	assert.Equal(t, 4, signer.Calls())
	assert.Equal(t, []string{"signed-b", "signed-a"}, b.Value())
}

func TestURLs_SupersededBatchDiscarded(t *testing.T) {
	signer := newGatedSigner("slow")
	b := NewURLs(resolver.New(signer), nil)
	defer b.Close()

	b.Set([]string{"photos:slow"})
	b.Set([]string{"photos:fast", "photos:fast2"})
	require.Eventually(t, func() bool {
		v := b.Value()
		return len(v) == 2
	}, time.Second, time.Millisecond)

	signer.release("slow")
	b.Wait()
	assert.Equal(t, []string{"signed-fast", "signed-fast2"}, b.Value())
}

func TestURLs_OnChangeReceivesCopy(t *testing.T) {
	signer := newGatedSigner()
	b := NewURLs(resolver.New(signer), func(urls []string) {
		// 回调方就地修改收到的切片
		for i := range urls {
			urls[i] = "mutated"
		}
	})
	defer b.Close()

	b.Set([]string{"photos:a", ""})
	b.Wait()
	assert.Equal(t, []string{"signed-a", ""}, b.Value())
}

func TestURLs_AllEmpty(t *testing.T) {
	signer := newGatedSigner()
	b := NewURLs(resolver.New(signer), nil)
	defer b.Close()

	b.Set([]string{"", ""})
	assert.Equal(t, []string{"", ""}, b.Value())
	assert.Equal(t, 0, signer.Calls())
}

func TestURLs_CloseBeforeCompletion(t *testing.T) {
	signer := newGatedSigner("a")
	seen := &changes[[]string]{}
	b := NewURLs(resolver.New(signer), seen.add)

	b.Set([]string{"photos:a"})
	require.Eventually(t, func() bool { return signer.Calls() == 1 }, time.Second, time.Millisecond)
	b.Close()
	signer.release("a")
	b.Wait()

	assert.Equal(t, []string{}, b.Value())
	assert.Empty(t, seen.all())
}

func TestTracker_CancelsPreviousContext(t *testing.T) {
	var canceled int32
	tr := NewTracker(Spec[int, int]{
		Resolve: func(ctx context.Context, in int) int {
			if in == 1 {
				<-ctx.Done()
				atomic.AddInt32(&canceled, 1)
				return -1
			}
			return in * 10
		},
	})
	defer tr.Close()

	tr.Set(1)
	tr.Set(2)
	tr.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&canceled), "上一次解析的 ctx 应该被取消")
	assert.Equal(t, 20, tr.Value())
}

func TestTracker_OnChangeMayCallBack(t *testing.T) {
	var tr *Tracker[int, int]
	var got []int
	tr = NewTracker(Spec[int, int]{
		Resolve:   func(_ context.Context, in int) int { return in },
		Immediate: func(in int) (int, bool) { return in, in < 0 },
		OnChange: func(v int) {
			got = append(got, v, tr.Value())
			if v == -1 {
				// 回调里再次 Set 不会死锁
				tr.Set(-2)
			}
		},
	})
	defer tr.Close()

	tr.Set(-1)
	assert.Equal(t, []int{-1, -1, -2, -2}, got)
}
