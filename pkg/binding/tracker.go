// Package binding 让展示端持有的"当前 URL"与不断变化的存储引用保持同步。
//
// 核心是 Tracker：输入每变化一次，就取消上一次解析的 context、递增代数 (generation)，
// 然后异步执行新的解析。解析结果只有在代数仍然是最新、且绑定没有被关闭时才会提交。
// 所以结果按"最后一次请求为准"生效，而不是"先完成的为准"。
package binding

import (
	"context"
	"sync"
)

// Spec 描述一个 Tracker 的行为
type Spec[In, Out any] struct {
	// Resolve 执行真正的 (可能很慢的) 解析。ctx 在被新输入替代或 Close 时取消。
	Resolve func(ctx context.Context, in In) Out

	// Key 返回输入的值语义标识；与上一次相同则不重新触发。
	// 为 nil 时每次 Set 都会触发。
	Key func(in In) string

	// Immediate 对不需要异步解析的输入直接给出结果 (例如空引用)
	Immediate func(in In) (Out, bool)

	// Initial 是第一次提交之前的输出
	Initial Out

	// OnChange 在每次提交后被调用，调用顺序与提交顺序一致。
	// 回调执行时不持有内部锁，可以调用 Value / Set。
	OnChange func(Out)
}

// Tracker 是一个通用的响应式绑定原语
type Tracker[In, Out any] struct {
	spec Spec[In, Out]

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	lastKey string
	started bool
	closed  bool
	value   Out

	// 待通知队列：同一时间只有一个 goroutine 负责派发，保证 OnChange 按提交顺序调用
	queue    []Out
	draining bool

	pending sync.WaitGroup
}

// NewTracker 创建 Tracker，此时还没有任何输入
func NewTracker[In, Out any](spec Spec[In, Out]) *Tracker[In, Out] {
	return &Tracker[In, Out]{
		spec:  spec,
		value: spec.Initial,
	}
}

// Set 提交一个新输入 (包括首次挂载)
func (t *Tracker[In, Out]) Set(in In) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}

	// 1. 值相等判定：输入没变就什么都不做
	if t.spec.Key != nil {
		k := t.spec.Key(in)
		if t.started && k == t.lastKey {
			t.mu.Unlock()
			return
		}
		t.lastKey = k
	}
	t.started = true

	// 2. 作废上一次解析
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.gen++
	gen := t.gen

	// 3. 可以立即得出结果的输入，不发请求
	if t.spec.Immediate != nil {
		if out, ok := t.spec.Immediate(in); ok {
			t.commitLocked(out)
			return
		}
	}

	// 4. 异步解析
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.pending.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.pending.Done()
		defer cancel()

		out := t.spec.Resolve(ctx, in)

		t.mu.Lock()
		if t.closed || gen != t.gen {
			// 已被更新的输入取代，或绑定已卸载：丢弃结果
			t.mu.Unlock()
			return
		}
		t.cancel = nil
		t.commitLocked(out)
	}()
}

// commitLocked 写入输出并通知订阅方
// 调用时必须持有 t.mu，返回时已释放
func (t *Tracker[In, Out]) commitLocked(out Out) {
	t.value = out
	if t.spec.OnChange == nil {
		t.mu.Unlock()
		return
	}

	t.queue = append(t.queue, out)
	if t.draining {
		// 已经有 goroutine 在派发，交给它
		t.mu.Unlock()
		return
	}

	t.draining = true
	for len(t.queue) > 0 {
		next := t.queue[0]
		t.queue = t.queue[1:]
		t.mu.Unlock()
		t.spec.OnChange(next)
		t.mu.Lock()
	}
	t.draining = false
	t.mu.Unlock()
}

// Value 返回最近一次提交的输出
func (t *Tracker[In, Out]) Value() Out {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value
}

// Close 卸载绑定：在途的解析被取消，其结果不会再产生任何可观察的变化
func (t *Tracker[In, Out]) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Wait 阻塞直到所有已启动的解析 goroutine 退出
func (t *Tracker[In, Out]) Wait() {
	t.pending.Wait()
}
