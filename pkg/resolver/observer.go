package resolver

import (
	"time"

	"mediaref/pkg/types"

	"go.uber.org/zap"
)

// Outcome 描述一次解析的结果类型
type Outcome int

const (
	OutcomeEmpty       Outcome = iota // 空引用
	OutcomePassThrough                // 无法解码，原样返回
	OutcomeSigned                     // 签名成功
	OutcomeFallback                   // 签名失败，降级为原引用
	OutcomeCanceled                   // 调用方已取消
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEmpty:
		return "empty"
	case OutcomePassThrough:
		return "passthrough"
	case OutcomeSigned:
		return "signed"
	case OutcomeFallback:
		return "fallback"
	case OutcomeCanceled:
		return "canceled"
	}
	return "unknown"
}

// Event 是每次解析后交给观测钩子的记录
type Event struct {
	Ref      string
	Location types.Location
	Outcome  Outcome
	Err      error
	Duration time.Duration // 仅在发起了签名请求时有值
}

// Observer 是结构化的观测钩子，替代直接打印到控制台
// Observe 会在解析所在的 goroutine 里同步调用，实现必须是并发安全的且不能阻塞
type Observer interface {
	Observe(Event)
}

// ObserverFunc 让普通函数也能当作 Observer
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

type nopObserver struct{}

func (nopObserver) Observe(Event) {}

type multiObserver []Observer

func (m multiObserver) Observe(e Event) {
	for _, o := range m {
		o.Observe(e)
	}
}

// Multi 把多个 Observer 组合成一个
func Multi(obs ...Observer) Observer {
	var list multiObserver
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	return list
}

// LogObserver 把签名失败写到 zap 日志里，其余结果只在 Debug 级别输出
func LogObserver(log *zap.Logger) Observer {
	return ObserverFunc(func(e Event) {
		switch e.Outcome {
		case OutcomeFallback:
			log.Error("failed to get signed url",
				zap.String("bucket", e.Location.Bucket),
				zap.String("path", e.Location.Path),
				zap.Duration("dur", e.Duration),
				zap.Error(e.Err),
			)
		case OutcomeSigned, OutcomeCanceled:
			log.Debug("resolve",
				zap.Stringer("outcome", e.Outcome),
				zap.String("bucket", e.Location.Bucket),
				zap.Duration("dur", e.Duration),
			)
		}
	})
}
