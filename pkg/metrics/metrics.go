package metrics

import (
	"mediaref/pkg/resolver"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ResolverMetrics 记录解析结果与签名耗时，实现了 resolver.Observer
type ResolverMetrics struct {
	Resolutions  *prometheus.CounterVec
	SignDuration *prometheus.HistogramVec

	// buckets 是允许作为标签值出现的 Bucket，其余一律记为 OtherBucket
	buckets map[string]struct{}
}

// OtherBucket 是未知 Bucket 的标签值。引用来自外部输入，不能直接作为标签。
const OtherBucket = "other"

// NewResolverMetrics 创建并注册解析相关指标
// reg 为 nil 时注册到默认 Registry；knownBuckets 之外的 Bucket 合并为 "other"
func NewResolverMetrics(reg prometheus.Registerer, knownBuckets ...string) *ResolverMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	known := make(map[string]struct{}, len(knownBuckets))
	for _, b := range knownBuckets {
		known[b] = struct{}{}
	}

	return &ResolverMetrics{
		buckets: known,
		Resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mediaref",
				Name:      "resolutions_total",
				Help:      "Total stored reference resolutions by outcome",
			},
			[]string{"outcome"},
		),
		SignDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mediaref",
				Name:      "sign_duration_seconds",
				Help:      "Signing backend latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"bucket", "outcome"},
		),
	}
}

// Observe 实现 resolver.Observer
func (m *ResolverMetrics) Observe(e resolver.Event) {
	outcome := e.Outcome.String()
	m.Resolutions.WithLabelValues(outcome).Inc()

	// 只有真正发起了签名请求的结果才有耗时
	switch e.Outcome {
	case resolver.OutcomeSigned, resolver.OutcomeFallback, resolver.OutcomeCanceled:
		m.SignDuration.WithLabelValues(m.bucketLabel(e.Location.Bucket), outcome).Observe(e.Duration.Seconds())
	}
}

func (m *ResolverMetrics) bucketLabel(bucket string) string {
	if _, ok := m.buckets[bucket]; ok {
		return bucket
	}
	return OtherBucket
}
