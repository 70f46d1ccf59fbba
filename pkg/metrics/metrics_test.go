package metrics

import (
	"fmt"
	"testing"
	"time"

	"mediaref/pkg/resolver"
	"mediaref/pkg/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewResolverMetrics(reg, "photos")

	loc := types.Location{Bucket: "photos", Path: "a.png"}
	m.Observe(resolver.Event{Outcome: resolver.OutcomeEmpty})
	m.Observe(resolver.Event{Outcome: resolver.OutcomePassThrough, Ref: "https://x"})
	m.Observe(resolver.Event{Outcome: resolver.OutcomeSigned, Location: loc, Duration: 20 * time.Millisecond})
	m.Observe(resolver.Event{Outcome: resolver.OutcomeSigned, Location: loc, Duration: 30 * time.Millisecond})
	m.Observe(resolver.Event{Outcome: resolver.OutcomeFallback, Location: loc, Duration: time.Second})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("passthrough")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("signed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("fallback")))

	// 没有签名请求的结果不进入耗时直方图
	assert.Equal(t, 2, testutil.CollectAndCount(m.SignDuration))
}

func TestResolverMetrics_UnknownBucketsCollapsed(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewResolverMetrics(reg, "photos", "videos")

	// 任意调用方都能构造引用，Bucket 不能无限制地变成新的时间序列
	for i := 0; i < 50; i++ {
		m.Observe(resolver.Event{
			Outcome:  resolver.OutcomeFallback,
			Location: types.Location{Bucket: fmt.Sprintf("random-%d", i), Path: "x"},
		})
	}
	m.Observe(resolver.Event{Outcome: resolver.OutcomeSigned, Location: types.Location{Bucket: "videos", Path: "v.mp4"}})

	assert.Equal(t, 2, testutil.CollectAndCount(m.SignDuration))
	assert.Equal(t, uint64(50), histogramCount(t, m, OtherBucket, "fallback"))
	assert.Equal(t, uint64(1), histogramCount(t, m, "videos", "signed"))
}

func histogramCount(t *testing.T, m *ResolverMetrics, bucket, outcome string) uint64 {
	t.Helper()
	h, err := m.SignDuration.GetMetricWithLabelValues(bucket, outcome)
	require.NoError(t, err)
	var pb dto.Metric
	require.NoError(t, h.(prometheus.Histogram).Write(&pb))
	return pb.GetHistogram().GetSampleCount()
}
