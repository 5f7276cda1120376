package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LoaderMetrics 记录帧加载器的 Prometheus 指标。
//
// 所有方法都允许 nil 接收者：nil *LoaderMetrics 等价于关闭指标（零开销）。
// 指标统一使用 "framefeed_" 前缀，并带 sequence 标签以区分同一进程内的多个序列。
type LoaderMetrics struct {
	// Frames 按结局统计单帧加载次数。
	// Labels: sequence, result=[loaded, failed, timeout, discarded]
	Frames *prometheus.CounterVec

	// BatchDuration 统计单个批次（从发起到全部落定）的耗时。
	BatchDuration *prometheus.HistogramVec

	// Progress 是 |Frame Store| / N。
	Progress *prometheus.GaugeVec

	// Prioritized 统计 PrioritizeFrame 真正改变了队列顺序的次数。
	Prioritized *prometheus.CounterVec
}

// New 创建并注册加载器指标。
//
// registerer 为 nil 时使用 prometheus.DefaultRegisterer。
// 每次调用都创建新实例；同一 registerer 重复注册会返回错误（测试可传入独立的 prometheus.NewRegistry()）。
func New(registerer prometheus.Registerer) (*LoaderMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &LoaderMetrics{
		Frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "framefeed_frames_total",
				Help: "Total frame loads by result",
			},
			[]string{"sequence", "result"},
		),
		BatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "framefeed_batch_duration_seconds",
				Help:    "Frame batch duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 4},
			},
			[]string{"sequence"},
		),
		Progress: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "framefeed_load_progress_ratio",
				Help: "Loaded frames divided by frame count",
			},
			[]string{"sequence"},
		),
		Prioritized: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "framefeed_prioritized_total",
				Help: "Total pending frames moved to the front of the queue",
			},
			[]string{"sequence"},
		),
	}

	for _, c := range []prometheus.Collector{m.Frames, m.BatchDuration, m.Progress, m.Prioritized} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordFrame 记录一次单帧加载结局。
func (m *LoaderMetrics) RecordFrame(sequence, result string) {
	if m == nil {
		return
	}
	m.Frames.WithLabelValues(sequence, result).Inc()
}

// RecordBatch 记录一次批次耗时。
func (m *LoaderMetrics) RecordBatch(sequence string, d time.Duration) {
	if m == nil {
		return
	}
	m.BatchDuration.WithLabelValues(sequence).Observe(d.Seconds())
}

// SetProgress 更新加载进度。
func (m *LoaderMetrics) SetProgress(sequence string, p float64) {
	if m == nil {
		return
	}
	m.Progress.WithLabelValues(sequence).Set(p)
}

// RecordPrioritize 记录一次有效的插队。
func (m *LoaderMetrics) RecordPrioritize(sequence string) {
	if m == nil {
		return
	}
	m.Prioritized.WithLabelValues(sequence).Inc()
}
