// Package metrics 提供 Prometheus 指标采集功能
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "chaptered_writer"
)

var (
	// 生成服务调用指标
	GenerationCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "calls_total",
			Help:      "Total number of generation service calls",
		},
		[]string{"kind", "model", "status"},
	)

	GenerationCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "call_duration_seconds",
			Help:      "Generation service call duration in seconds",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"kind"},
	)

	// 章节批量生成指标
	ChapterResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chapters",
			Name:      "results_total",
			Help:      "Chapter bodies produced by batch runs, by outcome",
		},
		[]string{"status"},
	)

	ChapterBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chapters",
			Name:      "batches_total",
			Help:      "Chapter batch runs, by outcome",
		},
		[]string{"status"},
	)

	// 会话指标；会话不过期，只统计创建次数
	SessionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "created_total",
			Help:      "Writing sessions created since process start",
		},
	)
)

// Status labels shared by the counters above.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusCanceled = "canceled"
)

// RecordGeneration 记录一次生成服务调用
func RecordGeneration(kind, model string, err error, seconds float64) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	GenerationCallsTotal.WithLabelValues(kind, model, status).Inc()
	GenerationCallDuration.WithLabelValues(kind).Observe(seconds)
}
