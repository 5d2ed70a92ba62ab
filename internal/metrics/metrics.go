package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "loto_bot"

var (
	// Registry 应用指标注册表
	Registry = prometheus.NewRegistry()

	drawsImported = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "draws",
			Name:      "imported_total",
			Help:      "Total number of new draws stored.",
		},
	)

	feedErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "errors_total",
			Help:      "Total number of failed feed polls.",
		},
	)

	predictionsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "predictions",
			Name:      "generated_total",
			Help:      "Total number of generated predictions by method.",
		},
		[]string{"method"},
	)

	analysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "Duration of prediction generation and performance analysis.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation"},
	)

	botCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "commands_total",
			Help:      "Total number of handled bot commands.",
		},
		[]string{"command"},
	)

	broadcasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "broadcast_messages_total",
			Help:      "Total number of broadcast messages by outcome.",
		},
		[]string{"status"},
	)
)

func init() {
	Registry.MustRegister(
		drawsImported,
		feedErrors,
		predictionsGenerated,
		analysisDuration,
		botCommands,
		broadcasts,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler 暴露已注册指标的HTTP处理器
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordDrawsImported 记录新入库的开奖期数
func RecordDrawsImported(count int) {
	if count > 0 {
		drawsImported.Add(float64(count))
	}
}

// RecordFeedError 记录一次数据源拉取失败
func RecordFeedError() {
	feedErrors.Inc()
}

// RecordPrediction 记录一次预测生成
func RecordPrediction(method string) {
	predictionsGenerated.WithLabelValues(method).Inc()
}

// ObserveAnalysis 记录分析耗时
func ObserveAnalysis(operation string, duration time.Duration) {
	analysisDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCommand 记录一次机器人命令
func RecordCommand(command string) {
	botCommands.WithLabelValues(command).Inc()
}

// RecordBroadcast 记录一次推送结果
func RecordBroadcast(success bool) {
	status := "failed"
	if success {
		status = "sent"
	}
	broadcasts.WithLabelValues(status).Inc()
}
