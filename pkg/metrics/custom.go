package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	CycleTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tickpump",
			Name:      "cycles_total",
			Help:      "Total number of pump cycles, partitioned by result.",
		},
		[]string{"symbol", "result"}, // result: ok/error
	)

	PipelineErrorTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tickpump",
			Name:      "pipeline_errors_total",
			Help:      "Total number of pipeline errors, partitioned by stage.",
		},
		[]string{"symbol", "stage"},
	)

	SkippedTickTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tickpump",
			Name:      "skipped_ticks_total",
			Help:      "Ticks dropped because the previous cycle was still in flight.",
		},
		[]string{"symbol"},
	)

	LastPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tickpump",
			Name:      "last_price",
			Help:      "Last recorded price.",
		},
		[]string{"symbol"},
	)

	SinkRejectTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tickpump",
			Name:      "sink_rejected_total",
			Help:      "Sink writes rejected by an open circuit breaker.",
		},
		[]string{"sink"},
	)

	CycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tickpump",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full fetch-convert-write-record cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms -> ~8s
		},
		[]string{"symbol"},
	)
)

var registerOnce sync.Once

// MustRegister 注册到默认 registry，多次调用只生效一次
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(CycleTotal, PipelineErrorTotal, SkippedTickTotal, LastPrice, SinkRejectTotal, CycleDuration)
	})
}

func ObserveCycle(symbol string, seconds float64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	CycleTotal.WithLabelValues(symbol, result).Inc()
	CycleDuration.WithLabelValues(symbol).Observe(seconds)
}

func OnPipelineError(symbol, stage string) {
	PipelineErrorTotal.WithLabelValues(symbol, stage).Inc()
}

func OnSkip(symbol string) {
	SkippedTickTotal.WithLabelValues(symbol).Inc()
}

func SetLastPrice(symbol string, price float64) {
	LastPrice.WithLabelValues(symbol).Set(price)
}

func OnSinkReject(sink string) {
	SinkRejectTotal.WithLabelValues(sink).Inc()
}
