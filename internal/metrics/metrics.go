package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VerdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judge_verdicts_total",
			Help: "Total number of judged submissions by final verdict",
		},
		[]string{"language", "status"},
	)

	SandboxDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "judge_sandbox_duration_ms",
			Help:    "Wall clock duration of a single sandboxed invocation in milliseconds",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"language", "phase"}, // phase: "compile", "run"
	)

	JudgmentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "judge_judgment_duration_ms",
			Help:    "Duration of a complete judgment including every test case in milliseconds",
			Buckets: []float64{250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000},
		},
		[]string{"language"},
	)

	PeakMemory = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "judge_peak_memory_kb",
			Help:    "Peak memory usage per judged submission in KB",
			Buckets: []float64{1024, 4096, 16384, 65536, 131072, 262144, 524288, 1048576},
		},
		[]string{"language"},
	)

	ActiveJudgments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "judge_active_judgments",
			Help: "Number of submissions currently being judged",
		},
	)

	SandboxFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judge_sandbox_failures_total",
			Help: "Total number of sandbox provisioning or supervision failures",
		},
		[]string{"phase"},
	)

	QueueMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judge_queue_messages_total",
			Help: "Total number of queue messages handled by result",
		},
		[]string{"transport", "result"}, // result: "judged", "rejected", "requeued"
	)
)
