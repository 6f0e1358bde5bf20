package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	compilePrograms = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "netbench",
			Subsystem: "compile",
			Name:      "programs_total",
			Help:      "Instruction streams compiled.",
		},
	)
	compileWords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "netbench",
			Subsystem: "compile",
			Name:      "words_total",
			Help:      "Instruction words emitted across all streams.",
		},
	)
	compileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "netbench",
			Subsystem: "compile",
			Name:      "duration_seconds",
			Help:      "Per-core compile duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netbench",
			Subsystem: "run",
			Name:      "total",
			Help:      "Experiment runs by outcome.",
		},
		[]string{"outcome"},
	)
	runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "netbench",
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "End-to-end run duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)
	faultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netbench",
			Subsystem: "decode",
			Name:      "faults_total",
			Help:      "Fault flags decoded from result buffers.",
		},
		[]string{"flag"},
	)
	decodeBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "netbench",
			Subsystem: "decode",
			Name:      "bytes_total",
			Help:      "Result-buffer bytes decoded.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			compilePrograms, compileWords, compileDuration,
			runsTotal, runDuration,
			faultsTotal, decodeBytes,
		)
	})
}

func RecordCompile(words int, duration time.Duration) {
	RegisterMetrics()
	compilePrograms.Inc()
	compileWords.Add(float64(words))
	compileDuration.Observe(duration.Seconds())
}

func RecordRun(outcome string, duration time.Duration) {
	RegisterMetrics()
	runsTotal.WithLabelValues(outcome).Inc()
	runDuration.Observe(duration.Seconds())
}

func RecordFault(flag string) {
	RegisterMetrics()
	faultsTotal.WithLabelValues(flag).Inc()
}

func RecordDecode(bytes int) {
	RegisterMetrics()
	decodeBytes.Add(float64(bytes))
}
