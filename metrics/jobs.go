package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(jobsFinished, platformRenders, renderSeconds, subtitleSource) }

var (
	jobsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_finished_total",
			Help: "Jobs reaching a terminal status.",
		},
		[]string{"status"},
	)

	platformRenders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platform_renders_total",
			Help: "Per-platform render outcomes.",
		},
		[]string{"platform", "result"},
	)

	renderSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "render_duration_seconds",
			Help:    "Wall time spent rendering one platform variant.",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 80, 160, 320},
		},
		[]string{"platform"},
	)

	subtitleSource = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtitle_timing_source_total",
			Help: "Which timing source produced caption segments.",
		},
		[]string{"source"}, // aligner|text|placeholder
	)
)

func IncJobFinished(status string) { jobsFinished.WithLabelValues(norm(status)).Inc() }

func ObserveRender(platform string, ok bool, d time.Duration) {
	result := "done"
	if !ok {
		result = "failed"
	}
	platformRenders.WithLabelValues(norm(platform), result).Inc()
	renderSeconds.WithLabelValues(norm(platform)).Observe(d.Seconds())
}

func IncSubtitleSource(source string) { subtitleSource.WithLabelValues(norm(source)).Inc() }
