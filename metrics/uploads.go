package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(uploadDecisions, uploadResults, uploadStoreErrors) }

var (
	uploadDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upload_decisions_total",
			Help: "Scheduler decisions by platform and outcome.",
		},
		[]string{"platform", "decision"}, // allowed|daily_limit|interval
	)

	uploadResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upload_results_total",
			Help: "Publisher outcomes by platform.",
		},
		[]string{"platform", "status"},
	)

	uploadStoreErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "upload_store_read_errors_total",
		Help: "Upload history reads that failed and degraded to allow.",
	})
)

func IncUploadDecision(platform, decision string) {
	uploadDecisions.WithLabelValues(norm(platform), norm(decision)).Inc()
}

func IncUploadResult(platform, status string) {
	uploadResults.WithLabelValues(norm(platform), norm(status)).Inc()
}

func IncUploadStoreError() { uploadStoreErrors.Inc() }
