package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(intakeAdmitted, intakeRejected, intakeQueueDepth) }

var (
	intakeAdmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "intake_admitted_total",
		Help: "Raw videos admitted into the job queue.",
	})

	intakeRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_rejected_total",
			Help: "Candidates dropped by the admission rule, by reason.",
		},
		[]string{"reason"}, // unsupported|vanished|unstable|invalid|create
	)

	intakeQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "intake_queue_depth",
		Help: "Admissions waiting for the consumer.",
	})
)

func IncAdmitted() { intakeAdmitted.Inc() }

func IncRejected(reason string) { intakeRejected.WithLabelValues(norm(reason)).Inc() }

func SetQueueDepth(n int) { intakeQueueDepth.Set(float64(n)) }
