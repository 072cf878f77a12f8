package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	ErrorsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobboard_errors_total",
			Help: "Total number of occurred errors.",
		},
		[]string{"type"},
	)
	TransitionsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobboard_transitions_total",
			Help: "Status transition requests by entity kind and outcome.",
		},
		[]string{"kind", "result"},
	)
	NotificationsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobboard_notifications_total",
			Help: "Notification delivery attempts by template and outcome.",
		},
		[]string{"template", "status"},
	)
	SendDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "jobboard_notification_send_duration_seconds",
			Help:       "Duration of a single notification send attempt.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"transport"},
	)
	DispatchQueueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobboard_dispatch_queue_length",
			Help: "Transition events waiting for notification dispatch.",
		},
	)
	ExpiredJobsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jobboard_jobs_expired_total",
			Help: "Total number of jobs moved to expired by the scheduler.",
		},
	)
)

func StartMetricsServer(addr string) {

	prometheus.MustRegister(ErrorsCounter)
	prometheus.MustRegister(TransitionsCounter)
	prometheus.MustRegister(NotificationsCounter)
	prometheus.MustRegister(SendDuration)
	prometheus.MustRegister(DispatchQueueLength)
	prometheus.MustRegister(ExpiredJobsCounter)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Fatal(http.ListenAndServe(addr, mux))
	}()
}
