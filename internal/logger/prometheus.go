package logger

import (
	"github.com/maxaizer/jobboard-core/internal/metrics"
	log "github.com/sirupsen/logrus"
)

var knownErrorTypes = map[string]bool{
	ErrorTypeDb:       true,
	ErrorTypeMail:     true,
	ErrorTypeTgApi:    true,
	ErrorTypeDispatch: true,
}

// prometheusHook counts logged errors by their error_type field so that
// failing collaborators show up on dashboards.
type prometheusHook struct{}

func (h *prometheusHook) Fire(entry *log.Entry) error {
	metrics.ErrorsCounter.WithLabelValues(errorTypeLabel(entry)).Inc()
	return nil
}

func (h *prometheusHook) Levels() []log.Level {
	return []log.Level{
		log.ErrorLevel,
		log.FatalLevel,
		log.PanicLevel,
	}
}

// errorTypeLabel keeps label cardinality bounded.
func errorTypeLabel(entry *log.Entry) string {
	errorType, ok := entry.Data[ErrorTypeField].(string)
	switch {
	case !ok:
		return "unknown"
	case knownErrorTypes[errorType]:
		return errorType
	default:
		return "other"
	}
}

func addPrometheusHook() {
	log.AddHook(&prometheusHook{})
	log.Info("Prometheus logging enabled")
}
