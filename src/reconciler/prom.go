package reconciler

import (
	"time"

	"github.com/onemorebsmith/psychcoins/src/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeWritten  = "written"
	outcomeLocal    = "local"
	outcomeSkipped  = "skipped"
	outcomeSwitch   = "switch_required"
	outcomeFailed   = "failed"
	outcomeRejected = "unknown_action"
	outcomeStale    = "stale"
)

var toggleCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "psychcoins_toggles_total",
	Help: "Toggle intents by outcome",
}, []string{"outcome"})

var writeCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "psychcoins_ledger_writes_total",
	Help: "Ledger writes by kind and result",
}, []string{"kind", "result"})

var writeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "psychcoins_ledger_write_seconds",
	Help:    "Time from submission to confirmation of ledger writes",
	Buckets: []float64{0.5, 1, 2, 4, 8, 15, 30, 60, 120},
}, []string{"kind"})

var staleCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "psychcoins_stale_results_total",
	Help: "Async results discarded because the stage changed",
})

func RecordToggle(outcome string) {
	toggleCounter.WithLabelValues(outcome).Inc()
}

func RecordWrite(kind model.WriteKind, err error, elapsed time.Duration) {
	result := "confirmed"
	if err != nil {
		result = string(model.KindOf(err))
	}
	writeCounter.WithLabelValues(string(kind), result).Inc()
	writeLatency.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

func RecordStale() {
	staleCounter.Inc()
}
