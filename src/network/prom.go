package network

import (
	"github.com/onemorebsmith/psychcoins/src/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var switchCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "psychcoins_network_switches_total",
	Help: "Chain switch attempts by result",
}, []string{"result"})

func RecordSwitch(err error) {
	result := "ok"
	if err != nil {
		result = string(model.KindOf(err))
	}
	switchCounter.WithLabelValues(result).Inc()
}
