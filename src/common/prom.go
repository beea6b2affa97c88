package common

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func StartPromServer(logger *zap.Logger, port string) {
	logger.Info("hosting prom stats on " + port + "/metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("prom server exited", zap.Error(err))
		}
	}()
}
