package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/onemorebsmith/psychcoins/src/api"
	"github.com/onemorebsmith/psychcoins/src/common"
	"github.com/onemorebsmith/psychcoins/src/reconciler"
	"github.com/onemorebsmith/psychcoins/src/wallet"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the view model and intents over http",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd)
	},
}

func init() {
	serveCmd.Flags().String("api", "", "address of the http api, default `:8080`")
	serveCmd.Flags().String("hcp", "", `(rarely used) if defined will expose a health check on /readyz, default ""`)
	serveCmd.Flags().Int("rps", 5, "per client rate limit on intent endpoints, 0 disables it")
	serveCmd.Flags().Int("burst", 10, "rate limit burst")
}

func serve(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// nobody is around to approve in server mode, the configured key signs
	a, err := buildApp(ctx, cmd, wallet.AutoApprove())
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	if cfg.PromPort != "" && cfg.PromPort != cfg.APIPort {
		common.StartPromServer(logger, cfg.PromPort)
	}
	if cfg.HealthCheckPort != "" {
		logger.Info("enabling health check on port " + cfg.HealthCheckPort)
		beginReadyzHandler(a, logger)
	}

	if err := a.engine.Refresh(ctx); err != nil {
		logger.Warn("initial refresh incomplete", zap.Error(err))
	}
	go logEvents(a.engine, logger)

	rps, _ := cmd.Flags().GetInt("rps")
	burst, _ := cmd.Flags().GetInt("burst")
	router := api.NewRouter(api.NewHandler(a.engine, a.registry, a.journal, logger), api.RouterOptions{
		RateLimitRPS:   rps,
		RateLimitBurst: burst,
		Ready:          a.ready,
	})
	srv := &http.Server{
		Addr:              cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		logger.Info("api listening on " + cfg.APIPort)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// logEvents mirrors reconciler events into the log until the engine closes
func logEvents(engine *reconciler.Reconciler, logger *zap.Logger) {
	events, cancel := engine.Subscribe()
	defer cancel()
	logger = logger.Named("events")
	for ev := range events {
		switch ev.Type {
		case reconciler.EventCelebrate:
			logger.Info("🎉 action completed", zap.String("action", string(ev.ActionId)), zap.Uint64("reward", ev.Reward))
		case reconciler.EventWriteFailed, reconciler.EventSwitchRequired:
			logger.Warn(string(ev.Type), zap.String("action", string(ev.ActionId)),
				zap.String("kind", string(ev.Kind)), zap.String("message", ev.Message))
		default:
			logger.Debug(string(ev.Type), zap.String("action", string(ev.ActionId)), zap.Int("stage", ev.Stage))
		}
	}
}

func beginReadyzHandler(a *app, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.ready(r.Context()); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(err.Error()))
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	go func() {
		if err := http.ListenAndServe(cfg.HealthCheckPort, mux); err != nil {
			logger.Error("health check server exited", zap.Error(err))
		}
	}()
}
