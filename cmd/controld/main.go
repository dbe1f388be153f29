package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voltaic-sim/control-core/internal/controld"
	"github.com/voltaic-sim/control-core/internal/publish"
	"github.com/voltaic-sim/control-core/pkg/config"
	"github.com/voltaic-sim/control-core/pkg/logger"
	"github.com/voltaic-sim/control-core/pkg/models"
)

func main() {
	var configPath string
	var scenarioPath string
	var httpAddr string
	var logLevel string

	flag.StringVar(&configPath, "config", "", "controller config file (YAML); defaults apply when empty")
	flag.StringVar(&scenarioPath, "scenario", "", "scenario script file (YAML)")
	flag.StringVar(&httpAddr, "http-addr", ":8080", "HTTP listen address")
	flag.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides config")
	flag.Parse()

	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			logger.Error("failed to load config", "path", configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	logger.SetDefault(logger.NewText(logLevel, os.Stdout))

	var provider controld.ContextProvider
	if scenarioPath != "" {
		script, err := config.LoadScenario(scenarioPath)
		if err != nil {
			logger.Error("failed to load scenario", "path", scenarioPath, "error", err)
			os.Exit(1)
		}
		logger.Info("scenario loaded", "name", script.Name, "frames", len(script.Frames), "loop", script.Loop)
		provider = controld.NewScriptedProvider(script)
	} else {
		// no script: hold a benign steady-state scenario
		provider = &controld.StaticProvider{Scenario: defaultScenario()}
	}

	sink := publish.Fanout{
		publish.NewLogSink(logger.With("component", "publisher")),
		publish.NewMemorySink(cfg.Controller.HistoryRetention),
	}

	ctrl, err := controld.New(cfg, provider, sink)
	if err != nil {
		logger.Error("failed to build controller", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           controld.NewHTTPServer(ctrl).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("HTTP server listening", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	go func() {
		if err := ctrl.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("control loop error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
}

func defaultScenario() models.Scenario {
	return models.Scenario{
		Demand:          40,
		Tariff:          0.15,
		SolarAvailable:  18,
		GridReliability: 0.95,
		Forecast:        []float64{18, 18, 18},
	}
}
