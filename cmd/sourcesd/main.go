// Command sourcesd is a small demonstration binary: it loads a JSONC
// config of source records, starts every enabled source, serves Prometheus
// metrics, and runs until interrupted.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/HyphaGroup/sourcehub/internal/config"
	"github.com/HyphaGroup/sourcehub/internal/history"
	"github.com/HyphaGroup/sourcehub/internal/logger"
	"github.com/HyphaGroup/sourcehub/internal/metrics"
	"github.com/HyphaGroup/sourcehub/internal/sources"
)

func main() {
	configDir := flag.String("config-dir", "", "directory containing sourcehub.jsonc")
	logDir := flag.String("log-dir", "data/logs", "directory for log files")
	dataDir := flag.String("data-dir", "data", "directory for the history database")
	metricsAddr := flag.String("metrics-addr", ":9090", "address to serve /metrics on")
	flag.Parse()

	if err := logger.Init(*logDir); err != nil {
		fmt.Fprintf(os.Stderr, "sourcesd: failed to init logger: %v\n", err)
		os.Exit(1)
	}
	if err := logger.InitSlog(*logDir, false); err != nil {
		logger.Error("sourcesd: failed to init structured logger: %v", err)
		os.Exit(1)
	}

	configPath, err := config.FindConfigPath(*configDir)
	if err != nil {
		logger.Error("sourcesd: %v", err)
		os.Exit(1)
	}
	sourceConfigs, err := config.LoadSourceConfigs(configPath)
	if err != nil {
		logger.Error("sourcesd: %v", err)
		os.Exit(1)
	}

	hist, err := history.NewStore(*dataDir)
	if err != nil {
		logger.Error("sourcesd: failed to open history store: %v", err)
		os.Exit(1)
	}
	defer hist.Close()

	manager := sources.NewManager(hist)
	for _, cfg := range sourceConfigs {
		manager.UpdateConfig(cfg)
	}
	manager.StartAllEnabled()

	housekeeper := sources.NewHousekeeper(manager)
	if err := housekeeper.Start(); err != nil {
		logger.Error("sourcesd: failed to start housekeeping: %v", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{Addr: *metricsAddr, Handler: mux}
	go func() {
		logger.Info("sourcesd: serving metrics on %s", *metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("sourcesd: metrics server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("sourcesd: shutting down")
	housekeeper.Stop()
	manager.StopAll()
	_ = metricsServer.Close()
}
