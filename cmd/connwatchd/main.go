package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/nodewatch/rpcmanager/connmanager"
	"github.com/nodewatch/rpcmanager/metrics"
	"github.com/nodewatch/rpcmanager/params"
	"github.com/nodewatch/rpcmanager/rpcendpoint"
)

var (
	configPath  = flag.String("config", "", "Path to the JSON configuration file")
	metricsAddr = flag.String("metrics-addr", "", "Expose prometheus metrics on this address (e.g. :9090)")
	interval    = flag.Duration("interval", 0, "Periodic check interval (0 uses the configured default)")
	logLevel    = flag.String("log", "info", `Log level, one of: "debug", "info", "warn", "error"`)
)

// logObserver logs every current-endpoint change.
type logObserver struct {
	logger *zap.Logger
}

func (o logObserver) OnCurrentChanged(e rpcendpoint.Endpoint) error {
	if e == nil {
		o.logger.Info("disconnected from all endpoints")
		return nil
	}
	o.logger.Info("current endpoint changed",
		zap.String("address", e.Address()),
		zap.Int("priority", e.Priority()),
		zap.String("reachable", string(e.Reachable())))
	return nil
}

func main() {
	flag.Parse()

	logger, err := buildLogger(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	manager, err := connmanager.New(cfg,
		connmanager.WithLogger(logger.Named("connmanager")))
	if err != nil {
		logger.Fatal("failed to build connection manager", zap.Error(err))
	}
	if err := manager.AddObserver(logObserver{logger: logger}); err != nil {
		logger.Fatal("failed to register observer", zap.Error(err))
	}

	if *metricsAddr != "" {
		go func() {
			logger.Info("serving metrics", zap.String("addr", *metricsAddr))
			if err := metrics.StartMetricsServer(*metricsAddr); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	checkInterval := *interval
	if checkInterval == 0 {
		checkInterval = cfg.CheckInterval()
	}
	logger.Info("starting periodic endpoint checks",
		zap.Duration("interval", checkInterval),
		zap.Int("endpoints", len(cfg.Endpoints)),
		zap.Bool("auto_switch", cfg.AutoSwitch))
	manager.StartPeriodicChecks(checkInterval)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))

	manager.StopPeriodicChecks()
}

func buildLogger(level string) (*zap.Logger, error) {
	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = atomicLevel
	return cfg.Build()
}

func loadConfig(path string) (*params.Config, error) {
	if path == "" {
		return params.NewConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return params.LoadConfigFromJSON(string(data))
}
