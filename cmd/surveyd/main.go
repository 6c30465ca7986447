package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/markus-lassfolk/wifisurvey/pkg/api"
	"github.com/markus-lassfolk/wifisurvey/pkg/config"
	"github.com/markus-lassfolk/wifisurvey/pkg/logx"
	"github.com/markus-lassfolk/wifisurvey/pkg/mqtt"
	"github.com/markus-lassfolk/wifisurvey/pkg/overlap"
	"github.com/markus-lassfolk/wifisurvey/pkg/pidfile"
	"github.com/markus-lassfolk/wifisurvey/pkg/plan"
	"github.com/markus-lassfolk/wifisurvey/pkg/scan"
	"github.com/markus-lassfolk/wifisurvey/pkg/session"
	"github.com/markus-lassfolk/wifisurvey/pkg/site"
)

var (
	configPath = flag.String("config", "/etc/wifisurvey/config.json", "Path to configuration file")
	logLevel   = flag.String("log-level", "", "Override log level (debug|info|warn|error|trace)")
	device     = flag.String("device", "", "Override wireless device to scan with")
	listenAddr = flag.String("listen", "", "Override API listen address")
	version    = flag.Bool("version", false, "Show version information")
)

const (
	appName    = "surveyd"
	appVersion = "1.0.0"
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("%s %s\n", appName, appVersion)
		os.Exit(0)
	}

	logger := logx.NewLogger("info", appName)

	cfg, err := config.LoadConfig(*configPath, logger)
	if err != nil {
		// ConfigError is fatal at startup: recommendations are
		// meaningless without a valid candidate channel list
		logger.Error("Failed to load configuration", "path", *configPath, "error", err)
		os.Exit(1)
	}

	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *device != "" {
		cfg.Device = *device
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	logger.SetLevel(cfg.LogLevel)

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logger.Error("Failed to open log file", "path", cfg.LogFile, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		logger.SetOutput(f)
	}

	logger.Info("Starting surveyd",
		"version", appVersion,
		"device", cfg.Device,
		"region", cfg.Region,
		"listen", cfg.ListenAddr)

	candidates, err := cfg.CandidateChannels()
	if err != nil {
		logger.Error("Invalid candidate channel configuration", "error", err)
		os.Exit(1)
	}

	if cfg.PIDFilePath != "" {
		pf := pidfile.New(cfg.PIDFilePath)
		if err := pf.Create(); err != nil {
			logger.Error("Failed to create PID file", "path", cfg.PIDFilePath, "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := pf.Remove(); err != nil {
				logger.Warn("Failed to remove PID file", "path", pf.Path(), "error", err)
			}
		}()
	}

	store, err := session.OpenStore(cfg.SessionDBPath, logger.With("component", "session"))
	if err != nil {
		logger.Error("Failed to open session store", "path", cfg.SessionDBPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	var scanner scan.Scanner
	switch cfg.ScanBackend {
	case "iwinfo":
		scanner = scan.NewIwinfoScanner(cfg.Device, logger.With("component", "scanner"))
	default:
		scanner = scan.NewUbusScanner(cfg.Device, logger.With("component", "scanner"))
	}

	aggregator := site.NewAggregator(logger.With("component", "site"))
	analyzer := overlap.NewAnalyzer(cfg.ContentionThresholdDBm, logger.With("component", "overlap"))
	engine := plan.NewEngine(analyzer, candidates, cfg.MinImprovement, logger.With("component", "plan"))

	publisher := mqtt.NewClient(&mqtt.Config{
		Broker:      cfg.MQTT.Broker,
		Port:        cfg.MQTT.Port,
		ClientID:    cfg.MQTT.ClientID,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		QoS:         cfg.MQTT.QoS,
		Enabled:     cfg.MQTT.Enabled,
	}, logger.With("component", "mqtt"))
	if err := publisher.Connect(); err != nil {
		// Event publishing is best-effort; the survey still works
		logger.Warn("MQTT publisher unavailable", "error", err)
	}
	defer publisher.Close()

	server := api.NewServer(cfg, aggregator, analyzer, engine, scanner, store, publisher, logger.With("component", "api"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Error("API server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("surveyd stopped")
}
