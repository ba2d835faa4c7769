package main

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/xef5000/UltimateLogger/internal/config"
	"github.com/xef5000/UltimateLogger/logstore/engine"
	"github.com/xef5000/UltimateLogger/logstore/oteladapters"
	"github.com/xef5000/UltimateLogger/logstore/sqlengine"
)

const (
	logMsgConfigNotFound = "config file not found, using defaults"
	logMsgShutdownFailed = "shutdown step failed"
	logAttrPath          = "path"
	logAttrStep          = "step"
	logAttrError         = "error"
	serviceLoggerName    = "ultimatelogger"
)

// app is a wired engine with everything it owns.
type app struct {
	cfg        config.Config
	logger     *slog.Logger
	telemetry  *config.Telemetry
	engine     *engine.Engine
	closeStore config.CloseFunc
}

func loadConfig(path string, logger *slog.Logger) (config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, config.ErrConfigNotFound) {
		logger.Info(logMsgConfigNotFound, logAttrPath, path)
		return config.Default(), nil
	}

	return cfg, err
}

// bootstrap loads the configuration and builds the engine on the configured store.
// The engine is not started.
func bootstrap(ctx context.Context, configPath string, logOutput io.Writer) (*app, error) {
	logger := config.NewLogger(logOutput, "info", "console")

	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		return nil, err
	}

	telemetry, err := config.SetupTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return nil, err
	}

	if telemetry.ExportsLogs() {
		logger = oteladapters.NewSlogBridgeLogger(serviceLoggerName)
	} else {
		logger = config.NewLogger(logOutput, cfg.LogLevel, cfg.LogFormat)
	}

	storeOptions := []sqlengine.Option{sqlengine.WithLogger(logger)}
	engineOptions, err := cfg.EngineOptions()
	if err != nil {
		return nil, errors.Join(err, telemetry.Shutdown(ctx))
	}
	engineOptions = append(engineOptions, engine.WithLogger(logger))

	if telemetry.Enabled() {
		storeOptions = append(storeOptions,
			sqlengine.WithMetrics(telemetry.MetricsCollector),
			sqlengine.WithTracing(telemetry.TracingCollector),
		)
		engineOptions = append(engineOptions, engine.WithMetrics(telemetry.MetricsCollector))
	}

	store, closeStore, err := config.OpenStore(ctx, cfg.Database, storeOptions...)
	if err != nil {
		return nil, errors.Join(err, telemetry.Shutdown(ctx))
	}

	logEngine, err := engine.New(ctx, store, engineOptions...)
	if err != nil {
		closeStore()
		return nil, errors.Join(err, telemetry.Shutdown(ctx))
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		telemetry:  telemetry,
		engine:     logEngine,
		closeStore: closeStore,
	}, nil
}

// close drains the engine, then releases the store and flushes telemetry.
func (a *app) close(ctx context.Context) error {
	engineErr := a.engine.Shutdown(ctx)
	if engineErr != nil {
		a.logger.Error(logMsgShutdownFailed, logAttrStep, "engine", logAttrError, engineErr.Error())
	}

	a.closeStore()

	telemetryErr := a.telemetry.Shutdown(ctx)
	if telemetryErr != nil {
		a.logger.Error(logMsgShutdownFailed, logAttrStep, "telemetry", logAttrError, telemetryErr.Error())
	}

	return errors.Join(engineErr, telemetryErr)
}
