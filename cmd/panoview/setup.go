package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/lookaround-map/viewer/internal/config"
	"github.com/lookaround-map/viewer/internal/logging"
	intOtel "github.com/lookaround-map/viewer/internal/otel"
	"github.com/lookaround-map/viewer/internal/viewer"
)

// appEnv holds the logging and telemetry set up before any component.
type appEnv struct {
	SlogManager  *logging.SlogManager
	Logger       *slog.Logger
	OTelProvider *intOtel.Provider

	LogFilePath string
	logFile     *logging.SessionLog

	// view is read by the log view handler from any goroutine.
	view atomic.Pointer[viewer.Viewer]
}

// setupRuntime loads the config and sets up logging: a session log file in
// logsDir, optional Graylog and the OTel log bridge.
func setupRuntime(ctx context.Context) (*appEnv, error) {
	rt := &appEnv{SlogManager: logging.NewSlogManager()}

	// Log to stderr until the log file exists.
	rt.SlogManager.Setup(logging.Config{File: os.Stderr, Level: "info"})
	rt.Logger = rt.SlogManager.Logger()

	if err := config.Load(configDir); err != nil {
		rt.Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		rt.Logger.Info("Loaded config", "dir", configDir)
	}

	session, err := logging.OpenSessionLog(config.GetString("logsDir"), AppName, SessionStartTime)
	if err != nil {
		rt.Logger.Error("Failed to create/open log file!", "error", err)
	} else {
		rt.logFile = session
		rt.LogFilePath = session.Path
	}

	var otelWriter io.Writer
	if rt.logFile != nil {
		otelWriter = rt.logFile
	}
	otelCfg := config.GetOTelConfig()
	rt.OTelProvider, err = intOtel.New(ctx, otelCfg, otelWriter, rt.Logger)
	if err != nil {
		rt.Logger.Error("Failed to initialize OTel provider", "error", err)
		rt.OTelProvider = nil
	} else if otelCfg.Enabled {
		rt.Logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
	}

	logCfg := logging.Config{
		Level:       config.GetString("logLevel"),
		ServiceName: otelCfg.ServiceName,
		View: logging.ViewFunc(func() []slog.Attr {
			if v := rt.view.Load(); v != nil {
				return v.LogAttrs()
			}
			return nil
		}),
	}
	if otelWriter != nil {
		logCfg.File = otelWriter
	}
	if rt.OTelProvider != nil && rt.OTelProvider.Enabled() {
		logCfg.Provider = rt.OTelProvider.LoggerProvider()
	}
	if config.GetBool("graylog.enabled") {
		gw, err := logging.NewGraylogWriter(config.GetString("graylog.address"), AppName)
		if err != nil {
			rt.Logger.Warn("Failed to connect to Graylog", "error", err)
		} else {
			logCfg.Graylog = gw
		}
	}

	rt.SlogManager.Setup(logCfg)
	rt.Logger = rt.SlogManager.Logger()
	rt.Logger.Info("Logging to file", "path", rt.LogFilePath, "version", CurrentVersion, "build", BuildDate)
	return rt, nil
}

// Close flushes and shuts down logging and telemetry.
func (rt *appEnv) Close(ctx context.Context) {
	if rt.OTelProvider != nil {
		if err := rt.OTelProvider.Shutdown(ctx); err != nil {
			rt.Logger.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
	_ = rt.SlogManager.Flush(ctx)
	if rt.logFile != nil {
		_ = rt.logFile.Close()
	}
}
