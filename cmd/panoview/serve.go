package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lookaround-map/viewer/internal/bridge"
	"github.com/lookaround-map/viewer/internal/config"
	"github.com/lookaround-map/viewer/internal/dispatcher"
	"github.com/lookaround-map/viewer/internal/influx"
	"github.com/lookaround-map/viewer/internal/monitor"
	"github.com/lookaround-map/viewer/internal/viewer"
	"github.com/lookaround-map/viewer/pkg/core"
)

var serveOpts struct {
	lat, lon float64
	at       bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to the host renderer and drive the panorama view",
	RunE: func(cmd *cobra.Command, _ []string) error {
		serveOpts.at = cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon")
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Float64Var(&serveOpts.lat, "lat", 0, "latitude to display on start")
	serveCmd.Flags().Float64Var(&serveOpts.lon, "lon", 0, "longitude to display on start")
}

// events fans viewer events out to the host and telemetry.
type events struct {
	viewer.Events
	recorder *influx.Recorder
}

func (e events) Navigated(p core.Panorama) {
	e.Events.Navigated(p)
	if e.recorder != nil {
		e.recorder.Navigated(p)
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := setupRuntime(ctx)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rt.Close(shutdownCtx)
	}()
	logger := rt.Logger
	logsDir := config.GetString("logsDir")

	source, backend, closeSource, err := openSource(ctx, logger, rt.SlogManager)
	if err != nil {
		logger.Error("Failed to open panorama source", "error", err)
		return err
	}
	defer closeSource()

	var recorder *influx.Recorder
	influxCfg := config.GetInfluxConfig()
	if influxCfg.Enabled {
		im := influx.NewManager(influxCfg, rt.SlogManager.Zerolog("influx"),
			filepath.Join(logsDir, AppName+"_metrics.lp.gz"))
		if err := im.Connect(ctx); err != nil {
			logger.Warn("Telemetry disabled", "error", err)
		} else {
			defer func() { _ = im.Close() }()
			recorder = influx.NewRecorder(im, func(err error) {
				logger.Debug("Failed to write telemetry point", "error", err)
			})
		}
	}

	d, err := dispatcher.New(logger)
	if err != nil {
		return err
	}
	defer d.Close()

	host := bridge.New(config.GetBridgeConfig(), logger, bridge.Inbound(ctx, d, logger))

	opts := []viewer.Option{viewer.WithLogger(logger)}
	if recorder != nil {
		opts = append(opts, viewer.WithFetchObserver(recorder))
	}
	v, err := viewer.New(config.GetViewerConfig(), source, host, events{Events: host, recorder: recorder}, opts...)
	if err != nil {
		return err
	}
	defer v.Close()
	rt.view.Store(v)

	host.SetPanoramaSource(v.Streamer().Panorama)
	bridge.RegisterHandlers(d, v)

	if err := host.Init(); err != nil {
		logger.Error("Failed to connect to host", "url", config.GetBridgeConfig().URL, "error", err)
		return err
	}
	defer func() { _ = host.Close() }()
	logger.Info("Connected to host", "session", host.Session())

	deps := monitor.Dependencies{
		Viewer:     v,
		Candidates: func() int { return len(v.Resolver().Candidates()) },
		Path:       filepath.Join(logsDir, "status.json"),
		Logger:     logger,
	}
	if pc, ok := backend.(pendingCounter); ok {
		deps.Pending = pc.Pending
	}
	mon := monitor.NewService(deps)
	if err := mon.Start(); err != nil {
		logger.Warn("Status monitor not started", "error", err)
	}
	defer mon.Stop()

	if serveOpts.at {
		if _, err := v.DisplayAt(ctx, serveOpts.lat, serveOpts.lon); err != nil {
			logger.Error("Initial display failed", "lat", serveOpts.lat, "lon", serveOpts.lon, "error", err)
		}
	}

	<-ctx.Done()
	logger.Info("Shutting down")
	return nil
}
