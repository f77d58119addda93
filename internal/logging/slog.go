package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// defaultService names the OTel instrumentation scope when the config has
// none.
const defaultService = "panoview"

// console is where logs go without a file. Tests replace it.
var console io.Writer = os.Stdout

// Config selects the outputs of a SlogManager.
type Config struct {
	// File receives text logs. When nil, logs go to the console instead.
	File  io.Writer
	Level string
	// Graylog, when set, receives one JSON record per write, as a GELF
	// writer expects.
	Graylog io.Writer
	// Provider enables the OTel log bridge.
	Provider    *sdklog.LoggerProvider
	ServiceName string
	// View adds the displayed panorama to every record.
	View ViewState
}

// SlogManager owns the process logger. Setup may be called again to move
// from bootstrap output to the configured outputs.
type SlogManager struct {
	logger    *slog.Logger
	level     slog.Level
	text      io.Writer
	toConsole bool
	provider  *sdklog.LoggerProvider
}

func NewSlogManager() *SlogManager {
	return &SlogManager{level: slog.LevelInfo, text: console, toConsole: true}
}

// NewGraylogWriter opens a UDP GELF writer to a Graylog input.
func NewGraylogWriter(address, facility string) (*gelf.Writer, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, fmt.Errorf("failed to open graylog writer: %w", err)
	}
	w.Facility = facility
	return w, nil
}

func parseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// utcTime formats record times as RFC3339 in UTC.
func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
		}
	}
	return a
}

// Setup builds the logger from cfg.
func (m *SlogManager) Setup(cfg Config) {
	m.level = parseLevel(cfg.Level)
	m.text, m.toConsole = console, true
	if cfg.File != nil {
		m.text, m.toConsole = cfg.File, false
	}
	m.provider = cfg.Provider

	sinks := outputs{
		slog.NewTextHandler(m.text, &slog.HandlerOptions{Level: m.level, ReplaceAttr: utcTime}),
	}
	if cfg.Graylog != nil {
		sinks = append(sinks, slog.NewJSONHandler(cfg.Graylog, &slog.HandlerOptions{Level: m.level}))
	}
	if cfg.Provider != nil {
		name := cfg.ServiceName
		if name == "" {
			name = defaultService
		}
		sinks = append(sinks, otelslog.NewHandler(name, otelslog.WithLoggerProvider(cfg.Provider)))
	}

	var h slog.Handler = sinks
	if cfg.View != nil {
		h = viewHandler{next: sinks, view: cfg.View}
	}
	m.logger = slog.New(h)
	m.logger.Info("Logging initialized", "level", m.level, "outputs", len(sinks))
}

// Logger returns the configured logger, or slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Zerolog returns a zerolog logger writing to the same text output at the
// same level, tagged with component. The database and telemetry managers
// log through it.
func (m *SlogManager) Zerolog(component string) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: m.text, TimeFormat: time.RFC3339, NoColor: !m.toConsole}

	lvl, err := zerolog.ParseLevel(strings.ToLower(m.level.String()))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(lvl).With().
		Timestamp().
		Str("component", component).
		Logger()
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.provider != nil {
		return m.provider.ForceFlush(ctx)
	}
	return nil
}
