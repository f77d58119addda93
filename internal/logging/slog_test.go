package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// useConsole points console output at a buffer for the test.
func useConsole(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := console
	console = &buf
	t.Cleanup(func() { console = prev })
	return &buf
}

// memoryExporter keeps exported OTel records.
type memoryExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *memoryExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *memoryExporter) Shutdown(context.Context) error   { return nil }
func (e *memoryExporter) ForceFlush(context.Context) error { return nil }

func (e *memoryExporter) find(body string) (sdklog.Record, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.records {
		if r.Body().AsString() == body {
			return r, true
		}
	}
	return sdklog.Record{}, false
}

func displayed(id string) ViewState {
	return ViewFunc(func() []slog.Attr {
		return []slog.Attr{slog.String("panorama", id)}
	})
}

func TestSetup_FileKeepsConsoleQuiet(t *testing.T) {
	out := useConsole(t)
	var file bytes.Buffer

	m := NewSlogManager()
	m.Setup(Config{File: &file, Level: "info"})
	m.Logger().Info("panorama displayed")

	assert.Contains(t, file.String(), "panorama displayed")
	assert.Contains(t, file.String(), "Logging initialized")
	assert.Empty(t, out.String())
}

func TestSetup_ConsoleWithoutFile(t *testing.T) {
	out := useConsole(t)

	m := NewSlogManager()
	m.Setup(Config{Level: "info"})
	m.Logger().Info("viewer starting")

	assert.Contains(t, out.String(), "viewer starting")
}

func TestSetup_Levels(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{"debug", true, true},
		{"INFO", false, true},
		{"warn", false, false},
		{"", false, true},
		{"verbose", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			m := NewSlogManager()
			m.Setup(Config{File: &buf, Level: tt.level})
			m.Logger().Debug("face upgrade started")
			m.Logger().Info("panorama displayed")

			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("face upgrade started")))
			assert.Equal(t, tt.wantInfo, bytes.Contains(buf.Bytes(), []byte("panorama displayed")))
		})
	}
}

func TestSetup_SecondCallMovesOutput(t *testing.T) {
	var bootstrap, session bytes.Buffer
	m := NewSlogManager()

	m.Setup(Config{File: &bootstrap})
	m.Logger().Info("loading config")
	m.Setup(Config{File: &session})
	m.Logger().Info("panorama displayed")

	assert.Contains(t, bootstrap.String(), "loading config")
	assert.NotContains(t, bootstrap.String(), "panorama displayed")
	assert.Contains(t, session.String(), "panorama displayed")
}

func TestLogger_DefaultBeforeSetup(t *testing.T) {
	assert.Equal(t, slog.Default(), NewSlogManager().Logger())
}

func TestSetup_ViewInTextAndGraylog(t *testing.T) {
	var file, gelf bytes.Buffer
	m := NewSlogManager()
	m.Setup(Config{File: &file, Graylog: &gelf, View: displayed("123")})

	m.Logger().Info("face upgraded", "face", 2, "quality", 0)

	assert.Contains(t, file.String(), "view.panorama=123")

	var rec map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(gelf.Bytes()), []byte("\n")) {
		var r map[string]any
		require.NoError(t, json.Unmarshal(line, &r))
		if r["msg"] == "face upgraded" {
			rec = r
		}
	}
	require.NotNil(t, rec)
	assert.Equal(t, map[string]any{"panorama": "123"}, rec["view"])
	assert.EqualValues(t, 2, rec["face"])
}

func TestSetup_NoViewBeforeFirstDisplay(t *testing.T) {
	var file bytes.Buffer
	m := NewSlogManager()
	m.Setup(Config{File: &file, View: ViewFunc(func() []slog.Attr { return nil })})

	m.Logger().Info("waiting for host")

	assert.Contains(t, file.String(), "waiting for host")
	assert.NotContains(t, file.String(), "view.")
}

func TestSetup_OTelBridge(t *testing.T) {
	exp := &memoryExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exp)))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	var file bytes.Buffer
	m := NewSlogManager()
	m.Setup(Config{File: &file, Provider: provider, View: displayed("123")})
	m.Logger().Info("panorama displayed")
	require.NoError(t, m.Flush(context.Background()))

	rec, ok := exp.find("panorama displayed")
	require.True(t, ok)
	assert.Equal(t, defaultService, rec.InstrumentationScope().Name)

	var view []otellog.KeyValue
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		if kv.Key == viewKey && kv.Value.Kind() == otellog.KindMap {
			view = kv.Value.AsMap()
		}
		return true
	})
	require.Len(t, view, 1)
	assert.Equal(t, "panorama", view[0].Key)
	assert.Equal(t, "123", view[0].Value.AsString())
}

func TestFlush_WithoutProvider(t *testing.T) {
	assert.NoError(t, NewSlogManager().Flush(context.Background()))
}

func TestZerolog_SharesOutputAndLevel(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(Config{File: &buf, Level: "warn"})

	zl := m.Zerolog("database")
	zl.Info().Msg("connected")
	zl.Warn().Msg("falling back to sqlite")

	assert.NotContains(t, buf.String(), "connected")
	assert.Contains(t, buf.String(), "falling back to sqlite")
	assert.Contains(t, buf.String(), "component=database")
}

func TestZerolog_BeforeSetupUsesConsole(t *testing.T) {
	out := useConsole(t)
	m := NewSlogManager()

	zl := m.Zerolog("influx")
	zl.Info().Msg("ping ok")

	assert.Contains(t, out.String(), "ping ok")
}
