package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/lookaround-map/viewer/internal/mesh"
	"github.com/lookaround-map/viewer/internal/navigation"
	"github.com/lookaround-map/viewer/internal/texture"
	"github.com/lookaround-map/viewer/internal/viewer"
	"github.com/lookaround-map/viewer/pkg/core"
)

// FileName is the name of the JSON config file looked up in the config dir.
const FileName = "panoview.cfg.json"

// StorageConfig holds panorama metadata cache settings.
type StorageConfig struct {
	Type          string        `json:"type" mapstructure:"type"`
	SqlitePath    string        `json:"sqlitePath" mapstructure:"sqlitePath"`
	WriteInterval time.Duration `json:"writeInterval" mapstructure:"writeInterval"`
	// Radius is how far around a location cached panoramas are searched, in meters.
	Radius float64 `json:"radius" mapstructure:"radius"`
}

// ProviderConfig holds the panorama provider endpoint.
type ProviderConfig struct {
	BaseURL string
	Timeout time.Duration
	// CacheMaxCost bounds the decoded face image cache, in bytes.
	CacheMaxCost int64
}

// BridgeConfig holds the host renderer connection settings.
type BridgeConfig struct {
	URL            string
	ReconnectDelay time.Duration
	MaxBackoff     time.Duration
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// InfluxConfig holds the telemetry sink settings.
type InfluxConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
	Bucket   string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// SetDefaults registers the default value of every key. Load calls it; it
// is exported so commands can run without a config file.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./panoviewlogs")

	viper.SetDefault("provider.baseUrl", "http://localhost:5653")
	viper.SetDefault("provider.timeout", "15s")
	viper.SetDefault("cache.maxCostMB", 256)

	vc := viewer.DefaultConfig()
	viper.SetDefault("viewer.fov", vc.Viewport.FOV)
	viper.SetDefault("viewer.width", vc.Viewport.Width)
	viper.SetDefault("viewer.height", vc.Viewport.Height)

	viper.SetDefault("mesh.radius", vc.Mesh.Radius)
	viper.SetDefault("mesh.heightSegments", vc.Mesh.HeightSegments)
	viper.SetDefault("mesh.degreesPerSegment", vc.Mesh.DegreesPerSegment)

	viper.SetDefault("texture.initialQuality", int(vc.Texture.InitialQuality))
	viper.SetDefault("texture.zoomedQuality", int(vc.Texture.ZoomedQuality))
	viper.SetDefault("texture.wideQuality", int(vc.Texture.WideQuality))
	viper.SetDefault("texture.zoomThreshold", vc.Texture.ZoomThreshold)
	viper.SetDefault("texture.sampleStride", vc.Texture.SampleStride)

	viper.SetDefault("navigation.maxDistance", vc.Navigation.MaxDistance)
	viper.SetDefault("navigation.elevationScale", vc.Navigation.ElevationScale)
	viper.SetDefault("navigation.cameraHeight", vc.Navigation.CameraHeight)
	viper.SetDefault("navigation.nearScale", vc.Navigation.NearScale)
	viper.SetDefault("navigation.farScale", vc.Navigation.FarScale)
	viper.SetDefault("navigation.pointerRate", vc.Navigation.PointerRate)
	viper.SetDefault("navigation.applyFace0Offset", vc.Navigation.ApplyFace0Offset)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.sqlitePath", "./panoview_cache.db")
	viper.SetDefault("storage.writeInterval", "2s")
	viper.SetDefault("storage.radius", 100.0)

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "panoview")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "panoview-metrics")
	viper.SetDefault("influx.bucket", "viewer")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "panoview")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("bridge.url", "ws://localhost:5654/viewer")
	viper.SetDefault("bridge.reconnectDelay", "1s")
	viper.SetDefault("bridge.maxBackoff", "30s")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetViewerConfig assembles the viewer configuration from the viewer, mesh,
// texture and navigation keys.
func GetViewerConfig() viewer.Config {
	return viewer.Config{
		Viewport: core.CameraPose{
			FOV:    viper.GetFloat64("viewer.fov"),
			Width:  viper.GetFloat64("viewer.width"),
			Height: viper.GetFloat64("viewer.height"),
		},
		Mesh: mesh.Config{
			Radius:            viper.GetFloat64("mesh.radius"),
			HeightSegments:    viper.GetInt("mesh.heightSegments"),
			DegreesPerSegment: viper.GetFloat64("mesh.degreesPerSegment"),
		},
		Texture: texture.Config{
			InitialQuality: core.Quality(viper.GetInt("texture.initialQuality")),
			ZoomedQuality:  core.Quality(viper.GetInt("texture.zoomedQuality")),
			WideQuality:    core.Quality(viper.GetInt("texture.wideQuality")),
			ZoomThreshold:  viper.GetFloat64("texture.zoomThreshold"),
			SampleStride:   viper.GetInt("texture.sampleStride"),
		},
		Navigation: navigation.Config{
			MaxDistance:      viper.GetFloat64("navigation.maxDistance"),
			ElevationScale:   viper.GetFloat64("navigation.elevationScale"),
			CameraHeight:     viper.GetFloat64("navigation.cameraHeight"),
			NearScale:        viper.GetFloat64("navigation.nearScale"),
			FarScale:         viper.GetFloat64("navigation.farScale"),
			PointerRate:      viper.GetFloat64("navigation.pointerRate"),
			ApplyFace0Offset: viper.GetBool("navigation.applyFace0Offset"),
		},
	}
}

// GetStorageConfig returns the storage settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:          viper.GetString("storage.type"),
		SqlitePath:    viper.GetString("storage.sqlitePath"),
		WriteInterval: viper.GetDuration("storage.writeInterval"),
		Radius:        viper.GetFloat64("storage.radius"),
	}
}

// GetProviderConfig returns the provider settings.
func GetProviderConfig() ProviderConfig {
	return ProviderConfig{
		BaseURL:      viper.GetString("provider.baseUrl"),
		Timeout:      viper.GetDuration("provider.timeout"),
		CacheMaxCost: viper.GetInt64("cache.maxCostMB") << 20,
	}
}

// GetBridgeConfig returns the host bridge settings.
func GetBridgeConfig() BridgeConfig {
	return BridgeConfig{
		URL:            viper.GetString("bridge.url"),
		ReconnectDelay: viper.GetDuration("bridge.reconnectDelay"),
		MaxBackoff:     viper.GetDuration("bridge.maxBackoff"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the telemetry sink settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}
