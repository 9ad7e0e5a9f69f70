// Package config loads and validates the daemon's static
// configuration, grounded on dittofs's pkg/config: a YAML file and
// VEXFS_* environment variables layered over struct defaults via
// spf13/viper (see Load), struct-tag
// validation via go-playground/validator, and YAML persistence for
// `vexfsctl config init`-style bootstrap.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the daemon's static configuration. Dynamic state (routing
// rules, filter chains, subscriptions) is managed at runtime through
// the admin API, not persisted here.
//
// Load layers the config file and VEXFS_* environment variables over
// these struct defaults; command-line flags are not merged in.
type Config struct {
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry" yaml:"telemetry"`
	Profiling    ProfilingConfig    `mapstructure:"profiling" yaml:"profiling"`
	Metrics      MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
	Storage      StorageConfig      `mapstructure:"storage" yaml:"storage"`
	Durability   DurabilityConfig   `mapstructure:"durability" yaml:"durability"`
	Lock         LockConfig         `mapstructure:"lock" yaml:"lock"`
	Vector       VectorConfig       `mapstructure:"vector" yaml:"vector"`
	Stream       StreamConfig       `mapstructure:"stream" yaml:"stream"`
	Cluster      ClusterConfig      `mapstructure:"cluster" yaml:"cluster"`
	HTTP         HTTPConfig         `mapstructure:"http" yaml:"http"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1" yaml:"sample_rate"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
}

// ProfilingConfig controls continuous profiling export to Pyroscope.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// StorageConfig points at the backing block device.
type StorageConfig struct {
	Backend  string `mapstructure:"backend" validate:"required,oneof=memory badger" yaml:"backend"`
	DataDir  string `mapstructure:"data_dir" yaml:"data_dir"`
	BlockSize int   `mapstructure:"block_size" validate:"required,gt=0" yaml:"block_size"`
}

// DurabilityConfig configures the durability manager's policy and
// batching.
type DurabilityConfig struct {
	Policy       string        `mapstructure:"policy" validate:"required,oneof=none metadata-only data-plus-metadata strict configurable" yaml:"policy"`
	MaxBatch     int           `mapstructure:"max_batch" validate:"required,gt=0" yaml:"max_batch"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout" validate:"required,gt=0" yaml:"batch_timeout"`
}

// LockConfig bounds the lock manager's resource usage.
type LockConfig struct {
	AcquireTimeout  time.Duration `mapstructure:"acquire_timeout" validate:"required,gt=0" yaml:"acquire_timeout"`
	DeadlockScanCron string       `mapstructure:"deadlock_scan_cron" validate:"required" yaml:"deadlock_scan_cron"`
}

// VectorConfig configures the ANN index defaults.
type VectorConfig struct {
	Dimensions     int `mapstructure:"dimensions" validate:"required,gt=0" yaml:"dimensions"`
	M              int `mapstructure:"m" validate:"required,gt=0" yaml:"m"`
	EfConstruction int `mapstructure:"ef_construction" validate:"required,gt=0" yaml:"ef_construction"`
}

// StreamConfig configures the subscriber stream manager.
type StreamConfig struct {
	MaxSubscriptionsPerAgent int           `mapstructure:"max_subscriptions_per_agent" validate:"required,gt=0" yaml:"max_subscriptions_per_agent"`
	DefaultBufferSize        int           `mapstructure:"default_buffer_size" validate:"required,gt=0" yaml:"default_buffer_size"`
	HeartbeatInterval        time.Duration `mapstructure:"heartbeat_interval" validate:"required,gt=0" yaml:"heartbeat_interval"`
}

// ClusterConfig configures the pluggable cluster coordinator.
type ClusterConfig struct {
	Enabled  bool     `mapstructure:"enabled" yaml:"enabled"`
	NodeID   string   `mapstructure:"node_id" yaml:"node_id"`
	BindAddr string   `mapstructure:"bind_addr" yaml:"bind_addr"`
	DataDir  string   `mapstructure:"data_dir" yaml:"data_dir"`
	Bootstrap bool    `mapstructure:"bootstrap" yaml:"bootstrap"`
	Peers    []string `mapstructure:"peers" yaml:"peers"`
}

// HTTPConfig configures the REST/WebSocket dialect shim.
type HTTPConfig struct {
	Addr           string `mapstructure:"addr" validate:"required" yaml:"addr"`
	AdminPassphrase string `mapstructure:"admin_passphrase" yaml:"admin_passphrase"`
	JWTSecret      string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
}

// DefaultConfig returns the configuration used when no file and no
// environment overrides are present.
func DefaultConfig() *Config {
	return &Config{
		Logging:   LoggingConfig{Level: "INFO", Format: "text", Output: "stdout"},
		Telemetry: TelemetryConfig{Enabled: false, SampleRate: 0.1, ServiceName: "vexfsd"},
		Profiling: ProfilingConfig{Enabled: false, ProfileTypes: []string{"cpu", "alloc_objects"}},
		Metrics:   MetricsConfig{Enabled: true, Addr: ":9090"},
		Storage:   StorageConfig{Backend: "memory", DataDir: "./data", BlockSize: 4096},
		Durability: DurabilityConfig{
			Policy:       "data-plus-metadata",
			MaxBatch:     64,
			BatchTimeout: 20 * time.Millisecond,
		},
		Lock: LockConfig{AcquireTimeout: 5 * time.Second, DeadlockScanCron: "*/1 * * * * *"},
		Vector: VectorConfig{Dimensions: 768, M: 16, EfConstruction: 200},
		Stream: StreamConfig{
			MaxSubscriptionsPerAgent: 10,
			DefaultBufferSize:        1000,
			HeartbeatInterval:        30 * time.Second,
		},
		Cluster: ClusterConfig{Enabled: false},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			AdminPassphrase: "vexfs-dev",
			JWTSecret:       "vexfs-dev-secret-change-me",
		},
		ShutdownTimeout: 30 * time.Second,
	}
}

// Load reads configuration from configPath (or ./vexfs.yaml if empty)
// over DefaultConfig, lets a VEXFS_* environment variable override any
// key that appears in the file, then validates the result. When viper
// finds no config file, Load returns DefaultConfig unchanged without
// consulting the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return DefaultConfig(), nil
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks cfg's struct-tag constraints.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

// Save writes cfg to path as YAML, creating parent directories as
// needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("VEXFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(".")
	v.SetConfigName("vexfs")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		return false, fmt.Errorf("read config file: %w", err)
	}
	return true, nil
}
