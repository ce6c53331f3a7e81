// Package config
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/huannv-sys/mik-moni-demo/internal/model"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Connection ConnectionConfig `yaml:"connection"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	History    HistoryConfig    `yaml:"history"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Collector  CollectorConfig  `yaml:"collector"`
	Feed       FeedConfig       `yaml:"feed"`
	Vendors    VendorsConfig    `yaml:"vendors"`
	Logging    LoggingConfig    `yaml:"logging"`
	Sites      []model.Site     `yaml:"sites" validate:"dive"`
	Devices    []model.Device   `yaml:"devices" validate:"dive"`
}

type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port" validate:"min=0,max=65535"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms"`
}

// ConnectionConfig holds the global RouterOS API session policy
type ConnectionConfig struct {
	UseTLS        bool `yaml:"use_tls"`
	TLSSkipVerify bool `yaml:"tls_skip_verify"`
	TimeoutMS     int  `yaml:"timeout_ms" validate:"min=0"`
	Retries       int  `yaml:"retries" validate:"min=0,max=10"`
	RetryDelayMS  int  `yaml:"retry_delay_ms" validate:"min=0"`
}

type SchedulerConfig struct {
	RefreshIntervalSeconds    int `yaml:"refresh_interval_seconds" validate:"min=0"`
	RebuildIntervalSeconds    int `yaml:"rebuild_interval_seconds" validate:"min=0"`
	AlertSweepIntervalSeconds int `yaml:"alert_sweep_interval_seconds" validate:"min=0"`
	TickIntervalMS            int `yaml:"tick_interval_ms" validate:"min=0"`
	Workers                   int `yaml:"workers" validate:"min=0"`
}

type HistoryConfig struct {
	SystemPoints    int `yaml:"system_points" validate:"min=0"`
	InterfacePoints int `yaml:"interface_points" validate:"min=0"`
}

// ThresholdsConfig holds alert thresholds in percent
type ThresholdsConfig struct {
	CPULoad        float64 `yaml:"cpu_load" validate:"min=0,max=100"`
	MemoryUsage    float64 `yaml:"memory_usage" validate:"min=0,max=100"`
	DiskUsage      float64 `yaml:"disk_usage" validate:"min=0,max=100"`
	InterfaceUsage float64 `yaml:"interface_usage" validate:"min=0,max=100"`
}

type AlertsConfig struct {
	RetentionHours int `yaml:"retention_hours" validate:"min=0"`
}

type CollectorConfig struct {
	LogLimit int `yaml:"log_limit" validate:"min=0"`
}

type FeedConfig struct {
	IntervalMS              int `yaml:"interval_ms" validate:"min=0"`
	HighPrecisionIntervalMS int `yaml:"high_precision_interval_ms" validate:"min=0"`
}

type VendorsConfig struct {
	File string `yaml:"file"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

// Load reads configuration from file and applies environment variable overrides
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration with every default applied and no devices
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values with the documented defaults
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeoutMS == 0 {
		c.Server.ReadTimeoutMS = 30000
	}
	if c.Server.WriteTimeoutMS == 0 {
		c.Server.WriteTimeoutMS = 30000
	}

	if c.Connection.TimeoutMS == 0 {
		c.Connection.TimeoutMS = 10000
	}
	if c.Connection.Retries == 0 {
		c.Connection.Retries = 2
	}
	if c.Connection.RetryDelayMS == 0 {
		c.Connection.RetryDelayMS = 1000
	}

	if c.Scheduler.RefreshIntervalSeconds == 0 {
		c.Scheduler.RefreshIntervalSeconds = 60
	}
	if c.Scheduler.RebuildIntervalSeconds == 0 {
		c.Scheduler.RebuildIntervalSeconds = 300
	}
	if c.Scheduler.AlertSweepIntervalSeconds == 0 {
		c.Scheduler.AlertSweepIntervalSeconds = 3600
	}
	if c.Scheduler.TickIntervalMS == 0 {
		c.Scheduler.TickIntervalMS = 500
	}
	if c.Scheduler.Workers == 0 {
		c.Scheduler.Workers = 8
	}

	if c.History.SystemPoints == 0 {
		c.History.SystemPoints = 288
	}
	if c.History.InterfacePoints == 0 {
		c.History.InterfacePoints = 288
	}

	if c.Thresholds.CPULoad == 0 {
		c.Thresholds.CPULoad = 80
	}
	if c.Thresholds.MemoryUsage == 0 {
		c.Thresholds.MemoryUsage = 80
	}
	if c.Thresholds.DiskUsage == 0 {
		c.Thresholds.DiskUsage = 80
	}
	if c.Thresholds.InterfaceUsage == 0 {
		c.Thresholds.InterfaceUsage = 80
	}

	if c.Alerts.RetentionHours == 0 {
		c.Alerts.RetentionHours = 24
	}
	if c.Collector.LogLimit == 0 {
		c.Collector.LogLimit = 100
	}
	if c.Feed.IntervalMS == 0 {
		c.Feed.IntervalMS = 5000
	}
	if c.Feed.HighPrecisionIntervalMS == 0 {
		c.Feed.HighPrecisionIntervalMS = 1000
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate checks struct constraints and cross-field rules
func (c *Config) Validate() error {
	if err := validateStruct(c); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Devices))
	for _, d := range c.Devices {
		if seen[d.ID] {
			return fmt.Errorf("duplicate device id %q", d.ID)
		}
		seen[d.ID] = true
	}

	sites := make(map[string]bool, len(c.Sites))
	for _, s := range c.Sites {
		sites[s.ID] = true
	}
	for _, d := range c.Devices {
		if d.SiteID != "" && !sites[d.SiteID] {
			return fmt.Errorf("device %q references unknown site %q", d.ID, d.SiteID)
		}
	}

	return nil
}

// applyEnvOverrides checks for environment variables with MIKMON_ prefix
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIKMON_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("MIKMON_SERVER_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Server.Port)
	}

	if v := os.Getenv("MIKMON_CONNECTION_USE_TLS"); v != "" {
		cfg.Connection.UseTLS = v == "true" || v == "1"
	}
	if v := os.Getenv("MIKMON_CONNECTION_TIMEOUT_MS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Connection.TimeoutMS)
	}
	if v := os.Getenv("MIKMON_CONNECTION_RETRIES"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Connection.Retries)
	}

	if v := os.Getenv("MIKMON_SCHEDULER_REFRESH_INTERVAL_SECONDS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Scheduler.RefreshIntervalSeconds)
	}
	if v := os.Getenv("MIKMON_SCHEDULER_WORKERS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Scheduler.Workers)
	}

	if v := os.Getenv("MIKMON_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("MIKMON_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
}

// ReadTimeout returns the read timeout as a duration
func (s *ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}

// WriteTimeout returns the write timeout as a duration
func (s *ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutMS) * time.Millisecond
}

// Addr returns the listen address
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (c *ConnectionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

func (c *ConnectionConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// RefreshInterval returns the per-device collection period
func (s *SchedulerConfig) RefreshInterval() time.Duration {
	return time.Duration(s.RefreshIntervalSeconds) * time.Second
}

func (s *SchedulerConfig) RebuildInterval() time.Duration {
	return time.Duration(s.RebuildIntervalSeconds) * time.Second
}

func (s *SchedulerConfig) AlertSweepInterval() time.Duration {
	return time.Duration(s.AlertSweepIntervalSeconds) * time.Second
}

// TickInterval returns the tick interval as a duration
func (s *SchedulerConfig) TickInterval() time.Duration {
	return time.Duration(s.TickIntervalMS) * time.Millisecond
}

func (a *AlertsConfig) Retention() time.Duration {
	return time.Duration(a.RetentionHours) * time.Hour
}

func (f *FeedConfig) Interval() time.Duration {
	return time.Duration(f.IntervalMS) * time.Millisecond
}

func (f *FeedConfig) HighPrecisionInterval() time.Duration {
	return time.Duration(f.HighPrecisionIntervalMS) * time.Millisecond
}

// IsLogLevelValid checks if the log level is valid
func (l *LoggingConfig) IsLogLevelValid() bool {
	validLevels := []string{"debug", "info", "warn", "error"}
	return slices.Contains(validLevels, strings.ToLower(l.Level))
}

// DumpExampleConfig writes an example configuration to the provided writer
func DumpExampleConfig(w io.Writer) error {
	example := Default()
	example.Server.Host = "0.0.0.0"
	example.Sites = []model.Site{
		{ID: "hq", Name: "Head office", Location: "Hanoi", Contact: "noc@example.com", Enabled: true},
	}
	example.Devices = []model.Device{
		{
			ID:       "core-router",
			Name:     "Core router",
			Host:     "192.168.88.1",
			Port:     model.DefaultAPIPort,
			Username: "monitor",
			Password: "changeme",
			Enabled:  true,
			SiteID:   "hq",
			Comment:  "CCR in the server room",
		},
	}

	// Create a YAML node for custom formatting with comments
	var node yaml.Node
	if err := node.Encode(example); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	header := `# =============================================================================
# mikmon example configuration
# =============================================================================
# Copy this file to config.yaml and list the RouterOS devices to poll.
#
# Environment variable overrides follow the pattern: MIKMON_<SECTION>_<KEY>
# Example: MIKMON_SERVER_PORT, MIKMON_CONNECTION_TIMEOUT_MS
# =============================================================================

`
	if _, err := fmt.Fprint(w, header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(&node); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to close encoder: %w", err)
	}

	footer := `
# =============================================================================
# Notes:
# =============================================================================
#
# 1. RouterOS access:
#    - Enable the API service (/ip service enable api) or api-ssl for use_tls
#    - A read-only group is enough; mikmon never changes device configuration
#
# 2. Scheduling:
#    - Each enabled device is collected every refresh_interval_seconds
#    - The job set is rebuilt every rebuild_interval_seconds and on roster changes
#
# 3. History:
#    - 288 points at the default 60s interval cover almost five hours;
#      raise the point counts for longer in-memory history
# =============================================================================
`
	if _, err := fmt.Fprint(w, footer); err != nil {
		return fmt.Errorf("failed to write footer: %w", err)
	}

	return nil
}

// InitLogger initializes the global logger based on configuration
func InitLogger(cfg LoggingConfig) *slog.Logger {
	var handler slog.Handler

	// Set log level
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Set format
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}
