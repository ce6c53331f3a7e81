package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/huannv-sys/mik-moni-demo/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
devices:
  - id: r1
    name: edge
    host: 192.168.88.1
    enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.Scheduler.RefreshInterval())
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.RebuildInterval())
	assert.Equal(t, time.Hour, cfg.Scheduler.AlertSweepInterval())
	assert.Equal(t, 10*time.Second, cfg.Connection.Timeout())
	assert.Equal(t, 2, cfg.Connection.Retries)
	assert.Equal(t, time.Second, cfg.Connection.RetryDelay())
	assert.Equal(t, 288, cfg.History.SystemPoints)
	assert.Equal(t, 288, cfg.History.InterfacePoints)
	assert.Equal(t, 80.0, cfg.Thresholds.CPULoad)
	assert.Equal(t, 24*time.Hour, cfg.Alerts.Retention())
	assert.Equal(t, 100, cfg.Collector.LogLimit)
	assert.Equal(t, 5*time.Second, cfg.Feed.Interval())
	assert.Equal(t, time.Second, cfg.Feed.HighPrecisionInterval())
	require.Len(t, cfg.Devices, 1)
	assert.Equal(t, "edge", cfg.Devices[0].Name)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	t.Setenv("MIKMON_SERVER_PORT", "9100")
	t.Setenv("MIKMON_CONNECTION_TIMEOUT_MS", "2500")
	t.Setenv("MIKMON_LOGGING_LEVEL", "DEBUG")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 2500*time.Millisecond, cfg.Connection.Timeout())
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing host",
			body:    "devices:\n  - id: r1\n    name: edge\n",
			wantErr: "devices[0].host: host is required",
		},
		{
			name:    "bad log level",
			body:    "logging:\n  level: loud\n",
			wantErr: "logging.level: level must be one of",
		},
		{
			name:    "threshold above 100",
			body:    "thresholds:\n  cpu_load: 150\n",
			wantErr: "thresholds.cpu_load",
		},
		{
			name:    "duplicate device",
			body:    "devices:\n  - {id: r1, name: a, host: 10.0.0.1}\n  - {id: r1, name: b, host: 10.0.0.2}\n",
			wantErr: `duplicate device id "r1"`,
		},
		{
			name:    "unknown site",
			body:    "devices:\n  - {id: r1, name: a, host: 10.0.0.1, site_id: nowhere}\n",
			wantErr: "unknown site",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDumpExampleConfig_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, DumpExampleConfig(&buf))

	var cfg Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &cfg))
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Devices, 1)
	assert.Equal(t, "hq", cfg.Devices[0].SiteID)
}

func TestToSnakeCase(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Host", "host"},
		{"SiteID", "site_id"},
		{"CPULoad", "cpu_load"},
		{"TLSSkipVerify", "tls_skip_verify"},
		{"Devices[0]", "devices[0]"},
	}
	for _, tt := range tests {
		if got := toSnakeCase(tt.in); got != tt.want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRoster_NotifiesOnChange(t *testing.T) {
	r := NewRoster(&Config{Sites: []model.Site{{ID: "hq", Name: "HQ"}}})
	calls := 0
	r.OnChange(func() { calls++ })

	require.NoError(t, r.Put(model.Device{ID: "r1", Name: "edge", Host: "10.0.0.1", SiteID: "hq"}))
	assert.Equal(t, 1, calls)

	err := r.Put(model.Device{ID: "r2", Name: "edge"})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "rejected devices do not notify")

	assert.True(t, r.Remove("r1"))
	assert.False(t, r.Remove("r1"))
	assert.Equal(t, 2, calls)
	assert.Empty(t, r.Devices())
}

func TestRoster_Replace(t *testing.T) {
	r := NewRoster(&Config{
		Devices: []model.Device{{ID: "old", Name: "old", Host: "10.0.0.9"}},
	})
	calls := 0
	r.OnChange(func() { calls++ })

	r.Replace(&Config{
		Sites: []model.Site{{ID: "hq", Name: "HQ"}},
		Devices: []model.Device{
			{ID: "r2", Name: "b", Host: "10.0.0.2", SiteID: "hq"},
			{ID: "r1", Name: "a", Host: "10.0.0.1"},
		},
	})

	assert.Equal(t, 1, calls)
	_, ok := r.Device("old")
	assert.False(t, ok)
	devices := r.Devices()
	require.Len(t, devices, 2)
	assert.Equal(t, "r1", devices[0].ID)
	_, ok = r.Site("hq")
	assert.True(t, ok)
}
