package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	tests := []struct {
		name  string
		check func(*Config) bool
	}{
		{"default mode is api", func(c *Config) bool { return c.Mode == "api" }},
		{"default host is 0.0.0.0", func(c *Config) bool { return c.Host == "0.0.0.0" }},
		{"default port is 8080", func(c *Config) bool { return c.Port == 8080 }},
		{"default log level is info", func(c *Config) bool { return c.LogLevel == "info" }},
		{"default log format is json", func(c *Config) bool { return c.LogFormat == "json" }},
		{"default metrics path", func(c *Config) bool { return c.MetricsPath == "/metrics" }},
		{"default SLA threshold", func(c *Config) bool { return c.SLAUptimeThreshold == 95.0 }},
		{"default downtime alert days", func(c *Config) bool { return c.DowntimeAlertDays == 3 }},
		{"default scheduler hour", func(c *Config) bool { return c.SchedulerHour == 6 }},
		{"default scheduler timezone", func(c *Config) bool { return c.SchedulerTimezone == "UTC" }},
		{"default approval max pending", func(c *Config) bool { return c.ApprovalMaxPending == 50 }},
		{"default retention days", func(c *Config) bool { return c.RetentionDays == 90 }},
		{"jira not configured by default", func(c *Config) bool { return !c.JiraConfigured() }},
		{"listen addr format", func(c *Config) bool { return c.ListenAddr() == "0.0.0.0:8080" }},
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(cfg) {
				t.Errorf("unexpected value for %s", tt.name)
			}
		})
	}
}

func TestLoad_InvalidTimezoneRejected(t *testing.T) {
	t.Setenv("MONITORING_TIMEZONE", "Not/A_Zone")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid timezone")
	}
}

func TestLoad_InvalidModeRejected(t *testing.T) {
	t.Setenv("FLEETWATCH_MODE", "bogus")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid mode")
	}
}

func TestLoad_JiraConfiguredWhenURLSet(t *testing.T) {
	t.Setenv("JIRA_URL", "https://example.atlassian.net")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.JiraConfigured() {
		t.Fatal("expected JiraConfigured to be true")
	}
}

func TestLoadVessels_SingleClusterFallback(t *testing.T) {
	t.Setenv("INFLUXDB_URL", "http://influx:8086")
	t.Setenv("INFLUXDB_TOKEN", "tok")
	t.Setenv("INFLUXDB_BUCKET", "monitoring")
	t.Setenv("VESSEL_IDS", "vessel001, vessel002")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.Vessels) != 2 {
		t.Fatalf("expected 2 vessels, got %d", len(cfg.Vessels))
	}
}

func TestLoadVessels_PerVesselEnvTakesPrecedence(t *testing.T) {
	t.Setenv("INFLUXDB_URL", "http://influx:8086")
	t.Setenv("VESSEL_IDS", "vessel001")
	t.Setenv("VESSEL_V1_INFLUXDB_URL", "http://v1-influx:8086")
	t.Setenv("VESSEL_V1_INFLUXDB_TOKEN", "v1-token")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.Vessels) != 1 {
		t.Fatalf("expected 1 vessel from per-vessel env, got %d", len(cfg.Vessels))
	}
	if cfg.Vessels[0].ID != "v1" {
		t.Fatalf("expected vessel id v1, got %s", cfg.Vessels[0].ID)
	}
}
