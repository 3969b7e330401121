package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "missing")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 || cfg.Mode != "release" {
		t.Fatalf("port/mode = %d/%s", cfg.Port, cfg.Mode)
	}
	if cfg.PingPeriod != 54*time.Second || cfg.PongWait != 60*time.Second {
		t.Fatalf("ping/pong = %s/%s", cfg.PingPeriod, cfg.PongWait)
	}
	if cfg.RingTimeout != 0 {
		t.Fatalf("ring timeout should be disabled by default, got %s", cfg.RingTimeout)
	}
	if cfg.Backpressure != "drop" {
		t.Fatalf("backpressure = %q", cfg.Backpressure)
	}
	if len(cfg.ICEServers) != 1 {
		t.Fatalf("ice servers = %v", cfg.ICEServers)
	}
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	yaml := "port: 9000\nring_timeout: 30s\nbackpressure: kick\nallowed_origins:\n  - https://app.example\n"
	if err := os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_ENV", "test")
	t.Setenv("RELAY_CALL_RATE_LIMIT", "3")

	cfg, err := Load([]string{"--mode", "debug"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9000 {
		t.Errorf("port = %d, want 9000 from file", cfg.Port)
	}
	if cfg.RingTimeout != 30*time.Second {
		t.Errorf("ring timeout = %s", cfg.RingTimeout)
	}
	if cfg.Backpressure != "kick" {
		t.Errorf("backpressure = %q", cfg.Backpressure)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://app.example" {
		t.Errorf("origins = %v", cfg.AllowedOrigins)
	}
	if cfg.CallRateLimit != 3 {
		t.Errorf("call rate limit = %d, want 3 from env", cfg.CallRateLimit)
	}
	if cfg.Mode != "debug" {
		t.Errorf("mode = %q, want debug from flag", cfg.Mode)
	}

	cfg, err = Load([]string{"--port", "9100"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9100 {
		t.Errorf("port = %d, want flag to override file", cfg.Port)
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load([]string{"--config", "nope.yaml"}); err == nil {
		t.Fatal("an explicit config path that does not exist should fail")
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		Port:         8080,
		PingPeriod:   time.Second,
		PongWait:     2 * time.Second,
		WriteWait:    time.Second,
		SendBuffer:   8,
		Backpressure: "drop",
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config invalid: %v", err)
	}

	cases := map[string]func(c *Config){
		"port":         func(c *Config) { c.Port = 0 },
		"pong":         func(c *Config) { c.PongWait = c.PingPeriod },
		"send buffer":  func(c *Config) { c.SendBuffer = 0 },
		"ring timeout": func(c *Config) { c.RingTimeout = -time.Second },
		"backpressure": func(c *Config) { c.Backpressure = "retry" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			if err := c.Validate(); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
