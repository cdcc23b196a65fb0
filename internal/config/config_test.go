package config

import (
	"testing"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DISCORD_BOT_TOKEN", "test-token")
	t.Setenv("STATE_PATH", "")
	t.Setenv("POLL_INTERVAL_SECONDS", "")
	t.Setenv("DEFAULT_TIMEZONE", "")
	t.Setenv("LOG_LEVEL", "")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DiscordToken != "test-token" {
		t.Errorf("DiscordToken = %q", cfg.DiscordToken)
	}
	if cfg.StatePath != "./data/chrono_state.json" {
		t.Errorf("StatePath = %q", cfg.StatePath)
	}
	if cfg.PollingIntervalSeconds != 60 {
		t.Errorf("PollingIntervalSeconds = %d, want 60", cfg.PollingIntervalSeconds)
	}
	if cfg.DefaultTimezone != "America/Chicago" {
		t.Errorf("DefaultTimezone = %q", cfg.DefaultTimezone)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("STATE_PATH", "/var/lib/chrono/state.json")
	t.Setenv("POLL_INTERVAL_SECONDS", "15")
	t.Setenv("DEFAULT_TIMEZONE", "Europe/Berlin")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StatePath != "/var/lib/chrono/state.json" {
		t.Errorf("StatePath = %q", cfg.StatePath)
	}
	if cfg.PollingIntervalSeconds != 15 {
		t.Errorf("PollingIntervalSeconds = %d, want 15", cfg.PollingIntervalSeconds)
	}
	if cfg.DefaultTimezone != "Europe/Berlin" {
		t.Errorf("DefaultTimezone = %q", cfg.DefaultTimezone)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadRequiresToken(t *testing.T) {
	setRequired(t)
	t.Setenv("DISCORD_BOT_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded without DISCORD_BOT_TOKEN")
	}
}

func TestLoadRejectsBadInterval(t *testing.T) {
	setRequired(t)

	for _, bad := range []string{"abc", "0", "-5"} {
		t.Setenv("POLL_INTERVAL_SECONDS", bad)
		if _, err := Load(); err == nil {
			t.Errorf("Load succeeded with POLL_INTERVAL_SECONDS=%q", bad)
		}
	}
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	setRequired(t)
	t.Setenv("DEFAULT_TIMEZONE", "Not/AZone")

	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded with invalid DEFAULT_TIMEZONE")
	}
}
