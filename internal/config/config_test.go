package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("ENV", "")
	t.Setenv("PUSH_MAX_ATTEMPTS", "")
	t.Setenv("SITE_TIMEZONE", "")
	t.Setenv("SCHEDULE_TWITCH", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.LogLevel)
	}
	if cfg.Env != "development" {
		t.Errorf("expected env 'development', got %s", cfg.Env)
	}
	if cfg.PushMaxAttempts != 5 {
		t.Errorf("expected 5 push attempts, got %d", cfg.PushMaxAttempts)
	}
	if cfg.Location().String() != "America/Chicago" {
		t.Errorf("expected America/Chicago, got %s", cfg.Location())
	}
	if cfg.ScheduleTwitch != "*/30 * * * *" {
		t.Errorf("unexpected twitch schedule %q", cfg.ScheduleTwitch)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ENV", "production")
	t.Setenv("PUSH_MAX_ATTEMPTS", "3")
	t.Setenv("WORKER_POLL_INTERVAL", "10s")
	t.Setenv("SCHEDULE_DISCORD", "-")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.LogLevel)
	}
	if cfg.Env != "production" {
		t.Errorf("expected env 'production', got %s", cfg.Env)
	}
	if cfg.PushMaxAttempts != 3 {
		t.Errorf("expected 3 push attempts, got %d", cfg.PushMaxAttempts)
	}
	if cfg.WorkerPollInterval != 10*time.Second {
		t.Errorf("expected 10s poll interval, got %s", cfg.WorkerPollInterval)
	}
	if cfg.ScheduleDiscord != "" {
		t.Errorf("expected discord job disabled, got %q", cfg.ScheduleDiscord)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port", "PORT", "eighty"},
		{"attempts not a number", "PUSH_MAX_ATTEMPTS", "many"},
		{"attempts zero", "PUSH_MAX_ATTEMPTS", "0"},
		{"text dir", "PUSH_TEXT_DIR", "up"},
		{"timezone", "SITE_TIMEZONE", "Mars/Olympus"},
		{"poll interval", "WORKER_POLL_INTERVAL", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}
