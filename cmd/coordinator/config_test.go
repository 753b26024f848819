package main

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("COORDINATOR_ADDR", "")
	t.Setenv("REMOTE_BASE_URL", "")
	t.Setenv("ALLOWED_URLS", "")
	t.Setenv("NAV_TIMEOUT_SECONDS", "")
	t.Setenv("SETTLE_DELAY_MS", "")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}

	if cfg.ListenAddr != ":5178" {
		t.Fatalf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	if cfg.RemoteBaseURL != "http://localhost:5177" {
		t.Fatalf("unexpected remote base url: %s", cfg.RemoteBaseURL)
	}
	if len(cfg.AllowedURLs) != 1 || cfg.AllowedURLs[0] != "*" {
		t.Fatalf("unexpected allow list: %v", cfg.AllowedURLs)
	}
	if cfg.NavTimeout != 60*time.Second {
		t.Fatalf("unexpected nav timeout: %s", cfg.NavTimeout)
	}
	if cfg.SettleDelay != 250*time.Millisecond {
		t.Fatalf("unexpected settle delay: %s", cfg.SettleDelay)
	}
	if !cfg.Headless {
		t.Fatal("expected headless by default")
	}
}

func TestLoadConfigSplitsAllowList(t *testing.T) {
	t.Setenv("ALLOWED_URLS", "https://a.test/docs, https://b.test/ ,")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if len(cfg.AllowedURLs) != 2 {
		t.Fatalf("unexpected allow list: %v", cfg.AllowedURLs)
	}
}

func TestLoadConfigInvalidTimeout(t *testing.T) {
	t.Setenv("NAV_TIMEOUT_SECONDS", "soon")

	if _, err := loadConfig(); err == nil {
		t.Fatal("expected error for invalid NAV_TIMEOUT_SECONDS")
	}
}

func TestLoadConfigRejectsZeroTimeout(t *testing.T) {
	t.Setenv("NAV_TIMEOUT_SECONDS", "0")

	if _, err := loadConfig(); err == nil {
		t.Fatal("expected error for zero NAV_TIMEOUT_SECONDS")
	}
}

func TestLoadConfigHeadlessToggle(t *testing.T) {
	t.Setenv("HEADLESS", "false")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if cfg.Headless {
		t.Fatal("expected headless disabled")
	}
}
