package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type config struct {
	ListenAddr      string
	RemoteBaseURL   string
	AllowedURLs     []string
	Headless        bool
	NavTimeout      time.Duration
	SettleDelay     time.Duration
	ViewportWidth   int
	ViewportHeight  int
	NATSURL         string
	RunEventSubject string
}

func loadConfig() (config, error) {
	cfg := config{
		ListenAddr:      getenv("COORDINATOR_ADDR", ":5178"),
		RemoteBaseURL:   getenv("REMOTE_BASE_URL", "http://localhost:5177"),
		AllowedURLs:     splitList(getenv("ALLOWED_URLS", "*")),
		Headless:        getenv("HEADLESS", "true") != "false",
		NATSURL:         getenv("NATS_URL", ""),
		RunEventSubject: getenv("RUN_EVENT_SUBJECT", "capture.runs"),
	}

	navSecs, err := parsePositiveInt(getenv("NAV_TIMEOUT_SECONDS", "60"), "NAV_TIMEOUT_SECONDS")
	if err != nil {
		return config{}, err
	}
	cfg.NavTimeout = time.Duration(navSecs) * time.Second

	settleMs, err := parsePositiveInt(getenv("SETTLE_DELAY_MS", "250"), "SETTLE_DELAY_MS")
	if err != nil {
		return config{}, err
	}
	cfg.SettleDelay = time.Duration(settleMs) * time.Millisecond

	width, err := parsePositiveInt(getenv("VIEWPORT_WIDTH", "1280"), "VIEWPORT_WIDTH")
	if err != nil {
		return config{}, err
	}
	cfg.ViewportWidth = width

	height, err := parsePositiveInt(getenv("VIEWPORT_HEIGHT", "720"), "VIEWPORT_HEIGHT")
	if err != nil {
		return config{}, err
	}
	cfg.ViewportHeight = height

	if len(cfg.AllowedURLs) == 0 {
		return config{}, fmt.Errorf("ALLOWED_URLS must list at least one entry or *")
	}

	return cfg, nil
}

func parsePositiveInt(value string, name string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero (got %d)", name, v)
	}
	return v, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
