// cmd/snapshot provides a one-shot headless runner: it drains the capture
// queue without any in-page UI, uploading a full-viewport crop for every job.
// Useful for smoke-testing the job service and for unattended captures.
//
// Usage:
//
//	./snapshot                  # process the whole queue
//	./snapshot -limit 3         # process at most 3 jobs
//	./snapshot -dry-run         # fetch and navigate, skip uploads
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/snapq/capture-coordinator/internal/crop"
	"github.com/snapq/capture-coordinator/internal/remote"
	"github.com/snapq/capture-coordinator/internal/tab"
	"github.com/snapq/capture-coordinator/internal/workflow"
	"github.com/snapq/capture-coordinator/pkg/schema"
)

func main() {
	baseURL := flag.String("remote", "", "job service base URL (default REMOTE_BASE_URL or http://localhost:5177)")
	allowed := flag.String("allowed", "", "comma-separated allowed URL prefixes (default ALLOWED_URLS or *)")
	limit := flag.Int("limit", 0, "process at most this many jobs (0 = all)")
	dryRun := flag.Bool("dry-run", false, "navigate and capture but skip uploads")
	timeout := flag.Int("timeout", 60, "per-page load timeout in seconds")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if *baseURL == "" {
		*baseURL = getenv("REMOTE_BASE_URL", "http://localhost:5177")
	}
	if *allowed == "" {
		*allowed = getenv("ALLOWED_URLS", "*")
	}

	policy, err := workflow.NewAllowPolicy(splitList(*allowed))
	if err != nil {
		fatal(logger, "parse allow policy", err)
	}

	if err := run(context.Background(), runConfig{
		baseURL: *baseURL,
		policy:  policy,
		limit:   *limit,
		dryRun:  *dryRun,
		timeout: time.Duration(*timeout) * time.Second,
		logger:  logger,
	}); err != nil {
		fatal(logger, "snapshot run", err)
	}
}

type runConfig struct {
	baseURL string
	policy  *workflow.AllowPolicy
	limit   int
	dryRun  bool
	timeout time.Duration
	logger  *slog.Logger
}

func run(ctx context.Context, cfg runConfig) error {
	client := remote.NewClient(cfg.baseURL)

	jobs, err := client.FetchJobs(ctx)
	if err != nil {
		return fmt.Errorf("fetch jobs: %w", err)
	}
	if len(jobs) == 0 {
		return fmt.Errorf("job queue is empty")
	}
	if cfg.limit > 0 && len(jobs) > cfg.limit {
		jobs = jobs[:cfg.limit]
	}
	cfg.logger.Info("queue fetched", "jobs", len(jobs), "dry_run", cfg.dryRun)

	browser, err := tab.Launch(tab.Options{Headless: true})
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer browser.Close()

	tabID, err := browser.OpenTab()
	if err != nil {
		return fmt.Errorf("open tab: %w", err)
	}

	waiter := tab.NewWaiter(browser, cfg.timeout, tab.DefaultSettleDelay)

	for i, job := range jobs {
		jobLogger := cfg.logger.With("job_id", job.ID, "index", i)

		if !cfg.policy.Allows(job.URL) {
			return fmt.Errorf("job %s: url not allowed: %s", job.ID, job.URL)
		}
		if err := waiter.Navigate(ctx, tabID, job.URL); err != nil {
			return fmt.Errorf("job %s: %w", job.ID, err)
		}

		frame, err := browser.CaptureVisible(ctx, tabID)
		if err != nil {
			return fmt.Errorf("job %s: capture: %w", job.ID, err)
		}

		decoded, err := crop.DecodeFrame(frame)
		if err != nil {
			return fmt.Errorf("job %s: decode capture: %w", job.ID, err)
		}
		rect := schema.Rect{W: decoded.Bounds().Dx(), H: decoded.Bounds().Dy()}

		img, err := crop.Crop(frame, rect)
		if err != nil {
			return fmt.Errorf("job %s: crop: %w", job.ID, err)
		}

		if cfg.dryRun {
			jobLogger.Info("captured (dry run)", "bytes", len(img))
			continue
		}

		if err := client.Upload(ctx, job, rect, img); err != nil {
			return fmt.Errorf("job %s: %w", job.ID, err)
		}
		jobLogger.Info("uploaded", "bytes", len(img))
	}

	cfg.logger.Info("queue drained", "jobs", len(jobs))
	return nil
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

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}
