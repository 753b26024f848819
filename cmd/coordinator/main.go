// cmd/coordinator runs the capture coordinator: it drives a browser tab
// through a queue of screen-capture jobs and serves the WebSocket endpoint
// the in-page selection UI connects to.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/snapq/capture-coordinator/internal/bus"
	"github.com/snapq/capture-coordinator/internal/crop"
	"github.com/snapq/capture-coordinator/internal/hub"
	"github.com/snapq/capture-coordinator/internal/remote"
	"github.com/snapq/capture-coordinator/internal/tab"
	"github.com/snapq/capture-coordinator/internal/workflow"
	"github.com/snapq/capture-coordinator/pkg/schema"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		fatal(logger, "load config", err)
	}
	logger.Info("coordinator starting",
		"addr", cfg.ListenAddr,
		"remote_base_url", cfg.RemoteBaseURL,
		"allowed_urls", cfg.AllowedURLs,
		"headless", cfg.Headless,
		"nav_timeout", cfg.NavTimeout,
	)

	policy, err := workflow.NewAllowPolicy(cfg.AllowedURLs)
	if err != nil {
		fatal(logger, "parse allow policy", err)
	}

	browser, err := tab.Launch(tab.Options{
		Headless:       cfg.Headless,
		ViewportWidth:  cfg.ViewportWidth,
		ViewportHeight: cfg.ViewportHeight,
	})
	if err != nil {
		fatal(logger, "launch browser", err)
	}
	defer browser.Close()

	tabID, err := browser.OpenTab()
	if err != nil {
		fatal(logger, "open tab", err)
	}
	logger.Info("capture tab ready", "tab_id", tabID)

	var recorder workflow.Recorder
	if cfg.NATSURL != "" {
		nc, err := bus.Connect(cfg.NATSURL)
		if err != nil {
			fatal(logger, "connect to NATS", err, "nats_url", cfg.NATSURL)
		}
		defer nc.Close()
		recorder = bus.NewRecorder(nc, cfg.RunEventSubject, logger)
		logger.Info("publishing run events", "nats_url", cfg.NATSURL, "subject", cfg.RunEventSubject)
	}

	// The hub dispatches into the orchestrator and the orchestrator messages
	// back through the hub; the function indirection breaks the construction
	// cycle.
	var orch *workflow.Orchestrator
	h := hub.New(hub.DispatcherFunc(func(tabID string, env schema.Envelope) {
		orch.Dispatch(tabID, env)
	}), logger)

	orch = workflow.New(workflow.Deps{
		Messenger: hub.NewMessenger(h, logger),
		Navigator: tab.NewWaiter(browser, cfg.NavTimeout, cfg.SettleDelay),
		Capturer:  browser,
		Remote:    remote.NewClient(cfg.RemoteBaseURL),
		Crop:      crop.Crop,
		Policy:    policy,
		Recorder:  recorder,
		Logger:    logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go orch.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening for ui connections", "addr", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fatal(logger, "serve", err)
	}
	logger.Info("coordinator stopped")
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}
