package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/hookgw/internal/api"
	"github.com/mattjoyce/hookgw/internal/config"
	"github.com/mattjoyce/hookgw/internal/events"
	"github.com/mattjoyce/hookgw/internal/heartbeat"
	"github.com/mattjoyce/hookgw/internal/hooks"
	"github.com/mattjoyce/hookgw/internal/lock"
	"github.com/mattjoyce/hookgw/internal/log"
	"github.com/mattjoyce/hookgw/internal/metrics"
	"github.com/mattjoyce/hookgw/internal/runlog"
	"github.com/mattjoyce/hookgw/internal/runner"
	"github.com/mattjoyce/hookgw/internal/session"
	"github.com/mattjoyce/hookgw/internal/storage"
	"github.com/mattjoyce/hookgw/internal/webhook"
)

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	path, err := resolveConfigPath(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
		return 1
	}

	src, err := config.NewFileSource(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	cfg, err := src.Current()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, "service", cfg.Service.Name)
	logger := log.WithComponent("main")
	logger.Info("hookgw starting", "version", version, "config", src.Path(), "fingerprint", cfg.Fingerprint)

	pidLockPath := lock.PathFor(cfg.State.Path)
	pidLock, err := lock.AcquirePIDLock(pidLockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "path", pidLockPath, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLockPath)

	db, err := storage.OpenSQLite(context.Background(), cfg.State.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.State.Path, "error", err)
		return 1
	}
	defer db.Close()
	logger.Info("database opened", "path", cfg.State.Path)

	rec, err := metrics.New()
	if err != nil {
		logger.Error("failed to register metrics", "error", err)
		return 1
	}

	hub := events.NewHub(256)
	queue := events.NewSystemQueue(db)
	runs := runlog.New(db)
	exec := runner.New(runs)
	sessions := session.NewResolver(src)

	turn := &heartbeat.MainTurn{
		Sessions: sessions,
		Queue:    queue,
		Configs:  src,
		Executor: exec,
		Hub:      hub,
		Logger:   log.WithComponent("heartbeat"),
	}
	waker := heartbeat.New(turn.Handle, cfg.Heartbeat.Every, cfg.Heartbeat.Coalesce, hub, log.Get())

	callbacks := hooks.NewCallbackPoster(
		&http.Client{Timeout: cfg.Hooks.CallbackTimeout},
		hub,
		rec,
		log.WithComponent("callback"),
	)
	disp := hooks.New(hooks.Deps{
		Sessions:  sessions,
		Queue:     queue,
		Heartbeat: waker,
		Configs:   src,
		Executor:  exec,
		Callbacks: callbacks,
		Hub:       hub,
		Metrics:   rec,
	}, log.Get())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The waker outlives the servers so hooks finishing during drain can still run a turn.
	wakerCtx, stopWaker := context.WithCancel(context.Background())
	defer stopWaker()
	wakerDone := make(chan error, 1)
	go func() {
		wakerDone <- waker.Run(wakerCtx)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if cfg.Hooks.Enabled {
		hookConfig, err := webhook.FromGlobalConfig(cfg)
		if err != nil {
			logger.Error("failed to configure hooks", "error", err)
			return 1
		}
		hookServer := webhook.New(hookConfig, disp, log.Get())
		g.Go(func() error {
			return hookServer.Start(gctx)
		})
		logger.Info("hook server enabled", "listen", hookConfig.Listen, "base_path", hookConfig.BasePath)
	}

	if cfg.API.Enabled {
		apiServer := api.New(api.Config{
			Listen:        cfg.API.Listen,
			Token:         cfg.API.Token,
			HooksBasePath: cfg.Hooks.BasePath,
			CORSOrigins:   cfg.API.CORSOrigins,
		}, api.Deps{
			Runs:     runs,
			Hub:      hub,
			Metrics:  rec.Handler(),
			InFlight: disp.InFlight,
			Fingerprint: func() string {
				current, err := src.Current()
				if err != nil {
					return ""
				}
				return current.Fingerprint
			},
		}, log.Get())
		g.Go(func() error {
			return apiServer.Start(gctx)
		})
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	}

	logger.Info("hookgw running (press Ctrl+C to stop)")

	runErr := g.Wait()
	if runErr != nil {
		logger.Error("component failed", "error", runErr)
	} else {
		logger.Info("received shutdown signal")
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Service.DrainTimeout)
	defer cancelDrain()
	if err := disp.Wait(drainCtx); err != nil {
		logger.Warn("hook goroutines still running at shutdown", "in_flight", disp.InFlight(), "error", err)
	}

	stopWaker()
	if err := <-wakerDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("heartbeat stopped with error", "error", err)
	}

	if runErr != nil {
		return 1
	}
	logger.Info("hookgw stopped")
	return 0
}
