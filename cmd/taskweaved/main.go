// Command taskweaved is the taskweave scheduler daemon. It runs the
// scheduling cycle on a fixed interval and serves the HTTP control
// surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taskweave/taskweave/config"
	"github.com/taskweave/taskweave/internal/version"
	"github.com/taskweave/taskweave/metrics"
	"github.com/taskweave/taskweave/notion"
	"github.com/taskweave/taskweave/retry"
	"github.com/taskweave/taskweave/schedule"
	"github.com/taskweave/taskweave/server"
	"github.com/taskweave/taskweave/task"
)

var (
	configPath  = flag.String("config", "taskweave.yaml", "path to config file")
	once        = flag.Bool("once", false, "run a single scheduling cycle and exit")
	localDB     = flag.String("local", "", "use a local SQLite task store at this path instead of Notion")
	dryRun      = flag.Bool("dry-run", false, "log placements without writing them back")
	showVersion = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("taskweaved %s (%s)\n", version.Version, version.Commit)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))

	logger.Info("starting taskweaved",
		"version", version.Version,
		"commit", version.Commit,
	)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid scheduler config: %v", err)
	}
	loc, err := cfg.Scheduler.Location()
	if err != nil {
		log.Fatalf("Invalid timezone: %v", err)
	}
	workdays, err := cfg.Scheduler.WorkdaySet()
	if err != nil {
		log.Fatalf("Invalid workdays: %v", err)
	}

	var store task.Store
	if *localDB != "" {
		sqlStore, err := task.NewSQLiteStore(*localDB)
		if err != nil {
			log.Fatalf("Failed to open local store: %v", err)
		}
		defer sqlStore.Close()
		store = sqlStore
		logger.Info("using local task store", "path", *localDB)
	} else {
		if err := cfg.ValidateNotion(); err != nil {
			log.Fatalf("Invalid notion config: %v", err)
		}
		store = notion.NewClient(notion.Config{
			APIKey:     cfg.Notion.APIKey,
			DatabaseID: cfg.Notion.DatabaseID,
			BaseURL:    cfg.Notion.BaseURL,
			Location:   loc,
		})
	}

	cal := schedule.Calendar{
		WorkStartHour: cfg.Scheduler.WorkStartHour,
		WorkEndHour:   cfg.Scheduler.WorkEndHour,
		SlotMinutes:   cfg.Scheduler.SlotMinutes,
		HorizonDays:   cfg.Scheduler.HorizonDays,
		Location:      loc,
		Workdays:      workdays,
	}
	writer := schedule.NewWriter(store, retry.DefaultPolicy(), logger)
	writer.SetDryRun(*dryRun)
	if *dryRun {
		logger.Info("dry run mode: no changes will be written")
	}

	interval := time.Duration(cfg.Scheduler.IntervalMinutes) * time.Minute
	runner := schedule.NewRunner(store, cal, writer, cfg.Scheduler.Owner, interval, logger)
	runner.SetObserver(metrics.New(prometheus.DefaultRegisterer))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *once {
		stats, err := runner.RunCycle(ctx)
		if err != nil {
			log.Fatalf("Scheduling cycle failed: %v", err)
		}
		fmt.Printf("scheduled=%d rescheduled=%d skipped=%d errors=%d duration=%s\n",
			stats.Scheduled, stats.Rescheduled, stats.Skipped, stats.Errors, stats.Duration)
		return
	}

	srv := server.New(cfg.Server, version.Version, logger)
	srv.SetScheduler(runner)
	srv.SetMetricsHandler(promhttp.Handler())

	go runner.Start(ctx)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("server stop error", "error", err)
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
