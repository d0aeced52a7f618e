package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/aashrilshazar/WorldSalesMap/internal/app"
	"github.com/aashrilshazar/WorldSalesMap/internal/config"
	"github.com/aashrilshazar/WorldSalesMap/internal/logging"
	"github.com/aashrilshazar/WorldSalesMap/internal/newsjob"
	"github.com/aashrilshazar/WorldSalesMap/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	cancelJob := flag.Bool("cancel", false, "cancel the running refresh job")
	clearSnapshot := flag.Bool("clear", false, "cancel the running job and reset the snapshot")
	schedule := flag.String("schedule", "", "cron spec for recurring refreshes, e.g. \"0 */6 * * *\"")
	maxSteps := flag.Int("max-steps", 1000, "upper bound on batches per run")
	pause := flag.Duration("pause", time.Second, "pause between batches")
	flag.Parse()

	godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	slog.SetDefault(logging.New(cfg.Log.Level, cfg.Log.File))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer a.Close()

	switch {
	case *clearSnapshot:
		res, err := a.Engine.Clear(ctx)
		if err != nil {
			slog.Error("clear failed", "error", err)
			return
		}
		slog.Info("snapshot cleared", "status", res.Status)

	case *cancelJob:
		res, err := a.Engine.Cancel(ctx)
		if err != nil {
			slog.Error("cancel failed", "error", err)
			return
		}
		slog.Info("refresh cancelled", "status", res.Status)

	case *schedule != "":
		s := scheduler.NewScheduler(a.Engine, *schedule, *maxSteps, *pause)
		if err := s.Start(); err != nil {
			log.Fatalf("%v", err)
		}

		<-ctx.Done()
		slog.Info("shutting down scheduler")
		s.Stop()

	default:
		res, err := newsjob.RunToCompletion(ctx, a.Engine, *maxSteps, *pause)
		if err != nil {
			slog.Error("refresh failed", "error", err)
			return
		}
		slog.Info("refresh finished", "status", res.Status, "items", len(res.Items), "errors", len(res.Errors))
	}
}
