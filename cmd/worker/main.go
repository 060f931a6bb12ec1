// cmd/worker/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bookrental/internal/borrowing"
	"bookrental/internal/catalog"
	"bookrental/internal/clients"
	"bookrental/internal/config"
	"bookrental/internal/journal"
	"bookrental/internal/notify"
	"bookrental/internal/payment"
	"bookrental/internal/store"
	"bookrental/internal/telemetry"
	"bookrental/internal/worker"
)

const (
	jobOverdue  = "overdue-sweep"
	jobExpiries = "payment-expiry"
)

func main() {
	once := flag.Bool("once", false, "run the selected jobs one time and exit")
	jobs := flag.String("job", "", "comma separated jobs to run ("+jobOverdue+", "+jobExpiries+"); default all")
	flag.Parse()

	if err := run(*once, *jobs); err != nil {
		slog.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}

func run(once bool, jobs string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName+"-worker", cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	events := journal.New(db)
	dispatcher := notify.NewDispatcher(clients.NewTelegramClient(cfg.Telegram), cfg.Telegram.ChatID, logger)
	books := catalog.NewService(db, catalog.NewPostgresRepository(db), logger)
	payments := payment.NewService(db, payment.NewPostgresRepository(db), clients.NewStripeClient(cfg.Stripe, logger), events, logger)
	borrowings := borrowing.NewService(db, borrowing.NewPostgresRepository(db), books, payments, events, dispatcher, logger)
	sweep := notify.NewOverdueSweep(borrowings, dispatcher, logger)

	runner := worker.NewRunner(logger,
		worker.Job{
			Name:     jobOverdue,
			Interval: cfg.OverdueInterval,
			Run: func(ctx context.Context) error {
				_, err := sweep.Run(ctx)
				return err
			},
		},
		worker.Job{
			Name:     jobExpiries,
			Interval: cfg.ExpiryInterval,
			Run: func(ctx context.Context) error {
				_, err := payments.CheckExpired(ctx)
				return err
			},
		},
	)
	if jobs != "" {
		if runner, err = runner.Select(strings.Split(jobs, ",")...); err != nil {
			return err
		}
	}

	if once {
		return runner.RunOnce(ctx)
	}
	logger.Info("worker started")
	return runner.Start(ctx)
}
