// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bookrental/internal/api"
	"bookrental/internal/auth"
	"bookrental/internal/borrowing"
	"bookrental/internal/catalog"
	"bookrental/internal/clients"
	"bookrental/internal/config"
	"bookrental/internal/journal"
	"bookrental/internal/membership"
	"bookrental/internal/notify"
	"bookrental/internal/payment"
	"bookrental/internal/store"
	"bookrental/internal/telemetry"
)

func main() {
	createStaff := flag.String("create-staff", "", "create a staff account given as email:password and exit")
	flag.Parse()

	if err := run(*createStaff); err != nil {
		slog.Error("api stopped", "error", err)
		os.Exit(1)
	}
}

func run(createStaff string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
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
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	users := membership.NewService(membership.NewPostgresRepository(db), tokens, logger, nil)

	if createStaff != "" {
		email, password, ok := strings.Cut(createStaff, ":")
		if !ok {
			return errors.New("-create-staff expects email:password")
		}
		user, err := users.CreateStaff(ctx, email, password)
		if err != nil {
			return fmt.Errorf("create staff: %w", err)
		}
		logger.Info("staff account created", "user_id", user.ID, "email", user.Email)
		return nil
	}

	events := journal.New(db)
	dispatcher := notify.NewDispatcher(clients.NewTelegramClient(cfg.Telegram), cfg.Telegram.ChatID, logger)
	books := catalog.NewService(db, catalog.NewPostgresRepository(db), logger)
	payments := payment.NewService(db, payment.NewPostgresRepository(db), clients.NewStripeClient(cfg.Stripe, logger), events, logger)
	borrowings := borrowing.NewService(db, borrowing.NewPostgresRepository(db), books, payments, events, dispatcher, logger)

	router := api.NewRouter(api.Handlers{
		Users:      membership.NewHandler(users, logger),
		Books:      catalog.NewHandler(books, logger),
		Borrowings: borrowing.NewHandler(borrowings, logger),
		Payments:   payment.NewHandler(payments, logger),
	}, tokens, db, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
