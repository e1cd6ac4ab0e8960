package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"todozen/internal/bot"
	"todozen/internal/httpapi"
	"todozen/internal/service"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run reminders, mirror sync, and the optional bot and HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

func run(ctx context.Context) error {
	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("close store", "error", err)
		}
	}()

	sinks := service.MultiSink{service.LogSink{Logger: logger}}

	var telegramBot *bot.Bot
	if cfg.TelegramToken != "" {
		telegramBot, err = bot.New(cfg.TelegramToken, bot.Services{
			Tasks:      a.tasks,
			Completion: a.completion,
			Categories: a.categories,
			Reminders:  a.reminders,
		}, bot.Options{ChatID: cfg.TelegramChatID, Owner: cfg.Owner, Location: time.Local}, logger)
		if err != nil {
			return err
		}
		sinks = append(sinks, telegramBot)
	}

	notifier := service.NewNotifier(a.store, sinks, service.NotifierConfig{
		Owner:     cfg.Owner,
		Grace:     cfg.GraceWindow,
		Lookahead: cfg.Lookahead,
	}, logger)

	scheduler := service.NewSchedulerService(time.Local, logger)
	notifyPass := func(ctx context.Context) {
		passCtx, cancel := context.WithTimeout(ctx, cfg.PollInterval)
		defer cancel()
		if _, err := notifier.Pass(passCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("notification pass failed", "error", err)
		}
	}
	if _, err := scheduler.ScheduleInterval(cfg.PollInterval, notifyPass); err != nil {
		return fmt.Errorf("schedule notifier: %w", err)
	}

	reconcile := func(ctx context.Context) {
		if _, err := a.reconciler.Reconcile(ctx, a.store); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("mirror reconcile failed", "error", err)
		}
	}
	if a.reconciler.Enabled() && cfg.ReconcileInterval > 0 {
		if _, err := scheduler.ScheduleInterval(cfg.ReconcileInterval, reconcile); err != nil {
			return fmt.Errorf("schedule reconcile: %w", err)
		}
	}

	if telegramBot != nil && cfg.SummaryAt != "" {
		if _, err := scheduler.ScheduleDaily(cfg.SummaryAt, func(ctx context.Context) {
			jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := telegramBot.SendDailySummary(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("daily summary failed", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("schedule summary: %w", err)
		}
	}

	// First pass runs before the first tick.
	notifyPass(ctx)
	var wg sync.WaitGroup
	if a.reconciler.Enabled() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reconcile(ctx)
		}()
	}
	scheduler.Start()

	errCh := make(chan error, 2)
	botCtx, stopBot := context.WithCancel(ctx)
	defer stopBot()
	botDone := make(chan struct{})
	if telegramBot != nil {
		go func() {
			defer close(botDone)
			if err := telegramBot.Start(botCtx); err != nil {
				errCh <- fmt.Errorf("bot: %w", err)
			}
		}()
	} else {
		close(botDone)
	}

	var server *httpapi.Server
	if cfg.HTTPAddr != "" {
		handler := httpapi.NewTaskHandler(a.tasks, a.completion, a.profiles, cfg.Owner)
		server = httpapi.NewServer(cfg.HTTPAddr, handler, logger)
		go func() {
			if err := server.Start(); err != nil {
				errCh <- fmt.Errorf("http: %w", err)
			}
		}()
	}

	logger.Info("todozen running",
		"owner", cfg.Owner,
		"mirror", a.reconciler.Enabled(),
		"bot", telegramBot != nil,
		"http", cfg.HTTPAddr,
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		logger.Error("component failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
	}
	stopBot()
	if err := scheduler.Stop(cfg.ShutdownTimeout); err != nil {
		logger.Warn("scheduler shutdown", "error", err)
	}
	// The store closes after this returns; in-flight bot updates finish first.
	select {
	case <-botDone:
	case <-shutdownCtx.Done():
		logger.Warn("bot shutdown timed out")
	}
	wg.Wait()

	logger.Info("shutdown complete")
	return runErr
}
