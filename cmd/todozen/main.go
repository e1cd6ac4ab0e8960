package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"todozen/internal/config"
	"todozen/internal/mirror"
	"todozen/internal/repository"
	"todozen/internal/service"
)

var (
	cfgFile string
	cfg     config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "todozen",
	Short: "Personal task manager",
	Long: `todozen keeps tasks in a local SQLite file, optionally mirrors them to
Postgres, repeats recurring tasks, and reminds you exactly once when a task
comes due. Completing tasks earns XP and coins and keeps a daily streak.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(viper.GetViper(), cfgFile)
		if err != nil {
			return err
		}
		logger = config.NewLogger(os.Stderr, cfg.LogLevel)
		slog.SetDefault(logger)
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	config.SetDefaults(viper.GetViper())
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.Bool("json", false, "output JSON")
	flags.String("db", "", "local database path")
	flags.String("owner", "", "profile that owns new tasks")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("mirror-url", "", `postgres mirror URL ("off" disables)`)
	_ = viper.BindPFlag("json", flags.Lookup("json"))
	_ = viper.BindPFlag("database_path", flags.Lookup("db"))
	_ = viper.BindPFlag("owner", flags.Lookup("owner"))
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("mirror_url", flags.Lookup("mirror-url"))
}

func registerCommands() {
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(doneCmd())
	rootCmd.AddCommand(editCmd())
	rootCmd.AddCommand(snoozeCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(categoriesCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(runCmd())
}

// app is one opened local store plus the services layered on it.
type app struct {
	store      *repository.Store
	reconciler *mirror.Reconciler

	tasks      *service.TaskService
	completion *service.CompletionService
	profiles   *service.ProfileService
	categories *service.CategoryService
	reminders  *service.ReminderService
}

// openApp opens the local store. With withMirror set it also connects the
// remote mirror and pushes every local write to it in the background.
func openApp(ctx context.Context, withMirror bool) (*app, error) {
	db, err := repository.NewDB(cfg.DatabasePath, logger)
	if err != nil {
		return nil, err
	}
	store := repository.NewStore(db, cfg.StoreTimeout, logger)

	remote := mirror.Remote(mirror.Nop{})
	if withMirror {
		remote = mirror.Connect(ctx, cfg.MirrorURL, cfg.MirrorProbeTimeout, logger)
	}
	reconciler := mirror.NewReconciler(remote, mirror.ReconcilerConfig{
		QueueSize:    cfg.MirrorQueueSize,
		WriteTimeout: cfg.MirrorWriteTimeout,
	}, logger)
	if reconciler.Enabled() {
		reconciler.Start()
		store.AddObserver(reconciler)
	}

	profiles := service.NewProfileService(store)
	return &app{
		store:      store,
		reconciler: reconciler,
		tasks:      service.NewTaskService(store),
		completion: service.NewCompletionService(store, store, service.DefaultRewardPolicy(), logger),
		profiles:   profiles,
		categories: service.NewCategoryService(store),
		reminders:  service.NewReminderService(store, profiles),
	}, nil
}

// Close drains pending mirror writes within the shutdown timeout and then
// closes the local store.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := a.reconciler.Stop(ctx); err != nil {
		logger.Warn("mirror drain incomplete", "error", err)
	}
	return a.store.Close()
}

func withApp(ctx context.Context, withMirror bool, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(ctx, withMirror)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("close store", "error", err)
		}
	}()
	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
