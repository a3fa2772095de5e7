package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newsherald/app/api"
	"newsherald/app/cfg"
	"newsherald/app/config"
	"newsherald/app/database"
	"newsherald/app/dispatch"
	"newsherald/app/enqueue"
	"newsherald/app/platform/discord"
	"newsherald/app/poller"
	"newsherald/app/source"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting NewsHerald", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	categories, err := config.NewLoader(appCfg.ConfigDir).LoadAll()
	if err != nil {
		slog.Error("Failed to load category definitions", "dir", appCfg.ConfigDir, "error", err)
		os.Exit(1)
	}
	if len(categories) == 0 {
		slog.Warn("No category definitions found", "dir", appCfg.ConfigDir)
	}
	slog.Info("Loaded category definitions", "count", len(categories))

	accents := make(map[string]*int, len(categories))
	for _, category := range categories {
		accents[category.Name] = category.Accent()
		if accents[category.Name] == nil {
			slog.Warn("Category has no accent color, its jobs cannot render", "category", category.Name)
		}
	}

	newsRepo := database.NewNewsRepository(db)
	subscriptionRepo := database.NewSubscriptionRepository(db)
	queueRepo := database.NewQueueRepository(db)
	postedRepo := database.NewPostedMessageRepository(db)

	platformClient, err := discord.New(appCfg.DiscordToken)
	if err != nil {
		slog.Error("Failed to create Discord client", "error", err)
		os.Exit(1)
	}

	enqueueService := enqueue.NewService(subscriptionRepo, postedRepo, queueRepo)

	dispatcher := dispatch.New(queueRepo, postedRepo, platformClient,
		func(category string) *int { return accents[category] },
		dispatch.Config{
			Concurrency:      appCfg.Concurrency,
			MaxAttempts:      appCfg.MaxAttempts,
			FastTick:         time.Duration(appCfg.FastTickMS) * time.Millisecond,
			SlowTick:         time.Duration(appCfg.SlowTickSeconds) * time.Second,
			StaleAfter:       time.Duration(appCfg.StaleAfterMinutes) * time.Minute,
			RatePerWindow:    appCfg.RatePerWindow,
			RateWindow:       time.Duration(appCfg.RateWindowSeconds) * time.Second,
			GlobalRatePerSec: appCfg.GlobalRatePerSec,
		})

	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		dispatcher.Run(dispatchCtx)
	}()

	httpClient := &http.Client{Timeout: 30 * time.Second}
	sourceClient := source.NewClient(httpClient, appCfg.UserAgent)
	categoryPoller := poller.New(sourceClient, newsRepo, enqueueService,
		appCfg.Location(), appCfg.FloodCeiling)

	runner, err := poller.NewRunner(categoryPoller, categories, queueRepo,
		time.Duration(appCfg.RetentionHours)*time.Hour)
	if err != nil {
		slog.Error("Failed to schedule pollers", "error", err)
		os.Exit(1)
	}
	runner.Start()
	defer runner.Stop()

	apiHandler := api.NewHandler(queueRepo, newsRepo, runner, appCfg.Version)
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(apiHandler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	slog.Info("NewsHerald started")

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	stopDispatch()
	select {
	case <-dispatchDone:
	case <-shutdownCtx.Done():
		slog.Warn("Dispatcher did not drain in time; claimed jobs will be recovered on restart")
	}

	slog.Info("Shutdown complete")
}
