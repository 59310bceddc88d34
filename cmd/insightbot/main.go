// Command insightbot runs the Discord voice analysis bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NagataYushi0222/InsightDebateBot/internal/app"
	"github.com/NagataYushi0222/InsightDebateBot/internal/config"
	discordbot "github.com/NagataYushi0222/InsightDebateBot/internal/discord"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to the YAML configuration file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "insightbot: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "insightbot: %v\n", err)
		}
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.Slog(),
	}))
	slog.SetDefault(logger)

	slog.Info("insightbot starting",
		"provider", cfg.Analysis.Provider,
		"metrics_addr", cfg.Server.MetricsAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot, err := discordbot.New(ctx, discordbot.Config{
		Token:          cfg.Discord.Token,
		CommandGuildID: cfg.Discord.CommandGuildID,
	})
	if err != nil {
		slog.Error("failed to create Discord bot", "err", err)
		return 1
	}
	slog.Info("discord gateway connected")

	application, err := app.New(ctx, cfg, app.Deps{
		Platform: bot.Platform(),
		Delivery: discordbot.NewReportDelivery(bot.Session(), logger),
	})
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		if cerr := bot.Close(); cerr != nil {
			slog.Warn("discord bot close error", "err", cerr)
		}
		return 1
	}

	commands := discordbot.NewCommands(
		application.Engine(),
		application.Settings(),
		application.Credentials(),
		application.Reports(),
		logger,
	)
	commands.Register(bot.Router())

	go func() {
		if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("discord bot error", "err", err)
		}
	}()

	slog.Info("insightbot ready")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("shutdown signal received, stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Stop sessions first so final reports still reach Discord, then take
	// the gateway down.
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if err := bot.Close(); err != nil {
		slog.Warn("discord bot close error", "err", err)
	}
	slog.Info("goodbye")
	return 0
}
