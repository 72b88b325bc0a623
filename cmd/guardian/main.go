package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Aypp23/decibel-guardian/config"
	"github.com/Aypp23/decibel-guardian/core"
	"github.com/Aypp23/decibel-guardian/decibel"
	zerologadapter "github.com/Aypp23/decibel-guardian/logger/zerolog"
	"github.com/Aypp23/decibel-guardian/monitor"
	"github.com/Aypp23/decibel-guardian/notification"
	"github.com/Aypp23/decibel-guardian/registry"
	"github.com/Aypp23/decibel-guardian/server"
	"github.com/Aypp23/decibel-guardian/storage"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const logTimeFormat = "2006-01-02 15:04:05"

func main() {
	rootCmd := &cobra.Command{
		Use:     "guardian",
		Short:   "Liquidation and price alert bot for Decibel perpetuals",
		Version: "1.0.0",
		RunE:    run,
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadAppConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := decibel.NewClient(decibel.Config{
		BaseURL:   cfg.Decibel.BaseURL,
		APIKey:    cfg.Decibel.APIKey,
		RateLimit: cfg.Decibel.RateLimit,
	}, log)

	users := registry.New()

	snapshots, err := storage.NewInMemory()
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}
	defer snapshots.Close()

	telegram, err := notification.NewTelegram(
		cfg.Telegram.Token,
		users,
		client,
		snapshots,
		notification.Defaults{
			ThresholdPct: cfg.Monitor.ThresholdPct,
			Cooldown:     cfg.Monitor.Cooldown,
		},
		log,
	)
	if err != nil {
		return err
	}

	engine := monitor.New(client, users, snapshots, telegram, log,
		monitor.WithInterval(cfg.Monitor.PollInterval),
		monitor.WithFetchLimit(cfg.Monitor.FetchConcurrency),
	)

	httpServer := server.New(cfg.Port, log)
	httpServer.Start()
	defer httpServer.Stop()

	telegram.Start()
	defer telegram.Stop()

	log.Info("decibel guardian started")
	engine.Start(ctx)

	log.Info("shutting down")
	return nil
}

// newLogger builds the console logger used across the process.
func newLogger(level string) (core.Logger, error) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(logLevel)

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: logTimeFormat,
	}
	logger := zerolog.New(output).With().Timestamp().Logger()

	return zerologadapter.NewAdapter(&logger), nil
}
