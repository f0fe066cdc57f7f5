package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meetsched/internal/alert"
	"meetsched/internal/config"
	appLog "meetsched/internal/log"
	"meetsched/internal/notify"
	"meetsched/internal/store/postgres"
	"meetsched/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
}

func main() {
	appLog.Info("meetsched starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"alert_cron", conf.AlertCron,
		"alert_lookback_minutes", conf.AlertLookbackMinutes,
		"nats", conf.NATSURL != "",
		"once", flags.once,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	db, err := postgres.Connect(ctx, conf.PostgresDSN)
	if err != nil {
		appLog.Error("failed to connect to postgres", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		appLog.Error("failed to ensure schema", err)
		os.Exit(1)
	}

	store := postgres.NewStore(db)

	var notifier notify.Notifier = notify.LogNotifier{}
	if conf.NATSURL != "" {
		pub, err := notify.NewPublisher(conf.NATSURL)
		if err != nil {
			appLog.Error("failed to connect to NATS", err, "url", conf.NATSURL)
			os.Exit(1)
		}
		defer pub.Close()
		notifier = pub
	}

	evaluator := alert.NewEvaluator(store, notifier,
		time.Duration(conf.AlertLookbackMinutes)*time.Minute)

	if flags.once {
		// Single evaluator pass, then exit.
		if err := evaluator.Run(ctx); err != nil {
			os.Exit(1)
		}
		appLog.Info("meetsched exiting")
		return
	}

	runner, err := alert.StartRunner(ctx, conf.AlertCron, evaluator)
	if err != nil {
		appLog.Error("failed to start alert runner", err)
		os.Exit(1)
	}
	defer runner.Stop()

	if err := web.StartServer(ctx, conf, store); err != nil {
		appLog.Error("HTTP server stopped", err)
		os.Exit(1)
	}

	appLog.Info("meetsched exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/meetsched/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one alert evaluation pass and exit")

	flag.Parse()

	return cfg
}
