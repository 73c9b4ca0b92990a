package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trogers1052/stock-price-alerts/internal/api"
	rediscache "github.com/trogers1052/stock-price-alerts/internal/cache/redis"
	"github.com/trogers1052/stock-price-alerts/internal/clock"
	"github.com/trogers1052/stock-price-alerts/internal/config"
	"github.com/trogers1052/stock-price-alerts/internal/database"
	"github.com/trogers1052/stock-price-alerts/internal/detector"
	"github.com/trogers1052/stock-price-alerts/internal/kafka"
	"github.com/trogers1052/stock-price-alerts/internal/monitor"
	"github.com/trogers1052/stock-price-alerts/internal/notify"
	"github.com/trogers1052/stock-price-alerts/internal/quote"
	"github.com/trogers1052/stock-price-alerts/internal/quote/alphavantage"
	"github.com/trogers1052/stock-price-alerts/internal/schedule"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("stock alerts stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("stock alerts stopped")
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.Database.MigrationsPath); err != nil {
		return err
	}
	added, err := db.SeedMonitoredStocks(ctx, cfg.Watchlist)
	if err != nil {
		return err
	}
	if added > 0 {
		logger.Info("seeded watchlist from config", "added", added)
	}

	checks := map[string]api.Pinger{"database": db}

	var fireStore schedule.FireStore
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		store := rediscache.NewFireStore(client, cfg.Redis.Prefix, logger)
		if err := store.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, schedule state may not survive restarts", "addr", cfg.Redis.Addr, "error", err)
		}
		fireStore = store
		checks["redis"] = store
	}

	loc := cfg.Location()
	hours, err := schedule.NewMarketHours(cfg.MarketHours.OnlyDuringMarketHours, cfg.MarketHours.Open, cfg.MarketHours.Close, loc)
	if err != nil {
		return err
	}
	engine, err := schedule.NewEngine(cfg.AlertSchedule, loc, hours, fireStore, logger)
	if err != nil {
		return err
	}
	if err := engine.Restore(ctx); err != nil {
		logger.Warn("failed to restore schedule state", "error", err)
	}

	det, err := detector.New(cfg.Threshold())
	if err != nil {
		return err
	}

	clk := clock.Real{}
	av := alphavantage.New(cfg.AlphaVantage.APIKey,
		alphavantage.WithBaseURL(cfg.AlphaVantage.BaseURL),
		alphavantage.WithHTTPClient(alphavantage.NewHTTPClient(cfg.AlphaVantage.Timeout)),
		alphavantage.WithClock(clk),
	)
	source := quote.NewSource(av, quote.NewGate(clk, cfg.APIDelay()), cfg.RetryPolicy(), clk, logger)

	channels := buildChannels(cfg, logger)
	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.AlertsTopic)
		defer producer.Close()
		channels = append(channels, producer)
	}
	dispatcher := notify.NewDispatcher(cfg.SendTimeout(), logger, channels...)

	loop := monitor.New(monitor.Config{
		ScheduleInterval:   cfg.ScheduleInterval(),
		PriceInterval:      cfg.PriceInterval(),
		PruneInterval:      cfg.PruneInterval(),
		Retention:          cfg.Retention(),
		PriceAlertsEnabled: cfg.PriceAlerts.Enabled,
		Channels:           cfg.Notifications.Channels,
		Format: monitor.FormatOptions{
			IncludeVolume:     cfg.Notifications.IncludeVolume,
			IncludeDayHighLow: cfg.Notifications.IncludeDayHighLow,
		},
	}, monitor.Deps{
		Watchlist:  db,
		Quotes:     source,
		History:    db,
		Alerts:     db,
		Detector:   det,
		Schedule:   engine,
		Hours:      hours,
		Dispatcher: dispatcher,
		Clock:      clk,
	}, logger)

	if len(cfg.Kafka.Brokers) > 0 {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.WatchlistTopic, cfg.Kafka.GroupID, db, logger)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				logger.Error("kafka consumer stopped", "error", err)
			}
		}()
	}

	handler := api.NewHandler(db, checks, loop, logger)
	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      api.SetupRoutes(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		logger.Info("server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("error listening and serving", "error", err)
		}
	}()

	logger.Info("monitor starting",
		"timezone", loc.String(),
		"schedule_rules", len(cfg.AlertSchedule),
		"price_alerts", cfg.PriceAlerts.Enabled,
		"threshold", cfg.Threshold().String(),
		"channels", dispatcher.Channels(),
	)
	runErr := loop.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("gracefully shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}
	return runErr
}

func buildChannels(cfg *config.Config, logger *slog.Logger) []notify.Channel {
	sms := notify.NewSMS(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber, cfg.Twilio.ToNumber)
	email := notify.NewEmail(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Recipient)

	for _, name := range cfg.Notifications.Channels {
		switch {
		case name == sms.Name() && !sms.Enabled():
			logger.Warn("sms channel selected but Twilio credentials are incomplete")
		case name == email.Name() && !email.Enabled():
			logger.Warn("email channel selected but SMTP credentials are incomplete")
		}
	}
	return []notify.Channel{sms, email}
}
