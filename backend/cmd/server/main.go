package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/user/cryptodemo/backend/internal/account"
	"github.com/user/cryptodemo/backend/internal/auth"
	"github.com/user/cryptodemo/backend/internal/config"
	"github.com/user/cryptodemo/backend/internal/database"
	"github.com/user/cryptodemo/backend/internal/demo"
	"github.com/user/cryptodemo/backend/internal/events"
	"github.com/user/cryptodemo/backend/internal/events/kafka"
	"github.com/user/cryptodemo/backend/internal/handlers"
	"github.com/user/cryptodemo/backend/internal/ledger"
	"github.com/user/cryptodemo/backend/internal/middleware"
	"github.com/user/cryptodemo/backend/internal/session"
	"github.com/user/cryptodemo/backend/internal/ticker"
	"github.com/user/cryptodemo/backend/internal/trading"
	internalws "github.com/user/cryptodemo/backend/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.InsecureJWTSecret {
		logger.Warn("JWT_SECRET not set, using default insecure secret")
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.PublishTimeout)
		logger.Info("publishing trade events to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}
	defer publisher.Close()

	// Demo accounts
	manager := account.NewManager(cfg.DemoPreset, account.WithIDPrefix(cfg.Demo.IDPrefix))
	demoEngine := ledger.NewEngine(manager,
		ledger.WithAllowedSymbols(cfg.Trading.AllowedSymbols...),
		ledger.WithLogger(logger.Named("ledger")))
	demoService := demo.NewService(manager, session.NewRegistry(), demoEngine, publisher, logger.Named("demo"))
	go demoService.RunJanitor(ctx, cfg.Demo.JanitorInterval)

	logger.Info("demo accounts enabled",
		zap.String("preset", cfg.DemoPreset.Name),
		zap.String("starting_balance", cfg.DemoPreset.StartingBalance.String()),
		zap.Duration("ttl", cfg.DemoPreset.TTL))

	// Registered accounts, only with a database
	var tradingService handlers.TradingService
	if cfg.Database.URL != "" {
		store, err := database.Connect(ctx, cfg.Database.URL, logger.Named("database"))
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}

		registeredEngine := ledger.NewEngine(manager,
			ledger.WithRegisteredAccounts(),
			ledger.WithAllowedSymbols(cfg.Trading.AllowedSymbols...),
			ledger.WithLogger(logger.Named("ledger")))
		tradingService = trading.NewService(store, registeredEngine, publisher,
			cfg.RegisteredStartingBalance, cfg.DemoPreset.Currency, logger.Named("trading"))
	} else {
		logger.Info("DATABASE_URL not set, registered accounts disabled")
	}

	// Price feed
	priceTicker := ticker.New(nil, logger.Named("ticker"))
	go priceTicker.Run(ctx, cfg.Ticker.Interval)
	hub := internalws.NewHub(logger.Named("websocket"))
	go hub.Run(ctx, priceTicker.Updates())

	app := fiber.New(fiber.Config{
		AppName:               "cryptodemo",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(logger.Named("http")))

	handlers.New(handlers.Deps{
		Demo:    demoService,
		Trading: tradingService,
		Tokens:  auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Prices:  priceTicker,
		Hub:     hub,
		Logger:  logger.Named("handlers"),
	}).Routes(app)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Server.Port))
		errCh <- app.Listen(":" + cfg.Server.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newLogger(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
