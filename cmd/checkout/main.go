package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/siege-masterclass/checkout/internal/checkout"
	"github.com/siege-masterclass/checkout/internal/events"
	"github.com/siege-masterclass/checkout/internal/gateway"
	"github.com/siege-masterclass/checkout/internal/handlers"
	"github.com/siege-masterclass/checkout/internal/leads"
	"github.com/siege-masterclass/checkout/internal/platform/config"
	"github.com/siege-masterclass/checkout/internal/platform/idempotency"
	"github.com/siege-masterclass/checkout/internal/platform/observability"
	"github.com/siege-masterclass/checkout/internal/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", invalid.Fields())
		} else {
			fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		}
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("checkout")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = observability.WithLogger(ctx, logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("checkout server stopped with error", zap.Error(err))
		_ = baseLogger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	eventLogger := observability.EventLogger(logger)

	client, err := gateway.NewClient(gateway.Options{
		TokenURL:        cfg.Gateway.TokenEndpoint,
		PaymentURL:      cfg.Gateway.PaymentEndpoint,
		LeadURL:         cfg.Gateway.LeadWebhookEndpoint,
		Timeout:         cfg.Gateway.Timeout,
		BreakerFailures: cfg.Gateway.BreakerFailures,
		BreakerCooldown: cfg.Gateway.BreakerCooldown,
		Logger:          eventLogger,
	})
	if err != nil {
		return fmt.Errorf("gateway client: %w", err)
	}

	var healthOpts []handlers.HealthOption
	var deadlines storage.DeadlineStore
	var replays idempotency.Store
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
		store, err := storage.NewRedisStore(rdb)
		if err != nil {
			return err
		}
		deadlines = store
		if replays, err = idempotency.NewRedisStore(rdb); err != nil {
			return err
		}
		healthOpts = append(healthOpts, handlers.WithReadinessCheck("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}))
		logger.Info("pix deadlines and payment replays stored in redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		deadlines = storage.NewMemoryStore(time.Now)
		replays = idempotency.NewMemoryStore()
		logger.Info("pix deadlines and payment replays stored in memory")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		sarama.Logger = observability.NewPrintfAdapter(logger.Named("sarama"))
		kafka, err := events.DialKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger.Named("events"))
		if err != nil {
			return err
		}
		defer func() {
			if err := kafka.Close(); err != nil {
				logger.Warn("kafka close error", zap.Error(err))
			}
		}()
		publisher = kafka
		logger.Info("checkout events published to kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	settings := checkout.Settings{
		UpsellPrice:   cfg.Offer.UpsellPrice,
		UpsellName:    cfg.Offer.UpsellName,
		PixTTL:        cfg.Pix.TTL,
		PixCode:       cfg.Pix.Code,
		RedirectAfter: cfg.Session.RedirectAfter,
		RedirectURL:   cfg.Session.RedirectURL,
	}
	registry, err := checkout.NewRegistry(checkout.RegistryDeps{
		NewController: func(id string) (*checkout.Controller, error) {
			return checkout.NewController(checkout.Deps{
				SessionID: id,
				Tokens:    client,
				Payments:  client,
				Deadlines: deadlines,
				Events:    publisher,
				Logger:    eventLogger,
				Settings:  settings,
			})
		},
		SessionTTL: cfg.Session.TTL,
		Logger:     eventLogger,
	})
	if err != nil {
		return err
	}
	defer registry.CloseAll()

	leadDeps := leads.Deps{Logger: eventLogger, ForwardTimeout: cfg.Gateway.Timeout}
	if client.LeadsEnabled() {
		leadDeps.Forwarder = client
	}
	leadService := leads.NewService(leadDeps)
	defer leadService.Wait()

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.TraceMiddleware(),
			observability.RequestLoggerMiddleware(logger.Named("http")),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(healthOpts...)),
		handlers.WithRateLimit(cfg.RateLimit.PerMinute, time.Now),
		handlers.WithCheckoutRoutes(handlers.NewCheckoutHandlers(registry,
			handlers.WithPaymentIdempotency(replays,
				idempotency.WithHeader(cfg.Idempotency.Header),
				idempotency.WithTTL(cfg.Idempotency.TTL),
				idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
			),
		).Routes),
		handlers.WithFieldRoutes(handlers.NewFieldHandlers(time.Now).Routes),
		handlers.WithInstallmentRoutes(handlers.NewInstallmentHandlers().Routes),
		handlers.WithLeadRoutes(handlers.NewLeadHandlers(leadService).Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("checkout api listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return registry.Run(gctx, cfg.Session.SweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received; draining requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
