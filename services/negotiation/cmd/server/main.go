package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dealroom/pkg/authn"
	"dealroom/pkg/db"
	"dealroom/pkg/webhooks"
	"dealroom/services/negotiation/internal/api"
	"dealroom/services/negotiation/internal/closing"
	"dealroom/services/negotiation/internal/engine"
	"dealroom/services/negotiation/internal/events"
	"dealroom/services/negotiation/internal/metrics"
	"dealroom/services/negotiation/internal/propertyclient"
	"dealroom/services/negotiation/internal/store"
)

func main() {
	bootstrap := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		bootstrap.Error("config_load_failed", slog.Any("err", err))
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service_terminated", slog.Any("err", err))
		os.Exit(1)
	}
	logger.Info("service_stopped")
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	m := metrics.New()

	var (
		st   store.Store
		auth authn.Authenticator
	)
	switch cfg.StoreDriver {
	case "memory":
		tokens, err := authn.ParseStaticTokens(cfg.PartyTokens)
		if err != nil {
			return err
		}
		st = store.NewMemory()
		auth = authn.NewStaticAuthenticator(tokens)
	default:
		pool, err := db.Connect(ctx, db.Options{DSN: cfg.DatabaseURL, MaxConns: int32(cfg.DBMaxConns)})
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
		st = store.NewPostgres(pool)
		auth = authn.PGAuthenticator{DB: pool}
	}

	var properties engine.PropertyResolver
	if cfg.PropertyBaseURL != "" {
		properties = propertyclient.New(cfg.PropertyBaseURL, cfg.HTTPClientTimeout)
	} else {
		static, err := propertyclient.ParseStatic(cfg.StaticProperties)
		if err != nil {
			return err
		}
		properties = static
	}

	var closer engine.ClosingFactory = closing.NewLocal()
	if cfg.ClosingBaseURL != "" {
		closer = closing.New(cfg.ClosingBaseURL, cfg.HTTPClientTimeout)
	}

	var publisher engine.Publisher = events.Nop{}
	pubCfg := events.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}
	if pubCfg.Enabled() {
		kp, err := events.NewKafkaPublisher(pubCfg, logger, m)
		if err != nil {
			return err
		}
		kp.Start(ctx)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := kp.Stop(stopCtx); err != nil {
				logger.Warn("event_publisher_stop_failed", slog.Any("err", err))
			}
		}()
		publisher = kp
	}

	var callbacks webhooks.Verifier
	if cfg.CallbackSecret != "" {
		v, err := webhooks.NewHMACVerifier(cfg.CallbackSecret, webhooks.DefaultTolerance)
		if err != nil {
			return err
		}
		callbacks = v
	}

	eng := engine.New(engine.Deps{
		Store:      st,
		Properties: properties,
		Closing:    closer,
		Publisher:  publisher,
		Metrics:    m,
		Log:        logger,
	})
	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: api.New(api.Deps{
			Engine:      eng,
			Auth:        auth,
			Idempotency: st,
			Callbacks:   callbacks,
			Metrics:     m,
			Log:         logger,
		}).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("service_boot",
		slog.String("port", cfg.Port),
		slog.String("store_driver", cfg.StoreDriver),
		slog.Bool("remote_properties", cfg.PropertyBaseURL != ""),
		slog.Bool("remote_closing", cfg.ClosingBaseURL != ""),
		slog.Bool("closing_callbacks", callbacks != nil),
		slog.String("kafka_brokers", strings.Join(cfg.KafkaBrokers, ",")),
		slog.String("kafka_topic", cfg.KafkaTopic),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
