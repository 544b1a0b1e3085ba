package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"template_shop_server/config"
	"template_shop_server/internal/ai"
	"template_shop_server/internal/cart"
	"template_shop_server/internal/flow"
	"template_shop_server/internal/orders"
	"template_shop_server/internal/payment"
)

const defaultOllamaModel = "llama3.1"

func buildGenerator(cfg config.Config, logger *zap.Logger) (ai.Generator, error) {
	mode, err := ai.ParseMode(cfg.GenerationMode)
	if err != nil {
		return nil, err
	}

	var completer ai.Completer
	switch cfg.AIProvider {
	case "ollama":
		model := cfg.AIModel
		if model == "" {
			model = defaultOllamaModel
		}
		oc, err := ai.NewOllamaClient(cfg.OllamaURL, model, cfg.AITemperature, cfg.AITimeout, logger)
		if err != nil {
			return nil, err
		}
		completer = oc
	default:
		if cfg.OpenAIKey == "" {
			logger.Warn("OPENAI_API_KEY is not set; generation calls will fail")
		}
		completer = ai.NewOpenAIClient(ai.OpenAIConfig{
			APIKey:      cfg.OpenAIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.AIModel,
			Temperature: cfg.AITemperature,
			Timeout:     cfg.AITimeout,
		}, logger)
	}

	var opts []ai.Option
	if cfg.AIMaxPromptTokens > 0 {
		opts = append(opts, ai.WithPromptLimit(cfg.AIMaxPromptTokens, ai.NewTiktokenCounter(cfg.AIModel, logger)))
	}
	logger.Info("Generation service ready",
		zap.String("provider", completer.Provider()),
		zap.String("mode", string(mode)),
	)
	return ai.NewService(completer, mode, logger, opts...), nil
}

func buildGateway(cfg config.Config, logger *zap.Logger) payment.Gateway {
	switch cfg.PaymentProvider {
	case "backend":
		return payment.NewBackendGateway(cfg.PaymentBackendURL, cfg.PaymentAPIKey, cfg.PaymentTimeout, logger)
	case "stripe":
		return payment.NewStripeGateway(payment.StripeConfig{
			SecretKey:  cfg.StripeSecretKey,
			SuccessURL: cfg.SuccessURL,
			CancelURL:  cfg.CancelURL,
			Timeout:    cfg.PaymentTimeout,
		}, logger)
	default:
		return payment.NewSimulatedGateway(cfg.PaymentDelay, logger)
	}
}

// buildStoreFactory returns the cart store factory and the hook run when a
// session is evicted. Only in-memory carts are dropped with their session.
func buildStoreFactory(cfg config.Config, redisClient *redis.Client, logger *zap.Logger) (cart.StoreFactory, func(string)) {
	switch cfg.CartStore {
	case "redis":
		return cart.NewRedisFactory(redisClient, cfg.CartTTL, logger), nil
	case "file":
		return cart.NewFileFactory(cfg.CartDir), nil
	default:
		stores := cart.NewMemoryStores()
		return stores.Store, stores.Forget
	}
}

// buildRecorder opens the PostgreSQL ledger when DATABASE_URL is set and
// falls back to an in-memory one otherwise.
func buildRecorder(ctx context.Context, cfg config.Config, logger *zap.Logger) (orders.Recorder, func(), error) {
	if cfg.DatabaseURL == "" {
		return orders.NewMemoryRecorder(), func() {}, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	rec := orders.NewPostgresRecorder(pool, logger)
	if err := rec.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info("Order ledger connected to PostgreSQL")
	return rec, pool.Close, nil
}

func sessionFactory(
	cfg flow.Config,
	generator ai.Generator,
	gateway payment.Gateway,
	recorder orders.Recorder,
	stores cart.StoreFactory,
	logger *zap.Logger,
) flow.Factory {
	return func(ctx context.Context, sessionID string) (*flow.Controller, error) {
		engine, err := cart.NewEngine(ctx, stores(sessionID), logger.With(zap.String("session_id", sessionID)))
		if err != nil {
			return nil, err
		}
		return flow.NewController(sessionID, cfg, flow.Deps{
			Generator: generator,
			Gateway:   gateway,
			Recorder:  recorder,
			Cart:      engine,
			Logger:    logger,
		}), nil
	}
}
