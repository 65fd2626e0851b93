package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"example.com/gymassistant/internal/api"
	"example.com/gymassistant/internal/auth"
	"example.com/gymassistant/internal/config"
	"example.com/gymassistant/internal/domain"
	"example.com/gymassistant/internal/observability"
	"example.com/gymassistant/internal/outbox"
	"example.com/gymassistant/internal/persistence/memory"
	persistence "example.com/gymassistant/internal/persistence/postgres"
	httptransport "example.com/gymassistant/internal/transport/http"
	"example.com/gymassistant/internal/verification"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Fatal("invalid REDIS_URL")
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable at startup")
		}
	}

	var (
		repo       domain.Repository
		dispatcher *outbox.Dispatcher
	)
	demoGym := domain.Gym{
		ID:        domain.TenantKey("gym-" + cfg.DemoGymSubdomain),
		Name:      "Demo Gym",
		Capacity:  domain.DefaultCapacity,
		Subdomain: cfg.DemoGymSubdomain,
	}
	switch cfg.Storage {
	case "memory":
		store := memory.NewStore()
		store.PutGym(demoGym)
		repo = store
		logger.WithField("subdomain", cfg.DemoGymSubdomain).Warn("using in-memory storage; data is lost on restart")
	default:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to postgres")
		}
		defer pool.Close()
		pgRepo := persistence.NewRepository(pool)
		if cfg.SeedDemoGym {
			if err := pgRepo.UpsertGym(ctx, demoGym); err != nil {
				logger.WithError(err).Fatal("failed to seed demo gym")
			}
		}
		repo = pgRepo

		if cfg.OutboxEnabled {
			producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
			defer producer.Close()
			registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
			dispatcher = outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize,
				outbox.WithLogger(logger.WithField("component", "outbox")))
			go dispatcher.Start(ctx)
		}
	}

	var codes verification.CodeStore = verification.NewMemoryStore()
	if redisClient != nil {
		codes = verification.NewRedisStore(redisClient, "")
	}
	verifier := verification.NewVerifier(codes,
		verification.WithTTL(cfg.VerificationCodeTTL),
		verification.WithDemoMode(cfg.VerificationDemoMode),
	)

	service := domain.NewService(repo, domain.WithSingleOpenEntry(cfg.EntrySingleOpen))
	tokens := auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, TTL: cfg.JWTTokenTTL}

	handlerOpts := []api.Option{api.WithLogger(logger)}
	if cfg.RateLimit.Enabled {
		store := api.NewLimiterStore(cfg.RateLimit.Storage, redisClient, logger)
		throttle, err := api.NewRateLimiter(store, cfg.RateLimit.Rate)
		if err != nil {
			logger.WithError(err).Fatal("invalid rate limit")
		}
		handlerOpts = append(handlerOpts, api.WithVerificationThrottle(throttle))
	}

	handler := api.NewHandler(service, verifier, tokens, handlerOpts...)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", api.SubdomainHeader, httptransport.RequestIDHeader},
		AllowCredentials: true,
	})
	authMiddleware := auth.NewMiddleware(auth.NewGate(tokens, repo), auth.PublicPaths, logger)

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, httptransport.Chain(mux,
		httptransport.RequestLogger(logger),
		corsMiddleware.Handler,
		authMiddleware.Wrap,
	))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.WithField("address", cfg.HTTPAddress).Info("gym api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown failed")
	}

	if dispatcher != nil {
		dispatcher.Wait()
	}
}
