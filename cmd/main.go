package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Tuvshee555/Auto-reception/internal/ai"
	"github.com/Tuvshee555/Auto-reception/internal/booking"
	"github.com/Tuvshee555/Auto-reception/internal/config"
	"github.com/Tuvshee555/Auto-reception/internal/logging"
	"github.com/Tuvshee555/Auto-reception/internal/messenger"
	"github.com/Tuvshee555/Auto-reception/internal/metrics"
	"github.com/Tuvshee555/Auto-reception/internal/ratelimit"
)

func main() {
	cfg, err := config.Load()
	logger := logging.Init(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// --- storage ---
	repo, sessions, closeStores, err := openStores(ctx, cfg, logger)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("storage error")
	}
	defer closeStores()

	limiter, closeLimiter, err := openLimiter(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.RateLimitBackend).Msg("rate limiter error")
	}
	defer closeLimiter()

	// --- AI ---
	aiClient, closeAI, err := openAI(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.LLMProvider).Msg("ai client error")
	}
	defer closeAI()
	responder := ai.NewResponder(aiClient, repo, cfg.AITimeout, logger, m)

	// --- outbound ---
	graph, err := messenger.NewGraphOutbound(messenger.GraphConfig{
		BaseURL:     cfg.GraphAPIBase,
		Version:     cfg.GraphAPIVersion,
		AccessToken: cfg.PageAccessToken,
		Timeout:     cfg.SendTimeout,
		RPS:         cfg.GraphSendRPS,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("outbound error")
	}

	// --- Messenger module wiring ---
	svc := messenger.NewService(
		repo,
		sessions,
		limiter,
		messenger.SenderLimit{Limit: cfg.SenderRateLimit, Window: cfg.SenderRateWindow},
		responder,
		messenger.NewDispatcher(graph, logger, m),
		logger,
		m,
	)

	proc := messenger.NewProcessor(svc, messenger.ProcessorConfig{
		Workers:      cfg.WorkerCount,
		QueueSize:    cfg.QueueSize,
		EventTimeout: cfg.EventTimeout,
	}, logger, m)
	proc.Start(ctx)

	handler := messenger.NewHandler(messenger.HandlerConfig{
		VerifyToken:  cfg.VerifyToken,
		AppSecret:    cfg.AppSecret,
		MaxBodyBytes: cfg.WebhookMaxBodyBytes,
		ClientLimit:  messenger.SenderLimit{Limit: cfg.ClientRateLimit, Window: cfg.ClientRateWindow},
	}, proc, repo, limiter, logger, m)

	if cfg.AppSecret == "" {
		log.Error().Msg("FACEBOOK_APP_SECRET not set, webhook deliveries will be rejected with 503")
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Hub-Signature-256"},
	}))

	messenger.RegisterRoutes(r, handler)
	r.Handle("/metrics", m.Handler())

	// --- health ---
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Str("llm", cfg.LLMProvider).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	proc.Wait()
}

func openStores(ctx context.Context, cfg config.Config, logger zerolog.Logger) (messenger.Repo, booking.SessionStore, func(), error) {
	switch cfg.StoreDriver {
	case "postgres":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return messenger.NewRepo(db), booking.NewPostgresStore(db), func() { db.Close() }, nil

	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, nil, err
		}
		if err := client.Ping(connectCtx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, nil, err
		}

		db := client.Database(cfg.MongoDatabase)
		repo := messenger.NewMongoRepo(db)
		sessions := booking.NewMongoStore(db)
		if err := repo.EnsureIndexes(connectCtx); err != nil {
			logger.Warn().Err(err).Msg("message indexes")
		}
		if err := sessions.EnsureIndexes(connectCtx); err != nil {
			logger.Warn().Err(err).Msg("session indexes")
		}
		return repo, sessions, func() { _ = client.Disconnect(context.Background()) }, nil

	default:
		logger.Warn().Msg("STORE_DRIVER=memory: history, bookings and sessions are lost on restart")
		repo := messenger.NewMemoryRepo(ai.BusinessSettings{
			Name:     cfg.BusinessName,
			Phone:    cfg.BusinessPhone,
			Address:  cfg.BusinessAddress,
			Hours:    cfg.BusinessHours,
			Services: cfg.BusinessServices,
			Prices:   cfg.BusinessPrices,
		})
		return repo, booking.NewMemoryStore(), func() {}, nil
	}
}

func openLimiter(ctx context.Context, cfg config.Config) (ratelimit.Limiter, func(), error) {
	if cfg.RateLimitBackend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, err
		}
		return ratelimit.NewRedisLimiter(client), func() { client.Close() }, nil
	}

	l := ratelimit.NewMemoryLimiter()
	go l.RunJanitor(ctx, time.Minute)
	return l, func() {}, nil
}

func openAI(ctx context.Context, cfg config.Config) (ai.AI, func(), error) {
	if cfg.LLMProvider == "openai" {
		return ai.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel, ""), func() {}, nil
	}

	g, err := ai.NewGeminiClient(ctx, cfg.GeminiKey, cfg.GeminiModel)
	if err != nil {
		return nil, nil, err
	}
	return g, func() { _ = g.Close() }, nil
}
