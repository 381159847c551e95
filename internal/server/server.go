package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hackdash/apiserver/config"
	"github.com/hackdash/apiserver/internal/auth"
	"github.com/hackdash/apiserver/internal/db"
	"github.com/hackdash/apiserver/internal/handlers"
	"github.com/hackdash/apiserver/internal/mq"
	"github.com/hackdash/apiserver/internal/notify"
	"github.com/hackdash/apiserver/internal/ratelimit"
	"github.com/hackdash/apiserver/internal/scheduler"
	"github.com/hackdash/apiserver/internal/services"
	"github.com/hackdash/apiserver/internal/storage"
	"github.com/hackdash/apiserver/internal/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const schedulerDrainTimeout = 30 * time.Second

// Server wraps the HTTP server, router, and background scheduler.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	logger     *zap.Logger
	scheduler  *scheduler.Scheduler

	mqClient    mq.Backend
	redisClient *redis.Client

	schedCancel context.CancelFunc
	schedDone   chan struct{}
}

// New wires storage, services, middleware, and the scheduler from config.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	jwtSecret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	allowlistRepo := store.NewAllowlistRepository(dbConn)
	hackathonRepo := store.NewHackathonRepository(dbConn)

	userService := services.NewUserService(userRepo)
	allowlistService := services.NewAllowlistService(allowlistRepo)
	hackathonService := services.NewHackathonService(hackathonRepo)

	// The bootstrap super admin is a seed record, not an authentication
	// special case: once created it logs in like any other account.
	if err := userService.EnsureBootstrap(ctx, cfg.Auth.BootstrapEmail, cfg.Auth.BootstrapName, cfg.Auth.BootstrapPassword); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ensure bootstrap admin: %w", err)
	}

	tokens := auth.NewTokenService(jwtSecret, cfg.Auth.TokenTTL)
	gate := handlers.NewAccessGate(tokens, userService, logger)

	srv := &Server{
		db:     dbConn,
		logger: logger,
	}

	limiter, err := srv.buildLimiter(cfg)
	if err != nil {
		_ = srv.closeResources()
		return nil, err
	}

	dispatcher, err := srv.buildDispatcher(ctx, cfg)
	if err != nil {
		_ = srv.closeResources()
		return nil, err
	}

	decks, err := srv.buildDeckStore(ctx, cfg)
	if err != nil {
		_ = srv.closeResources()
		return nil, err
	}

	srv.scheduler = scheduler.New(hackathonRepo, dispatcher, cfg.Scheduler.Interval, logger)

	authHandler := handlers.NewAuthHandler(userService, allowlistService, tokens, logger)
	userHandler := handlers.NewUserHandler(userService, logger)
	allowlistHandler := handlers.NewAllowlistHandler(allowlistService, logger)
	hackathonHandler := handlers.NewHackathonHandler(hackathonService, decks, logger)
	schedulerHandler := handlers.NewSchedulerHandler(srv.scheduler)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	// The limiter runs before authentication so over-budget requests are
	// rejected without a token parse or a storage read.
	if limiter != nil {
		router.Use(ratelimit.Middleware(limiter, logger))
	}

	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler, gate)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userHandler, gate)
	})
	router.Route("/allowlist", func(r chi.Router) {
		handlers.AllowlistRouter(r, allowlistHandler, gate)
	})
	router.Route("/hackathons", func(r chi.Router) {
		handlers.HackathonRouter(r, hackathonHandler, gate)
	})
	router.Route("/scheduler", func(r chi.Router) {
		handlers.SchedulerRouter(r, schedulerHandler, gate)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	srv.router = router
	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv, nil
}

func (s *Server) buildLimiter(cfg config.Config) (*ratelimit.Limiter, error) {
	rules, err := ratelimit.ParseRules(cfg.RateLimit.Rules)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, nil
	}

	var counters ratelimit.CounterStore
	switch cfg.RateLimit.Backend {
	case "", "memory":
		counters = ratelimit.NewMemoryStore()
	case "redis":
		s.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		counters = ratelimit.NewRedisStore(s.redisClient)
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.RateLimit.Backend)
	}
	return ratelimit.New(rules, counters), nil
}

func (s *Server) buildDispatcher(ctx context.Context, cfg config.Config) (scheduler.Dispatcher, error) {
	switch cfg.MQ.Backend {
	case "":
		return notify.NewLogDispatcher(s.logger), nil
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		s.mqClient = client
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		s.mqClient = client
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
	return notify.NewQueueDispatcher(mq.New(s.mqClient), cfg.MQ.Queue, s.logger), nil
}

func (s *Server) buildDeckStore(ctx context.Context, cfg config.Config) (*storage.DeckStore, error) {
	var backend storage.ObjectStorage
	switch cfg.Storage.Backend {
	case "":
		return nil, nil
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		backend = client
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	decks := storage.NewDeckStore(backend)
	if err := decks.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return decks, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start launches the background scheduler and runs the HTTP server.
func (s *Server) Start() error {
	schedCtx, cancel := context.WithCancel(context.Background())
	s.schedCancel = cancel
	s.schedDone = make(chan struct{})
	go func() {
		defer close(s.schedDone)
		s.scheduler.Run(schedCtx)
	}()

	return s.httpServer.ListenAndServe()
}

// Shutdown stops issuing scheduler ticks, lets any in-flight tick finish,
// and then shuts the HTTP server and resources down.
func (s *Server) Shutdown() error {
	if s.schedCancel != nil {
		s.schedCancel()
		select {
		case <-s.schedDone:
		case <-time.After(schedulerDrainTimeout):
			s.logger.Warn("scheduler did not drain before timeout")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)

	if closeErr := s.closeResources(); err == nil {
		err = closeErr
	}
	_ = s.logger.Sync()
	return err
}

func (s *Server) closeResources() error {
	var err error
	if s.mqClient != nil {
		err = s.mqClient.Close()
	}
	if s.redisClient != nil {
		if closeErr := s.redisClient.Close(); err == nil {
			err = closeErr
		}
	}
	if s.db != nil {
		if closeErr := s.db.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}
