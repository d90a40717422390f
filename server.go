package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/p2pml/training-dispatcher/common/config"
	"github.com/p2pml/training-dispatcher/common/dispatch"
	"github.com/p2pml/training-dispatcher/common/messaging"
	"github.com/p2pml/training-dispatcher/common/redis"
	"github.com/p2pml/training-dispatcher/common/storage"
	"github.com/p2pml/training-dispatcher/common/work"
	"github.com/p2pml/training-dispatcher/handler"
)

type AppHttpServer struct {
	router     *chi.Mux
	cfg        config.Config
	server     *http.Server
	redis      *redis.RedisClient
	natsClient *messaging.NatsBroker
	store      *storage.AkaveStore
	service    *dispatch.Service
	manager    *work.TaskManager
}

func NewAppHttpServer(cfg config.Config) (*AppHttpServer, error) {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))

	server := &AppHttpServer{
		router: r,
		cfg:    cfg,
	}
	return server, nil
}

// SetRedis sets the Redis dependency
func (s *AppHttpServer) SetRedis(client *redis.RedisClient) {
	s.redis = client
}

// SetNatsClient sets the NATS client dependency
func (s *AppHttpServer) SetNatsClient(client *messaging.NatsBroker) {
	s.natsClient = client
}

// SetStore sets the content store dependency
func (s *AppHttpServer) SetStore(store *storage.AkaveStore) {
	s.store = store
}

// SetDispatch sets the dispatch service and task manager
func (s *AppHttpServer) SetDispatch(service *dispatch.Service, manager *work.TaskManager) {
	s.service = service
	s.manager = manager
}

func (s *AppHttpServer) setupRoute() {
	r := s.router

	healthHandler := handler.NewHealthHandler(s.redis, s.natsClient)
	r.Mount("/health", healthHandler.Router())

	r.Route("/v1", func(r chi.Router) {
		taskHandler := handler.NewTaskHandler(s.service, s.manager)
		bucketHandler := handler.NewBucketHandler(s.store, s.store)

		r.Mount("/tasks", taskHandler.Router())
		r.Mount("/bucket", bucketHandler.Router())
		r.Mount("/health", healthHandler.Router())
	})
}

func (s *AppHttpServer) start() error {
	r := s.router
	cfg := s.cfg
	log.Info().Msg("Starting up server...")

	s.server = &http.Server{
		Addr:         cfg.Listen.Addr(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// stop gracefully shuts down the server
func (s *AppHttpServer) stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
