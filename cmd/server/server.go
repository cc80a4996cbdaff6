package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/thereayou/taskchat/internal/config"
	"github.com/thereayou/taskchat/internal/database"
	"github.com/thereayou/taskchat/internal/handlers"
	"github.com/thereayou/taskchat/internal/metrics"
	"github.com/thereayou/taskchat/internal/services"
	"github.com/thereayou/taskchat/internal/storage"
	"github.com/thereayou/taskchat/pkg/auth"
)

type Server struct {
	Config     *config.Config
	Router     *gin.Engine
	DB         *database.Database
	Redis      *redis.Client
	JWTManager *auth.JWTManager
	Metrics    *metrics.Metrics
}

func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	dbConn := &database.Database{}
	if err := dbConn.Connect(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("postgres connect failed: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connect failed: %w", err)
	}

	files, err := storage.NewLocalStore(cfg.UploadDir, cfg.UploadPrefix, cfg.MaxUploadBytes)
	if err != nil {
		return nil, err
	}

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	blacklist := auth.NewRedisBlacklist(rdb)
	m := metrics.New()
	logger := log.Logger

	deps := Deps{
		Auth:      handlers.NewAuthHandler(services.NewAuthService(dbConn, jwtMgr, blacklist), logger),
		Rooms:     handlers.NewRoomHandler(dbConn, logger),
		Users:     handlers.NewUserHandler(dbConn),
		Messages:  handlers.NewHTTPMessageHandler(dbConn, files, m, handlers.MessageHandlerConfig{HistoryLimit: cfg.HistoryLimit, MaxUploadBytes: cfg.MaxUploadBytes}, logger),
		JWT:       jwtMgr,
		Blacklist: blacklist,
		Metrics:   m,
		UploadDir: files.Dir(),
		Ready: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
	}

	if !cfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	APIEndpoints(router, cfg, deps)

	return &Server{
		Config:     cfg,
		Router:     router,
		DB:         dbConn,
		Redis:      rdb,
		JWTManager: jwtMgr,
		Metrics:    m,
	}, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.Config.Port)
	srv := &http.Server{Addr: addr, Handler: s.Router}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("chat server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.close()
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.Config.ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.close()
	return err
}

func (s *Server) close() {
	if err := s.Redis.Close(); err != nil {
		log.Warn().Err(err).Msg("redis close")
	}
	if err := s.DB.Close(); err != nil {
		log.Warn().Err(err).Msg("postgres close")
	}
}
