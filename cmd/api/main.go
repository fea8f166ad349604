package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/session"
	"github.com/safar/storefront/internal/web"
	"github.com/safar/storefront/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	config.SetupLogging(&cfg.Log)

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to database")
	}
	defer db.Close()

	log.Info().Msg("connected to database")

	if cfg.Database.AutoMigrate {
		n, err := migrations.Apply(context.Background(), db, migrations.Up)
		if err != nil {
			log.Fatal().Err(err).Msg("apply migrations")
		}
		log.Info().Int("files", n).Msg("migrations applied")
	}

	store, closeStore := sessionStore(cfg)
	defer closeStore()
	sessions := session.NewManager(cfg.Session.Secret, cfg.Session.TTL, store)

	e := web.New(cfg, db, sessions)
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("env", cfg.Env).Msg("server starting")
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("server stopped")
}

func sessionStore(cfg *config.Config) (session.Store, func()) {
	if cfg.Session.Store == "memory" {
		log.Warn().Msg("using in-memory sessions; logins do not survive restarts")
		return session.NewMemoryStore(), func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("connect to redis")
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")

	return session.NewRedisStore(rdb), func() { rdb.Close() }
}
