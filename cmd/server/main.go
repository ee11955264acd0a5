package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cereal-api/internal/config"
	"github.com/iliyamo/cereal-api/internal/database"
	"github.com/iliyamo/cereal-api/internal/handler"
	"github.com/iliyamo/cereal-api/internal/middleware"
	"github.com/iliyamo/cereal-api/internal/queue"
	"github.com/iliyamo/cereal-api/internal/repository"
	"github.com/iliyamo/cereal-api/internal/router"
	"github.com/iliyamo/cereal-api/internal/service"
)

const shutdownTimeout = 10 * time.Second

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsProd() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// newEventSink publishes product events to RabbitMQ when a broker URL is
// configured and drops them otherwise.
func newEventSink(cfg config.Config, log *zap.Logger) handler.EventSink {
	if cfg.AMQPURL == "" {
		log.Info("no broker configured; product events are not published")
		return service.Discard{}
	}
	return service.NewPublisher(cfg.AMQPURL, log)
}

func main() {
	cfg, err := config.Load() // Load environment config
	if err != nil {
		boot, _ := zap.NewProduction()
		boot.Fatal("invalid configuration", zap.Error(err))
	}
	log, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.InsecureSecret {
		log.Warn("using the built-in development signing secret; set JWT_SIGNING_KEY")
	}

	db, err := database.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		log.Fatal("failed to connect to database", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(db, log); err != nil {
		log.Fatal("failed to apply migrations", zap.Error(err))
	}

	users := repository.NewUserRepo(db)
	products := repository.NewProductRepo(db)

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Warn("redis unavailable; response cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := newEventSink(cfg, log)
	if cfg.AuditConsumer {
		consumer := &queue.AuditConsumer{URL: cfg.AMQPURL, Log: log}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit consumer stopped", zap.Error(err))
			}
		}()
	}

	resolver := &middleware.Resolver{
		Users:    users,
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		Log:      log,
	}
	guards := router.Guards{
		Auth:       middleware.Authenticate(resolver),
		Write:      middleware.RequireRole(cfg.WriteRoles...),
		Cache:      middleware.NewRedisCache(cacheCfg, rdb),
		Invalidate: middleware.InvalidateCache(cacheCfg, rdb, log),
		RateLimit:  middleware.NewTokenBucket(rlCfg, rdb, log),
	}

	e := router.New(log)
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, log), guards)
	router.RegisterProducts(e, handler.NewProductHandler(products, events, log), guards)

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("db", cfg.DBDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
