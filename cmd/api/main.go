package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/telecomx/user-service/internal/api/http"
	"github.com/telecomx/user-service/internal/api/http/handlers"
	"github.com/telecomx/user-service/internal/config"
	"github.com/telecomx/user-service/internal/events"
	"github.com/telecomx/user-service/internal/identity"
	"github.com/telecomx/user-service/internal/observability"
	"github.com/telecomx/user-service/internal/persistence"
	"github.com/telecomx/user-service/internal/repository"
	"github.com/telecomx/user-service/internal/service"
	"github.com/telecomx/user-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	stores, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open datastores", zap.Error(err))
	}
	defer stores.close()

	userRepo, err := stores.userRepository(ctx, cfg.Store.Driver)
	if err != nil {
		logger.Fatal("failed to build user repository", zap.Error(err))
	}
	counterRepo, err := stores.counterRepository(cfg.Store.CounterDriver)
	if err != nil {
		logger.Fatal("failed to build counter repository", zap.Error(err))
	}
	logger.Info("storage selected",
		zap.String("store", cfg.Store.Driver),
		zap.String("counter", cfg.Store.CounterDriver))

	publisher := events.NewPublisher(newProducer(cfg, logger), events.PublisherConfig{
		Topic:       cfg.Broker.Topic,
		SendTimeout: cfg.Events.SendTimeout(),
	}, logger, metrics)
	eventWorker := worker.NewEventWorker(publisher, worker.Config{
		QueueSize: cfg.Events.QueueSize,
		Workers:   cfg.Events.Workers,
	}, logger, metrics)

	userService := service.NewUserService(service.UserDependencies{
		UserRepo:  userRepo,
		Allocator: identity.NewAllocator(counterRepo),
		Emitter:   eventWorker,
		Logger:    logger,
	})

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, stores.pingers(), publisher, metrics),
		Users:  handlers.NewUsersHandler(userService),
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := eventWorker.Stop(shutdownCtx); err != nil {
		logger.Warn("event worker did not drain", zap.Error(err))
	}
	if err := publisher.Close(); err != nil {
		logger.Warn("close publisher", zap.Error(err))
	}
}

type datastores struct {
	mongo    *persistence.Mongo
	postgres *persistence.Postgres
	redis    *persistence.Redis
}

// openStores connects every datastore that is configured. A store selected
// by a driver but not configured is reported by the repository builders.
func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*datastores, error) {
	s := &datastores{}

	var err error
	if s.mongo, err = persistence.NewMongo(ctx, cfg.Mongo, logger); err != nil {
		return nil, fmt.Errorf("mongodb: %w", err)
	}
	if s.postgres, err = persistence.NewPostgres(ctx, cfg.Postgres, logger); err != nil {
		s.close()
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if s.postgres.PoolHandle() != nil && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, s.postgres.PoolHandle(), logger); err != nil {
			s.close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.Store.CounterDriver == config.DriverRedis {
		if s.redis, err = persistence.NewRedis(ctx, cfg.Redis, logger); err != nil {
			s.close()
			return nil, fmt.Errorf("redis: %w", err)
		}
	}
	return s, nil
}

func (s *datastores) userRepository(ctx context.Context, driver string) (repository.UserRepository, error) {
	switch driver {
	case config.DriverMongo:
		if !s.mongo.Configured() {
			return nil, fmt.Errorf("store driver %q requires MONGODB_URI", driver)
		}
		if err := repository.EnsureMongoIndexes(ctx, s.mongo.Database); err != nil {
			return nil, fmt.Errorf("mongodb indexes: %w", err)
		}
		return repository.NewMongoUserRepository(s.mongo.Database), nil
	case config.DriverPostgres:
		if s.postgres.PoolHandle() == nil {
			return nil, fmt.Errorf("store driver %q requires POSTGRES_DSN", driver)
		}
		return repository.NewPostgresUserRepository(s.postgres.PoolHandle()), nil
	default:
		return repository.NewMemoryUserRepository(), nil
	}
}

func (s *datastores) counterRepository(driver string) (repository.CounterRepository, error) {
	switch driver {
	case config.DriverMongo:
		if !s.mongo.Configured() {
			return nil, fmt.Errorf("counter driver %q requires MONGODB_URI", driver)
		}
		return repository.NewMongoCounterRepository(s.mongo.Database), nil
	case config.DriverPostgres:
		if s.postgres.PoolHandle() == nil {
			return nil, fmt.Errorf("counter driver %q requires POSTGRES_DSN", driver)
		}
		return repository.NewPostgresCounterRepository(s.postgres.PoolHandle()), nil
	case config.DriverRedis:
		return repository.NewRedisCounterRepository(s.redis.Client), nil
	default:
		return repository.NewMemoryCounterRepository(), nil
	}
}

func (s *datastores) pingers() map[string]handlers.Pinger {
	out := map[string]handlers.Pinger{}
	if s.mongo.Configured() {
		out["mongodb"] = s.mongo
	}
	if s.postgres != nil && s.postgres.PoolHandle() != nil {
		out["postgres"] = s.postgres
	}
	if s.redis != nil {
		out["redis"] = s.redis
	}
	return out
}

func (s *datastores) close() {
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.mongo.Close(closeCtx)
	if s.postgres != nil {
		s.postgres.Close()
	}
	if s.redis != nil {
		s.redis.Close()
	}
}

func newProducer(cfg *config.Config, logger *zap.Logger) events.Producer {
	switch cfg.Broker.Driver {
	case config.BrokerKafka:
		return events.NewKafkaProducer(events.KafkaConfig{
			Brokers:  cfg.Broker.Brokers,
			ClientID: cfg.Broker.ClientID,
		}, logger)
	case config.BrokerRabbitMQ:
		return events.NewRabbitMQProducer(events.RabbitMQConfig{
			URL:      cfg.Broker.Brokers[0],
			Exchange: cfg.Broker.Topic,
			ClientID: cfg.Broker.ClientID,
		}, logger)
	default:
		logger.Warn("event broker disabled; events are logged only")
		return events.NewNoopProducer(logger)
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
