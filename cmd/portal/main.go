package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fekuna/evaluation-portal/config"
	"github.com/fekuna/evaluation-portal/internal/admin"
	"github.com/fekuna/evaluation-portal/internal/auth"
	authRepoPkg "github.com/fekuna/evaluation-portal/internal/auth/repository"
	"github.com/fekuna/evaluation-portal/internal/broker"
	"github.com/fekuna/evaluation-portal/internal/cache"
	"github.com/fekuna/evaluation-portal/internal/dashboard"
	"github.com/fekuna/evaluation-portal/internal/database"
	"github.com/fekuna/evaluation-portal/internal/event"
	"github.com/fekuna/evaluation-portal/internal/i18n"
	"github.com/fekuna/evaluation-portal/internal/listener"
	"github.com/fekuna/evaluation-portal/internal/logger"
	"github.com/fekuna/evaluation-portal/internal/search"
	"github.com/fekuna/evaluation-portal/internal/server"

	catH "github.com/fekuna/evaluation-portal/internal/category/handler"
	catRepoPkg "github.com/fekuna/evaluation-portal/internal/category/repository"
	catUCPkg "github.com/fekuna/evaluation-portal/internal/category/usecase"

	subH "github.com/fekuna/evaluation-portal/internal/subcategory/handler"
	subRepoPkg "github.com/fekuna/evaluation-portal/internal/subcategory/repository"
	subUCPkg "github.com/fekuna/evaluation-portal/internal/subcategory/usecase"

	evalH "github.com/fekuna/evaluation-portal/internal/evaluation/handler"
	evalRepoPkg "github.com/fekuna/evaluation-portal/internal/evaluation/repository"
	evalUCPkg "github.com/fekuna/evaluation-portal/internal/evaluation/usecase"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             "info",
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}
	if cfg.IsDevelopment() {
		logConfig.IsDevelopment = true
		logConfig.Encoding = cfg.Logger.Encoding
		logConfig.Level = cfg.Logger.Level
	}
	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	instanceID := uuid.NewString()
	appLogger = appLogger.With(zap.String("instance", instanceID))

	// 3. Initialize i18n
	bundle, err := i18n.New(cfg.I18n.DefaultLanguage)
	if err != nil {
		appLogger.Fatal("Could not load locales", zap.Error(err))
	}

	// 4. Connect to Database
	db, err := database.NewPostgres(&database.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(context.Background(), db); err != nil {
			appLogger.Fatal("Could not apply schema", zap.Error(err))
		}
		appLogger.Info("Schema applied")
	}

	// 5. Initialize list cache: Redis when configured, otherwise in-process LRU
	var listCache cache.ListCache
	if cfg.Redis.Addr != "" {
		redisClient, err := cache.NewRedisClient(&cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			appLogger.Fatal("Could not connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		listCache = cache.NewRedisListCache(redisClient, cfg.Cache.TTL)
		appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		listCache = cache.NewLRUListCache(cfg.Cache.LocalSize, cfg.Cache.TTL)
		appLogger.Info("Using in-process list cache", zap.Int("size", cfg.Cache.LocalSize))
	}

	// 6. Initialize Kafka producer and consumer
	var (
		publisher event.Publisher = event.NopPublisher{}
		consumer  *broker.KafkaConsumer
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer := broker.NewProducer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		}, func(err error) {
			appLogger.Error("Failed to deliver catalog event", zap.Error(err))
		})
		defer producer.Close()
		publisher = event.NewBrokerPublisher(producer, instanceID)

		dialCtx, cancelDial := context.WithTimeout(context.Background(), 10*time.Second)
		consumer, err = broker.NewConsumer(dialCtx, &broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
		cancelDial()
		if err != nil {
			appLogger.Fatal("Could not subscribe to catalog events", zap.Error(err))
		}
		defer consumer.Close()
		appLogger.Info("Connected to Kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	// 7. Initialize Elasticsearch
	var indexer evalUCPkg.Indexer
	if len(cfg.Elastic.Addresses) > 0 {
		esClient, err := search.NewClient(&search.Config{
			Addresses: cfg.Elastic.Addresses,
			Username:  cfg.Elastic.Username,
			Password:  cfg.Elastic.Password,
		})
		if err != nil {
			appLogger.Warn("Could not connect to Elasticsearch, search falls back to Postgres", zap.Error(err))
		} else {
			indexer = esClient
			appLogger.Info("Connected to Elasticsearch", zap.Strings("addresses", cfg.Elastic.Addresses))
		}
	}

	// 8. Initialize Repositories
	catRepo := catRepoPkg.NewPGRepository(db)
	subRepo := subRepoPkg.NewPGRepository(db)
	evalRepo := evalRepoPkg.NewPGRepository(db)
	allowList := authRepoPkg.NewPGAllowList(db)

	// 9. Initialize UseCases
	catUC := catUCPkg.NewCategoryUseCase(catRepo, subRepo, listCache, publisher, appLogger)
	subUC := subUCPkg.NewSubcategoryUseCase(subRepo, catRepo, listCache, publisher, appLogger)
	evalUC := evalUCPkg.NewEvaluationUseCase(evalRepo, subRepo, listCache, indexer, publisher, appLogger)

	// 10. Initialize admin workspaces
	registry := admin.NewRegistry(admin.RegistryConfig{
		TTL: cfg.Auth.SessionTTL,
		NewProvider: func() auth.Provider {
			return auth.NewGoTrueProvider(auth.GoTrueConfig{
				URL:       cfg.Auth.GoTrueURL,
				AnonKey:   cfg.Auth.AnonKey,
				JWTSecret: cfg.Auth.JWTSecret,
			})
		},
		AllowList: allowList,
		Services: dashboard.Services{
			Categories:    catUC,
			Subcategories: subUC,
			Evaluations:   evalUC,
		},
		Bundle: bundle,
	}, appLogger)

	// 11. Initialize Handlers
	router := server.NewRouter(server.HTTPConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Development:    cfg.IsDevelopment(),
	}, bundle, appLogger,
		catH.NewCategoryHandler(catUC, appLogger),
		subH.NewSubcategoryHandler(subUC, appLogger),
		evalH.NewEvaluationHandler(evalUC, appLogger),
		admin.NewHandler(registry, cfg.Auth.SettleTimeout, !cfg.IsDevelopment(), appLogger),
	)
	httpServer := &http.Server{
		Addr:              withColon(cfg.Server.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer, healthServer := server.NewGRPCServer(appLogger)
	lis, err := net.Listen("tcp", withColon(cfg.Server.GRPCPort))
	if err != nil {
		appLogger.Fatal("failed to listen", zap.Error(err))
	}

	// 12. Run until a signal arrives
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLogger.Info("Starting HTTP server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		appLogger.Info("Starting gRPC server", zap.String("addr", lis.Addr().String()))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		return server.WatchHealth(gctx, healthServer, db, 15*time.Second, appLogger)
	})
	g.Go(func() error {
		return registry.Run(gctx, time.Minute)
	})
	if consumer != nil {
		g.Go(func() error {
			return listener.NewCacheListener(consumer, listCache, instanceID, appLogger).Start(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grpcServer.GracefulStop()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("Server stopped with error", zap.Error(err))
	}
	evalUC.Wait()
	appLogger.Info("Server stopped")
}

func withColon(port string) string {
	if !strings.HasPrefix(port, ":") && !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}
