package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cinetrack/pkg/logger"
	"cinetrack/watchlist-service/internal/app/watchlist/config"
	"cinetrack/watchlist-service/internal/app/watchlist/handler"
	"cinetrack/watchlist-service/internal/app/watchlist/infrastructure"
	"cinetrack/watchlist-service/internal/app/watchlist/infrastructure/cache"
	"cinetrack/watchlist-service/internal/app/watchlist/infrastructure/messaging"
	"cinetrack/watchlist-service/internal/app/watchlist/repository"
	"cinetrack/watchlist-service/internal/app/watchlist/service"
)

const serviceName = "watchlist-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(serviceName, cfg.Log.Level)

	if cfg.Log.LogstashAddr != "" {
		if err := logger.InitLogstash(cfg.Log.LogstashAddr, serviceName, cfg.Log.Level); err != nil {
			logger.Warn().Err(err).Msg("Failed to connect to Logstash, using stdout only")
		} else {
			logger.Info().Str("logstash_addr", cfg.Log.LogstashAddr).Msg("Connected to Logstash")
		}
	}

	mongoClient, err := connectMongoDB(cfg.MongoDB)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			logger.Error().Err(err).Msg("Error disconnecting from MongoDB")
		}
	}()
	logger.Info().
		Str("database", cfg.MongoDB.Database).
		Str("collection", cfg.MongoDB.Collection).
		Msg("Connected to MongoDB")

	db := mongoClient.Database(cfg.MongoDB.Database)

	// Интерфейсы остаются nil, если Redis или Kafka не настроены
	var watchlistCache infrastructure.WatchlistCache
	if cfg.Redis.Enabled() {
		redisClient, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, watchlist cache disabled")
		} else {
			defer redisClient.Close()
			watchlistCache = redisClient
			logger.Info().
				Str("addr", cfg.Redis.Addr).
				Dur("ttl", cfg.Redis.TTL).
				Msg("Connected to Redis")
		}
	} else if cfg.Redis.MemorySize > 0 {
		memoryCache, err := cache.NewMemoryCache(cfg.Redis.MemorySize)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create in-memory watchlist cache")
		}
		watchlistCache = memoryCache
		logger.Info().
			Int("size", cfg.Redis.MemorySize).
			Msg("Using in-memory watchlist cache")
	}

	var publisher infrastructure.MessagePublisher
	if cfg.Kafka.Enabled() {
		kafkaProducer := messaging.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kafkaProducer.Close()
		publisher = kafkaProducer
		logger.Info().
			Strs("brokers", cfg.Kafka.Brokers).
			Str("topic", cfg.Kafka.Topic).
			Msg("Initialized Kafka producer")
	}

	watchlistRepo := repository.NewWatchlistRepository(db, cfg.MongoDB.Collection)
	watchlistService := service.NewWatchlistService(watchlistRepo, watchlistCache, publisher, cfg.Redis.TTL)

	var authMiddleware *handler.AuthMiddleware
	if cfg.JWT.Enabled {
		authMiddleware = handler.NewAuthMiddleware(cfg.JWT.Secret)
	} else {
		logger.Warn().Msg("Authentication disabled, userId from requests is trusted")
	}
	watchlistHandler := handler.NewWatchlistHandler(watchlistService, cfg.JWT.Enabled)
	router := handler.SetupRoutes(watchlistHandler, authMiddleware, cfg.CORS.AllowedOrigins)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("Starting Watchlist Service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down Watchlist Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Watchlist Service stopped gracefully")
}

func connectMongoDB(cfg config.MongoDBConfig) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(cfg.URI)

	var client *mongo.Client
	var err error

	for i := 0; i < 10; i++ {
		client, err = tryConnect(clientOptions)
		if err == nil {
			return client, nil
		}

		logger.Warn().
			Int("attempt", i+1).
			Err(err).
			Msg("Failed to connect to MongoDB, retrying...")
		time.Sleep(3 * time.Second)
	}

	return nil, err
}

func tryConnect(clientOptions *options.ClientOptions) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}
