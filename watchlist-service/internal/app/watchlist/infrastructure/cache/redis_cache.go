package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cinetrack/pkg/metrics"
	"cinetrack/watchlist-service/internal/app/watchlist/entity"
	"cinetrack/watchlist-service/internal/app/watchlist/infrastructure"

	"github.com/redis/go-redis/v9"
)

const (
	serviceName = "watchlist-service"
	keyPrefix   = "watchlist"

	// TTL ключа поколения, продлевается при каждой инвалидации
	generationTTL = 24 * time.Hour
)

type RedisClient struct {
	client *redis.Client
}

func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

// NewRedisClientFrom оборачивает уже созданный клиент (используется в тестах с miniredis)
func NewRedisClientFrom(client *redis.Client) *RedisClient {
	return &RedisClient{client: client}
}

func cacheKey(userID string) string {
	return keyPrefix + ":" + userID
}

func generationKey(userID string) string {
	return keyPrefix + "_gen:" + userID
}

func (r *RedisClient) GetWatchlist(ctx context.Context, userID string) (*entity.Watchlist, error) {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpGet)
	defer timer.ObserveDuration()

	data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheMiss(serviceName, keyPrefix)
			return nil, nil
		}
		metrics.RecordRedisError(serviceName, metrics.RedisOpGet)
		return nil, fmt.Errorf("failed to get watchlist from cache: %w", err)
	}

	var watchlist entity.Watchlist
	if err := json.Unmarshal(data, &watchlist); err != nil {
		return nil, fmt.Errorf("failed to unmarshal watchlist: %w", err)
	}

	metrics.RecordCacheHit(serviceName, keyPrefix)
	return &watchlist, nil
}

// Generation возвращает текущее поколение пользователя; 0, если ключа нет
func (r *RedisClient) Generation(ctx context.Context, userID string) (int64, error) {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpGet)
	defer timer.ObserveDuration()

	generation, err := r.client.Get(ctx, generationKey(userID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		metrics.RecordRedisError(serviceName, metrics.RedisOpGet)
		return 0, fmt.Errorf("failed to get cache generation: %w", err)
	}
	return generation, nil
}

// SetWatchlist кладет документ под WATCH ключа поколения: запись проходит,
// только если с момента чтения поколения не было инвалидации.
func (r *RedisClient) SetWatchlist(ctx context.Context, watchlist *entity.Watchlist, generation int64, ttl time.Duration) error {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpSet)
	defer timer.ObserveDuration()

	data, err := json.Marshal(watchlist)
	if err != nil {
		return fmt.Errorf("failed to marshal watchlist: %w", err)
	}

	genKey := generationKey(watchlist.UserID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return infrastructure.ErrStaleGeneration
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey(watchlist.UserID), data, ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, infrastructure.ErrStaleGeneration), errors.Is(err, redis.TxFailedErr):
		return infrastructure.ErrStaleGeneration
	default:
		metrics.RecordRedisError(serviceName, metrics.RedisOpSet)
		return fmt.Errorf("failed to set watchlist in cache: %w", err)
	}
}

// DeleteWatchlist удаляет документ и увеличивает поколение одной транзакцией
func (r *RedisClient) DeleteWatchlist(ctx context.Context, userID string) error {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpDel)
	defer timer.ObserveDuration()

	genKey := generationKey(userID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, cacheKey(userID))
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, generationTTL)
		return nil
	})
	if err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpDel)
		return fmt.Errorf("failed to delete watchlist from cache: %w", err)
	}
	return nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
