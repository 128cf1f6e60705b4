package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cinetrack/pkg/metrics"
	"cinetrack/watchlist-service/internal/app/watchlist/entity"
	"cinetrack/watchlist-service/internal/app/watchlist/infrastructure"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	memoryKeyPrefix = "watchlist_memory"

	// Поколений хранится больше, чем документов, чтобы вытеснение не сбрасывало их раньше
	generationsPerEntry = 4
)

type memoryItem struct {
	watchlist *entity.Watchlist
	expiredAt time.Time
}

// MemoryCache - LRU кеш watchlist в памяти процесса для запуска без Redis.
// Подходит только для одного экземпляра сервиса: инвалидация не видна соседям.
type MemoryCache struct {
	mu          sync.Mutex
	storage     *lru.Cache[string, memoryItem]
	generations *lru.Cache[string, int64]
	clock       int64
	now         func() time.Time
}

func NewMemoryCache(size int) (*MemoryCache, error) {
	storage, err := lru.New[string, memoryItem](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	generations, err := lru.New[string, int64](size * generationsPerEntry)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &MemoryCache{storage: storage, generations: generations, now: time.Now}, nil
}

func (m *MemoryCache) GetWatchlist(_ context.Context, userID string) (*entity.Watchlist, error) {
	item, ok := m.storage.Get(userID)
	if !ok {
		metrics.RecordCacheMiss(serviceName, memoryKeyPrefix)
		return nil, nil
	}

	if m.now().After(item.expiredAt) {
		m.storage.Remove(userID)
		metrics.RecordCacheMiss(serviceName, memoryKeyPrefix)
		return nil, nil
	}

	metrics.RecordCacheHit(serviceName, memoryKeyPrefix)
	return cloneWatchlist(item.watchlist), nil
}

func (m *MemoryCache) Generation(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	generation, _ := m.generations.Peek(userID)
	return generation, nil
}

func (m *MemoryCache) SetWatchlist(_ context.Context, watchlist *entity.Watchlist, generation int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, _ := m.generations.Peek(watchlist.UserID); current != generation {
		return infrastructure.ErrStaleGeneration
	}

	m.storage.Add(watchlist.UserID, memoryItem{
		watchlist: cloneWatchlist(watchlist),
		expiredAt: m.now().Add(ttl),
	})
	return nil
}

// DeleteWatchlist удаляет документ и выдает пользователю новое поколение.
// Поколения берутся из общего счетчика, поэтому не повторяются.
func (m *MemoryCache) DeleteWatchlist(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.storage.Remove(userID)
	m.clock++
	m.generations.Add(userID, m.clock)
	return nil
}

func (m *MemoryCache) Close() error {
	m.storage.Purge()
	m.generations.Purge()
	return nil
}

// Len - количество записей, включая еще не вычищенные просроченные
func (m *MemoryCache) Len() int {
	return m.storage.Len()
}

// cloneWatchlist копирует документ, чтобы вызывающий код не менял закешированную версию
func cloneWatchlist(w *entity.Watchlist) *entity.Watchlist {
	clone := *w
	clone.Movies = make([]entity.MovieEntry, len(w.Movies))
	for i, movie := range w.Movies {
		if movie.UserRating != nil {
			rating := *movie.UserRating
			movie.UserRating = &rating
		}
		movie.Genres = append([]string(nil), movie.Genres...)
		clone.Movies[i] = movie
	}
	return &clone
}
