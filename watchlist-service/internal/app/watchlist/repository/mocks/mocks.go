package mocks

import (
	"context"
	"time"

	"cinetrack/watchlist-service/internal/app/watchlist/entity"

	"github.com/stretchr/testify/mock"
)

// MockWatchlistRepository мок для WatchlistRepository
type MockWatchlistRepository struct {
	mock.Mock
}

func (m *MockWatchlistRepository) AppendMovie(ctx context.Context, userID, userEmail string, movie entity.MovieEntry) (*entity.Watchlist, error) {
	args := m.Called(ctx, userID, userEmail, movie)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Watchlist), args.Error(1)
}

func (m *MockWatchlistRepository) GetByUserID(ctx context.Context, userID string) (*entity.Watchlist, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Watchlist), args.Error(1)
}

func (m *MockWatchlistRepository) UpdateMovieRating(ctx context.Context, userID, movieID string, rating float64) (*entity.MovieEntry, error) {
	args := m.Called(ctx, userID, movieID, rating)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.MovieEntry), args.Error(1)
}

func (m *MockWatchlistRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockWatchlistCache мок для Redis кеша watchlist
type MockWatchlistCache struct {
	mock.Mock
}

func (m *MockWatchlistCache) GetWatchlist(ctx context.Context, userID string) (*entity.Watchlist, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Watchlist), args.Error(1)
}

func (m *MockWatchlistCache) Generation(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWatchlistCache) SetWatchlist(ctx context.Context, watchlist *entity.Watchlist, generation int64, ttl time.Duration) error {
	args := m.Called(ctx, watchlist, generation, ttl)
	return args.Error(0)
}

func (m *MockWatchlistCache) DeleteWatchlist(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockWatchlistCache) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockMessagePublisher мок для Kafka MessagePublisher
type MockMessagePublisher struct {
	mock.Mock
	Messages [][]byte
}

func (m *MockMessagePublisher) PublishMessage(ctx context.Context, key string, value []byte) error {
	m.Messages = append(m.Messages, value)
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockMessagePublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
