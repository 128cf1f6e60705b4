package repository

import (
	"context"

	"cinetrack/watchlist-service/internal/app/watchlist/entity"
)

// WatchlistRepository определяет методы для работы с документами watchlist в MongoDB
type WatchlistRepository interface {
	AppendMovie(ctx context.Context, userID, userEmail string, movie entity.MovieEntry) (*entity.Watchlist, error)
	GetByUserID(ctx context.Context, userID string) (*entity.Watchlist, error)
	UpdateMovieRating(ctx context.Context, userID, movieID string, rating float64) (*entity.MovieEntry, error)
	Ping(ctx context.Context) error
}
