package infrastructure

import (
	"context"
	"errors"
	"time"

	"cinetrack/watchlist-service/internal/app/watchlist/entity"
)

// MessagePublisher интерфейс для отправки сообщений в очередь (Kafka)
// Используется для dependency injection и упрощения тестирования
type MessagePublisher interface {
	PublishMessage(ctx context.Context, key string, value []byte) error
	Close() error
}

// ErrStaleGeneration - документ прочитан до последней инвалидации и не кешируется
var ErrStaleGeneration = errors.New("watchlist cache generation changed")

// WatchlistCache интерфейс кеша документов watchlist (Redis).
// GetWatchlist возвращает nil, nil при промахе.
// DeleteWatchlist увеличивает поколение пользователя. SetWatchlist сохраняет документ,
// только если поколение не изменилось с момента вызова Generation, иначе ErrStaleGeneration.
type WatchlistCache interface {
	GetWatchlist(ctx context.Context, userID string) (*entity.Watchlist, error)
	Generation(ctx context.Context, userID string) (int64, error)
	SetWatchlist(ctx context.Context, watchlist *entity.Watchlist, generation int64, ttl time.Duration) error
	DeleteWatchlist(ctx context.Context, userID string) error
	Close() error
}
