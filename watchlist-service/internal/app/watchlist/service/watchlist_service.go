package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"cinetrack/pkg/logger"
	"cinetrack/pkg/metrics"
	"cinetrack/watchlist-service/internal/app/watchlist/entity"
	"cinetrack/watchlist-service/internal/app/watchlist/infrastructure"
	"cinetrack/watchlist-service/internal/app/watchlist/repository"

	"github.com/go-playground/validator/v10"
)

const publishTimeout = 3 * time.Second

// WatchlistService обрабатывает добавление фильмов, чтение watchlist и личные оценки.
// Кеш и publisher опциональны: nil отключает соответствующий побочный эффект.
type WatchlistService struct {
	watchlistRepo repository.WatchlistRepository
	cache         infrastructure.WatchlistCache
	publisher     infrastructure.MessagePublisher
	validator     *validator.Validate
	cacheTTL      time.Duration
}

// NewWatchlistService создает новый сервис watchlist с внедрением зависимостей
func NewWatchlistService(
	watchlistRepo repository.WatchlistRepository,
	cache infrastructure.WatchlistCache,
	publisher infrastructure.MessagePublisher,
	cacheTTL time.Duration,
) *WatchlistService {
	return &WatchlistService{
		watchlistRepo: watchlistRepo,
		cache:         cache,
		publisher:     publisher,
		validator:     entity.NewValidator(),
		cacheTTL:      cacheTTL,
	}
}

// AddMovie нормализует фильм, проверяет его и дописывает в конец watchlist.
// Документ создается при первом добавлении. Дубликаты не отсекаются.
func (s *WatchlistService) AddMovie(ctx context.Context, req *entity.AddMovieRequest) (*entity.Watchlist, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	movie := NormalizeMovie(req.Movie)
	if err := s.validateMovie(&movie); err != nil {
		return nil, err
	}

	watchlist, err := s.watchlistRepo.AppendMovie(ctx, req.UserID, req.UserEmail, movie)
	if err != nil {
		return nil, fmt.Errorf("failed to add movie: %w", err)
	}

	metrics.WatchlistMoviesAdded.Inc()
	s.invalidate(ctx, req.UserID)
	s.publish(ctx, entity.WatchlistEvent{
		EventType:  entity.EventMovieAdded,
		UserID:     req.UserID,
		MovieID:    movie.ID,
		Title:      movie.Title,
		MovieCount: len(watchlist.Movies),
		Timestamp:  time.Now().UTC(),
	})

	return watchlist, nil
}

// GetWatchlist получает watchlist пользователя, сначала из кеша.
// Поколение кеша читается до обращения к хранилищу: если за это время документ
// инвалидировали, прочитанная версия в кеш не попадает.
func (s *WatchlistService) GetWatchlist(ctx context.Context, userID string) (*entity.Watchlist, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}

	var generation int64
	cacheable := false
	if s.cache != nil {
		cached, err := s.cache.GetWatchlist(ctx, userID)
		if err != nil {
			logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to read watchlist from cache")
		} else if cached != nil {
			return cached, nil
		}

		generation, err = s.cache.Generation(ctx, userID)
		if err != nil {
			logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to read watchlist cache generation")
		} else {
			cacheable = true
		}
	}

	watchlist, err := s.watchlistRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrWatchlistNotFound) {
			return nil, ErrWatchlistNotFound
		}
		return nil, fmt.Errorf("failed to get watchlist: %w", err)
	}

	if cacheable {
		err := s.cache.SetWatchlist(ctx, watchlist, generation, s.cacheTTL)
		switch {
		case errors.Is(err, infrastructure.ErrStaleGeneration):
			logger.Debug().Str("user_id", userID).Msg("Watchlist changed during read, skipping cache fill")
		case err != nil:
			logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to cache watchlist")
		}
	}

	return watchlist, nil
}

// UpdateRating выставляет личную оценку первому фильму с указанным id.
// Некорректный запрос отклоняется до обращения к хранилищу.
func (s *WatchlistService) UpdateRating(ctx context.Context, userID string, req *entity.UpdateRatingRequest) (*entity.MovieEntry, error) {
	if userID == "" {
		return nil, s.rejected(ErrUserIDRequired, "user_id")
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if math.IsNaN(*req.UserRating) || math.IsInf(*req.UserRating, 0) {
		return nil, s.rejected(ErrRatingRequired, "user_rating")
	}
	movieID := string(req.MovieID)
	rating := *req.UserRating

	movie, err := s.watchlistRepo.UpdateMovieRating(ctx, userID, movieID, rating)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrWatchlistNotFound):
			return nil, ErrWatchlistNotFound
		case errors.Is(err, repository.ErrMovieNotFound):
			return nil, ErrMovieNotFound
		}
		return nil, fmt.Errorf("failed to update rating: %w", err)
	}

	metrics.WatchlistUserRating.Observe(rating)
	s.invalidate(ctx, userID)
	s.publish(ctx, entity.WatchlistEvent{
		EventType:  entity.EventMovieRated,
		UserID:     userID,
		MovieID:    movie.ID,
		Title:      movie.Title,
		UserRating: &rating,
		Timestamp:  time.Now().UTC(),
	})

	return movie, nil
}

// Ping проверяет доступность хранилища
func (s *WatchlistService) Ping(ctx context.Context) error {
	return s.watchlistRepo.Ping(ctx)
}

// requestFieldErrors сопоставляет полям запросов конкретные ошибки валидации
var requestFieldErrors = map[string]struct {
	err    error
	reason string
}{
	"UserID":     {ErrUserIDRequired, "user_id"},
	"Movie":      {ErrMovieRequired, "movie"},
	"MovieID":    {ErrMovieIDRequired, "movie_id"},
	"UserRating": {ErrRatingRequired, "user_rating"},
}

// validateRequest проверяет validate-теги DTO; первое нарушение определяет ошибку
func (s *WatchlistService) validateRequest(req interface{}) error {
	err := s.validator.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		if mapped, ok := requestFieldErrors[validationErrors[0].Field()]; ok {
			return s.rejected(mapped.err, mapped.reason)
		}
	}
	return s.rejected(fmt.Errorf("%w: %v", ErrValidation, err), "request")
}

func (s *WatchlistService) validateMovie(movie *entity.MovieEntry) error {
	if movie.ID == "" {
		return s.rejected(ErrMovieIDRequired, "movie_id")
	}
	if movie.Image == "" {
		return s.rejected(ErrMovieImageRequired, "image")
	}

	if err := s.validator.Struct(movie); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			for _, fieldError := range validationErrors {
				if fieldError.Field() == "Image" {
					return s.rejected(ErrMovieImageInvalid, "image_format")
				}
			}
		}
		return s.rejected(fmt.Errorf("%w: %v", ErrValidation, err), "schema")
	}

	return nil
}

func (s *WatchlistService) rejected(err error, reason string) error {
	metrics.WatchlistValidationFailures.WithLabelValues(reason).Inc()
	return err
}

// invalidate сбрасывает закешированный документ после записи
func (s *WatchlistService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteWatchlist(ctx, userID); err != nil {
		// Запись уже выполнена, проблемы с кешем не критичны
		logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to invalidate watchlist cache")
	}
}

// publish отправляет событие в Kafka; ошибка логируется и не прерывает запрос
func (s *WatchlistService) publish(ctx context.Context, event entity.WatchlistEvent) {
	if s.publisher == nil {
		return
	}

	eventData, err := json.Marshal(event)
	if err != nil {
		logger.Error().Err(err).Str("event_type", event.EventType).Msg("Failed to marshal watchlist event")
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	// Ключ = UserID, чтобы события пользователя сохраняли порядок
	if err := s.publisher.PublishMessage(publishCtx, event.UserID, eventData); err != nil {
		logger.Warn().
			Err(err).
			Str("event_type", event.EventType).
			Str("user_id", event.UserID).
			Msg("Failed to publish watchlist event")
	}
}
