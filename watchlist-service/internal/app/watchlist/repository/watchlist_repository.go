package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cinetrack/pkg/logger"
	"cinetrack/pkg/metrics"
	"cinetrack/watchlist-service/internal/app/watchlist/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const serviceName = "watchlist-service"

var (
	// Стандартные ошибки репозитория для обработки в service layer
	ErrWatchlistNotFound = errors.New("watchlist not found")
	ErrMovieNotFound     = errors.New("movie not found in watchlist")
)

type watchlistRepository struct {
	collection *mongo.Collection
}

// NewWatchlistRepository создает новый репозиторий watchlist.
// Уникальный индекс по user_id гарантирует один документ на пользователя.
func NewWatchlistRepository(db *mongo.Database, collectionName string) WatchlistRepository {
	collection := db.Collection(collectionName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
		},
		Options: options.Index().SetName("user_id_unique").SetUnique(true),
	}

	if _, err := collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		// Индекс может уже существовать, работу не прерываем
		logger.Warn().Err(err).Str("collection", collectionName).Msg("Failed to create user_id index")
	}

	return &watchlistRepository{
		collection: collection,
	}
}

// AppendMovie атомарно добавляет фильм в конец списка ($push),
// создавая документ при первом добавлении (upsert).
func (r *watchlistRepository) AppendMovie(ctx context.Context, userID, userEmail string, movie entity.MovieEntry) (*entity.Watchlist, error) {
	now := time.Now().UTC()

	set := bson.M{"updated_at": now}
	if userEmail != "" {
		set["user_email"] = userEmail
	}

	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$push":        bson.M{"movies": movie},
		"$set":         set,
		"$setOnInsert": bson.M{"created_at": now},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	timer := metrics.NewDbTimer(serviceName, metrics.DbOpUpsert, r.collection.Name())
	defer timer.ObserveDuration()

	var watchlist entity.Watchlist
	var err error
	// Два одновременных первых добавления могут оба попытаться вставить документ;
	// проигравший получает duplicate key и повторяет запрос уже как обновление.
	for attempt := 0; attempt < 2; attempt++ {
		err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&watchlist)
		if err == nil || !mongo.IsDuplicateKeyError(err) {
			break
		}
	}
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpUpsert)
		return nil, fmt.Errorf("failed to append movie: %w", err)
	}

	return &watchlist, nil
}

// GetByUserID получает watchlist пользователя
func (r *watchlistRepository) GetByUserID(ctx context.Context, userID string) (*entity.Watchlist, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpFind, r.collection.Name())
	defer timer.ObserveDuration()

	var watchlist entity.Watchlist
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&watchlist)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrWatchlistNotFound
		}
		metrics.RecordDbError(serviceName, metrics.DbOpFind)
		return nil, fmt.Errorf("failed to get watchlist: %w", err)
	}

	return &watchlist, nil
}

// UpdateMovieRating выставляет user_rating первому фильму с указанным id.
// Позиционный оператор $ обновляет первый совпавший элемент массива.
func (r *watchlistRepository) UpdateMovieRating(ctx context.Context, userID, movieID string, rating float64) (*entity.MovieEntry, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpUpdate, r.collection.Name())
	defer timer.ObserveDuration()

	filter := bson.M{
		"user_id":   userID,
		"movies.id": movieID,
	}
	update := bson.M{
		"$set": bson.M{
			"movies.$.user_rating": rating,
			"updated_at":           time.Now().UTC(),
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var watchlist entity.Watchlist
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&watchlist)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.missingRatingTarget(ctx, userID)
		}
		metrics.RecordDbError(serviceName, metrics.DbOpUpdate)
		return nil, fmt.Errorf("failed to update rating: %w", err)
	}

	movie, _ := watchlist.FindMovie(movieID)
	if movie == nil {
		return nil, ErrMovieNotFound
	}

	return movie, nil
}

// missingRatingTarget определяет, чего не хватило для обновления: документа или фильма
func (r *watchlistRepository) missingRatingTarget(ctx context.Context, userID string) error {
	count, err := r.collection.CountDocuments(ctx, bson.M{"user_id": userID}, options.Count().SetLimit(1))
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpCount)
		return fmt.Errorf("failed to check watchlist: %w", err)
	}
	if count == 0 {
		return ErrWatchlistNotFound
	}
	return ErrMovieNotFound
}

// Ping проверяет доступность MongoDB для /health
func (r *watchlistRepository) Ping(ctx context.Context) error {
	return r.collection.Database().Client().Ping(ctx, readpref.Primary())
}
