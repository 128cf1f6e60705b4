package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultMovieTitle = "Untitled"
	DefaultMovieType  = "movie"
)

// Watchlist один документ на пользователя, фильмы хранятся внутри документа
type Watchlist struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	UserID    string             `json:"userId" bson:"user_id"`       // Идентификатор от провайдера идентификации
	UserEmail string             `json:"userEmail" bson:"user_email"` // Денормализованная копия email
	Movies    []MovieEntry       `json:"movies" bson:"movies"`        // Порядок добавления, дубликаты допустимы
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updated_at"`
}

// MovieEntry фильм внутри watchlist, отдельно не адресуется
type MovieEntry struct {
	ID          string   `json:"id" bson:"id" validate:"required"`
	Title       string   `json:"title" bson:"title"`
	Type        string   `json:"type" bson:"type"`
	Rating      float64  `json:"rating" bson:"rating"`
	UserRating  *float64 `json:"userRating,omitempty" bson:"user_rating,omitempty"`
	Genres      []string `json:"genres" bson:"genres"`
	ReleaseDate string   `json:"releaseDate,omitempty" bson:"release_date,omitempty"`
	TrailerLink string   `json:"trailerLink,omitempty" bson:"trailer_link,omitempty"`
	Image       string   `json:"image" bson:"image" validate:"required,movieimage"`
}

// FindMovie возвращает первый фильм с указанным id и его позицию.
// При дубликатах всегда выигрывает первое совпадение.
func (w *Watchlist) FindMovie(movieID string) (*MovieEntry, int) {
	for i := range w.Movies {
		if w.Movies[i].ID == movieID {
			return &w.Movies[i], i
		}
	}
	return nil, -1
}

const (
	EventMovieAdded = "WATCHLIST_MOVIE_ADDED"
	EventMovieRated = "WATCHLIST_MOVIE_RATED"
)

type WatchlistEvent struct {
	EventType  string    `json:"event_type"` // WATCHLIST_MOVIE_ADDED, WATCHLIST_MOVIE_RATED
	UserID     string    `json:"user_id"`
	MovieID    string    `json:"movie_id"`
	Title      string    `json:"title,omitempty"`
	UserRating *float64  `json:"user_rating,omitempty"`
	MovieCount int       `json:"movie_count,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
