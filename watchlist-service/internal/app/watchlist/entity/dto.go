package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AddMovieRequest - запрос на добавление фильма в watchlist.
// Movie принимается в свободной форме и нормализуется в сервисе.
type AddMovieRequest struct {
	UserID    string                 `json:"userId" validate:"required"`
	UserEmail string                 `json:"userEmail"`
	Movie     map[string]interface{} `json:"movie" validate:"required"`
}

// UpdateRatingRequest - запрос на обновление личной оценки
type UpdateRatingRequest struct {
	MovieID    FlexibleString `json:"movieId" validate:"required"`
	UserRating *float64       `json:"userRating" validate:"required"`
}

// FlexibleString принимает из JSON как строку, так и число
type FlexibleString string

func (s *FlexibleString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = FlexibleString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*s = FlexibleString(num.String())
	return nil
}

// AddMovieResponse - ответ на добавление фильма
type AddMovieResponse struct {
	Message   string     `json:"message"`
	Watchlist *Watchlist `json:"watchlist"`
}

// UpdateRatingResponse - ответ на обновление оценки
type UpdateRatingResponse struct {
	Message string      `json:"message"`
	Movie   *MovieEntry `json:"movie"`
}

// ErrorResponse - стандартный ответ об ошибке
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
