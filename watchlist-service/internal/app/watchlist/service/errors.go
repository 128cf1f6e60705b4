package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation = errors.New("validation error")

	ErrUserIDRequired     = fmt.Errorf("%w: userId is required", ErrValidation)
	ErrMovieRequired      = fmt.Errorf("%w: movie is required", ErrValidation)
	ErrMovieIDRequired    = fmt.Errorf("%w: movie id is required", ErrValidation)
	ErrMovieImageRequired = fmt.Errorf("%w: movie image is required", ErrValidation)
	ErrMovieImageInvalid  = fmt.Errorf("%w: movie image must be an image URL or a base64 data URI", ErrValidation)
	ErrRatingRequired     = fmt.Errorf("%w: userRating must be a number", ErrValidation)

	ErrWatchlistNotFound = errors.New("watchlist not found")
	ErrMovieNotFound     = errors.New("movie not found in watchlist")

	// ErrForbidden - пользователь из токена не совпадает с владельцем watchlist
	ErrForbidden = errors.New("access to another user's watchlist is forbidden")
)

// ValidationMessage возвращает текст ошибки валидации без общего префикса
func ValidationMessage(err error) string {
	return strings.TrimPrefix(err.Error(), ErrValidation.Error()+": ")
}
