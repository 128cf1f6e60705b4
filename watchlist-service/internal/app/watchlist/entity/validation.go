package entity

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	imageURLPattern     = regexp.MustCompile(`(?i)^https?://\S+\.(jpe?g|png|gif|webp|svg|bmp|avif)(\?\S*)?$`)
	imageDataURIPattern = regexp.MustCompile(`^data:image/[a-zA-Z0-9.+-]+;base64,[A-Za-z0-9+/=\s]+$`)
)

// IsValidMovieImage проверяет, что image - ссылка на картинку или base64 data URI
func IsValidMovieImage(image string) bool {
	return imageURLPattern.MatchString(image) || imageDataURIPattern.MatchString(image)
}

// NewValidator создает validator с зарегистрированным тегом movieimage
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("movieimage", func(fl validator.FieldLevel) bool {
		return IsValidMovieImage(fl.Field().String())
	})
	return v
}
