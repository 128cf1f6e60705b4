package service

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"cinetrack/watchlist-service/internal/app/watchlist/entity"
)

// Алиасы полей в порядке приоритета
var (
	imageAliases   = []string{"image", "img", "poster"}
	trailerAliases = []string{"trailerLink", "trailer"}
)

// NormalizeMovie приводит произвольный JSON фильма к каноническому MovieEntry.
// Проверка обязательных полей выполняется отдельно.
func NormalizeMovie(raw map[string]interface{}) entity.MovieEntry {
	title := firstNonEmpty(raw, "title")
	if title == "" {
		title = entity.DefaultMovieTitle
	}
	movieType := firstNonEmpty(raw, "type")
	if movieType == "" {
		movieType = entity.DefaultMovieType
	}

	return entity.MovieEntry{
		ID:          firstNonEmpty(raw, "id"),
		Title:       title,
		Type:        movieType,
		Rating:      numberValue(raw["rating"]),
		Genres:      stringSlice(raw["genres"]),
		ReleaseDate: firstNonEmpty(raw, "releaseDate"),
		TrailerLink: firstNonEmpty(raw, trailerAliases...),
		Image:       firstNonEmpty(raw, imageAliases...),
	}
}

func firstNonEmpty(raw map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s := strings.TrimSpace(stringValue(raw[key])); s != "" {
			return s
		}
	}
	return ""
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func numberValue(v interface{}) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func stringSlice(v interface{}) []string {
	out := []string{}
	switch items := v.(type) {
	case []interface{}:
		for _, item := range items {
			if s := strings.TrimSpace(stringValue(item)); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, item := range items {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
