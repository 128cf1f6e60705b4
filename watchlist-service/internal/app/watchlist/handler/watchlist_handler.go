package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cinetrack/pkg/logger"
	"cinetrack/pkg/metrics"
	"cinetrack/watchlist-service/internal/app/watchlist/entity"
	"cinetrack/watchlist-service/internal/app/watchlist/service"

	"github.com/gin-gonic/gin"
)

// Виды ошибок в поле "error" ответа
const (
	ErrKindValidation   = "validation_error"
	ErrKindNotFound     = "not_found"
	ErrKindForbidden    = "forbidden"
	ErrKindUnauthorized = "unauthorized"
	ErrKindInternal     = "internal_error"
)

const (
	routeCanonical  = "canonical"
	routeDeprecated = "deprecated"

	healthTimeout = 2 * time.Second
)

type WatchlistServiceInterface interface {
	AddMovie(ctx context.Context, req *entity.AddMovieRequest) (*entity.Watchlist, error)
	GetWatchlist(ctx context.Context, userID string) (*entity.Watchlist, error)
	UpdateRating(ctx context.Context, userID string, req *entity.UpdateRatingRequest) (*entity.MovieEntry, error)
	Ping(ctx context.Context) error
}

type WatchlistHandler struct {
	watchlistService WatchlistServiceInterface
	authEnabled      bool
}

// NewWatchlistHandler создает обработчик. При authEnabled=false идентификатор
// пользователя из запроса принимается без проверки.
func NewWatchlistHandler(watchlistService WatchlistServiceInterface, authEnabled bool) *WatchlistHandler {
	return &WatchlistHandler{
		watchlistService: watchlistService,
		authEnabled:      authEnabled,
	}
}

func (h *WatchlistHandler) AddMovie(c *gin.Context) {
	var req entity.AddMovieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if h.authEnabled {
		tokenUserID, email, ok := tokenIdentity(c)
		if !ok {
			respondUnauthorized(c)
			return
		}
		// Пустой userId отклоняет сервис как ошибку валидации
		if req.UserID != "" && req.UserID != tokenUserID {
			respondForbidden(c, req.UserID)
			return
		}
		if req.UserEmail == "" {
			req.UserEmail = email
		}
	}

	watchlist, err := h.watchlistService.AddMovie(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entity.AddMovieResponse{
		Message:   "Movie added to watchlist",
		Watchlist: watchlist,
	})
}

func (h *WatchlistHandler) GetWatchlist(c *gin.Context) {
	userID := c.Param("userId")
	if !h.authorize(c, userID) {
		return
	}

	watchlist, err := h.watchlistService.GetWatchlist(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, watchlist)
}

// UpdateRating обслуживает основной маршрут /api/watchlist/ratings/:userId
func (h *WatchlistHandler) UpdateRating(c *gin.Context) {
	h.updateRating(c, routeCanonical)
}

// UpdateRatingDeprecated обслуживает старый маршрут /api/ratings/:userId.
// Поведение то же, клиенту сообщается адрес основного маршрута.
func (h *WatchlistHandler) UpdateRatingDeprecated(c *gin.Context) {
	userID := c.Param("userId")
	c.Header("Deprecation", "true")
	c.Header("Link", "</api/watchlist/ratings/"+userID+">; rel=\"successor-version\"")

	logger.Warn().
		Str("path", c.Request.URL.Path).
		Str("user_agent", c.Request.UserAgent()).
		Msg("Deprecated rating route used")

	h.updateRating(c, routeDeprecated)
}

func (h *WatchlistHandler) updateRating(c *gin.Context, route string) {
	userID := c.Param("userId")
	if !h.authorize(c, userID) {
		return
	}

	var req entity.UpdateRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	movie, err := h.watchlistService.UpdateRating(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	metrics.WatchlistRatingsUpdated.WithLabelValues(route).Inc()

	c.JSON(http.StatusOK, entity.UpdateRatingResponse{
		Message: "Rating updated",
		Movie:   movie,
	})
}

// Health проверяет доступность MongoDB
func (h *WatchlistHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := h.watchlistService.Ping(ctx); err != nil {
		logger.Error().Err(err).Msg("Health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unavailable",
			"service": serviceName,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": serviceName,
	})
}

// authorize сверяет пользователя из пути с пользователем из токена
func (h *WatchlistHandler) authorize(c *gin.Context, userID string) bool {
	if !h.authEnabled {
		return true
	}
	tokenUserID, _, ok := tokenIdentity(c)
	if !ok {
		respondUnauthorized(c)
		return false
	}
	if userID != tokenUserID {
		respondForbidden(c, userID)
		return false
	}
	return true
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{
			Error:   ErrKindValidation,
			Message: service.ValidationMessage(err),
		})
	case errors.Is(err, service.ErrWatchlistNotFound):
		c.JSON(http.StatusNotFound, entity.ErrorResponse{
			Error:   ErrKindNotFound,
			Message: "Watchlist not found",
		})
	case errors.Is(err, service.ErrMovieNotFound):
		c.JSON(http.StatusNotFound, entity.ErrorResponse{
			Error:   ErrKindNotFound,
			Message: "Movie not found in watchlist",
		})
	default:
		reqLogger := logger.WithFields(map[string]interface{}{
			"request_id": c.GetString(logger.RequestIDKey),
			"path":       c.Request.URL.Path,
		})
		reqLogger.Error().Err(err).Msg("Watchlist request failed")
		c.JSON(http.StatusInternalServerError, entity.ErrorResponse{
			Error:   ErrKindInternal,
			Message: "Internal server error",
		})
	}
}

// respondBindError превращает ошибку разбора тела в ответ 400
func respondBindError(c *gin.Context, err error) {
	message := "Invalid request body"

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		switch typeErr.Field {
		case "userRating":
			message = service.ValidationMessage(service.ErrRatingRequired)
		case "movie":
			message = "movie must be an object"
		case "userId":
			message = "userId must be a string"
		}
	}

	c.JSON(http.StatusBadRequest, entity.ErrorResponse{
		Error:   ErrKindValidation,
		Message: message,
	})
}

func respondUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, entity.ErrorResponse{
		Error:   ErrKindUnauthorized,
		Message: "Unauthorized",
	})
}

func respondForbidden(c *gin.Context, userID string) {
	logger.Warn().
		Str("target_user_id", userID).
		Str("token_user_id", c.GetString(ContextUserID)).
		Msg("Watchlist access denied")
	c.JSON(http.StatusForbidden, entity.ErrorResponse{
		Error:   ErrKindForbidden,
		Message: service.ErrForbidden.Error(),
	})
}
