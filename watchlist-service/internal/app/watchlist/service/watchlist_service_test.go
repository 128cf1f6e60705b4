package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cinetrack/watchlist-service/internal/app/watchlist/entity"
	"cinetrack/watchlist-service/internal/app/watchlist/infrastructure"
	watchlistcache "cinetrack/watchlist-service/internal/app/watchlist/infrastructure/cache"
	"cinetrack/watchlist-service/internal/app/watchlist/repository"
	"cinetrack/watchlist-service/internal/app/watchlist/repository/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testTTL = 5 * time.Minute

func newTestService() (*WatchlistService, *mocks.MockWatchlistRepository, *mocks.MockWatchlistCache, *mocks.MockMessagePublisher) {
	repo := new(mocks.MockWatchlistRepository)
	cache := new(mocks.MockWatchlistCache)
	publisher := &mocks.MockMessagePublisher{Messages: make([][]byte, 0)}
	return NewWatchlistService(repo, cache, publisher, testTTL), repo, cache, publisher
}

func floatPtr(f float64) *float64 {
	return &f
}

// ==================== AddMovie ====================

func TestAddMovie_Success(t *testing.T) {
	svc, repo, cache, publisher := newTestService()
	ctx := context.Background()

	expectedEntry := entity.MovieEntry{
		ID:     "7",
		Title:  "Dune",
		Type:   "movie",
		Genres: []string{},
		Image:  "http://x/d.jpg",
	}
	stored := &entity.Watchlist{UserID: "u1", UserEmail: "u1@x.com", Movies: []entity.MovieEntry{expectedEntry}}

	repo.On("AppendMovie", ctx, "u1", "u1@x.com", expectedEntry).Return(stored, nil)
	cache.On("DeleteWatchlist", ctx, "u1").Return(nil)
	publisher.On("PublishMessage", mock.Anything, "u1", mock.Anything).Return(nil)

	result, err := svc.AddMovie(ctx, &entity.AddMovieRequest{
		UserID:    "u1",
		UserEmail: "u1@x.com",
		Movie:     map[string]interface{}{"id": float64(7), "title": "Dune", "image": "http://x/d.jpg"},
	})

	require.NoError(t, err)
	assert.Equal(t, stored, result)
	repo.AssertExpectations(t)
	cache.AssertExpectations(t)

	require.Len(t, publisher.Messages, 1)
	var event entity.WatchlistEvent
	require.NoError(t, json.Unmarshal(publisher.Messages[0], &event))
	assert.Equal(t, entity.EventMovieAdded, event.EventType)
	assert.Equal(t, "7", event.MovieID)
	assert.Equal(t, 1, event.MovieCount)
}

func TestAddMovie_ImgAliasStored(t *testing.T) {
	svc, repo, cache, publisher := newTestService()
	ctx := context.Background()

	repo.On("AppendMovie", ctx, "u1", "", mock.MatchedBy(func(m entity.MovieEntry) bool {
		return m.Image == "http://x/poster.png" && m.Title == "Untitled"
	})).Return(&entity.Watchlist{UserID: "u1"}, nil)
	cache.On("DeleteWatchlist", ctx, "u1").Return(nil)
	publisher.On("PublishMessage", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := svc.AddMovie(ctx, &entity.AddMovieRequest{
		UserID: "u1",
		Movie:  map[string]interface{}{"id": "m1", "img": "http://x/poster.png"},
	})

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestAddMovie_ValidationRejectedBeforePersistence(t *testing.T) {
	testCases := []struct {
		name    string
		req     *entity.AddMovieRequest
		wantErr error
	}{
		{"missing user", &entity.AddMovieRequest{Movie: map[string]interface{}{"id": "1", "image": "http://x/a.jpg"}}, ErrUserIDRequired},
		{"missing movie", &entity.AddMovieRequest{UserID: "u1"}, ErrMovieRequired},
		{"empty id", &entity.AddMovieRequest{UserID: "u1", Movie: map[string]interface{}{"id": "", "image": "http://x/a.jpg"}}, ErrMovieIDRequired},
		{"empty image", &entity.AddMovieRequest{UserID: "u1", Movie: map[string]interface{}{"id": "1", "image": "", "img": "", "poster": ""}}, ErrMovieImageRequired},
		{"bad image", &entity.AddMovieRequest{UserID: "u1", Movie: map[string]interface{}{"id": "1", "poster": "N/A"}}, ErrMovieImageInvalid},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, cache, publisher := newTestService()

			result, err := svc.AddMovie(context.Background(), tc.req)

			assert.Nil(t, result)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.ErrorIs(t, err, ErrValidation)
			repo.AssertNotCalled(t, "AppendMovie", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			cache.AssertNotCalled(t, "DeleteWatchlist", mock.Anything, mock.Anything)
			assert.Empty(t, publisher.Messages)
		})
	}
}

func TestAddMovie_RepoError(t *testing.T) {
	svc, repo, cache, publisher := newTestService()
	ctx := context.Background()

	repo.On("AppendMovie", ctx, "u1", "", mock.Anything).Return(nil, errors.New("connection refused"))

	result, err := svc.AddMovie(ctx, &entity.AddMovieRequest{
		UserID: "u1",
		Movie:  map[string]interface{}{"id": "1", "image": "http://x/a.jpg"},
	})

	assert.Nil(t, result)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)
	cache.AssertNotCalled(t, "DeleteWatchlist", mock.Anything, mock.Anything)
	assert.Empty(t, publisher.Messages)
}

func TestAddMovie_SideEffectFailuresIgnored(t *testing.T) {
	svc, repo, cache, publisher := newTestService()
	ctx := context.Background()

	repo.On("AppendMovie", ctx, "u1", "", mock.Anything).Return(&entity.Watchlist{UserID: "u1"}, nil)
	cache.On("DeleteWatchlist", ctx, "u1").Return(errors.New("redis down"))
	publisher.On("PublishMessage", mock.Anything, "u1", mock.Anything).Return(errors.New("kafka down"))

	result, err := svc.AddMovie(ctx, &entity.AddMovieRequest{
		UserID: "u1",
		Movie:  map[string]interface{}{"id": "1", "image": "http://x/a.jpg"},
	})

	assert.NoError(t, err)
	assert.NotNil(t, result)
}

func TestAddMovie_WithoutCacheAndPublisher(t *testing.T) {
	repo := new(mocks.MockWatchlistRepository)
	svc := NewWatchlistService(repo, nil, nil, testTTL)
	ctx := context.Background()

	repo.On("AppendMovie", ctx, "u1", "", mock.Anything).Return(&entity.Watchlist{UserID: "u1"}, nil)

	result, err := svc.AddMovie(ctx, &entity.AddMovieRequest{
		UserID: "u1",
		Movie:  map[string]interface{}{"id": "1", "image": "data:image/png;base64,iVBORw0KGgo="},
	})

	assert.NoError(t, err)
	assert.NotNil(t, result)
}

// ==================== GetWatchlist ====================

func TestGetWatchlist_CacheHit(t *testing.T) {
	svc, repo, cache, _ := newTestService()
	ctx := context.Background()
	cached := &entity.Watchlist{UserID: "u1"}

	cache.On("GetWatchlist", ctx, "u1").Return(cached, nil)

	result, err := svc.GetWatchlist(ctx, "u1")

	assert.NoError(t, err)
	assert.Same(t, cached, result)
	repo.AssertNotCalled(t, "GetByUserID", mock.Anything, mock.Anything)
}

func TestGetWatchlist_CacheMissLoadsAndCaches(t *testing.T) {
	svc, repo, cache, _ := newTestService()
	ctx := context.Background()
	stored := &entity.Watchlist{UserID: "u1", Movies: []entity.MovieEntry{{ID: "1"}}}

	cache.On("GetWatchlist", ctx, "u1").Return(nil, nil)
	cache.On("Generation", ctx, "u1").Return(int64(3), nil)
	repo.On("GetByUserID", ctx, "u1").Return(stored, nil)
	cache.On("SetWatchlist", ctx, stored, int64(3), testTTL).Return(nil)

	result, err := svc.GetWatchlist(ctx, "u1")

	assert.NoError(t, err)
	assert.Equal(t, stored, result)
	cache.AssertExpectations(t)
}

func TestGetWatchlist_CacheErrorFallsBackToStore(t *testing.T) {
	svc, repo, cache, _ := newTestService()
	ctx := context.Background()
	stored := &entity.Watchlist{UserID: "u1"}

	cache.On("GetWatchlist", ctx, "u1").Return(nil, errors.New("redis down"))
	cache.On("Generation", ctx, "u1").Return(int64(0), nil)
	repo.On("GetByUserID", ctx, "u1").Return(stored, nil)
	cache.On("SetWatchlist", ctx, stored, int64(0), testTTL).Return(errors.New("redis down"))

	result, err := svc.GetWatchlist(ctx, "u1")

	assert.NoError(t, err)
	assert.Equal(t, stored, result)
}

func TestGetWatchlist_NotFound(t *testing.T) {
	svc, repo, cache, _ := newTestService()
	ctx := context.Background()

	cache.On("GetWatchlist", ctx, "ghost").Return(nil, nil)
	cache.On("Generation", ctx, "ghost").Return(int64(0), nil)
	repo.On("GetByUserID", ctx, "ghost").Return(nil, repository.ErrWatchlistNotFound)

	result, err := svc.GetWatchlist(ctx, "ghost")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrWatchlistNotFound)
	cache.AssertNotCalled(t, "SetWatchlist", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetWatchlist_StorageFault(t *testing.T) {
	svc, repo, cache, _ := newTestService()
	ctx := context.Background()

	cache.On("GetWatchlist", ctx, "u1").Return(nil, nil)
	cache.On("Generation", ctx, "u1").Return(int64(0), nil)
	repo.On("GetByUserID", ctx, "u1").Return(nil, errors.New("server selection timeout"))

	result, err := svc.GetWatchlist(ctx, "u1")

	assert.Nil(t, result)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrWatchlistNotFound)
}

func TestGetWatchlist_GenerationErrorSkipsCacheFill(t *testing.T) {
	svc, repo, cache, _ := newTestService()
	ctx := context.Background()
	stored := &entity.Watchlist{UserID: "u1"}

	cache.On("GetWatchlist", ctx, "u1").Return(nil, nil)
	cache.On("Generation", ctx, "u1").Return(int64(0), errors.New("redis down"))
	repo.On("GetByUserID", ctx, "u1").Return(stored, nil)

	result, err := svc.GetWatchlist(ctx, "u1")

	assert.NoError(t, err)
	assert.Equal(t, stored, result)
	cache.AssertNotCalled(t, "SetWatchlist", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetWatchlist_StaleGenerationIsNotAnError(t *testing.T) {
	svc, repo, cache, _ := newTestService()
	ctx := context.Background()
	stored := &entity.Watchlist{UserID: "u1"}

	cache.On("GetWatchlist", ctx, "u1").Return(nil, nil)
	cache.On("Generation", ctx, "u1").Return(int64(4), nil)
	repo.On("GetByUserID", ctx, "u1").Return(stored, nil)
	cache.On("SetWatchlist", ctx, stored, int64(4), testTTL).Return(infrastructure.ErrStaleGeneration)

	result, err := svc.GetWatchlist(ctx, "u1")

	assert.NoError(t, err)
	assert.Equal(t, stored, result)
}

func TestGetWatchlist_ReadRacingAddDoesNotCacheOldDocument(t *testing.T) {
	repo := new(mocks.MockWatchlistRepository)
	memoryCache, err := watchlistcache.NewMemoryCache(10)
	require.NoError(t, err)
	svc := NewWatchlistService(repo, memoryCache, nil, testTTL)
	ctx := context.Background()

	before := &entity.Watchlist{UserID: "u1", Movies: []entity.MovieEntry{{ID: "a"}}}
	after := &entity.Watchlist{UserID: "u1", Movies: []entity.MovieEntry{{ID: "a"}, {ID: "b"}}}

	storeRead := make(chan struct{})
	resume := make(chan struct{})
	repo.On("GetByUserID", ctx, "u1").Run(func(mock.Arguments) {
		close(storeRead)
		<-resume
	}).Return(before, nil).Once()
	repo.On("GetByUserID", ctx, "u1").Return(after, nil).Once()
	repo.On("AppendMovie", ctx, "u1", "", mock.Anything).Return(after, nil)

	// Чтение останавливается сразу после обращения к хранилищу
	slowRead := make(chan *entity.Watchlist)
	go func() {
		result, _ := svc.GetWatchlist(ctx, "u1")
		slowRead <- result
	}()
	<-storeRead

	_, err = svc.AddMovie(ctx, &entity.AddMovieRequest{
		UserID: "u1",
		Movie:  map[string]interface{}{"id": "b", "image": "http://x/b.jpg"},
	})
	require.NoError(t, err)

	close(resume)
	assert.Len(t, (<-slowRead).Movies, 1)

	result, err := svc.GetWatchlist(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, result.Movies, 2)
	repo.AssertExpectations(t)
}

// ==================== UpdateRating ====================

func TestUpdateRating_Success(t *testing.T) {
	svc, repo, cache, publisher := newTestService()
	ctx := context.Background()
	updated := &entity.MovieEntry{ID: "b", Title: "Alien", UserRating: floatPtr(7)}

	repo.On("UpdateMovieRating", ctx, "u1", "b", float64(7)).Return(updated, nil)
	cache.On("DeleteWatchlist", ctx, "u1").Return(nil)
	publisher.On("PublishMessage", mock.Anything, "u1", mock.Anything).Return(nil)

	result, err := svc.UpdateRating(ctx, "u1", &entity.UpdateRatingRequest{MovieID: "b", UserRating: floatPtr(7)})

	require.NoError(t, err)
	assert.Equal(t, updated, result)
	cache.AssertExpectations(t)

	require.Len(t, publisher.Messages, 1)
	var event entity.WatchlistEvent
	require.NoError(t, json.Unmarshal(publisher.Messages[0], &event))
	assert.Equal(t, entity.EventMovieRated, event.EventType)
	require.NotNil(t, event.UserRating)
	assert.Equal(t, 7.0, *event.UserRating)
}

func TestUpdateRating_ZeroIsAValidRating(t *testing.T) {
	svc, repo, cache, publisher := newTestService()
	ctx := context.Background()

	repo.On("UpdateMovieRating", ctx, "u1", "a", float64(0)).Return(&entity.MovieEntry{ID: "a", UserRating: floatPtr(0)}, nil)
	cache.On("DeleteWatchlist", ctx, "u1").Return(nil)
	publisher.On("PublishMessage", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := svc.UpdateRating(ctx, "u1", &entity.UpdateRatingRequest{MovieID: "a", UserRating: floatPtr(0)})

	assert.NoError(t, err)
}

func TestUpdateRating_ValidationBeforeLookup(t *testing.T) {
	testCases := []struct {
		name    string
		userID  string
		req     *entity.UpdateRatingRequest
		wantErr error
	}{
		{"missing user", "", &entity.UpdateRatingRequest{MovieID: "a", UserRating: floatPtr(5)}, ErrUserIDRequired},
		{"missing movie id", "u1", &entity.UpdateRatingRequest{UserRating: floatPtr(5)}, ErrMovieIDRequired},
		{"missing rating", "u1", &entity.UpdateRatingRequest{MovieID: "a"}, ErrRatingRequired},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, _, _ := newTestService()

			result, err := svc.UpdateRating(context.Background(), tc.userID, tc.req)

			assert.Nil(t, result)
			assert.ErrorIs(t, err, tc.wantErr)
			repo.AssertNotCalled(t, "UpdateMovieRating", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestUpdateRating_NotFoundKinds(t *testing.T) {
	testCases := []struct {
		name    string
		repoErr error
		wantErr error
	}{
		{"watchlist missing", repository.ErrWatchlistNotFound, ErrWatchlistNotFound},
		{"movie missing", repository.ErrMovieNotFound, ErrMovieNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, cache, publisher := newTestService()
			ctx := context.Background()

			repo.On("UpdateMovieRating", ctx, "u1", "zzz", float64(3)).Return(nil, tc.repoErr)

			result, err := svc.UpdateRating(ctx, "u1", &entity.UpdateRatingRequest{MovieID: "zzz", UserRating: floatPtr(3)})

			assert.Nil(t, result)
			assert.ErrorIs(t, err, tc.wantErr)
			cache.AssertNotCalled(t, "DeleteWatchlist", mock.Anything, mock.Anything)
			assert.Empty(t, publisher.Messages)
		})
	}
}

func TestUpdateRating_StorageFault(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()

	repo.On("UpdateMovieRating", ctx, "u1", "a", float64(4)).Return(nil, errors.New("write conflict"))

	result, err := svc.UpdateRating(ctx, "u1", &entity.UpdateRatingRequest{MovieID: "a", UserRating: floatPtr(4)})

	assert.Nil(t, result)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMovieNotFound)
	assert.NotErrorIs(t, err, ErrWatchlistNotFound)
}
