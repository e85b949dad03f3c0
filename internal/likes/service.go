package likes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cuongbtq/openmusic/internal/domain"
	"github.com/cuongbtq/openmusic/shared/cache"
)

// Source tells where a like count was read from
type Source string

const (
	SourceCache    Source = "cache"
	SourceDatabase Source = "database"
)

// Cache is the key/value store counts are kept in. Get returns cache.ErrCacheMiss on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Store is the source of truth for likes
type Store interface {
	AlbumExists(ctx context.Context, albumID string) (bool, error)
	CountAlbumLikes(ctx context.Context, albumID string) (int, error)
	AddLike(ctx context.Context, userID, albumID string) error
	RemoveLike(ctx context.Context, userID, albumID string) error
}

// Service serves album like counts cache-aside. Cache faults are logged and
// never returned; only store errors reach the caller.
type Service struct {
	cache  Cache
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewService creates a likes Service
func NewService(c Cache, store Store, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{
		cache:  c,
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// GetLikes returns the like count of albumID and where it came from
func (s *Service) GetLikes(ctx context.Context, albumID string) (int, Source, error) {
	cached, err := s.cache.Get(ctx, albumID)
	switch {
	case err == nil:
		count, convErr := strconv.Atoi(cached)
		if convErr == nil {
			return count, SourceCache, nil
		}
		s.logger.Warn("Discarding unparsable cached like count",
			slog.String("album_id", albumID),
			slog.String("value", cached),
		)
	case errors.Is(err, cache.ErrCacheMiss):
	default:
		s.logger.Warn("Likes cache read failed, falling back to database",
			slog.String("album_id", albumID),
			slog.String("error", err.Error()),
		)
	}

	count, err := s.store.CountAlbumLikes(ctx, albumID)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	if err := s.cache.Set(ctx, albumID, strconv.Itoa(count), s.ttl); err != nil {
		s.logger.Warn("Failed to populate likes cache",
			slog.String("album_id", albumID),
			slog.String("error", err.Error()),
		)
	}

	return count, SourceDatabase, nil
}

// Invalidate drops the cached count of albumID
func (s *Service) Invalidate(ctx context.Context, albumID string) {
	if err := s.cache.Delete(ctx, albumID); err != nil {
		s.logger.Warn("Failed to invalidate likes cache",
			slog.String("album_id", albumID),
			slog.String("error", err.Error()),
		)
	}
}

// Like records a like of userID on albumID
func (s *Service) Like(ctx context.Context, userID, albumID string) error {
	exists, err := s.store.AlbumExists(ctx, albumID)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	if !exists {
		return domain.ErrAlbumNotFound
	}

	if err := s.store.AddLike(ctx, userID, albumID); err != nil {
		if errors.Is(err, domain.ErrAlreadyLiked) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	s.Invalidate(ctx, albumID)
	return nil
}

// Unlike removes the like of userID on albumID. Unliking twice is not an error.
func (s *Service) Unlike(ctx context.Context, userID, albumID string) error {
	if err := s.store.RemoveLike(ctx, userID, albumID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	s.Invalidate(ctx, albumID)
	return nil
}
