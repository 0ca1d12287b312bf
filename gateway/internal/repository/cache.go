package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leadgate/leadgate/gateway/internal/models"
)

const (
	applicationKeyPrefix = "leadgate:app:"
	rotatedKeyPrefix     = "leadgate:app-rotated:"
)

// fillUnlessRotated writes a cache entry only while the client id carries no
// rotation marker, so a lookup that read the row before a rotation committed
// cannot repopulate the retired id.
var fillUnlessRotated = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return 1
`)

// CachedApplications fronts an ApplicationRepository with a Redis
// read-through cache keyed by client id. Cache failures fall through to
// the underlying repository.
type CachedApplications struct {
	ApplicationRepository
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedApplications wraps next. A zero ttl defaults to five minutes.
func NewCachedApplications(next ApplicationRepository, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedApplications {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedApplications{
		ApplicationRepository: next,
		rdb:                   rdb,
		ttl:                   ttl,
		logger:                logger.With(slog.String("component", "app_cache")),
	}
}

func (c *CachedApplications) GetApplicationByClientID(ctx context.Context, clientID string) (*models.Application, error) {
	key := applicationKeyPrefix + clientID

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var app models.Application
		if jsonErr := json.Unmarshal(data, &app); jsonErr == nil {
			return &app, nil
		}
		c.logger.WarnContext(ctx, "discarding corrupt cache entry", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "cache read failed", slog.String("error", err.Error()))
	}

	app, err := c.ApplicationRepository.GetApplicationByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(app); err == nil {
		keys := []string{key, rotatedKeyPrefix + clientID}
		if err := fillUnlessRotated.Run(ctx, c.rdb, keys, encoded, c.ttl.Milliseconds()).Err(); err != nil {
			c.logger.WarnContext(ctx, "cache write failed", slog.String("error", err.Error()))
		}
	}
	return app, nil
}

// ReplaceKeys marks the old client id as rotated, updates the repository,
// then evicts the old entry. The marker outlives any entry a concurrent
// lookup could still write.
func (c *CachedApplications) ReplaceKeys(ctx context.Context, previousClientID string, app *models.Application) error {
	if err := c.rdb.Set(ctx, rotatedKeyPrefix+previousClientID, 1, c.ttl).Err(); err != nil {
		return fmt.Errorf("mark rotated application: %w", err)
	}
	if err := c.ApplicationRepository.ReplaceKeys(ctx, previousClientID, app); err != nil {
		return err
	}
	if err := c.rdb.Del(ctx, applicationKeyPrefix+previousClientID).Err(); err != nil {
		return fmt.Errorf("evict cached application: %w", err)
	}
	return nil
}
