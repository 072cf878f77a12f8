package repositories

import (
	"context"
	"strconv"
	"time"

	"github.com/maxaizer/jobboard-core/internal/logger"
	gocache "github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
)

type optionRepository interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// CachedOptions is the settings view used by the notification pipeline.
// Lookup failures fall back to the given default.
type CachedOptions struct {
	repo  optionRepository
	cache *gocache.Cache
}

func NewCachedOptions(repo optionRepository, ttl time.Duration) *CachedOptions {
	return &CachedOptions{repo: repo, cache: gocache.New(ttl, 2*ttl)}
}

func (c *CachedOptions) String(ctx context.Context, key, def string) string {
	if value, found := c.cache.Get(key); found {
		return value.(string)
	}

	value, ok, err := c.repo.Get(ctx, key)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to read option %s: %v", key, err)
		return def
	}
	if !ok {
		value = def
	}
	c.cache.SetDefault(key, value)
	return value
}

func (c *CachedOptions) Bool(ctx context.Context, key string, def bool) bool {
	value, err := strconv.ParseBool(c.String(ctx, key, strconv.FormatBool(def)))
	if err != nil {
		return def
	}
	return value
}

func (c *CachedOptions) Set(ctx context.Context, key, value string) error {
	if err := c.repo.Set(ctx, key, value); err != nil {
		return err
	}
	c.cache.SetDefault(key, value)
	return nil
}
