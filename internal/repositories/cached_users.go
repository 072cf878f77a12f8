package repositories

import (
	"context"
	"strconv"
	"time"

	"github.com/maxaizer/jobboard-core/internal/domain/models"
	gocache "github.com/patrickmn/go-cache"
)

type userRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
}

type CachedUsers struct {
	repo  userRepository
	cache *gocache.Cache
}

func NewCachedUsers(repo userRepository) *CachedUsers {
	return &CachedUsers{repo: repo, cache: gocache.New(5*time.Minute, 10*time.Minute)}
}

func (c *CachedUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return c.get(ctx, "id:"+strconv.FormatInt(id, 10), func() (*models.User, error) {
		return c.repo.GetByID(ctx, id)
	})
}

func (c *CachedUsers) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return c.get(ctx, "tg:"+strconv.FormatInt(telegramID, 10), func() (*models.User, error) {
		return c.repo.GetByTelegramID(ctx, telegramID)
	})
}

func (c *CachedUsers) get(_ context.Context, key string, load func() (*models.User, error)) (*models.User, error) {
	if value, found := c.cache.Get(key); found {
		user := value.(models.User)
		return &user, nil
	}

	user, err := load()
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, *user)
	return user, nil
}
