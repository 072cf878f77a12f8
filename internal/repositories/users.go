package repositories

import (
	"context"

	"github.com/maxaizer/jobboard-core/internal/domain/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

type Users struct {
	db *gorm.DB
}

func NewUsersRepository(db *gorm.DB) *Users {
	return &Users{db: db}
}

func (repo *Users) Add(ctx context.Context, user models.User) error {
	return repo.db.WithContext(ctx).Create(&user).Error
}

func (repo *Users) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return repo.first(ctx, "id = ?", id)
}

func (repo *Users) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return repo.first(ctx, "telegram_id = ?", telegramID)
}

func (repo *Users) first(ctx context.Context, query string, args ...any) (*models.User, error) {
	var user models.User
	if err := repo.db.WithContext(ctx).Where(query, args...).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
