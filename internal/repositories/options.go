package repositories

import (
	"context"

	"github.com/maxaizer/jobboard-core/internal/domain/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Options struct {
	db *gorm.DB
}

func NewOptionsRepository(db *gorm.DB) *Options {
	return &Options{db: db}
}

// Get returns the stored value and whether the option exists.
func (repo *Options) Get(ctx context.Context, key string) (string, bool, error) {
	var option models.Option
	err := repo.db.WithContext(ctx).First(&option, "name = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return option.Value, true, nil
}

func (repo *Options) Set(ctx context.Context, key, value string) error {
	return repo.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&models.Option{Name: key, Value: value}).Error
}
