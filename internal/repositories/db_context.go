package repositories

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/maxaizer/jobboard-core/internal/domain/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type DbContext struct {
	DB *gorm.DB
}

func NewDbContext(connectionString string) (*DbContext, error) {
	db, err := gorm.Open(sqlite.Open(connectionString), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, err
	}

	return &DbContext{DB: db}, nil
}

func (c *DbContext) Migrate() error {
	err := c.DB.AutoMigrate(models.Entity{})
	if err != nil {
		return fmt.Errorf("failed to migrate Entity: %w", err)
	}

	err = c.DB.AutoMigrate(models.User{})
	if err != nil {
		return fmt.Errorf("failed to migrate User: %w", err)
	}

	err = c.DB.AutoMigrate(models.Option{})
	if err != nil {
		return fmt.Errorf("failed to migrate Option: %w", err)
	}

	err = c.DB.AutoMigrate(models.NotificationLog{})
	if err != nil {
		return fmt.Errorf("failed to migrate NotificationLog: %w", err)
	}

	return nil
}

// SeedOptions inserts defaults for options that were never set, keeping values
// that were changed at runtime.
func (c *DbContext) SeedOptions(defaults map[string]string) error {
	if len(defaults) == 0 {
		return nil
	}

	options := make([]models.Option, 0, len(defaults))
	for key, value := range defaults {
		options = append(options, models.Option{Name: key, Value: value})
	}

	if err := c.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&options).Error; err != nil {
		return fmt.Errorf("failed to seed options: %w", err)
	}
	return nil
}

func (c *DbContext) SetMaxOpenConns(n int) error {
	db, err := c.DB.DB()
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(n)
	return nil
}

func (c *DbContext) Close() error {
	db, err := c.DB.DB()
	if err != nil {
		return err
	}

	return db.Close()
}
