package repositories

import (
	"context"

	"github.com/maxaizer/jobboard-core/internal/domain/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var ErrLogNotFound = errors.New("notification log entry not found")

type NotificationLogs struct {
	db *gorm.DB
}

func NewNotificationLogsRepository(db *gorm.DB) *NotificationLogs {
	return &NotificationLogs{db: db}
}

func (repo *NotificationLogs) Add(ctx context.Context, entry *models.NotificationLog) error {
	return repo.db.WithContext(ctx).Create(entry).Error
}

func (repo *NotificationLogs) GetByID(ctx context.Context, id int64) (*models.NotificationLog, error) {
	var entry models.NotificationLog
	if err := repo.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrLogNotFound, "id %d", id)
		}
		return nil, err
	}
	return &entry, nil
}

// UpdateOutcome overwrites the delivery fields of an existing row.
func (repo *NotificationLogs) UpdateOutcome(ctx context.Context, entry models.NotificationLog) error {
	return repo.db.WithContext(ctx).Model(&models.NotificationLog{}).Where("id = ?", entry.ID).
		Updates(map[string]any{
			"status":        entry.Status,
			"error_message": entry.ErrorMessage,
			"attempts":      entry.Attempts,
			"sent_at":       entry.SentAt,
		}).Error
}

func (repo *NotificationLogs) GetByStatus(ctx context.Context, status models.NotificationStatus, limit int) ([]models.NotificationLog, error) {
	var entries []models.NotificationLog
	query := repo.db.WithContext(ctx).Where("status = ?", status).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (repo *NotificationLogs) Count(ctx context.Context) (int64, error) {
	var count int64
	err := repo.db.WithContext(ctx).Model(&models.NotificationLog{}).Count(&count).Error
	return count, err
}
