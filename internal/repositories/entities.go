package repositories

import (
	"context"
	"time"

	"github.com/maxaizer/jobboard-core/internal/domain/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var (
	ErrEntityNotFound = errors.New("entity not found")
	ErrStaleEntity    = errors.New("entity was modified concurrently")
)

type Filter struct {
	Status        models.Status
	OwnerID       int64
	CandidateID   int64
	ExpiresBefore *time.Time
	Limit         int
	Offset        int
}

type Entities struct {
	db *gorm.DB
}

func NewEntitiesRepository(db *gorm.DB) *Entities {
	return &Entities{db: db}
}

func (repo *Entities) Add(ctx context.Context, entity models.Entity) error {
	// expiry is compared as text by sqlite
	if entity.ExpiresAt != nil {
		expiresAt := entity.ExpiresAt.UTC()
		entity.ExpiresAt = &expiresAt
	}
	return repo.db.WithContext(ctx).Create(&entity).Error
}

func (repo *Entities) Load(ctx context.Context, ref models.EntityRef) (*models.Entity, error) {
	var entity models.Entity
	err := repo.db.WithContext(ctx).First(&entity, "kind = ? AND id = ?", ref.Kind, ref.ID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(ErrEntityNotFound, ref.String())
		}
		return nil, err
	}
	return &entity, nil
}

// SaveStatus moves the entity to status only if it is still at the given
// status and version, bumping the version.
func (repo *Entities) SaveStatus(ctx context.Context, entity models.Entity, status models.Status) (int64, error) {
	res := repo.db.WithContext(ctx).Model(&models.Entity{}).
		Where("kind = ? AND id = ? AND status = ? AND version = ?", entity.Kind, entity.ID, entity.Status, entity.Version).
		Updates(map[string]any{
			"status":     status,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, errors.Wrap(ErrStaleEntity, entity.Ref().String())
	}
	return entity.Version + 1, nil
}

func (repo *Entities) List(ctx context.Context, kind models.Kind, filter Filter) ([]models.Entity, error) {
	query := repo.db.WithContext(ctx).Where("kind = ?", kind)

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.OwnerID != 0 {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.CandidateID != 0 {
		query = query.Where("candidate_id = ?", filter.CandidateID)
	}
	if filter.ExpiresBefore != nil {
		query = query.Where("expires_at IS NOT NULL AND expires_at <= ?", filter.ExpiresBefore.UTC())
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	var entities []models.Entity
	if err := query.Order("id").Find(&entities).Error; err != nil {
		return nil, err
	}
	return entities, nil
}
