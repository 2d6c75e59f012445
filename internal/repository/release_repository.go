package repository

import (
	"context"
	"errors"

	"qarelease/internal/models"

	"gorm.io/gorm"
)

// ErrVersionConflict — запись изменена конкурентным вызовом: предикат
// "version = ожидаемая" не совпал, записано 0 строк.
var ErrVersionConflict = errors.New("release version conflict")

type ReleaseRepository interface {
	Create(ctx context.Context, release *models.Release) error
	GetByID(ctx context.Context, id uint) (*models.Release, error)
	List(ctx context.Context) ([]*models.Release, error)
	GetBySample(ctx context.Context, sampleID string) ([]*models.Release, error)
	UpdateFields(ctx context.Context, id uint, expectedVersion int64, fields map[string]interface{}) error
	UpdateWithChecklist(ctx context.Context, id uint, expectedVersion int64, fields map[string]interface{}, items []models.ChecklistItem) error
	Delete(ctx context.Context, id uint) error
	LatestNumberForYear(ctx context.Context, prefix string) (string, error)
	ListUnnotified(ctx context.Context, limit int) ([]*models.Release, error)
	Count(ctx context.Context) (int64, error)
}

type releaseRepository struct {
	db *gorm.DB
}

func NewReleaseRepository(db *gorm.DB) ReleaseRepository {
	return &releaseRepository{db: db}
}

// Create пишет релиз вместе с чек-листом в одной транзакции:
// релиз без чек-листа наблюдаться не должен.
func (r *releaseRepository) Create(ctx context.Context, release *models.Release) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(release).Error
	})
}

func (r *releaseRepository) GetByID(ctx context.Context, id uint) (*models.Release, error) {
	var release models.Release
	err := r.db.WithContext(ctx).
		Preload("ChecklistItems").
		First(&release, id).
		Error
	if err != nil {
		return nil, err
	}
	return &release, nil
}

func (r *releaseRepository) List(ctx context.Context) ([]*models.Release, error) {
	var releases []*models.Release
	err := r.db.WithContext(ctx).
		Preload("ChecklistItems").
		Order("submitted_at DESC").
		Find(&releases).
		Error
	return releases, err
}

func (r *releaseRepository) GetBySample(ctx context.Context, sampleID string) ([]*models.Release, error) {
	var releases []*models.Release
	err := r.db.WithContext(ctx).
		Preload("ChecklistItems").
		Where("sample_id = ?", sampleID).
		Order("submitted_at DESC").
		Find(&releases).
		Error
	return releases, err
}

// UpdateFields пишет поля перехода под оптимистической блокировкой.
// 0 затронутых строк означает проигранную гонку, не тихий успех.
func (r *releaseRepository) UpdateFields(ctx context.Context, id uint, expectedVersion int64, fields map[string]interface{}) error {
	fields["version"] = gorm.Expr("version + 1")

	res := r.db.WithContext(ctx).
		Model(&models.Release{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// UpdateWithChecklist атомарно патчит поля релиза и заменяет чек-лист
// целиком (delete-all + insert-all): смешение старых и новых строк
// наблюдаться не должно.
func (r *releaseRepository) UpdateWithChecklist(ctx context.Context, id uint, expectedVersion int64, fields map[string]interface{}, items []models.ChecklistItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fields["version"] = gorm.Expr("version + 1")

		res := tx.Model(&models.Release{}).
			Where("id = ? AND version = ?", id, expectedVersion).
			Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}

		if err := tx.Where("release_id = ?", id).Delete(&models.ChecklistItem{}).Error; err != nil {
			return err
		}

		for i := range items {
			items[i].ID = 0
			items[i].ReleaseID = id
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *releaseRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("release_id = ?", id).Delete(&models.ChecklistItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Release{}, id).Error
	})
}

// LatestNumberForYear возвращает старший выданный номер с данным префиксом
// года, "" — если за год номеров ещё нет.
func (r *releaseRepository) LatestNumberForYear(ctx context.Context, prefix string) (string, error) {
	var release models.Release
	err := r.db.WithContext(ctx).
		Select("release_number").
		Where("release_number LIKE ?", prefix+"%").
		Order("release_number DESC").
		First(&release).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return release.ReleaseNumber, nil
}

// ListUnnotified возвращает выпущенные релизы, по которым склад ещё
// не уведомлён. Это окно восстановления после сбоя уведомления.
func (r *releaseRepository) ListUnnotified(ctx context.Context, limit int) ([]*models.Release, error) {
	var releases []*models.Release
	err := r.db.WithContext(ctx).
		Where("status = ? AND warehouse_notified = ?", models.StatusReleased, false).
		Order("decided_at ASC").
		Limit(limit).
		Find(&releases).
		Error
	return releases, err
}

func (r *releaseRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Release{}).
		Count(&count).
		Error
	return count, err
}
