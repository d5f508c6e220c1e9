package media

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository persists the upload intent log.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an intent repository bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// CreateIntent records a transfer before it starts.
func (r *Repository) CreateIntent(ctx context.Context, intent *models.MediaUploadIntent) error {
	if intent.Status == "" {
		intent.Status = enums.MediaIntentPending
	}
	return r.db.WithContext(ctx).Create(intent).Error
}

// MarkCommitted flips a pending intent once its image row exists.
func (r *Repository) MarkCommitted(ctx context.Context, remoteName string) error {
	return r.db.WithContext(ctx).
		Model(&models.MediaUploadIntent{}).
		Where("remote_name = ? AND status = ?", remoteName, enums.MediaIntentPending).
		Update("status", enums.MediaIntentCommitted).Error
}

// MarkAborted closes intents whose remote files were removed or given up on.
func (r *Repository) MarkAborted(ctx context.Context, remoteNames []string) error {
	if len(remoteNames) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.MediaUploadIntent{}).
		Where("remote_name IN ?", remoteNames).
		Update("status", enums.MediaIntentAborted).Error
}

// ListStalePending returns pending intents created before cutoff, oldest first.
func (r *Repository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.MediaUploadIntent, error) {
	var rows []models.MediaUploadIntent
	q := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.MediaIntentPending, cutoff).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByRemoteName is used by tests and the sweep to inspect one intent.
func (r *Repository) FindByRemoteName(ctx context.Context, remoteName string) (*models.MediaUploadIntent, error) {
	var row models.MediaUploadIntent
	if err := r.db.WithContext(ctx).Where("remote_name = ?", remoteName).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
