package consistency

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository runs the taxonomy integrity queries.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// DefaultSubCategory returns the lowest-id sub category.
func (r *Repository) DefaultSubCategory(ctx context.Context) (*models.SubCategory, error) {
	var sub models.SubCategory
	if err := r.db.WithContext(ctx).Order("id ASC").First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// OrphanedProductIDs lists products with no sub category or a dangling one.
func (r *Repository) OrphanedProductIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	existing := r.db.Model(&models.SubCategory{}).Select("id")
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("subcat_id IS NULL OR subcat_id NOT IN (?)", existing).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// MisalignedProductIDs lists products whose category differs from the
// category of their sub category.
func (r *Repository) MisalignedProductIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Table("products AS p").
		Joins("JOIN sub_categories sc ON sc.id = p.subcat_id").
		Where("p.cat_id IS NULL OR p.cat_id <> sc.category_id").
		Order("p.id ASC").
		Pluck("p.id", &ids).Error
	return ids, err
}

// AssignSubCategory points the products at sub and its category.
func (r *Repository) AssignSubCategory(ctx context.Context, ids []uint, sub *models.SubCategory) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"subcat_id": sub.ID,
			"cat_id":    sub.CategoryID,
			"version":   gorm.Expr("version + 1"),
		})
	return res.RowsAffected, res.Error
}

// AlignCategories copies each product's sub category parent into cat_id.
func (r *Repository) AlignCategories(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"cat_id":  gorm.Expr("(SELECT sc.category_id FROM sub_categories sc WHERE sc.id = products.subcat_id)"),
			"version": gorm.Expr("version + 1"),
		})
	return res.RowsAffected, res.Error
}
