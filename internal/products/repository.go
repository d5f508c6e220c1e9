package product

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository wires together all product aggregate persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
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

func byID(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

func byDisplayOrder(db *gorm.DB) *gorm.DB {
	return db.Order("display_order ASC, id ASC")
}

// GetAggregate loads the product with every relation the admin surface renders.
// Product-level images exclude variant images, which hang off their variant.
func (r *Repository) GetAggregate(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("SubCategory.Category").
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return byDisplayOrder(db.Where("product_variant_id IS NULL"))
		}).
		Preload("Attributes", byID).
		Preload("Attributes.Attribute").
		Preload("Attributes.Values", byID).
		Preload("Attributes.Values.AttributeValue").
		Preload("Variants", byID).
		Preload("Variants.AttributeValues", byID).
		Preload("Variants.AttributeValues.AttributeValue").
		Preload("Variants.Images", byDisplayOrder).
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct inserts a new product row.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// UpdateProductFields applies scalar changes and bumps the version. A non-nil
// expectedVersion guards the write so it only lands while the stored version
// still matches. It reports whether a row was updated.
func (r *Repository) UpdateProductFields(ctx context.Context, id uint, expectedVersion *int, fields map[string]any) (bool, error) {
	updates := make(map[string]any, len(fields)+2)
	for column, value := range fields {
		updates[column] = value
	}
	updates["version"] = gorm.Expr("version + 1")
	updates["updated_at"] = time.Now().UTC()

	q := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id)
	if expectedVersion != nil {
		q = q.Where("version = ?", *expectedVersion)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteProduct removes the product row; children go with the FK cascade.
func (r *Repository) DeleteProduct(ctx context.Context, id uint) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.Product{}, id)
	return res.RowsAffected, res.Error
}

// SlugExists reports whether another product already uses slug.
func (r *Repository) SlugExists(ctx context.Context, slug string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.Product{}).Where("slug = ?", slug)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) FindSubCategory(ctx context.Context, id uint) (*models.SubCategory, error) {
	var sub models.SubCategory
	if err := r.db.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *Repository) CategoryExists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Category{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateImage inserts one image row.
func (r *Repository) CreateImage(ctx context.Context, image *models.ProductImage) error {
	return r.db.WithContext(ctx).Create(image).Error
}

// ListImagesByProduct returns every image of the product, variant images included.
func (r *Repository) ListImagesByProduct(ctx context.Context, productID uint) ([]models.ProductImage, error) {
	var rows []models.ProductImage
	if err := byDisplayOrder(r.db.WithContext(ctx).Where("product_id = ?", productID)).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteImages removes image rows by id.
func (r *Repository) DeleteImages(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.ProductImage{}).Error
}

// FindAttributes returns the attributes with the given ids.
func (r *Repository) FindAttributes(ctx context.Context, ids []uint) ([]models.Attribute, error) {
	var rows []models.Attribute
	if len(ids) == 0 {
		return rows, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindAttributeValues returns the attribute values with the given ids.
func (r *Repository) FindAttributeValues(ctx context.Context, ids []uint) ([]models.AttributeValue, error) {
	var rows []models.AttributeValue
	if len(ids) == 0 {
		return rows, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) CreateProductAttribute(ctx context.Context, attr *models.ProductAttribute) error {
	return r.db.WithContext(ctx).Omit("Values", "Attribute").Create(attr).Error
}

func (r *Repository) CreateProductAttributeValue(ctx context.Context, value *models.ProductAttributeValue) error {
	return r.db.WithContext(ctx).Omit("AttributeValue").Create(value).Error
}

// DeleteProductAttributes removes every attribute binding of the product,
// values first.
func (r *Repository) DeleteProductAttributes(ctx context.Context, productID uint) error {
	tx := r.db.WithContext(ctx)
	attrIDs := tx.Model(&models.ProductAttribute{}).Select("id").Where("product_id = ?", productID)
	if err := tx.Where("product_attribute_id IN (?)", attrIDs).Delete(&models.ProductAttributeValue{}).Error; err != nil {
		return err
	}
	return tx.Where("product_id = ?", productID).Delete(&models.ProductAttribute{}).Error
}

func (r *Repository) CreateVariant(ctx context.Context, variant *models.ProductVariant) error {
	return r.db.WithContext(ctx).Omit("AttributeValues", "Images").Create(variant).Error
}

// UpdateVariantFields applies scalar changes to one variant of the product.
func (r *Repository) UpdateVariantFields(ctx context.Context, productID, variantID uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ? AND product_id = ?", variantID, productID).
		Updates(fields).Error
}

// ReplaceVariantAttributeValues swaps the variant's bindings for valueIDs.
func (r *Repository) ReplaceVariantAttributeValues(ctx context.Context, variantID uint, valueIDs []uint) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("product_variant_id = ?", variantID).Delete(&models.VariantAttributeValue{}).Error; err != nil {
		return err
	}
	if len(valueIDs) == 0 {
		return nil
	}
	rows := make([]models.VariantAttributeValue, 0, len(valueIDs))
	for _, id := range valueIDs {
		rows = append(rows, models.VariantAttributeValue{ProductVariantID: variantID, AttributeValueID: id})
	}
	return tx.Omit("AttributeValue").Create(&rows).Error
}

// DeleteVariants removes variants together with their bindings and images.
func (r *Repository) DeleteVariants(ctx context.Context, productID uint, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	tx := r.db.WithContext(ctx)
	if err := tx.Where("product_variant_id IN ?", ids).Delete(&models.ProductImage{}).Error; err != nil {
		return err
	}
	if err := tx.Where("product_variant_id IN ?", ids).Delete(&models.VariantAttributeValue{}).Error; err != nil {
		return err
	}
	return tx.Where("product_id = ? AND id IN ?", productID, ids).Delete(&models.ProductVariant{}).Error
}

// SKUExists reports whether a variant other than excludeID already uses sku.
func (r *Repository) SKUExists(ctx context.Context, sku string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.ProductVariant{}).Where("sku = ?", sku)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
